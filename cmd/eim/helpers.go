package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/cheggaaa/pb"
	"github.com/fatih/color"

	"github.com/idftools/eim/internal/progress"
	"github.com/idftools/eim/internal/registry"
)

var (
	errColor    = color.New(color.FgRed, color.Bold)
	okColor     = color.New(color.FgGreen)
	noticeColor = color.New(color.FgCyan)
)

func printError(format string, args ...any) {
	errColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printSuccess(format string, args ...any) {
	okColor.Printf(format+"\n", args...)
}

func printNotice(format string, args ...any) {
	noticeColor.Printf(format+"\n", args...)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError("Failed to encode JSON: %v", err)
		exitWithCode(ExitGeneral)
	}
	fmt.Println(string(data))
}

// eventRenderer consumes the pipeline's progress events. On a terminal
// it renders a progress bar; otherwise it emits one JSON object per
// line, the wire format the GUI shell and parent-process line parser
// consume.
type eventRenderer struct {
	bar      *pb.ProgressBar
	jsonMode bool
	failed   bool
}

func newEventRenderer() *eventRenderer {
	r := &eventRenderer{jsonMode: !progress.ShouldShowProgress()}
	if !r.jsonMode {
		r.bar = pb.New(100)
		r.bar.ShowCounters = false
		r.bar.Start()
	}
	return r
}

func (r *eventRenderer) Sink() progress.Sink {
	return func(e progress.Event) {
		if r.jsonMode {
			_ = e.WriteLine(os.Stdout)
			if e.Stage == progress.StageError {
				r.failed = true
			}
			return
		}
		switch e.Stage {
		case progress.StageError:
			r.failed = true
			r.bar.Finish()
			printError("%s: %s", e.Message, e.Detail)
		case progress.StageComplete:
			r.bar.Set(e.Percentage)
		default:
			r.bar.Prefix(fmt.Sprintf("%-14s", e.Stage))
			r.bar.Set(e.Percentage)
		}
	}
}

func (r *eventRenderer) Close() {
	if r.bar != nil && !r.failed {
		r.bar.Finish()
	}
}

// openRegistry loads the registry from its default per-OS location.
func openRegistry() *registry.Registry {
	path, err := registry.DefaultPath()
	if err != nil {
		printError("Cannot resolve registry location: %v", err)
		exitWithCode(ExitGeneral)
	}
	reg, err := registry.Load(path)
	if err != nil {
		printError("Cannot load registry: %v", err)
		exitWithCode(ExitGeneral)
	}
	return reg
}

func saveRegistry(reg *registry.Registry) {
	if err := reg.Save(); err != nil {
		printError("Cannot save registry: %v", err)
		exitWithCode(ExitGeneral)
	}
}

// fanoutHandler is a slog.Handler that forwards every record to each child
// handler, used to pair the terminal sink with an optional --log-file
// sink.
type fanoutHandler struct {
	children []slog.Handler
}

func fanout(children ...slog.Handler) slog.Handler {
	if len(children) == 1 {
		return children[0]
	}
	return &fanoutHandler{children: children}
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, c := range f.children {
		if c.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, rec slog.Record) error {
	var firstErr error
	for _, c := range f.children {
		if !c.Enabled(ctx, rec.Level) {
			continue
		}
		if err := c.Handle(ctx, rec.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(f.children))
	for i, c := range f.children {
		out[i] = c.WithAttrs(attrs)
	}
	return &fanoutHandler{children: out}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(f.children))
	for i, c := range f.children {
		out[i] = c.WithGroup(name)
	}
	return &fanoutHandler{children: out}
}
