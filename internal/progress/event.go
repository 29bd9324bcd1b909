package progress

import (
	"encoding/json"
	"fmt"
	"io"
)

// Stage identifies which part of the installation pipeline an Event
// belongs to.
type Stage string

const (
	StageChecking      Stage = "checking"
	StagePrerequisites Stage = "prerequisites"
	StageDownload      Stage = "download"
	StageExtract       Stage = "extract"
	StageTools         Stage = "tools"
	StagePython        Stage = "python"
	StageConfigure     Stage = "configure"
	StageComplete      Stage = "complete"
	StageError         Stage = "error"
)

// Event is one progress update from the pipeline. Percent is monotonic
// within a single version's progression except on StageError, which
// always carries percentage 0.
type Event struct {
	Stage      Stage  `json:"stage"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Version    string `json:"version,omitempty"`
}

// WriteLine serializes e as one JSON object per line, the wire format
// consumed by the GUI shell and the parent-process line parser.
func (e Event) WriteLine(w io.Writer) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// ParseEventLine decodes one serialized event line.
func ParseEventLine(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, fmt.Errorf("progress: parse event line: %w", err)
	}
	return e, nil
}

// Sink receives pipeline events. A nil Sink is valid and discards events.
type Sink func(Event)

// Emitter publishes events for one version, enforcing the monotonic
// percentage invariant: a non-error event never reports a lower
// percentage than its predecessor.
type Emitter struct {
	sink    Sink
	version string
	lo, hi  int // current span the raw percent is scaled into
	last    int
}

// NewEmitter returns an Emitter for version publishing into sink with the
// full [0,100] span.
func NewEmitter(sink Sink, version string) *Emitter {
	return &Emitter{sink: sink, version: version, lo: 0, hi: 100}
}

// Span returns a derived Emitter whose [0,100] input range maps into
// [lo,hi] of the parent's output range. Batch installs use this to map
// version i of N into [i/N, (i+1)/N] x 90%.
func (em *Emitter) Span(lo, hi int) *Emitter {
	span := em.hi - em.lo
	return &Emitter{
		sink:    em.forward,
		version: em.version,
		lo:      em.lo + lo*span/100,
		hi:      em.lo + hi*span/100,
	}
}

// Tagged returns a copy of the emitter whose events carry version,
// used by batch installs where each version's span gets its own tag.
func (em *Emitter) Tagged(version string) *Emitter {
	cp := *em
	cp.version = version
	return &cp
}

// forward re-publishes a child span's already-scaled event into the
// parent's sink, keeping the parent's monotonic clamp authoritative.
func (em *Emitter) forward(e Event) {
	if em.sink == nil {
		return
	}
	if e.Stage != StageError && e.Percentage < em.last {
		e.Percentage = em.last
	}
	if e.Stage != StageError {
		em.last = e.Percentage
	}
	em.sink(e)
}

// Emit publishes an event at rawPercent of the emitter's span.
func (em *Emitter) Emit(stage Stage, rawPercent int, message, detail string) {
	if em.sink == nil {
		return
	}
	if rawPercent < 0 {
		rawPercent = 0
	}
	if rawPercent > 100 {
		rawPercent = 100
	}
	scaled := em.lo + rawPercent*(em.hi-em.lo)/100
	if stage != StageError && scaled < em.last {
		scaled = em.last
	}
	if stage == StageError {
		scaled = 0
	} else {
		em.last = scaled
	}
	em.sink(Event{
		Stage:      stage,
		Percentage: scaled,
		Message:    message,
		Detail:     detail,
		Version:    em.version,
	})
}

// Error publishes the terminal error event for this version:
// stage=error, percentage=0, message is the kind summary, detail the
// actionable text.
func (em *Emitter) Error(message, detail string) {
	em.Emit(StageError, 0, message, detail)
}
