package functional

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"
)

// registryDoc mirrors the registry file's stable JSON schema.
type registryDoc struct {
	SelectedID    string `json:"idfSelectedId"`
	Installations []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"idfInstalled"`
}

func registerSteps(ctx *godog.ScenarioContext) {
	ctx.Step(`^a registry containing versions "([^"]*)"$`, aRegistryContainingVersions)
	ctx.Step(`^I run eim (.+)$`, iRunEim)
	ctx.Step(`^the command succeeds$`, theCommandSucceeds)
	ctx.Step(`^the command fails$`, theCommandFails)
	ctx.Step(`^the output contains "([^"]*)"$`, theOutputContains)
	ctx.Step(`^the selected version is "([^"]*)"$`, theSelectedVersionIs)
	ctx.Step(`^the registry lists "([^"]*)"$`, theRegistryLists)
}

func aRegistryContainingVersions(ctx context.Context, csv string) (context.Context, error) {
	s := getState(ctx)
	doc := map[string]any{
		"schemaVersion": 1,
		"idfSelectedId": "",
		"idfInstalled":  []map[string]any{},
	}
	var entries []map[string]any
	for i, name := range strings.Split(csv, ",") {
		name = strings.TrimSpace(name)
		selected := strings.HasSuffix(name, " (selected)")
		name = strings.TrimSuffix(name, " (selected)")
		id := fmt.Sprintf("id-%d", i)
		entries = append(entries, map[string]any{
			"id":               id,
			"name":             name,
			"path":             filepath.Join(s.homeDir, name, "esp-idf"),
			"python":           filepath.Join(s.homeDir, name, "python", "venv", "bin", "python"),
			"idfToolsPath":     filepath.Join(s.homeDir, name, "tools"),
			"activationScript": filepath.Join(s.homeDir, name, "activate_"+name+".sh"),
		})
		if selected {
			doc["idfSelectedId"] = id
		}
	}
	doc["idfInstalled"] = entries

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ctx, err
	}
	return ctx, os.WriteFile(s.registryPath, data, 0o644)
}

func iRunEim(ctx context.Context, argLine string) (context.Context, error) {
	s := getState(ctx)
	cmd := exec.Command(s.binPath, strings.Fields(argLine)...)
	cmd.Env = append(os.Environ(),
		"EIM_REGISTRY_PATH="+s.registryPath,
		"EIM_HOME="+s.homeDir,
	)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	s.stdout = stdout.String()
	s.stderr = stderr.String()
	s.exitCode = 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		s.exitCode = exitErr.ExitCode()
	} else if err != nil {
		return ctx, err
	}
	return ctx, nil
}

func theCommandSucceeds(ctx context.Context) error {
	s := getState(ctx)
	if s.exitCode != 0 {
		return fmt.Errorf("expected success, got exit %d\nstdout: %s\nstderr: %s", s.exitCode, s.stdout, s.stderr)
	}
	return nil
}

func theCommandFails(ctx context.Context) error {
	s := getState(ctx)
	if s.exitCode == 0 {
		return fmt.Errorf("expected failure, got exit 0\nstdout: %s", s.stdout)
	}
	return nil
}

func theOutputContains(ctx context.Context, needle string) error {
	s := getState(ctx)
	if !strings.Contains(s.stdout, needle) && !strings.Contains(s.stderr, needle) {
		return fmt.Errorf("output does not contain %q\nstdout: %s\nstderr: %s", needle, s.stdout, s.stderr)
	}
	return nil
}

func loadRegistry(s *testState) (*registryDoc, error) {
	data, err := os.ReadFile(s.registryPath)
	if err != nil {
		return nil, err
	}
	var doc registryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func theSelectedVersionIs(ctx context.Context, name string) error {
	s := getState(ctx)
	doc, err := loadRegistry(s)
	if err != nil {
		return err
	}
	for _, inst := range doc.Installations {
		if inst.ID == doc.SelectedID {
			if inst.Name == name {
				return nil
			}
			return fmt.Errorf("selected version is %q, expected %q", inst.Name, name)
		}
	}
	return fmt.Errorf("no installation matches selected id %q", doc.SelectedID)
}

func theRegistryLists(ctx context.Context, csv string) error {
	s := getState(ctx)
	doc, err := loadRegistry(s)
	if err != nil {
		return err
	}
	var got []string
	for _, inst := range doc.Installations {
		got = append(got, inst.Name)
	}
	want := strings.Split(csv, ",")
	for i := range want {
		want[i] = strings.TrimSpace(want[i])
	}
	if len(got) != len(want) {
		return fmt.Errorf("registry lists %v, expected %v", got, want)
	}
	wanted := map[string]bool{}
	for _, w := range want {
		wanted[w] = true
	}
	for _, g := range got {
		if !wanted[g] {
			return fmt.Errorf("registry lists %v, expected %v", got, want)
		}
	}
	return nil
}
