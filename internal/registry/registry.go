// Package registry implements the Installation Registry (C8): the
// persisted JSON document describing every installed framework version
// on the host. All mutations go through an atomic write-temp-then-rename
// discipline so a crash mid-write never corrupts the previous document.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/idftools/eim/internal/eimerrors"
)

const SchemaVersion = 1

// Installation describes one installed framework version. The JSON keys
// are the stable on-disk schema shared with other consumers of the
// registry file, so they do not follow this package's naming.
type Installation struct {
	ID                     string `json:"id"`
	DisplayName            string `json:"name"`
	SourcePath             string `json:"path"`
	InterpreterPath        string `json:"python"`
	ToolsRoot              string `json:"idfToolsPath"`
	ActivationArtifactPath string `json:"activationScript"`
}

// Document is the registry's on-disk JSON shape.
type Document struct {
	SchemaVersion     int            `json:"schemaVersion"`
	HostGitPath       string         `json:"gitPath,omitempty"`
	SelectedID        string         `json:"idfSelectedId"`
	Installations     []Installation `json:"idfInstalled"`
	ManagerBinaryPath string         `json:"eimPath,omitempty"`
}

// Registry wraps a Document persisted at Path.
type Registry struct {
	Path string
	Doc  Document
}

// NewID returns a fresh opaque unique installation id.
func NewID() string {
	return uuid.NewString()
}

// Load reads the registry document at path. A missing file returns an
// empty registry (schema_version set, no installations) rather than an
// error, so first-run installs don't need special-case handling.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{Path: path, Doc: Document{SchemaVersion: SchemaVersion}}, nil
		}
		return nil, eimerrors.Wrap(eimerrors.KindRegistry, "read registry", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindRegistry, "parse registry", err)
	}
	return &Registry{Path: path, Doc: doc}, nil
}

// Save persists the registry atomically: write to a temp file in the same
// directory, fsync, then rename over the target. Installations are always
// written sorted by id.
func (r *Registry) Save() error {
	sort.Slice(r.Doc.Installations, func(i, j int) bool {
		return r.Doc.Installations[i].ID < r.Doc.Installations[j].ID
	})

	dir := filepath.Dir(r.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eimerrors.Wrap(eimerrors.KindRegistry, "create registry dir", err)
	}

	data, err := json.MarshalIndent(r.Doc, "", "  ")
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindRegistry, "marshal registry", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindRegistry, "create registry temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eimerrors.Wrap(eimerrors.KindRegistry, "write registry temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eimerrors.Wrap(eimerrors.KindRegistry, "fsync registry temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return eimerrors.Wrap(eimerrors.KindRegistry, "close registry temp file", err)
	}
	if err := os.Rename(tmpPath, r.Path); err != nil {
		os.Remove(tmpPath)
		return eimerrors.Wrap(eimerrors.KindRegistry, "rename registry temp file", err)
	}
	return nil
}

// Add inserts installation, replacing any existing entry with the same ID.
func (r *Registry) Add(inst Installation) {
	for i, existing := range r.Doc.Installations {
		if existing.ID == inst.ID {
			r.Doc.Installations[i] = inst
			return
		}
	}
	r.Doc.Installations = append(r.Doc.Installations, inst)
}

// RemoveByNameOrID removes the first installation whose ID or DisplayName
// matches key. If the removed entry was selected, selection is cleared or
// moved to the first remaining installation. Returns the removed entry and
// whether anything was removed.
func (r *Registry) RemoveByNameOrID(key string) (Installation, bool) {
	for i, inst := range r.Doc.Installations {
		if inst.ID == key || inst.DisplayName == key {
			r.Doc.Installations = append(r.Doc.Installations[:i], r.Doc.Installations[i+1:]...)
			if r.Doc.SelectedID == inst.ID {
				if len(r.Doc.Installations) > 0 {
					r.Doc.SelectedID = r.Doc.Installations[0].ID
				} else {
					r.Doc.SelectedID = ""
				}
			}
			return inst, true
		}
	}
	return Installation{}, false
}

// Select sets SelectedID to the installation matching key (id or display
// name). Returns an error if no installation matches.
func (r *Registry) Select(key string) error {
	inst, ok := r.find(key)
	if !ok {
		return eimerrors.New(eimerrors.KindRegistry, "no installation matches "+key)
	}
	r.Doc.SelectedID = inst.ID
	return nil
}

// Rename changes the display name of the installation matching key.
// Rejects the rename if newName is already used by a different entry.
func (r *Registry) Rename(key, newName string) error {
	for _, inst := range r.Doc.Installations {
		if inst.DisplayName == newName && inst.ID != key && inst.DisplayName != key {
			return eimerrors.New(eimerrors.KindRegistry, fmt.Sprintf("name %q is already in use", newName))
		}
	}
	for i, inst := range r.Doc.Installations {
		if inst.ID == key || inst.DisplayName == key {
			r.Doc.Installations[i].DisplayName = newName
			return nil
		}
	}
	return eimerrors.New(eimerrors.KindRegistry, "no installation matches "+key)
}

// List returns every installation, sorted by id.
func (r *Registry) List() []Installation {
	out := make([]Installation, len(r.Doc.Installations))
	copy(out, r.Doc.Installations)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) find(key string) (Installation, bool) {
	for _, inst := range r.Doc.Installations {
		if inst.ID == key || inst.DisplayName == key {
			return inst, true
		}
	}
	return Installation{}, false
}
