// Package script implements the Script data type and the Import/Export
// round-trip between a stored markdown guide and a neutral JSON
// representation, plus the registry interface every storage backend
// implements.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/guideforge/engine/markdown"
	"github.com/guideforge/engine/step"
	"github.com/guideforge/engine/workspace"
)

// Script is a named, ordered sequence of steps backed by a markdown file on
// disk.
type Script struct {
	ID          string
	Title       string
	BaseURL     string
	Steps       []step.Step
	Language    string
	RecordVideo bool
	Tags        []string
	Path        string // absolute path to the markdown file
}

// ErrExists is returned by Import when overwrite is false and id already
// has a registry entry.
var ErrExists = errors.New("script: already exists")

// Registry persists Script metadata independent of the markdown file
// itself. Concrete backends: script/filestore (default) and
// script/mongostore (optional durable alternative).
type Registry interface {
	Get(ctx context.Context, id string) (Script, bool, error)
	Put(ctx context.Context, s Script) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Script, error)
}

// Export is the neutral JSON representation returned by the Export
// operation.
type Export struct {
	ScriptID   string         `json:"scriptId"`
	Metadata   ExportMetadata `json:"metadata"`
	Config     ExportConfig   `json:"config"`
	Body       string         `json:"body"`
	ExportedAt time.Time      `json:"exportedAt"`
}

// ExportMetadata carries the title and base URL surfaced on export.
type ExportMetadata struct {
	Title   string `json:"title"`
	BaseURL string `json:"baseUrl"`
}

// ExportConfig carries the remaining frontmatter fields, kept separate from
// Metadata to match the title/base-URL shape.
type ExportConfig struct {
	Language    string      `json:"language"`
	RecordVideo bool        `json:"recordVideo"`
	Steps       []step.Step `json:"steps"`
}

// ExportScript reads s's markdown file and renders the neutral JSON
// representation.
func ExportScript(s Script) (Export, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return Export{}, fmt.Errorf("script: read %s: %w", s.Path, err)
	}
	parsed, err := markdown.Parse(string(raw))
	if err != nil {
		return Export{}, fmt.Errorf("script: parse %s: %w", s.Path, err)
	}
	return Export{
		ScriptID: s.ID,
		Metadata: ExportMetadata{Title: parsed.Title, BaseURL: parsed.BaseURL},
		Config: ExportConfig{
			Language:    parsed.Language,
			RecordVideo: parsed.RecordVideo,
			Steps:       parsed.Steps,
		},
		Body:       parsed.Body,
		ExportedAt: parsed.GeneratedAt,
	}, nil
}

// ImportScript takes an Export-shaped object, writes its markdown to
// <scriptsDir>/<scriptId>/generated-guide.md, updates reg, and honors
// overwrite.
func ImportScript(ctx context.Context, reg Registry, ws workspace.Workspace, exp Export, overwrite bool) (Script, error) {
	id := exp.ScriptID
	if id == "" {
		id = uuid.NewString()
	}

	if !overwrite {
		if _, ok, err := reg.Get(ctx, id); err != nil {
			return Script{}, err
		} else if ok {
			return Script{}, fmt.Errorf("%w: %s", ErrExists, id)
		}
	}

	path, err := ws.ScriptMarkdownPath(id)
	if err != nil {
		return Script{}, err
	}
	if err := workspace.EnsureParent(path); err != nil {
		return Script{}, fmt.Errorf("script: ensure dir for %s: %w", path, err)
	}

	doc, err := markdown.Render(markdown.Source{
		Title:       exp.Metadata.Title,
		BaseURL:     exp.Metadata.BaseURL,
		Steps:       exp.Config.Steps,
		Language:    exp.Config.Language,
		RecordVideo: exp.Config.RecordVideo,
		GeneratedAt: exp.ExportedAt,
	})
	if err != nil {
		return Script{}, fmt.Errorf("script: render markdown: %w", err)
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return Script{}, fmt.Errorf("script: write %s: %w", path, err)
	}

	s := Script{
		ID:          id,
		Title:       exp.Metadata.Title,
		BaseURL:     exp.Metadata.BaseURL,
		Steps:       exp.Config.Steps,
		Language:    exp.Config.Language,
		RecordVideo: exp.Config.RecordVideo,
		Path:        path,
	}
	if err := reg.Put(ctx, s); err != nil {
		return Script{}, fmt.Errorf("script: update registry: %w", err)
	}
	return s, nil
}
