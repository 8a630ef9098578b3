// Package markdown renders a Script to a markdown document with a YAML
// frontmatter header and parses that format back for Script Export.
// Frontmatter scalar fields are YAML-escaped via gopkg.in/yaml.v3; the
// per-step list is hand-assembled so multi-line `note` fields can use the
// block-scalar alignment required for multi-line notes, which the
// library's default struct marshaling does not produce.
package markdown

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/guideforge/engine/step"
)

// IntroAutoLabel and OutroAutoLabel name the TTS pairs the emitter inserts
// automatically around the generated guide.
const (
	IntroAutoLabel = "intro_auto"
	OutroAutoLabel = "outro_auto"
)

const stepsMarker = "<!-- STEPS:AUTOGENERATED -->"

// Source is the input to Render: everything about a script except its
// storage path.
type Source struct {
	Title       string
	BaseURL     string
	Steps       []step.Step
	Language    string
	RecordVideo bool
	OutputDir   string
	GeneratedAt time.Time
	Overview    string
}

// frontmatter mirrors the YAML header's top-level scalar fields (the steps
// list is emitted separately, see Render).
type frontmatter struct {
	Title       string `yaml:"title"`
	BaseURL     string `yaml:"baseUrl"`
	GeneratedAt string `yaml:"generatedAt"`
	TotalSteps  int    `yaml:"totalSteps"`
	RecordVideo bool   `yaml:"recordVideo"`
	Language    string `yaml:"language"`
	OutputDir   string `yaml:"outputDir"`
}

// Render produces the full markdown document for src.
func Render(src Source) (string, error) {
	steps := PrepareSteps(src.Steps, src.BaseURL)

	fm := frontmatter{
		Title:       src.Title,
		BaseURL:     src.BaseURL,
		GeneratedAt: src.GeneratedAt.UTC().Format(time.RFC3339),
		TotalSteps:  len(steps),
		RecordVideo: src.RecordVideo,
		Language:    src.Language,
		OutputDir:   src.OutputDir,
	}

	head, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("markdown: marshal frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString(strings.TrimRight(string(head), "\n"))
	b.WriteString("\n")
	b.WriteString(renderStepsBlock(steps))
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# %s\n\n", src.Title)
	if src.Overview != "" {
		b.WriteString(src.Overview)
		b.WriteString("\n\n")
	}
	b.WriteString(stepsMarker)
	b.WriteString("\n\n")
	b.WriteString(renderStepDescriptions(steps))

	return b.String(), nil
}

func renderStepsBlock(steps []step.Step) string {
	var b strings.Builder
	b.WriteString("steps:\n")
	for _, s := range steps {
		b.WriteString(renderStepEntry(s))
	}
	return b.String()
}

func renderStepEntry(s step.Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  - type: %s\n", s.Kind)
	if s.Label != "" {
		fmt.Fprintf(&b, "    label: %s\n", yamlScalar(s.Label))
	}
	if s.URL != "" {
		fmt.Fprintf(&b, "    url: %s\n", yamlScalar(s.URL))
	}
	if s.Value != "" {
		value := s.Value
		if s.Sensitive {
			value = "[HIDDEN]"
		}
		fmt.Fprintf(&b, "    value: %s\n", yamlScalar(value))
	}
	if s.Key != "" {
		fmt.Fprintf(&b, "    key: %s\n", yamlScalar(s.Key))
	}
	if s.Sensitive {
		b.WriteString("    sensitive: true\n")
	}
	if s.Text != "" {
		fmt.Fprintf(&b, "    text: %s\n", yamlScalar(s.Text))
	}
	if s.Note != "" {
		b.WriteString(renderNote(s.Note))
	}
	return b.String()
}

// renderNote emits a multi-line note as a block-scalar `note: |` field
// indented to align under the key, one of the two YAML escaping rules this
// package enforces; a single-line note is written as an inline quoted scalar.
func renderNote(note string) string {
	if !strings.Contains(note, "\n") {
		return fmt.Sprintf("    note: %s\n", yamlScalar(note))
	}
	var b strings.Builder
	b.WriteString("    note: |\n")
	for _, line := range strings.Split(note, "\n") {
		b.WriteString("      ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// yamlScalar quotes/escapes a single scalar value the way yaml.v3 would
// inline it, by round-tripping through Marshal and trimming the trailing
// newline it always appends.
func yamlScalar(s string) string {
	out, err := yaml.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimRight(string(out), "\n")
}

func renderStepDescriptions(steps []step.Step) string {
	var b strings.Builder
	index := 0
	for _, s := range steps {
		if s.IsTTS() {
			continue
		}
		index++
		fmt.Fprintf(&b, "%d. %s\n", index, describeStep(s))
		if s.Note != "" {
			b.WriteString("   ")
			b.WriteString(strings.ReplaceAll(s.Note, "\n", "\n   "))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func describeStep(s step.Step) string {
	switch s.Kind {
	case step.Goto:
		return fmt.Sprintf("Navigate to %s", s.URL)
	case step.Click:
		return fmt.Sprintf("Click %q", s.Label)
	case step.Type:
		value := s.Value
		if s.Sensitive {
			value = "[HIDDEN]"
		}
		return fmt.Sprintf("Enter %q into %q", value, s.Label)
	case step.AssertPage:
		return fmt.Sprintf("Confirm the page is %s", s.URL)
	case step.Keypress:
		return fmt.Sprintf("Press %s", s.Key)
	default:
		return string(s.Kind)
	}
}
