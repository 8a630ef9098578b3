package markdown

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/guideforge/engine/step"
)

// Parsed is the structured result of parsing a rendered markdown document
// back into its frontmatter and body.
type Parsed struct {
	Title       string
	BaseURL     string
	GeneratedAt time.Time
	TotalSteps  int
	RecordVideo bool
	Language    string
	OutputDir   string
	Steps       []step.Step
	Body        string
}

// yamlStep mirrors renderStepEntry's field set for decoding the steps list
// back out of the frontmatter.
type yamlStep struct {
	Type      string `yaml:"type"`
	Label     string `yaml:"label"`
	URL       string `yaml:"url"`
	Value     string `yaml:"value"`
	Key       string `yaml:"key"`
	Sensitive bool   `yaml:"sensitive"`
	Text      string `yaml:"text"`
	Note      string `yaml:"note"`
}

type yamlFrontmatter struct {
	Title       string     `yaml:"title"`
	BaseURL     string     `yaml:"baseUrl"`
	GeneratedAt string     `yaml:"generatedAt"`
	TotalSteps  int        `yaml:"totalSteps"`
	RecordVideo bool       `yaml:"recordVideo"`
	Language    string     `yaml:"language"`
	OutputDir   string     `yaml:"outputDir"`
	Steps       []yamlStep `yaml:"steps"`
}

// Parse splits doc into its YAML frontmatter and markdown body and decodes
// both. It is the inverse of Render, modulo the renderer's auto-inserted
// intro_auto/outro_auto/leading-Goto steps, which Parse returns verbatim
// since Import treats an exported script's step list as already final.
func Parse(doc string) (Parsed, error) {
	const delim = "---"
	if !strings.HasPrefix(doc, delim+"\n") {
		return Parsed{}, fmt.Errorf("markdown: document missing frontmatter delimiter")
	}
	rest := doc[len(delim)+1:]
	end := strings.Index(rest, "\n"+delim)
	if end < 0 {
		return Parsed{}, fmt.Errorf("markdown: unterminated frontmatter")
	}
	head := rest[:end]
	body := strings.TrimPrefix(rest[end+1+len(delim):], "\n")

	var fm yamlFrontmatter
	if err := yaml.Unmarshal([]byte(head), &fm); err != nil {
		return Parsed{}, fmt.Errorf("markdown: parse frontmatter: %w", err)
	}

	generatedAt, err := time.Parse(time.RFC3339, fm.GeneratedAt)
	if err != nil && fm.GeneratedAt != "" {
		return Parsed{}, fmt.Errorf("markdown: parse generatedAt: %w", err)
	}

	steps := make([]step.Step, 0, len(fm.Steps))
	for _, ys := range fm.Steps {
		steps = append(steps, step.Step{
			Kind:      step.Kind(ys.Type),
			Label:     ys.Label,
			URL:       ys.URL,
			Value:     ys.Value,
			Key:       ys.Key,
			Sensitive: ys.Sensitive,
			Text:      ys.Text,
			Note:      strings.TrimSuffix(ys.Note, "\n"),
		})
	}

	return Parsed{
		Title:       fm.Title,
		BaseURL:     fm.BaseURL,
		GeneratedAt: generatedAt,
		TotalSteps:  fm.TotalSteps,
		RecordVideo: fm.RecordVideo,
		Language:    fm.Language,
		OutputDir:   fm.OutputDir,
		Steps:       steps,
		Body:        strings.TrimSpace(body),
	}, nil
}
