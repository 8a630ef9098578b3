package markdown_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/markdown"
	"github.com/guideforge/engine/step"
)

func TestRenderInjectsLeadingGoto(t *testing.T) {
	src := markdown.Source{
		Title:   "Sign in",
		BaseURL: "https://example.com/login",
		Steps: []step.Step{
			{Kind: step.Click, Label: "Sign in"},
		},
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	doc, err := markdown.Render(src)
	require.NoError(t, err)

	parsed, err := markdown.Parse(doc)
	require.NoError(t, err)
	require.NotEmpty(t, parsed.Steps)
	require.Equal(t, step.Goto, parsed.Steps[0].Kind)
	require.Equal(t, "https://example.com/login", parsed.Steps[0].URL)
}

func TestRenderInsertsMissingTTSWait(t *testing.T) {
	src := markdown.Source{
		Title:   "Checkout",
		BaseURL: "https://example.com",
		Steps: []step.Step{
			{Kind: step.Goto, URL: "https://example.com"},
			{Kind: step.TTSStart, Label: "narration", Text: "Now add an item to the cart."},
			{Kind: step.Click, Label: "Add to cart"},
		},
		GeneratedAt: time.Now().UTC(),
	}

	doc, err := markdown.Render(src)
	require.NoError(t, err)

	parsed, err := markdown.Parse(doc)
	require.NoError(t, err)

	var sawStart, sawWaitAfterClick bool
	for i, s := range parsed.Steps {
		if s.Kind == step.TTSStart && s.Label == "narration" {
			sawStart = true
		}
		if s.Kind == step.Click && sawStart {
			if i+1 < len(parsed.Steps) && parsed.Steps[i+1].Kind == step.TTSWait && parsed.Steps[i+1].Label == "narration" {
				sawWaitAfterClick = true
			}
		}
	}
	require.True(t, sawStart, "expected tts_start to survive")
	require.True(t, sawWaitAfterClick, "expected an auto-inserted tts_wait immediately after the next actionable step")
}

func TestRenderSuppressesNarrationBeforeInitialNavigation(t *testing.T) {
	src := markdown.Source{
		Title:   "Dashboard",
		BaseURL: "https://example.com/dashboard",
		Steps: []step.Step{
			{Kind: step.TTSStart, Label: "pre", Text: "Heading to the dashboard."},
			{Kind: step.TTSWait, Label: "pre"},
			{Kind: step.Goto, URL: "https://example.com/dashboard"},
		},
		GeneratedAt: time.Now().UTC(),
	}

	doc, err := markdown.Render(src)
	require.NoError(t, err)

	parsed, err := markdown.Parse(doc)
	require.NoError(t, err)
	for _, s := range parsed.Steps {
		require.NotEqual(t, "pre", s.Label, "narration preceding the initial navigation should be suppressed")
	}
}

func TestRenderAddsIntroAndOutroAutoNarration(t *testing.T) {
	src := markdown.Source{
		Title:   "Profile update",
		BaseURL: "https://example.com",
		Steps: []step.Step{
			{Kind: step.Goto, URL: "https://example.com"},
			{Kind: step.Click, Label: "Edit profile"},
		},
		GeneratedAt: time.Now().UTC(),
	}

	doc, err := markdown.Render(src)
	require.NoError(t, err)

	parsed, err := markdown.Parse(doc)
	require.NoError(t, err)

	require.Equal(t, markdown.IntroAutoLabel, parsed.Steps[1].Label)
	require.Equal(t, step.TTSStart, parsed.Steps[1].Kind)
	last := parsed.Steps[len(parsed.Steps)-1]
	require.Equal(t, step.TTSWait, last.Kind)
	require.Equal(t, markdown.OutroAutoLabel, last.Label)
}

func TestRenderRedactsSensitiveValueInFrontmatterAndBody(t *testing.T) {
	src := markdown.Source{
		Title:   "Sign up",
		BaseURL: "https://example.com/signup",
		Steps: []step.Step{
			{Kind: step.Goto, URL: "https://example.com/signup"},
			{Kind: step.Type, Label: "Password", Value: "hunter2", Sensitive: true},
		},
		GeneratedAt: time.Now().UTC(),
	}

	doc, err := markdown.Render(src)
	require.NoError(t, err)
	require.NotContains(t, doc, "hunter2")
	require.Contains(t, doc, "[HIDDEN]")

	parsed, err := markdown.Parse(doc)
	require.NoError(t, err)
	var found bool
	for _, s := range parsed.Steps {
		if s.Kind == step.Type && s.Label == "Password" {
			found = true
			require.Equal(t, "[HIDDEN]", s.Value)
			require.True(t, s.Sensitive)
		}
	}
	require.True(t, found)
}

func TestRenderMultilineNoteUsesBlockScalar(t *testing.T) {
	src := markdown.Source{
		Title:   "With notes",
		BaseURL: "https://example.com",
		Steps: []step.Step{
			{Kind: step.Goto, URL: "https://example.com"},
			{Kind: step.Click, Label: "Continue", Note: "First line.\nSecond line with more detail."},
		},
		GeneratedAt: time.Now().UTC(),
	}

	doc, err := markdown.Render(src)
	require.NoError(t, err)
	require.Contains(t, doc, "note: |\n")
	require.Contains(t, doc, "      First line.\n")
	require.Contains(t, doc, "      Second line with more detail.\n")

	parsed, err := markdown.Parse(doc)
	require.NoError(t, err)
	var note string
	for _, s := range parsed.Steps {
		if s.Label == "Continue" {
			note = s.Note
		}
	}
	require.Equal(t, "First line.\nSecond line with more detail.", note)
}

func TestRenderIncludesAutogeneratedStepsMarker(t *testing.T) {
	src := markdown.Source{
		Title:   "Marker check",
		BaseURL: "https://example.com",
		Steps:   []step.Step{{Kind: step.Goto, URL: "https://example.com"}},
		GeneratedAt: time.Now().UTC(),
	}

	doc, err := markdown.Render(src)
	require.NoError(t, err)
	require.True(t, strings.Contains(doc, "<!-- STEPS:AUTOGENERATED -->"))
}

func TestParseRoundTripsTotalStepsAndMetadata(t *testing.T) {
	src := markdown.Source{
		Title:       "Round trip",
		BaseURL:     "https://example.com",
		Language:    "en-US",
		RecordVideo: true,
		OutputDir:   "./out",
		Steps:       []step.Step{{Kind: step.Goto, URL: "https://example.com"}},
		GeneratedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	doc, err := markdown.Render(src)
	require.NoError(t, err)

	parsed, err := markdown.Parse(doc)
	require.NoError(t, err)
	require.Equal(t, "Round trip", parsed.Title)
	require.Equal(t, "https://example.com", parsed.BaseURL)
	require.Equal(t, "en-US", parsed.Language)
	require.True(t, parsed.RecordVideo)
	require.Equal(t, "./out", parsed.OutputDir)
	require.Equal(t, len(parsed.Steps), parsed.TotalSteps)
	require.True(t, src.GeneratedAt.Equal(parsed.GeneratedAt))
}
