package markdown

import "github.com/guideforge/engine/step"

// PrepareSteps applies the emitter's structural rules to a raw step list
// before rendering: inject a leading Goto if missing,
// pair every tts_start with a later tts_wait, suppress narration of the
// initial page load, and bracket the guide with intro_auto/outro_auto.
func PrepareSteps(steps []step.Step, baseURL string) []step.Step {
	out := ensureLeadingGoto(steps, baseURL)
	out = ensureTTSWaits(out)
	out = suppressInitialNavNarration(out)
	out = addAutoNarration(out)
	return out
}

// ensureLeadingGoto prepends a Goto to baseURL if the first actionable step
// is not already one.
func ensureLeadingGoto(steps []step.Step, baseURL string) []step.Step {
	for _, s := range steps {
		if s.IsTTS() {
			continue
		}
		if s.Kind == step.Goto {
			return steps
		}
		break
	}
	leading := step.Step{Kind: step.Goto, URL: baseURL}
	return append([]step.Step{leading}, steps...)
}

// ensureTTSWaits inserts a tts_wait immediately after the next actionable
// step following an unmatched tts_start.
func ensureTTSWaits(steps []step.Step) []step.Step {
	out := make([]step.Step, 0, len(steps))
	pending := make(map[string]bool)

	for i := 0; i < len(steps); i++ {
		s := steps[i]
		out = append(out, s)
		switch s.Kind {
		case step.TTSStart:
			pending[s.Label] = true
		case step.TTSWait:
			delete(pending, s.Label)
		default:
			if len(pending) == 0 {
				continue
			}
			for label := range pending {
				out = append(out, step.Step{Kind: step.TTSWait, Label: label})
			}
			pending = make(map[string]bool)
		}
	}
	for label := range pending {
		out = append(out, step.Step{Kind: step.TTSWait, Label: label})
	}
	return out
}

// suppressInitialNavNarration drops a tts_start/tts_wait pair whose tts_start
// appears before the first actionable step (which is always the initial
// navigation after ensureLeadingGoto runs), since narrating it would talk
// over the first page load.
func suppressInitialNavNarration(steps []step.Step) []step.Step {
	firstActionable := -1
	for i, s := range steps {
		if s.Actionable() {
			firstActionable = i
			break
		}
	}
	if firstActionable <= 0 {
		return steps
	}
	suppressed := make(map[string]bool)
	for _, s := range steps[:firstActionable] {
		if s.Kind == step.TTSStart {
			suppressed[s.Label] = true
		}
	}
	if len(suppressed) == 0 {
		return steps
	}
	out := make([]step.Step, 0, len(steps))
	for _, s := range steps {
		if s.IsTTS() && suppressed[s.Label] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// addAutoNarration inserts an intro_auto TTS pair right after the first
// Goto and an outro_auto pair at the very end.
func addAutoNarration(steps []step.Step) []step.Step {
	gotoIdx := -1
	for i, s := range steps {
		if s.Kind == step.Goto {
			gotoIdx = i
			break
		}
	}
	out := make([]step.Step, 0, len(steps)+4)
	if gotoIdx < 0 {
		out = append(out, steps...)
	} else {
		out = append(out, steps[:gotoIdx+1]...)
		out = append(out,
			step.Step{Kind: step.TTSStart, Label: IntroAutoLabel, Text: "Let's get started."},
			step.Step{Kind: step.TTSWait, Label: IntroAutoLabel},
		)
		out = append(out, steps[gotoIdx+1:]...)
	}
	out = append(out,
		step.Step{Kind: step.TTSStart, Label: OutroAutoLabel, Text: "That completes this guide."},
		step.Step{Kind: step.TTSWait, Label: OutroAutoLabel},
	)
	return out
}
