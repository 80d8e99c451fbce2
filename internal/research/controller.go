// Package research implements the Deep Research Controller (C12): tag
// detection, iteration counting, and continuation-topic recovery across a
// multi-turn research session. The detection and continuation logic is
// ported directly from original_source/api/pipelines/chat/steps.py's
// deep-research step and original_source/backend/services/chat_service.py's
// _detect_deep_research, expressed as a single small stateless transform
// over a request.
package research

import (
	"strings"

	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// FinalIterationThreshold is the research_iteration at or beyond which the
// controller selects the final-iteration prompt mode, matching
// original_source's "research_iteration >= 5" check.
const FinalIterationThreshold = 5

const tag = "[DEEP RESEARCH]"

// Mode names the system-prompt variant the Query Pipeline should select.
type Mode string

const (
	ModeSimpleChat          Mode = "simple_chat"
	ModeFirstIteration      Mode = "deep_research_first"
	ModeIntermediateResearch Mode = "deep_research_intermediate"
	ModeFinalIteration      Mode = "deep_research_final"
)

// Detection is the outcome of inspecting one request's message list for a
// Deep Research tag.
type Detection struct {
	IsDeepResearch bool
	Iteration      int
	Mode           Mode
	Messages       []models.Message
}

// Detect inspects messages for the [DEEP RESEARCH] tag, strips it from the
// final message, computes the iteration as count(assistant messages)+1,
// and — for a "continue the research" follow-up — replaces that message's
// content with the original research topic so every iteration's prompt
// carries the same subject (§4.12, mirroring _detect_deep_research).
func Detect(messages []models.Message) Detection {
	out := make([]models.Message, len(messages))
	copy(out, messages)

	isDeepResearch := false
	for i := range out {
		if strings.Contains(out[i].Content, tag) {
			isDeepResearch = true
			if i == len(out)-1 {
				out[i].Content = strings.TrimSpace(strings.ReplaceAll(out[i].Content, tag, ""))
			}
		}
	}

	if !isDeepResearch {
		return Detection{IsDeepResearch: false, Iteration: 1, Mode: ModeSimpleChat, Messages: out}
	}

	iteration := 1
	for _, m := range out {
		if m.Role == models.RoleAssistant {
			iteration++
		}
	}

	if len(out) > 0 {
		last := &out[len(out)-1]
		lower := strings.ToLower(last.Content)
		if strings.Contains(lower, "continue") && strings.Contains(lower, "research") {
			if topic, ok := originalTopic(out); ok {
				last.Content = topic
			}
		}
	}

	return Detection{
		IsDeepResearch: true,
		Iteration:      iteration,
		Mode:           modeFor(iteration),
		Messages:       out,
	}
}

// originalTopic returns the first user message that is not itself a
// continuation request, the research subject every iteration replays.
func originalTopic(messages []models.Message) (string, bool) {
	for _, m := range messages {
		if m.Role != models.RoleUser {
			continue
		}
		lower := strings.ToLower(m.Content)
		if strings.Contains(lower, "continue") {
			continue
		}
		return strings.TrimSpace(strings.ReplaceAll(m.Content, tag, "")), true
	}
	return "", false
}

func modeFor(iteration int) Mode {
	switch {
	case iteration == 1:
		return ModeFirstIteration
	case iteration >= FinalIterationThreshold:
		return ModeFinalIteration
	default:
		return ModeIntermediateResearch
	}
}
