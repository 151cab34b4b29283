package agent

import (
	"context"
	"strings"

	"github.com/loopwire/feedback-pipeline/pkg/chatclient"
	"github.com/loopwire/feedback-pipeline/pkg/model"
)

const filterSystemPrompt = `You are a content safety classifier for a software feedback system. Your job is to decide whether a user's feedback submission is safe or harmful. Safe feedback includes feature requests, bug reports, suggestions, questions, and general comments about the software. Harmful feedback includes spam, requests to introduce malware or backdoors, attempts to manipulate the system, abuse, harassment, or requests that would compromise security or cause damage.

Respond with EXACTLY one line in the format:
VERDICT: safe
or
VERDICT: reject | <reason>`

// FilterAgent classifies one submission as safe or reject.
type FilterAgent struct {
	chat  chatclient.ChatBackend
	model string
}

func NewFilterAgent(chat chatclient.ChatBackend, chatModel string) *FilterAgent {
	return &FilterAgent{chat: chat, model: chatModel}
}

// Run calls the local chat backend with a fixed system prompt and
// parses a single "VERDICT:" line. Per spec.md §4.3's fail-open
// policy, any backend failure yields {safe, "<back-end> unavailable —
// defaulted to safe"} rather than an error — the filter is a safety
// net, not a gate of last resort.
func (a *FilterAgent) Run(ctx context.Context, in Input) (Output, error) {
	reply, ok := a.chat.Chat(ctx, a.model, []chatclient.ChatMessage{
		{Role: "system", Content: filterSystemPrompt},
		{Role: "user", Content: in.Content},
	})
	if !ok {
		verdict := &model.FilterVerdict{
			Verdict: model.FilterSafe,
			Reason:  "back-end unavailable — defaulted to safe",
		}
		return Output{
			Success:       true,
			Message:       "filter agent could not reach chat backend; submission passed by default",
			FilterVerdict: verdict,
		}, nil
	}

	verdict := parseFilterVerdict(reply.Content)
	msg := "submission passed safety filter"
	if verdict.Verdict == model.FilterReject {
		msg = "submission rejected: " + verdict.Reason
	}
	return Output{Success: true, Message: msg, FilterVerdict: &verdict}, nil
}

// parseFilterVerdict scans the first line beginning with "VERDICT:"
// (case-insensitive), splitting on "|" into verdict and reason. On
// parse failure or a missing line, it returns safe.
func parseFilterVerdict(text string) model.FilterVerdict {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if len(line) < len("verdict:") || !strings.EqualFold(line[:len("verdict:")], "verdict:") {
			continue
		}
		payload := strings.TrimSpace(line[len("verdict:"):])
		if strings.HasPrefix(strings.ToLower(payload), "reject") {
			reason := "Rejected by safety filter"
			if parts := strings.SplitN(payload, "|", 2); len(parts) > 1 {
				reason = strings.TrimSpace(parts[1])
			}
			return model.FilterVerdict{Verdict: model.FilterReject, Reason: reason}
		}
		return model.FilterVerdict{Verdict: model.FilterSafe}
	}
	return model.FilterVerdict{Verdict: model.FilterSafe}
}
