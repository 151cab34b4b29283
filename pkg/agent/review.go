package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loopwire/feedback-pipeline/pkg/budget"
	"github.com/loopwire/feedback-pipeline/pkg/chatclient"
	"github.com/loopwire/feedback-pipeline/pkg/model"
)

// ReviewAgent accepts or rejects a ChangeSet with actionable comments,
// per spec.md §4.7.
type ReviewAgent struct {
	llm          chatclient.PaidLLM
	model        string
	budget       *budget.Accountant
	contractFile string
}

func NewReviewAgent(llm chatclient.PaidLLM, chatModel string, acct *budget.Accountant, contractFile string) *ReviewAgent {
	return &ReviewAgent{llm: llm, model: chatModel, budget: acct, contractFile: contractFile}
}

type reviewResponse struct {
	Verdict  string        `json:"verdict"`
	Comments string        `json:"comments"`
	Issues   []reviewIssue `json:"issues"`
}

type reviewIssue struct {
	File        string `json:"file"`
	Description string `json:"description"`
}

func (a *ReviewAgent) Run(ctx context.Context, in Input) (Output, error) {
	if in.ChangeSet == nil {
		return Output{Success: false, Message: "review agent requires a change set"}, nil
	}

	if len(in.ChangeSet.Changes) == 0 {
		return Output{
			Success: true,
			Message: "empty change list auto-approved",
			ReviewVerdict: &model.ReviewVerdict{
				Verdict: model.VerdictApprove,
			},
		}, nil
	}

	b, err := a.budget.Check()
	if err != nil {
		return Output{Success: false, Message: "budget check failed: " + err.Error()}, nil
	}
	if !b.Allowed {
		return Output{
			Success: false,
			Message: "budget exhausted",
			ReviewVerdict: &model.ReviewVerdict{
				Verdict:  model.VerdictReject,
				Comments: "Budget exhausted",
			},
		}, nil
	}

	prompt := a.buildPrompt(*in.ChangeSet, in.RepoPath)

	reply, err := a.llm.Complete(ctx, a.model, []chatclient.ChatMessage{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return Output{Success: false, Message: "review agent: backend call failed: " + err.Error()}, nil
	}

	tokens := reply.InputTokens + reply.OutputTokens
	_ = a.budget.Record(tokens)

	raw := stripCodeFence(reply.Text)
	var parsed reviewResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Output{
			Success:    false,
			Message:    "failed to parse review",
			TokensUsed: tokens,
			ReviewVerdict: &model.ReviewVerdict{
				Verdict:  model.VerdictReject,
				Comments: "Failed to parse review",
			},
		}, nil
	}

	verdict := model.ReviewVerdictKind(strings.ToLower(strings.TrimSpace(parsed.Verdict)))
	if verdict != model.VerdictApprove && verdict != model.VerdictReject {
		verdict = model.VerdictReject
	}

	issues := make([]model.ReviewIssue, len(parsed.Issues))
	for i, iss := range parsed.Issues {
		issues[i] = model.ReviewIssue{File: iss.File, Description: iss.Description}
	}

	return Output{
		Success: true,
		Message: fmt.Sprintf("review verdict: %s", verdict),
		ReviewVerdict: &model.ReviewVerdict{
			Verdict:  verdict,
			Comments: parsed.Comments,
			Issues:   issues,
		},
		TokensUsed: tokens,
	}, nil
}

func (a *ReviewAgent) buildPrompt(cs model.ChangeSet, repoPath string) string {
	var sb strings.Builder
	sb.WriteString("Review the following proposed change set and respond as JSON ")
	sb.WriteString(`{"verdict": "approve"|"reject", "comments", "issues": [{"file","description"}]}.` + "\n\n")

	if a.contractFile != "" {
		if contract, err := os.ReadFile(filepath.Join(repoPath, a.contractFile)); err == nil {
			sb.WriteString("Repository contract:\n")
			sb.Write(contract)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("Summary: ")
	sb.WriteString(cs.Summary)
	sb.WriteString("\n\nReasoning: ")
	sb.WriteString(cs.Reasoning)
	sb.WriteString("\n\nChanges:\n")

	for _, c := range cs.Changes {
		sb.WriteString(fmt.Sprintf("- [%s] %s\n", c.Action, c.Path))
		if c.Action == model.ActionDelete {
			sb.WriteString("(file to be deleted)\n")
		} else {
			sb.WriteString(c.Content)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
