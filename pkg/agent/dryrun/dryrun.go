// Package dryrun provides canned stand-ins for the write/review
// (paid-LLM) and deploy agents: they log what they would have done
// and an estimated token cost, but never call a network back-end or
// touch git. They do not build the real agents' prompts; the token
// estimate is taken from a few input fields only.
package dryrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loopwire/feedback-pipeline/pkg/agent"
	"github.com/loopwire/feedback-pipeline/pkg/model"
)

// estimatedOutputTokensWriter/Reviewer are conservative output-token
// guesses used only to project cost in the log line; no tokens are
// ever actually spent by these agents.
const (
	estimatedOutputTokensWriter   = 500
	estimatedOutputTokensReviewer = 300
)

// estimateTokens is a rough ~4-characters-per-token heuristic, used
// purely for the dry-run cost projection logged below.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// WriteAgent estimates the writer's input size from the contract
// file, task summary and documents (it does not build the real writer
// prompt) and returns a single, trivial, safe mock change instead of
// calling the paid LLM.
type WriteAgent struct {
	log          *slog.Logger
	contractFile string
}

func NewWriteAgent(log *slog.Logger, contractFile string) *WriteAgent {
	return &WriteAgent{log: log, contractFile: contractFile}
}

func (a *WriteAgent) Run(ctx context.Context, in agent.Input) (agent.Output, error) {
	if in.Task == nil {
		return agent.Output{Success: false, Message: "write agent requires a task"}, nil
	}

	var contract string
	if a.contractFile != "" {
		if data, err := os.ReadFile(filepath.Join(in.RepoPath, a.contractFile)); err == nil {
			contract = string(data)
		}
	}

	inputTokens := estimateTokens(contract + in.Task.Summary + strings.Join(in.Task.Documents, "\n"))
	totalTokens := inputTokens + estimatedOutputTokensWriter

	a.log.Info("dry run: writer would call the paid LLM",
		"estimated_input_tokens", inputTokens,
		"estimated_total_tokens", totalTokens,
	)

	summary := in.Task.Summary
	if len(summary) > 100 {
		summary = summary[:100]
	}

	return agent.Output{
		Success: true,
		Message: fmt.Sprintf("dry run: mock write, ~%d tokens estimated", totalTokens),
		ChangeSet: &model.ChangeSet{
			Summary:   "[dry run] mock change for: " + summary,
			Reasoning: "dry run — no real API call was made",
			Changes: []model.FileChange{
				{
					Path:    "README.md",
					Action:  model.ActionModify,
					Content: "<!-- auto-generated change (dry-run mock) -->\n",
				},
			},
		},
		TokensUsed: totalTokens,
	}, nil
}

// ReviewAgent logs the review request and auto-approves.
type ReviewAgent struct {
	log *slog.Logger
}

func NewReviewAgent(log *slog.Logger) *ReviewAgent {
	return &ReviewAgent{log: log}
}

func (a *ReviewAgent) Run(ctx context.Context, in agent.Input) (agent.Output, error) {
	if in.ChangeSet == nil {
		return agent.Output{Success: false, Message: "review agent requires a change set"}, nil
	}

	if len(in.ChangeSet.Changes) == 0 {
		return agent.Output{
			Success: true,
			Message: "dry run: no changes to review — auto-approved",
			ReviewVerdict: &model.ReviewVerdict{
				Verdict:  model.VerdictApprove,
				Comments: "dry run: no changes to review",
			},
		}, nil
	}

	var sb strings.Builder
	for _, c := range in.ChangeSet.Changes {
		sb.WriteString(fmt.Sprintf("- [%s] %s\n", c.Action, c.Path))
	}
	inputTokens := estimateTokens(in.ChangeSet.Summary + in.ChangeSet.Reasoning + sb.String())
	totalTokens := inputTokens + estimatedOutputTokensReviewer

	a.log.Info("dry run: reviewer would call the paid LLM",
		"estimated_input_tokens", inputTokens,
		"estimated_total_tokens", totalTokens,
	)

	return agent.Output{
		Success: true,
		Message: fmt.Sprintf("dry run: mock review approved, ~%d tokens estimated", totalTokens),
		ReviewVerdict: &model.ReviewVerdict{
			Verdict:  model.VerdictApprove,
			Comments: "dry run: auto-approved, no real API call was made",
		},
		TokensUsed: totalTokens,
	}, nil
}

// DeployAgent logs the deployment steps it would take without
// touching git or running any scripts.
type DeployAgent struct {
	log *slog.Logger
}

func NewDeployAgent(log *slog.Logger) *DeployAgent {
	return &DeployAgent{log: log}
}

func (a *DeployAgent) Run(ctx context.Context, in agent.Input) (agent.Output, error) {
	if in.ChangeSet == nil || len(in.ChangeSet.Changes) == 0 {
		return agent.Output{Success: true, Message: "dry run: no changes to deploy", Deployed: false}, nil
	}

	a.log.Info("dry run: deployer would perform these steps",
		"branch", "agent/dry-run",
		"summary", in.ChangeSet.Summary,
	)
	for _, c := range in.ChangeSet.Changes {
		a.log.Info("dry run: would apply change", "action", c.Action, "path", c.Path)
	}
	a.log.Info("dry run: would run pipeline script, then merge --no-ff, then run deploy script")

	return agent.Output{
		Success:  true,
		Branch:   "agent/dry-run",
		Deployed: false,
		Message:  "dry run: deployment skipped — logged steps only",
	}, nil
}
