package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/loopwire/feedback-pipeline/pkg/budget"
	"github.com/loopwire/feedback-pipeline/pkg/chatclient"
	"github.com/loopwire/feedback-pipeline/pkg/model"
)

// estimatedTokensPerSummary is the conservative fallback token count
// used both when a chat reply omits usage counts and as the
// per-iteration budget projection. spec.md §9 open question 3 notes
// this fixed estimate is not corrected for drift mid-batch; kept as
// specified.
const estimatedTokensPerSummary = 500

// PrioritiseAgent summarises each cluster into a Task, subject to the
// budget accountant's pre-loop and per-iteration gates.
type PrioritiseAgent struct {
	chat   chatclient.ChatBackend
	model  string
	budget *budget.Accountant
}

func NewPrioritiseAgent(chat chatclient.ChatBackend, chatModel string, acct *budget.Accountant) *PrioritiseAgent {
	return &PrioritiseAgent{chat: chat, model: chatModel, budget: acct}
}

func (a *PrioritiseAgent) Run(ctx context.Context, in Input) (Output, error) {
	if len(in.Clusters) == 0 {
		return Output{Success: true, Message: "no clusters provided", Tasks: []model.Task{}}, nil
	}

	initial, err := a.budget.Check()
	if err != nil {
		return Output{Success: false, Message: "budget check failed: " + err.Error()}, nil
	}
	if !initial.Allowed {
		return Output{Success: true, Message: "budget exhausted — no tasks selected", Tasks: []model.Task{}}, nil
	}

	var tasks []model.Task
	totalTokens := 0

	for _, cluster := range in.Clusters {
		remaining, err := a.budget.Check()
		if err != nil {
			break
		}
		estimatedCost := float64(estimatedTokensPerSummary) * a.budget.CostPerToken()
		if remaining.DailyRemaining < estimatedCost {
			break
		}

		summary, tokens := a.summariseCluster(ctx, cluster.Documents)
		totalTokens += tokens
		if tokens > 0 {
			_ = a.budget.Record(tokens)
		}

		tasks = append(tasks, model.Task{
			References:  cluster.References,
			Documents:   cluster.Documents,
			Summary:     summary,
			ClusterSize: len(cluster.References),
		})
	}

	return Output{
		Success:    true,
		Message:    fmt.Sprintf("prioritised %d task(s)", len(tasks)),
		Tasks:      tasks,
		TokensUsed: totalTokens,
	}, nil
}

func (a *PrioritiseAgent) summariseCluster(ctx context.Context, documents []string) (string, int) {
	var sb strings.Builder
	for _, doc := range documents {
		sb.WriteString("- ")
		sb.WriteString(doc)
		sb.WriteString("\n")
	}
	prompt := "Below is a group of related user feedback submissions for a software project. " +
		"Write a single brief task summary (1-2 sentences) that captures the common theme or request.\n\n" +
		sb.String() + "\nTask summary:"

	reply, ok := a.chat.Chat(ctx, a.model, []chatclient.ChatMessage{
		{Role: "user", Content: prompt},
	})
	if !ok {
		return fmt.Sprintf("Cluster of %d related feedback item(s)", len(documents)), 0
	}

	tokens := reply.EvalCount + reply.PromptEvalCount
	if tokens == 0 {
		tokens = estimatedTokensPerSummary
	}
	return strings.TrimSpace(reply.Content), tokens
}
