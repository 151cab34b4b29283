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

var writerSourceExtensions = map[string]bool{
	".py": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".css": true, ".html": true,
}

var writerExcludedDirs = map[string]bool{
	"node_modules": true, "dist": true, "build": true, ".git": true,
	"__pycache__": true, "venv": true, ".venv": true, "data": true,
}

// WriteAgent produces a structured ChangeSet from a Task, calling the
// paid LLM back-end per spec.md §4.6.
type WriteAgent struct {
	llm          chatclient.PaidLLM
	model        string
	budget       *budget.Accountant
	contractFile string
}

func NewWriteAgent(llm chatclient.PaidLLM, chatModel string, acct *budget.Accountant, contractFile string) *WriteAgent {
	return &WriteAgent{llm: llm, model: chatModel, budget: acct, contractFile: contractFile}
}

type writerResponse struct {
	Changes   []writerChange `json:"changes"`
	Summary   string         `json:"summary"`
	Reasoning string         `json:"reasoning"`
}

type writerChange struct {
	Path    string `json:"path"`
	Action  string `json:"action"`
	Content string `json:"content"`
}

func (a *WriteAgent) Run(ctx context.Context, in Input) (Output, error) {
	if in.Task == nil {
		return Output{Success: false, Message: "write agent requires a task"}, nil
	}

	b, err := a.budget.Check()
	if err != nil {
		return Output{Success: false, Message: "budget check failed: " + err.Error()}, nil
	}
	if !b.Allowed {
		return Output{Success: false, Message: "budget exhausted"}, nil
	}

	prompt := a.buildPrompt(*in.Task, in.RepoPath, in.ReviewerFeedback)

	reply, err := a.llm.Complete(ctx, a.model, []chatclient.ChatMessage{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return Output{Success: false, Message: "write agent: backend call failed: " + err.Error()}, nil
	}

	tokens := reply.InputTokens + reply.OutputTokens
	_ = a.budget.Record(tokens)

	raw := stripCodeFence(reply.Text)
	var parsed writerResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Output{
			Success:    false,
			Message:    "write agent: failed to parse response: " + raw,
			TokensUsed: tokens,
		}, nil
	}

	changes := make([]model.FileChange, len(parsed.Changes))
	for i, c := range parsed.Changes {
		changes[i] = model.FileChange{
			Path:    c.Path,
			Action:  model.FileChangeAction(c.Action),
			Content: c.Content,
		}
	}

	return Output{
		Success: true,
		Message: "write agent produced a change set",
		ChangeSet: &model.ChangeSet{
			Summary:   parsed.Summary,
			Reasoning: parsed.Reasoning,
			Changes:   changes,
		},
		TokensUsed: tokens,
	}, nil
}

func (a *WriteAgent) buildPrompt(task model.Task, repoPath, reviewerFeedback string) string {
	var sb strings.Builder

	sb.WriteString("You are an autonomous software engineer. Implement the following task as a JSON object ")
	sb.WriteString(`{"changes": [{"path","action","content"}], "summary", "reasoning"}.` + "\n\n")

	if a.contractFile != "" {
		if contract, err := os.ReadFile(filepath.Join(repoPath, a.contractFile)); err == nil {
			sb.WriteString("Repository contract:\n")
			sb.Write(contract)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("Task summary: ")
	sb.WriteString(task.Summary)
	sb.WriteString("\n\n")

	sb.WriteString("User feedback:\n")
	for _, doc := range task.Documents {
		sb.WriteString("- ")
		sb.WriteString(doc)
		sb.WriteString("\n")
	}

	if reviewerFeedback != "" {
		sb.WriteString("\nReviewer feedback from the previous attempt:\n")
		sb.WriteString(reviewerFeedback)
		sb.WriteString("\n")
	}

	sb.WriteString("\nRepository source files:\n")
	sb.WriteString(concatenateSourceFiles(repoPath))

	return sb.String()
}

// concatenateSourceFiles walks repoPath, including files whose
// extension is in writerSourceExtensions, excluding writerExcludedDirs
// and files whose name starts with "test_" or "conftest", per
// spec.md §4.6.
func concatenateSourceFiles(repoPath string) string {
	var sb strings.Builder
	_ = filepath.Walk(repoPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if writerExcludedDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !writerSourceExtensions[filepath.Ext(path)] {
			return nil
		}
		name := info.Name()
		if strings.HasPrefix(name, "test_") || strings.HasPrefix(name, "conftest") {
			return nil
		}

		rel, relErr := filepath.Rel(repoPath, path)
		if relErr != nil {
			rel = path
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}

		sb.WriteString(fmt.Sprintf("--- %s ---\n", rel))
		sb.Write(content)
		sb.WriteString("\n\n")
		return nil
	})
	return sb.String()
}

// stripCodeFence removes a leading/trailing ``` or ```json fence, if
// present, before JSON parsing.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
