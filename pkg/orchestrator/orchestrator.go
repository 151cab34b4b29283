// Package orchestrator sequences the agent graph: the synchronous
// intake path (filter → embed) and the periodic batch (cluster →
// prioritise → write/review/deploy per task), per spec.md §4.9.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loopwire/feedback-pipeline/pkg/agent"
	"github.com/loopwire/feedback-pipeline/pkg/budget"
	"github.com/loopwire/feedback-pipeline/pkg/events"
	"github.com/loopwire/feedback-pipeline/pkg/model"
)

// embedder is the narrow slice of embedclient.Client the orchestrator
// needs, so tests can fake it without a running Ollama instance.
type embedder interface {
	Generate(ctx context.Context, text string) ([]float32, bool)
}

// embeddingStore is the narrow slice of vectorstore.Store the
// orchestrator needs for upserts (queries live behind the cluster
// agent's own vectorQuerier seam).
type embeddingStore interface {
	Upsert(ctx context.Context, records []model.EmbeddingRecord) error
}

// submissionStore is the narrow slice of store.Store the orchestrator
// needs.
type submissionStore interface {
	Create(ctx context.Context, content string) (*model.Submission, error)
	ListPending(ctx context.Context) ([]model.Submission, error)
	UpdateStatus(ctx context.Context, reference string, status model.SubmissionStatus, agentNotes string) error
}

// Orchestrator wires the submission store, embedding pipeline, agent
// registry, budget accountant, and event publisher together.
type Orchestrator struct {
	store    submissionStore
	embed    embedder
	vectors    embeddingStore
	agents     agent.Registry
	budget     *budget.Accountant
	events     *events.Publisher
	log        *slog.Logger
	repoPath   string
	maxRetries int
}

// New constructs an Orchestrator. agents must contain all six names
// (agent.NameFilter..agent.NameDeploy); a missing key causes the
// corresponding stage to fail fast.
func New(
	store submissionStore,
	embed embedder,
	vectors embeddingStore,
	agents agent.Registry,
	acct *budget.Accountant,
	pub *events.Publisher,
	log *slog.Logger,
	repoPath string,
	maxRetries int,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		embed:      embed,
		vectors:    vectors,
		agents:     agents,
		budget:     acct,
		events:     pub,
		log:        log,
		repoPath:   repoPath,
		maxRetries: maxRetries,
	}
}

// Intake is the synchronous adapter invoked on a new submission: it
// persists the row, runs the filter agent (crash-isolated — a panic
// there never blocks the user), and fires off an embedding
// best-effort, per spec.md §4.9 / the original create_feedback route.
func (o *Orchestrator) Intake(ctx context.Context, content string) (*model.Submission, error) {
	sub, err := o.store.Create(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create submission: %w", err)
	}

	if verdict, ran := o.runFilterSafely(ctx, content); ran && verdict.Verdict == model.FilterReject {
		reason := verdict.Reason
		if reason == "" {
			reason = "rejected by safety filter"
		}
		if err := o.store.UpdateStatus(ctx, sub.Reference, model.StatusRejected, reason); err != nil {
			o.log.Error("failed to mark submission rejected", "reference", sub.Reference, "error", err)
		} else {
			sub.Status = model.StatusRejected
			sub.AgentNotes = reason
		}
		_ = o.events.PublishStatusChanged(ctx, sub.Reference, sub.Status, reason)
		return sub, nil
	}

	vector, ok := o.embed.Generate(ctx, content)
	if !ok {
		o.log.Warn("embedding generation failed — will backfill at batch time", "reference", sub.Reference)
		return sub, nil
	}
	if err := o.vectors.Upsert(ctx, []model.EmbeddingRecord{{ID: sub.Reference, Vector: vector, Document: content}}); err != nil {
		o.log.Warn("embedding upsert failed — will backfill at batch time", "reference", sub.Reference, "error", err)
	}

	return sub, nil
}

// runFilterSafely calls the filter agent, recovering from a panic so
// a crashing filter agent never blocks intake — it is treated the
// same as "filter did not run".
func (o *Orchestrator) runFilterSafely(ctx context.Context, content string) (verdict model.FilterVerdict, ran bool) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("filter agent panicked — continuing with submission", "panic", r)
			ran = false
		}
	}()

	filterAgent, present := o.agents[agent.NameFilter]
	if !present {
		return model.FilterVerdict{}, false
	}

	out, err := filterAgent.Run(ctx, agent.Input{Content: content})
	if err != nil || !out.Success || out.FilterVerdict == nil {
		return model.FilterVerdict{}, false
	}
	return *out.FilterVerdict, true
}

// Run executes one batch: backfill embeddings, cluster, prioritise,
// and drive each task through the write/review retry loop and
// deploy, per spec.md §4.9.
func (o *Orchestrator) Run(ctx context.Context) (model.BatchSummary, error) {
	summary := model.BatchSummary{}

	b, err := o.budget.Check()
	if err != nil {
		return summary, fmt.Errorf("orchestrator: budget check: %w", err)
	}
	if !b.Allowed {
		o.log.Warn("budget exceeded — aborting batch", "daily_remaining", b.DailyRemaining, "weekly_remaining", b.WeeklyRemaining)
		summary.BudgetRemaining = b.DailyRemaining
		return summary, nil
	}

	pending, err := o.store.ListPending(ctx)
	if err != nil {
		return summary, fmt.Errorf("orchestrator: list pending: %w", err)
	}
	if len(pending) == 0 {
		o.log.Info("no pending submissions — nothing to do")
		summary.BudgetRemaining = b.DailyRemaining
		return summary, nil
	}
	o.log.Info("found pending submissions", "count", len(pending))

	references := make([]string, len(pending))
	for i, s := range pending {
		references[i] = s.Reference
	}
	o.backfillEmbeddings(ctx, pending)

	clusterOut, err := o.agents[agent.NameCluster].Run(ctx, agent.Input{References: references})
	if err != nil {
		return summary, fmt.Errorf("orchestrator: cluster agent: %w", err)
	}
	if !clusterOut.Success {
		o.log.Error("cluster agent failed", "message", clusterOut.Message)
		summary.BudgetRemaining = o.currentDailyRemaining()
		return summary, nil
	}
	summary.TotalTokens += clusterOut.TokensUsed

	prioritiseOut, err := o.agents[agent.NamePrioritise].Run(ctx, agent.Input{Clusters: clusterOut.Clusters})
	if err != nil {
		return summary, fmt.Errorf("orchestrator: prioritise agent: %w", err)
	}
	summary.TotalTokens += prioritiseOut.TokensUsed

	if len(prioritiseOut.Tasks) == 0 {
		o.log.Info("no tasks after prioritisation")
		summary.BudgetRemaining = o.currentDailyRemaining()
		return summary, nil
	}

	for _, task := range prioritiseOut.Tasks {
		cur, err := o.budget.Check()
		if err != nil || !cur.Allowed {
			o.log.Warn("budget exhausted mid-batch — stopping")
			break
		}
		summary.TasksAttempted++
		detail := o.runTask(ctx, task)
		summary.TotalTokens += detail.TokensUsed
		switch detail.Outcome {
		case "done":
			summary.TasksCompleted++
		default:
			summary.TasksFailed++
		}
		summary.Details = append(summary.Details, detail)
	}

	summary.BudgetRemaining = o.currentDailyRemaining()
	o.log.Info("batch complete",
		"attempted", summary.TasksAttempted,
		"completed", summary.TasksCompleted,
		"failed", summary.TasksFailed,
		"tokens", summary.TotalTokens,
		"daily_remaining", summary.BudgetRemaining,
	)
	_ = o.events.PublishBatchSummary(ctx, summary)

	return summary, nil
}

func (o *Orchestrator) backfillEmbeddings(ctx context.Context, pending []model.Submission) {
	backfilled := 0
	for _, sub := range pending {
		vector, ok := o.embed.Generate(ctx, sub.Content)
		if !ok {
			continue
		}
		if err := o.vectors.Upsert(ctx, []model.EmbeddingRecord{{ID: sub.Reference, Vector: vector, Document: sub.Content}}); err != nil {
			continue
		}
		backfilled++
	}
	if backfilled > 0 {
		o.log.Info("backfilled embeddings", "count", backfilled)
	}
}

func (o *Orchestrator) currentDailyRemaining() float64 {
	b, err := o.budget.Check()
	if err != nil {
		return 0
	}
	return b.DailyRemaining
}

// runTask drives one task through the write/review retry loop (1 +
// maxRetries attempts) and, on approval, the deploy agent. Submission
// status transitions and the task's outcome are produced here.
func (o *Orchestrator) runTask(ctx context.Context, task model.Task) model.TaskDetail {
	detail := model.TaskDetail{References: task.References, Summary: task.Summary}

	for _, ref := range task.References {
		_ = o.store.UpdateStatus(ctx, ref, model.StatusInProgress, "")
	}

	var approved bool
	var changeSet *model.ChangeSet
	var reviewerFeedback string
	attempts := 0

	for attempts <= o.maxRetries {
		attempts++

		writeOut, err := o.agents[agent.NameWrite].Run(ctx, agent.Input{
			Task:             &task,
			ReviewerFeedback: reviewerFeedback,
			RepoPath:         o.repoPath,
		})
		detail.TokensUsed += writeOut.TokensUsed
		if err != nil || !writeOut.Success {
			o.log.Error("writer failed", "attempt", attempts, "message", writeOut.Message)
			break
		}
		changeSet = writeOut.ChangeSet

		reviewOut, err := o.agents[agent.NameReview].Run(ctx, agent.Input{
			ChangeSet: changeSet,
			RepoPath:  o.repoPath,
		})
		detail.TokensUsed += reviewOut.TokensUsed
		if err != nil || !reviewOut.Success {
			o.log.Error("reviewer failed", "attempt", attempts, "message", reviewOut.Message)
			break
		}

		if reviewOut.ReviewVerdict != nil && reviewOut.ReviewVerdict.Verdict == model.VerdictApprove {
			approved = true
			break
		}

		if reviewOut.ReviewVerdict != nil {
			reviewerFeedback = reviewOut.ReviewVerdict.Comments
		}
		o.log.Info("reviewer rejected", "attempt", attempts, "max_attempts", o.maxRetries+1, "feedback", truncate(reviewerFeedback, 200))
	}

	if approved && changeSet != nil {
		deployOut, err := o.agents[agent.NameDeploy].Run(ctx, agent.Input{
			ChangeSet: changeSet,
			RepoPath:  o.repoPath,
		})
		detail.TokensUsed += deployOut.TokensUsed

		if err == nil && deployOut.Success && deployOut.Deployed {
			notes := changeSet.Summary
			if notes == "" {
				notes = "completed by agent pipeline"
			}
			o.transitionTask(ctx, task.References, model.StatusDone, notes)
			detail.Outcome = "done"
			detail.Deployed = true
			o.log.Info("task completed", "summary", truncate(task.Summary, 100))
			return detail
		}

		message := deployOut.Message
		if err != nil {
			message = err.Error()
		}
		o.transitionTask(ctx, task.References, model.StatusPending, "Deploy failed: "+message)
		detail.Outcome = "deploy_failed"
		o.log.Warn("deploy failed", "message", message)
		return detail
	}

	notes := fmt.Sprintf("review rejected after %d attempt(s)", attempts)
	if reviewerFeedback != "" {
		notes += ": " + truncate(reviewerFeedback, 200)
	}
	o.transitionTask(ctx, task.References, model.StatusPending, notes)
	detail.Outcome = "review_rejected"
	o.log.Warn("task rejected", "attempts", attempts, "summary", truncate(task.Summary, 100))
	return detail
}

func (o *Orchestrator) transitionTask(ctx context.Context, references []string, status model.SubmissionStatus, notes string) {
	for _, ref := range references {
		if err := o.store.UpdateStatus(ctx, ref, status, notes); err != nil {
			o.log.Error("failed to update submission status", "reference", ref, "status", status, "error", err)
			continue
		}
		_ = o.events.PublishStatusChanged(ctx, ref, status, notes)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
