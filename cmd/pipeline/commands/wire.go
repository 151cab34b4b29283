package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/loopwire/feedback-pipeline/pkg/agent"
	"github.com/loopwire/feedback-pipeline/pkg/agent/dryrun"
	"github.com/loopwire/feedback-pipeline/pkg/budget"
	"github.com/loopwire/feedback-pipeline/pkg/chatclient"
	"github.com/loopwire/feedback-pipeline/pkg/config"
	"github.com/loopwire/feedback-pipeline/pkg/embedclient"
	"github.com/loopwire/feedback-pipeline/pkg/events"
	"github.com/loopwire/feedback-pipeline/pkg/orchestrator"
	"github.com/loopwire/feedback-pipeline/pkg/store"
	"github.com/loopwire/feedback-pipeline/pkg/telemetry"
	"github.com/loopwire/feedback-pipeline/pkg/vcsdriver"
	"github.com/loopwire/feedback-pipeline/pkg/vectorstore"
)

// embeddingDimensions is nomic-embed-text's output width — the only
// embedding model spec.md names for the local backend.
const embeddingDimensions = 768

// deps bundles every long-lived connection the CLI subcommands share,
// so serve/batch/intake each build exactly one of these and tear it
// down on exit.
type deps struct {
	cfg          config.Config
	log          *slog.Logger
	submissions  *store.Store
	vectors      *vectorstore.Store
	budget       *budget.Accountant
	events       *events.Publisher
	orchestrator *orchestrator.Orchestrator
	shutdown     func(context.Context) error
}

func wire(ctx context.Context, cfg config.Config, log *slog.Logger, dryRun bool) (*deps, error) {
	shutdownTelemetry := telemetry.Setup("feedback-pipeline")

	submissions, err := store.Open(cfg.SubmissionDBPath)
	if err != nil {
		return nil, fmt.Errorf("open submission store: %w", err)
	}

	vectors, err := vectorstore.New(cfg.QdrantAddr, cfg.VectorCollection)
	if err != nil {
		submissions.Close()
		return nil, fmt.Errorf("connect vector store: %w", err)
	}
	if err := vectors.EnsureCollection(ctx, embeddingDimensions); err != nil {
		submissions.Close()
		vectors.Close()
		return nil, fmt.Errorf("ensure vector collection: %w", err)
	}

	httpClient := telemetry.HTTPClient(cfg.HTTPTimeout)
	embed := embedclient.New(cfg.OllamaURL, cfg.EmbeddingModel, httpClient)
	localChat := chatclient.NewOllamaChat(cfg.OllamaURL, httpClient, cfg.ChatRateLimitPerSecond, cfg.ChatRateLimitBurst)

	acct := budget.New(cfg.LedgerPath, cfg.DailyBudgetGBP, cfg.WeeklyBudgetGBP, cfg.CostPerTokenGBP)

	pub, err := events.Connect(cfg.EventsNATSURL)
	if err != nil {
		submissions.Close()
		vectors.Close()
		return nil, fmt.Errorf("connect events publisher: %w", err)
	}

	agents := buildAgentRegistry(cfg, log, localChat, httpClient, acct, vectors, dryRun)

	orch := orchestrator.New(
		submissions,
		embed,
		vectors,
		agents,
		acct,
		pub,
		log,
		cfg.RepoPath,
		cfg.MaxWriterRetries,
	)

	return &deps{
		cfg:          cfg,
		log:          log,
		submissions:  submissions,
		vectors:      vectors,
		budget:       acct,
		events:       pub,
		orchestrator: orch,
		shutdown:     shutdownTelemetry,
	}, nil
}

func buildAgentRegistry(
	cfg config.Config,
	log *slog.Logger,
	localChat chatclient.ChatBackend,
	httpClient *http.Client,
	acct *budget.Accountant,
	vectors *vectorstore.Store,
	dryRun bool,
) agent.Registry {
	registry := agent.Registry{
		agent.NameFilter:     agent.NewFilterAgent(localChat, cfg.LocalModel),
		agent.NameCluster:    agent.NewClusterAgent(vectors, cfg.VectorMaxResults),
		agent.NamePrioritise: agent.NewPrioritiseAgent(localChat, cfg.LocalModel, acct),
	}

	if dryRun {
		registry[agent.NameWrite] = dryrun.NewWriteAgent(log, cfg.ContractFile)
		registry[agent.NameReview] = dryrun.NewReviewAgent(log)
		registry[agent.NameDeploy] = dryrun.NewDeployAgent(log)
		return registry
	}

	paidLLM := chatclient.NewHTTPPaidLLM(cfg.PaidLLMURL, cfg.PaidLLMKey, httpClient, cfg.ChatRateLimitPerSecond, cfg.ChatRateLimitBurst)
	registry[agent.NameWrite] = agent.NewWriteAgent(paidLLM, cfg.WriterModel, acct, cfg.ContractFile)
	registry[agent.NameReview] = agent.NewReviewAgent(paidLLM, cfg.ReviewerModel, acct, cfg.ContractFile)

	git := vcsdriver.NewGitExecutor(cfg.RepoPath)
	scripts := vcsdriver.NewBashScriptRunner(cfg.RepoPath)
	driver := vcsdriver.NewDriver(git, scripts, cfg.GitCommandTimeout)
	registry[agent.NameDeploy] = agent.NewDeployAgent(
		driver,
		filepath.Join(cfg.RepoPath, "scripts", "pipeline.sh"),
		filepath.Join(cfg.RepoPath, "scripts", "deploy.sh"),
		cfg.OutputTruncationLength,
		cfg.PipelineScriptTimeout,
		cfg.DeployScriptTimeout,
	)

	return registry
}

func (d *deps) Close(ctx context.Context) {
	d.events.Close()
	d.vectors.Close()
	d.submissions.Close()
	if err := d.shutdown(ctx); err != nil {
		d.log.Warn("telemetry shutdown failed", "error", err)
	}
}
