// Package config holds the process-wide typed configuration record for
// the feedback pipeline: endpoints, model ids, budget caps, and tunables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the umbrella configuration object threaded through every
// constructor in the pipeline. There is no global mutable config —
// callers build one Config and pass it down explicitly.
type Config struct {
	// Endpoints
	OllamaURL    string
	QdrantAddr   string
	PaidLLMURL   string
	PaidLLMKey   string
	EventsNATSURL string

	// Model ids
	EmbeddingModel string
	LocalModel     string
	WriterModel    string
	ReviewerModel  string

	// Budget caps
	DailyBudgetGBP   float64
	WeeklyBudgetGBP  float64
	CostPerTokenGBP  float64

	// Tunables
	MaxWriterRetries        int
	HTTPTimeout             time.Duration
	PipelineScriptTimeout   time.Duration
	DeployScriptTimeout     time.Duration
	GitCommandTimeout       time.Duration
	VectorMaxResults        int
	OutputTruncationLength  int
	ChatRateLimitPerSecond  float64
	ChatRateLimitBurst      int

	// Paths
	RepoPath         string
	ContractFile     string
	LedgerPath       string
	SubmissionDBPath string
	VectorCollection string
}

// Defaults returns the baseline configuration, matching the Python
// reference implementation's PIPELINE_CONFIG (pipeline/config.py).
func Defaults() Config {
	return Config{
		OllamaURL:  "http://localhost:11434",
		QdrantAddr: "localhost:6334",
		PaidLLMURL: "https://api.anthropic.com/v1/messages",

		EmbeddingModel: "nomic-embed-text",
		LocalModel:     "llama3.1:8b",
		WriterModel:    "claude-sonnet-4-20250514",
		ReviewerModel:  "claude-sonnet-4-20250514",

		DailyBudgetGBP:  2.00,
		WeeklyBudgetGBP: 8.00,
		CostPerTokenGBP: 0.000012,

		MaxWriterRetries:       2,
		HTTPTimeout:            30 * time.Second,
		PipelineScriptTimeout:  600 * time.Second,
		DeployScriptTimeout:    600 * time.Second,
		GitCommandTimeout:      300 * time.Second,
		VectorMaxResults:       50,
		OutputTruncationLength: 2000,
		ChatRateLimitPerSecond: 2,
		ChatRateLimitBurst:     4,

		RepoPath:         ".",
		ContractFile:     "contract.md",
		LedgerPath:       "data/budget.json",
		SubmissionDBPath: "data/feedback.db",
		VectorCollection: "feedback_embeddings",
	}
}

// FromEnv overlays environment variables on top of Defaults. Unset or
// unparsable variables leave the default in place.
func FromEnv() Config {
	cfg := Defaults()

	cfg.OllamaURL = envOr("OLLAMA_URL", cfg.OllamaURL)
	cfg.QdrantAddr = envOr("QDRANT_ADDR", cfg.QdrantAddr)
	cfg.PaidLLMURL = envOr("PAID_LLM_URL", cfg.PaidLLMURL)
	cfg.PaidLLMKey = envOr("PAID_LLM_API_KEY", cfg.PaidLLMKey)
	cfg.EventsNATSURL = envOr("EVENTS_NATS_URL", cfg.EventsNATSURL)

	cfg.EmbeddingModel = envOr("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.LocalModel = envOr("LOCAL_MODEL", cfg.LocalModel)
	cfg.WriterModel = envOr("WRITER_MODEL", cfg.WriterModel)
	cfg.ReviewerModel = envOr("REVIEWER_MODEL", cfg.ReviewerModel)

	cfg.DailyBudgetGBP = envFloat("DAILY_BUDGET_GBP", cfg.DailyBudgetGBP)
	cfg.WeeklyBudgetGBP = envFloat("WEEKLY_BUDGET_GBP", cfg.WeeklyBudgetGBP)
	cfg.CostPerTokenGBP = envFloat("COST_PER_TOKEN_GBP", cfg.CostPerTokenGBP)

	cfg.MaxWriterRetries = envInt("MAX_WRITER_RETRIES", cfg.MaxWriterRetries)
	cfg.HTTPTimeout = envSeconds("HTTP_TIMEOUT_SECONDS", cfg.HTTPTimeout)
	cfg.PipelineScriptTimeout = envSeconds("PIPELINE_TIMEOUT_SECONDS", cfg.PipelineScriptTimeout)
	cfg.DeployScriptTimeout = envSeconds("DEPLOY_TIMEOUT_SECONDS", cfg.DeployScriptTimeout)
	cfg.GitCommandTimeout = envSeconds("GIT_COMMAND_TIMEOUT_SECONDS", cfg.GitCommandTimeout)
	cfg.VectorMaxResults = envInt("VECTOR_MAX_RESULTS", cfg.VectorMaxResults)
	cfg.OutputTruncationLength = envInt("OUTPUT_TRUNCATION_LENGTH", cfg.OutputTruncationLength)

	cfg.RepoPath = envOr("REPO_PATH", cfg.RepoPath)
	cfg.ContractFile = envOr("CONTRACT_FILE", cfg.ContractFile)
	cfg.LedgerPath = envOr("LEDGER_PATH", cfg.LedgerPath)
	cfg.SubmissionDBPath = envOr("SUBMISSION_DB_PATH", cfg.SubmissionDBPath)
	cfg.VectorCollection = envOr("VECTOR_COLLECTION", cfg.VectorCollection)

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
