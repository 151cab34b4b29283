// Package agent defines the uniform agent operation named in spec.md
// §4 — one method, Run(ctx, Input) (Output, error) — and the six
// concrete agents (filter, cluster, prioritise, write, review,
// deploy). Output carries an explicit Success flag for agent-level
// failure (a parse failure, a budget gate); a reject verdict is a
// successful run whose verdict says reject;
// (Output, error) reserves the error return for infrastructure
// failures the caller cannot reasonably inspect, following the
// ScoringAgent.Execute split in the teacher's agent package.
package agent

import (
	"context"

	"github.com/loopwire/feedback-pipeline/pkg/model"
)

// Input is the uniform argument to every agent's Run method. Each
// agent reads only the fields it needs.
type Input struct {
	Content          string
	Task             *model.Task
	Clusters         []model.Cluster
	References       []string
	ChangeSet        *model.ChangeSet
	ReviewerFeedback string
	RepoPath         string
}

// Output is the uniform result of every agent's Run method.
type Output struct {
	Success bool
	Message string

	FilterVerdict *model.FilterVerdict
	Clusters      []model.Cluster
	Tasks         []model.Task
	ChangeSet     *model.ChangeSet
	ReviewVerdict *model.ReviewVerdict
	Branch        string
	Deployed      bool

	TokensUsed int
}

// Agent is the uniform operation shared by all six pipeline agents.
type Agent interface {
	Run(ctx context.Context, in Input) (Output, error)
}

// Registry is a name-to-agent map, swappable wholesale for tests and
// dry-runs. Nothing prevents mixing dry-run and real agents within one
// registry (spec.md §9 open question 2 is left unconstrained).
type Registry map[string]Agent

const (
	NameFilter      = "filter"
	NameCluster     = "cluster"
	NamePrioritise  = "prioritise"
	NameWrite       = "write"
	NameReview      = "review"
	NameDeploy      = "deploy"
)
