package agent

import (
	"context"

	"github.com/loopwire/feedback-pipeline/pkg/model"
)

// vectorQuerier is the narrow slice of vectorstore.Store the cluster
// agent needs, so tests can fake just Get/Query.
type vectorQuerier interface {
	Get(ctx context.Context, references []string) (model.EmbeddingBatch, error)
	Query(ctx context.Context, vector []float32, n int) (model.QueryResult, error)
}

// ClusterAgent groups pending references by vector similarity,
// implementing the greedy deterministic algorithm in spec.md §4.4.
type ClusterAgent struct {
	store      vectorQuerier
	maxResults int
}

func NewClusterAgent(store vectorQuerier, maxResults int) *ClusterAgent {
	return &ClusterAgent{store: store, maxResults: maxResults}
}

const similarityThreshold = 1.0

// Run fetches (ids, vectors, documents) for the input references, then
// greedily assigns each unassigned seed (in input order) to a new
// cluster together with every unassigned result within
// similarityThreshold of it, per spec.md §4.4.
func (a *ClusterAgent) Run(ctx context.Context, in Input) (Output, error) {
	batch, err := a.store.Get(ctx, in.References)
	if err != nil {
		return Output{Success: false, Message: "failed to fetch embeddings: " + err.Error()}, nil
	}

	byID := make(map[string]int, len(batch.IDs))
	for i, id := range batch.IDs {
		byID[id] = i
	}

	assigned := make(map[string]bool, len(in.References))
	var clusters []model.Cluster

	maxResults := a.maxResults
	if maxResults <= 0 || maxResults > len(batch.IDs) {
		maxResults = len(batch.IDs)
	}

	for _, seed := range in.References {
		if assigned[seed] {
			continue
		}
		idx, ok := byID[seed]
		if !ok {
			// Not present in the store; will be re-embedded next run.
			continue
		}

		cluster := model.Cluster{
			References: []string{seed},
			Documents:  []string{batch.Documents[idx]},
		}
		assigned[seed] = true

		result, err := a.store.Query(ctx, batch.Embeddings[idx], maxResults)
		if err != nil {
			// Batch query failed: emit the single-item cluster for this
			// seed and continue with the next, per spec.md §4.4.
			clusters = append(clusters, cluster)
			continue
		}

		for i, candidate := range result.IDs {
			if candidate == seed {
				continue
			}
			if assigned[candidate] {
				continue
			}
			if _, present := byID[candidate]; !present {
				continue
			}
			if result.Distances[i] > similarityThreshold {
				continue
			}
			cluster.References = append(cluster.References, candidate)
			cluster.Documents = append(cluster.Documents, result.Documents[i])
			assigned[candidate] = true
		}

		clusters = append(clusters, cluster)
	}

	sortClustersBySizeDesc(clusters)

	return Output{Success: true, Clusters: clusters}, nil
}

func sortClustersBySizeDesc(clusters []model.Cluster) {
	// Stable insertion sort preserves seed order among equal-size
	// clusters, matching spec.md §4.4's tie-break rule.
	for i := 1; i < len(clusters); i++ {
		for j := i; j > 0 && len(clusters[j].References) > len(clusters[j-1].References); j-- {
			clusters[j], clusters[j-1] = clusters[j-1], clusters[j]
		}
	}
}
