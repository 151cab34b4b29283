package model

// EmbeddingRecord is one entry in the vector store. ID is the
// submission's reference string, not its integer id.
type EmbeddingRecord struct {
	ID       string
	Vector   []float32
	Document string
}

// EmbeddingBatch is the aligned-array result of a Get by ids: missing
// ids are simply absent, so the three slices always have equal length
// but may be shorter than the requested id list.
type EmbeddingBatch struct {
	IDs        []string
	Embeddings [][]float32
	Documents  []string
}

// QueryResult is the aligned-array result of a similarity query,
// ordered ascending by Distances (smaller is more similar).
type QueryResult struct {
	IDs       []string
	Documents []string
	Distances []float32
}
