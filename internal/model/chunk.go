package model

// Chunk is a slice of a textbook page with its provenance.
type Chunk struct {
	CorpusID string  `json:"-"`
	SourceID string  `json:"source"`
	Page     int     `json:"page"`
	Position int     `json:"-"`
	Content  string  `json:"content"`
	Score    float64 `json:"score,omitempty"`
}

type ChunkEmbedding struct {
	Chunk
	Embedding []float32
}

type CorpusIndex struct {
	CorpusID    string `json:"corpus_id"`
	Fingerprint string `json:"fingerprint"`
	ChunkCount  int    `json:"chunk_count"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}

// CachedEmbedding is a persisted query or document vector keyed by model,
// task type and content hash.
type CachedEmbedding struct {
	Model       string
	TaskType    string
	ContentHash string
	Vector      []float32
	Ctime       int64
}
