package vectorstore

import (
	"slices"
	"time"
)

// Metadata describes where a chunk came from.
type Metadata struct {
	// Filename is the source document name, if the caller supplied one.
	Filename string `json:"filename,omitempty"`

	// ChunkIndex is the zero-based position of the chunk in its document.
	ChunkIndex int `json:"chunkIndex"`

	// TotalChunks is the number of chunks the document produced.
	TotalChunks int `json:"totalChunks"`

	// Timestamp is when the document was ingested.
	Timestamp time.Time `json:"timestamp"`
}

// VectorEntry is one embedded chunk. Entries are never mutated after Ingest creates them.
type VectorEntry struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	UserID    string    `json:"userId"`
	Vector    []float32 `json:"vector"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
}

// SearchResult is a ranked match returned by Search.
type SearchResult struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// IngestResult reports the outcome of a successful Ingest.
type IngestResult struct {
	ChunksProcessed int `json:"chunksProcessed"`
}

// Stats is a read-only diagnostic view of the store.
type Stats struct {
	TotalProjects    int            `json:"totalProjects"`
	TotalVectors     int            `json:"totalVectors"`
	PerProjectCounts map[string]int `json:"perProjectCounts"`
	Dimension        int            `json:"dimension"`
}

// Snapshot is the entire persisted state: project ID to insertion-ordered entries.
type Snapshot map[string][]VectorEntry

// Clone returns a copy whose per-project slices can be modified independently.
// Entries themselves are shared since they are immutable.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for projectID, entries := range s {
		out[projectID] = slices.Clone(entries)
	}
	return out
}

// Count returns the number of entries across all projects.
func (s Snapshot) Count() int {
	n := 0
	for _, entries := range s {
		n += len(entries)
	}
	return n
}
