package persistence

import (
	"time"

	"github.com/fyrsmithlabs/projectrag/internal/vectorstore"
)

func sampleSnapshot() vectorstore.Snapshot {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return vectorstore.Snapshot{
		"p1": {
			{
				ID: "a", ProjectID: "p1", UserID: "u1", Vector: []float32{0.1, -0.2, 0.3},
				Content: "first chunk", Metadata: vectorstore.Metadata{Filename: "a.md", ChunkIndex: 0, TotalChunks: 2, Timestamp: ts},
			},
			{
				ID: "b", ProjectID: "p1", UserID: "u1", Vector: []float32{1, 0, 0},
				Content: "second chunk", Metadata: vectorstore.Metadata{Filename: "a.md", ChunkIndex: 1, TotalChunks: 2, Timestamp: ts},
			},
		},
		"p2": {
			{
				ID: "c", ProjectID: "p2", UserID: "u2", Vector: []float32{0, 0, 1},
				Content: "other project", Metadata: vectorstore.Metadata{ChunkIndex: 0, TotalChunks: 1, Timestamp: ts},
			},
		},
	}
}
