package vectorstore

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// ScoredEntry pairs an entry with its similarity to a query.
type ScoredEntry struct {
	Entry VectorEntry
	Score float64
}

// ProjectIndex is the insertion-ordered collection of one project's entries.
//
// Every entry satisfies entry.ProjectID == index.ProjectID(). ProjectIndex is
// not safe for concurrent use; Store serializes access to it.
type ProjectIndex struct {
	projectID string
	entries   []VectorEntry
}

// NewProjectIndex creates an empty index for projectID.
func NewProjectIndex(projectID string) *ProjectIndex {
	return &ProjectIndex{projectID: projectID}
}

// ProjectID returns the project this index belongs to.
func (p *ProjectIndex) ProjectID() string {
	return p.projectID
}

// Len returns the number of stored entries.
func (p *ProjectIndex) Len() int {
	return len(p.entries)
}

// Entries returns a copy of the stored entries in insertion order.
func (p *ProjectIndex) Entries() []VectorEntry {
	return slices.Clone(p.entries)
}

// Append adds entries to the end of the index.
//
// Identical content is not deduplicated: appending the same text twice
// stores two entries. Nothing is appended if any entry belongs to another
// project.
func (p *ProjectIndex) Append(entries ...VectorEntry) error {
	for i := range entries {
		if entries[i].ProjectID != p.projectID {
			return fmt.Errorf("%w: entry %q has project %q, index is %q",
				ErrProjectMismatch, entries[i].ID, entries[i].ProjectID, p.projectID)
		}
	}
	p.entries = append(p.entries, entries...)
	return nil
}

// truncate drops every entry at position n or later. Used to undo an Append.
func (p *ProjectIndex) truncate(n int) {
	if n < 0 || n >= len(p.entries) {
		return
	}
	clear(p.entries[n:])
	p.entries = p.entries[:n]
}

// RemoveAll empties the index.
func (p *ProjectIndex) RemoveAll() {
	p.entries = nil
}

// RankedSearch scores every entry against query and returns up to topK
// entries by descending score. Equal scores keep insertion order, so the
// result is reproducible for identical inputs. Fewer than topK entries
// (including none) is not an error.
func (p *ProjectIndex) RankedSearch(query []float32, topK int) []ScoredEntry {
	if topK <= 0 || len(p.entries) == 0 {
		return []ScoredEntry{}
	}

	scored := make([]ScoredEntry, len(p.entries))
	for i := range p.entries {
		scored[i] = ScoredEntry{
			Entry: p.entries[i],
			Score: CosineSimilarity(query, p.entries[i].Vector),
		}
	}

	slices.SortStableFunc(scored, func(a, b ScoredEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// CosineSimilarity returns dot(a,b) / (|a| * |b|).
//
// It returns 0 when either vector has zero magnitude or the lengths differ.
// Vectors need not be normalized.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
