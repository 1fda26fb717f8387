// Package chunker splits raw text into overlapping windows for embedding.
package chunker

import (
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidParameter is returned when chunk size or overlap are out of range.
var ErrInvalidParameter = errors.New("invalid chunk parameter")

// Chunk is a contiguous window of the source text.
//
// Start and End are rune offsets into the source, End exclusive.
type Chunk struct {
	Text  string
	Start int
	End   int
}

// Len returns the chunk length in runes.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Validate checks that 0 <= overlap < chunkSize.
func Validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidParameter, chunkSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidParameter, overlap)
	}
	if overlap >= chunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidParameter, overlap, chunkSize)
	}
	return nil
}

// Split returns a lazy sequence of overlapping chunks of content.
//
// Each chunk spans [cursor, min(cursor+chunkSize, len)). After a non-final
// chunk the cursor moves to max(end-overlap, cursor+1), so the sequence always
// terminates. The sequence has no side effects and can be ranged over any
// number of times. Empty content yields no chunks.
func Split(content string, chunkSize, overlap int) (iter.Seq[Chunk], error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}

	return func(yield func(Chunk) bool) {
		runes := []rune(content)
		n := len(runes)
		cursor := 0
		for cursor < n {
			end := min(cursor+chunkSize, n)
			if !yield(Chunk{Text: string(runes[cursor:end]), Start: cursor, End: end}) {
				return
			}
			if end == n {
				return
			}
			cursor = max(end-overlap, cursor+1)
		}
	}, nil
}

// All splits content and collects every chunk into a slice.
func All(content string, chunkSize, overlap int) ([]Chunk, error) {
	seq, err := Split(content, chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, 0)
	for c := range seq {
		chunks = append(chunks, c)
	}
	return chunks, nil
}
