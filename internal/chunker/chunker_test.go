package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
		wantErr   bool
	}{
		{"valid", 20, 5, false},
		{"zero overlap", 10, 0, false},
		{"overlap one less than size", 10, 9, false},
		{"overlap equal to size", 10, 10, true},
		{"overlap larger than size", 10, 11, true},
		{"negative overlap", 10, -1, true},
		{"zero size", 0, 0, true},
		{"negative size", -5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.chunkSize, tt.overlap)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParameter)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplit_InvalidParameters(t *testing.T) {
	seq, err := Split("hello", 5, 5)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Nil(t, seq)

	_, err = All("hello", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestSplit_EmptyContent(t *testing.T) {
	chunks, err := All("", 20, 5)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_QuickBrownFox(t *testing.T) {
	content := "The quick brown fox jumps over the lazy dog."

	chunks, err := All(content, 20, 5)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 20, chunks[0].End)
	assert.Equal(t, 15, chunks[1].Start)
	assert.Equal(t, 35, chunks[1].End)
	assert.Equal(t, 30, chunks[2].Start)
	assert.Equal(t, len(content), chunks[2].End)

	assert.Equal(t, "The quick brown fox ", chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		overlap := chunks[i-1].End - chunks[i].Start
		assert.Equal(t, 5, overlap, "overlap between chunk %d and %d", i-1, i)
	}
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Len(), 20)
	}
}

func TestSplit_ContentShorterThanChunk(t *testing.T) {
	chunks, err := All("short", 100, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, Chunk{Text: "short", Start: 0, End: 5}, chunks[0])
}

func TestSplit_LargeOverlapStillProgresses(t *testing.T) {
	content := strings.Repeat("x", 50)

	chunks, err := All(content, 10, 9)
	require.NoError(t, err)

	// Cursor advances by exactly one rune per chunk.
	require.Len(t, chunks, 41)
	for i, c := range chunks {
		assert.Equal(t, i, c.Start)
	}
	assert.Equal(t, 50, chunks[len(chunks)-1].End)
}

func TestSplit_CoversContentWithoutGaps(t *testing.T) {
	contents := []string{
		"a",
		"ab",
		strings.Repeat("lorem ipsum dolor sit amet ", 40),
		"héllo wörld, ünïcode çhunks must split on rune boundaries ✓✓✓",
	}
	params := []struct{ size, overlap int }{
		{1, 0}, {2, 1}, {7, 3}, {20, 5}, {64, 0}, {100, 99},
	}

	for _, content := range contents {
		for _, p := range params {
			chunks, err := All(content, p.size, p.overlap)
			require.NoError(t, err)

			total := utf8.RuneCountInString(content)
			require.NotEmpty(t, chunks)
			assert.Equal(t, 0, chunks[0].Start)
			assert.Equal(t, total, chunks[len(chunks)-1].End)

			for i, c := range chunks {
				assert.LessOrEqual(t, c.Len(), p.size)
				assert.Greater(t, c.Len(), 0)
				assert.True(t, utf8.ValidString(c.Text))
				assert.Equal(t, c.Len(), utf8.RuneCountInString(c.Text))
				if i > 0 {
					// Next chunk starts at or before the previous end: no gaps.
					assert.LessOrEqual(t, c.Start, chunks[i-1].End)
					assert.Greater(t, c.Start, chunks[i-1].Start)
				}
			}
		}
	}
}

func TestSplit_Restartable(t *testing.T) {
	seq, err := Split("The quick brown fox jumps over the lazy dog.", 10, 2)
	require.NoError(t, err)

	var first, second []Chunk
	for c := range seq {
		first = append(first, c)
	}
	for c := range seq {
		second = append(second, c)
	}
	assert.Equal(t, first, second)
}

func TestSplit_EarlyBreak(t *testing.T) {
	seq, err := Split(strings.Repeat("abc", 100), 10, 0)
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}
