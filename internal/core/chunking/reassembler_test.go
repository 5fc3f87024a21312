package chunking

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variedProse(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "This is sentence number %d in the test chapter, and it rambles on a little. ", i)
	}
	return strings.TrimSpace(b.String())
}

func TestReassembleEmpty(t *testing.T) {
	result := Reassemble(nil)
	assert.Equal(t, "", result.Text)
	assert.Equal(t, 0, result.ChunkCount)
}

func TestReassembleSingleChunkVerbatim(t *testing.T) {
	chunks := []Processed[string]{{
		Chunk:  Chunk{Index: 0, Total: 1, Text: "raw"},
		Output: "formatted text",
	}}
	result := Reassemble(chunks)
	assert.Equal(t, "formatted text", result.Text)
	assert.Equal(t, 1, result.ChunkCount)
	assert.False(t, result.Degraded)
}

func TestReassembleRoundTripNoOverlap(t *testing.T) {
	// Identity transform with zero overlap must reproduce the source exactly,
	// boundary cuts and forced cuts alike.
	texts := []string{
		variedProse(200),
		strings.Repeat("z", 3500), // forced mid-word cuts, no whitespace
		variedProse(50) + "\n\n" + strings.Repeat("q", 2500) + "\n\n" + variedProse(50),
	}

	for _, text := range texts {
		chunks, err := Split(text, Strategy{MaxChunkSize: 1000, OverlapSize: 0, RespectBoundaries: true})
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		processed, err := ProcessAll(context.Background(), chunks, identity, nil)
		require.NoError(t, err)

		result := Reassemble(processed)
		assert.Equal(t, text, result.Text)
		assert.Equal(t, len(chunks), result.ChunkCount)
		assert.False(t, result.Degraded)
	}
}

func TestReassembleRemovesOverlapWithIdentityTransform(t *testing.T) {
	text := variedProse(300)
	chunks, err := Split(text, Strategy{MaxChunkSize: 1200, OverlapSize: 150, RespectBoundaries: true})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	processed, err := ProcessAll(context.Background(), chunks, identity, nil)
	require.NoError(t, err)

	result := Reassemble(processed)
	assert.Equal(t, text, result.Text)
	assert.False(t, result.Degraded)
}

func TestReassembleMatchesRewordedOverlapCaseInsensitively(t *testing.T) {
	text := variedProse(300)
	chunks, err := Split(text, Strategy{MaxChunkSize: 1200, OverlapSize: 150, RespectBoundaries: true})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	upper := func(_ context.Context, s string) (string, error) {
		return strings.ToUpper(s), nil
	}
	processed, err := ProcessAll(context.Background(), chunks, upper, nil)
	require.NoError(t, err)

	result := Reassemble(processed)
	assert.Equal(t, strings.ToUpper(text), result.Text)
	assert.False(t, result.Degraded)
}

func TestReassembleFallbackWhenOverlapRewritten(t *testing.T) {
	chunks := []Processed[string]{
		{
			Chunk:  Chunk{Index: 0, Total: 2, Text: "The opening of the chapter, as extracted.", EndOffset: 41},
			Output: "Completely rewritten opening.",
		},
		{
			Chunk: Chunk{
				Index:             1,
				Total:             2,
				Text:              "chapter, as... and then the story continues.",
				StartOffset:       26,
				EndOffset:         71,
				HasLeadingOverlap: true,
				OverlapLen:        15,
			},
			Output: "Garbled overlap words then the real continuation follows here.",
		},
	}

	result := Reassemble(chunks)
	assert.True(t, result.Degraded)
	assert.Equal(t, 2, result.ChunkCount)
	// The heuristic skips the overlap's worth of runes and keeps the rest.
	assert.Contains(t, result.Text, "Completely rewritten opening.")
	assert.Contains(t, result.Text, "words then the real continuation follows here.")
	assert.NotContains(t, result.Text, "Garbled")
}

func TestReassembleRestoresSeamSpaceWhenTransformTrimsOverlappedChunks(t *testing.T) {
	// A transform that trims each chunk's edges drops the space that followed
	// the overlap region; the matched-overlap join must restore it or every
	// seam fuses two words.
	text := variedProse(300)
	chunks, err := Split(text, Strategy{MaxChunkSize: 1200, OverlapSize: 150, RespectBoundaries: true})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	trim := func(_ context.Context, s string) (string, error) {
		return strings.TrimSpace(s), nil
	}
	processed, err := ProcessAll(context.Background(), chunks, trim, nil)
	require.NoError(t, err)

	result := Reassemble(processed)
	assert.False(t, result.Degraded)
	assert.NotContains(t, result.Text, ".This")
	assert.Equal(t,
		strings.Join(strings.Fields(text), " "),
		strings.Join(strings.Fields(result.Text), " "))
}

func TestReassembleSeparatorAfterMatchedOverlap(t *testing.T) {
	chunks := []Processed[string]{
		{
			Chunk:  Chunk{Index: 0, Total: 2, Text: "First sentence here. Overlap words go here. ", EndOffset: 44},
			Output: "First sentence here. Overlap words go here.",
		},
		{
			Chunk: Chunk{
				Index:             1,
				Total:             2,
				Text:              "Overlap words go here. Second sentence continues.",
				StartOffset:       21,
				EndOffset:         70,
				HasLeadingOverlap: true,
				OverlapLen:        23,
			},
			Output: "Overlap words go here. Second sentence continues.",
		},
	}

	result := Reassemble(chunks)
	assert.Equal(t, "First sentence here. Overlap words go here. Second sentence continues.", result.Text)
	assert.False(t, result.Degraded)
}

func TestReassembleNoSeparatorAtMidWordOverlapSeam(t *testing.T) {
	// Overlap seam inside a forced mid-word cut: the source carried no
	// whitespace there, so none may be inserted.
	chunks := []Processed[string]{
		{
			Chunk:  Chunk{Index: 0, Total: 2, Text: "abcdefghij", EndOffset: 10},
			Output: "abcdefghij",
		},
		{
			Chunk: Chunk{
				Index:             1,
				Total:             2,
				Text:              "fghijklmno",
				StartOffset:       5,
				EndOffset:         15,
				HasLeadingOverlap: true,
				OverlapLen:        5,
			},
			Output: "fghijklmno",
		},
	}

	result := Reassemble(chunks)
	assert.Equal(t, "abcdefghijklmno", result.Text)
	assert.False(t, result.Degraded)
}

func TestReassembleInsertsSeparatorWhenTransformTrims(t *testing.T) {
	// The LLM trimmed the trailing space the source seam carried; a space is
	// restored so words do not fuse.
	chunks := []Processed[string]{
		{
			Chunk:  Chunk{Index: 0, Total: 2, Text: "Hello world. ", EndOffset: 13},
			Output: "Hello world.",
		},
		{
			Chunk:  Chunk{Index: 1, Total: 2, Text: "Next sentence.", StartOffset: 13, EndOffset: 27},
			Output: "Next sentence.",
		},
	}

	result := Reassemble(chunks)
	assert.Equal(t, "Hello world. Next sentence.", result.Text)
	assert.False(t, result.Degraded)
}

func TestReassembleNoSeparatorAtForcedCutSeam(t *testing.T) {
	// A forced mid-word cut has no whitespace on either side of the seam;
	// inserting one would corrupt the word.
	chunks := []Processed[string]{
		{
			Chunk:  Chunk{Index: 0, Total: 2, Text: "unbrea", EndOffset: 6},
			Output: "unbrea",
		},
		{
			Chunk:  Chunk{Index: 1, Total: 2, Text: "kable", StartOffset: 6, EndOffset: 11},
			Output: "kable",
		},
	}

	result := Reassemble(chunks)
	assert.Equal(t, "unbreakable", result.Text)
}

func TestNormalizeSeam(t *testing.T) {
	assert.Equal(t, "hello world", normalizeSeam("  Hello\n\tWORLD  "))
	assert.Equal(t, "", normalizeSeam("   "))
}
