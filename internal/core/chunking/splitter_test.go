package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proseText(chars int, sentenceLen int) string {
	var b strings.Builder
	sentence := strings.Repeat("a", sentenceLen-2) + ". "
	for b.Len() < chars {
		b.WriteString(sentence)
	}
	return b.String()[:chars]
}

func TestSplitEmptyInput(t *testing.T) {
	strategy := Strategy{MaxChunkSize: 100, RespectBoundaries: true}

	chunks, err := Split("", strategy)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = Split("   \n\t  ", strategy)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitSingleChunkWhenTextFits(t *testing.T) {
	text := "This is a short chapter. It fits in one chunk."
	chunks, err := Split(text, Strategy{MaxChunkSize: 1000, OverlapSize: 100, RespectBoundaries: true})
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].Total)
	assert.Equal(t, 0, chunks[0].OverlapLen)
	assert.False(t, chunks[0].HasLeadingOverlap)
}

func TestSplitRejectsBadStrategy(t *testing.T) {
	_, err := Split("some text", Strategy{MaxChunkSize: 0})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = Split("some text", Strategy{MaxChunkSize: 100, OverlapSize: 100})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = Split("some text", Strategy{MaxChunkSize: 100, OverlapSize: 150})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestSplitCoverageInvariant(t *testing.T) {
	text := proseText(25000, 80)
	strategy := Strategy{MaxChunkSize: 3800, OverlapSize: 200, RespectBoundaries: true}

	chunks, err := Split(text, strategy)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	runes := []rune(text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(runes), chunks[len(chunks)-1].EndOffset)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, len(chunks), chunk.Total)
		assert.Equal(t, string(runes[chunk.StartOffset:chunk.EndOffset]), chunk.Text)
		assert.LessOrEqual(t, chunk.EndOffset-chunk.StartOffset, strategy.MaxChunkSize)

		if i == 0 {
			continue
		}
		prev := chunks[i-1]
		// No gaps: the previous end equals this start plus the overlap.
		assert.Equal(t, prev.EndOffset, chunk.StartOffset+chunk.OverlapLen)
		assert.Greater(t, chunk.StartOffset, prev.StartOffset)
	}
}

func TestSplitProseScenario(t *testing.T) {
	// ~10k chars of prose with a sentence end every ~80 chars splits into 3
	// boundary-respecting chunks with 200-rune overlaps.
	text := proseText(10000, 80)
	strategy := Strategy{MaxChunkSize: 3800, OverlapSize: 200, RespectBoundaries: true}

	chunks, err := Split(text, strategy)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	runes := []rune(text)
	for i, chunk := range chunks {
		if i == 0 {
			assert.False(t, chunk.HasLeadingOverlap)
			assert.Equal(t, 0, chunk.OverlapLen)
		} else {
			assert.True(t, chunk.HasLeadingOverlap)
			assert.Equal(t, 200, chunk.OverlapLen)
		}
		if i < len(chunks)-1 {
			// Each non-final chunk ends right after a period and a space.
			end := chunk.EndOffset
			assert.Equal(t, ' ', runes[end-1])
			assert.Equal(t, '.', runes[end-2])
		}
	}
}

func TestSplitForcedCutTerminates(t *testing.T) {
	// One giant token with no whitespace anywhere: the splitter must force
	// cuts and still terminate.
	maxSize := 1000
	text := strings.Repeat("x", 5*maxSize)
	strategy := Strategy{MaxChunkSize: maxSize, OverlapSize: 0, RespectBoundaries: true}

	chunks, err := Split(text, strategy)
	require.NoError(t, err)
	require.Len(t, chunks, 5)

	for _, chunk := range chunks {
		assert.Len(t, chunk.Text, maxSize)
	}

	var joined strings.Builder
	for _, chunk := range chunks {
		joined.WriteString(chunk.Text)
	}
	assert.Equal(t, text, joined.String())
}

func TestSplitForcedCutWithOverlapTerminates(t *testing.T) {
	maxSize := 500
	text := strings.Repeat("y", 5*maxSize)
	strategy := Strategy{MaxChunkSize: maxSize, OverlapSize: 100, RespectBoundaries: true}

	chunks, err := Split(text, strategy)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].StartOffset, chunks[i-1].StartOffset)
		assert.Equal(t, chunks[i-1].EndOffset, chunks[i].StartOffset+chunks[i].OverlapLen)
	}
	assert.Equal(t, len([]rune(text)), chunks[len(chunks)-1].EndOffset)
}

func TestSplitTTSScenario(t *testing.T) {
	// 12k chars, max 5000, no overlap: 3 chunks, none overlapped.
	text := proseText(12000, 60)
	strategy := Strategy{MaxChunkSize: 5000, OverlapSize: 0, RespectBoundaries: true}

	chunks, err := Split(text, strategy)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for _, chunk := range chunks {
		assert.Equal(t, 0, chunk.OverlapLen)
		assert.False(t, chunk.HasLeadingOverlap)
		assert.Equal(t, 3, chunk.Total)
	}
}

func TestSplitUnicodeOffsetsAreRunes(t *testing.T) {
	text := strings.Repeat("héllo wörld. ", 100)
	strategy := Strategy{MaxChunkSize: 200, OverlapSize: 30, RespectBoundaries: true}

	chunks, err := Split(text, strategy)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	runes := []rune(text)
	for _, chunk := range chunks {
		assert.Equal(t, string(runes[chunk.StartOffset:chunk.EndOffset]), chunk.Text)
		assert.LessOrEqual(t, len([]rune(chunk.Text)), strategy.MaxChunkSize)
	}
}
