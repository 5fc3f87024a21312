package chunking

import (
	"strings"

	"bookwhisperer/pkg/logger"
)

// Chunk is a bounded contiguous slice of the source text. Offsets are rune
// offsets into the source. Adjacent chunks satisfy
//
//	chunks[i].EndOffset == chunks[i+1].StartOffset + chunks[i+1].OverlapLen
//
// so the chunks cover the source with no gaps, duplicating only the
// intentional overlap region.
type Chunk struct {
	Index             int
	Total             int
	Text              string
	StartOffset       int
	EndOffset         int
	HasLeadingOverlap bool
	OverlapLen        int
}

// Split partitions text into an ordered sequence of chunks no longer than
// strategy.MaxChunkSize runes. Empty or whitespace-only input yields a nil
// slice. The loop always advances the cursor, so even a single token longer
// than the chunk size terminates (with forced mid-word cuts).
func Split(text string, strategy Strategy) ([]Chunk, error) {
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	size := len(runes)
	if size <= strategy.MaxChunkSize {
		return []Chunk{{
			Index:       0,
			Total:       1,
			Text:        text,
			StartOffset: 0,
			EndOffset:   size,
		}}, nil
	}

	window := strategy.boundaryWindow()

	var chunks []Chunk
	cursor := 0
	overlapLen := 0
	for cursor < size {
		end := cursor + strategy.MaxChunkSize
		if end >= size {
			// Final chunk: take the rest as-is.
			end = size
		} else if strategy.RespectBoundaries {
			located, ok := locateBoundary(runes, cursor, end, window)
			if !ok {
				logger.Warn("chunking: no boundary within %d runes of offset %d, forcing mid-word cut", window, end)
			}
			end = located
		}

		chunks = append(chunks, Chunk{
			Text:              string(runes[cursor:end]),
			StartOffset:       cursor,
			EndOffset:         end,
			HasLeadingOverlap: overlapLen > 0,
			OverlapLen:        overlapLen,
		})

		if end >= size {
			break
		}

		next := end
		if strategy.OverlapSize > 0 {
			next = end - strategy.OverlapSize
			// Forward-progress guarantee: the next cursor must move past the
			// previous one even when the boundary search degenerates.
			if next <= cursor {
				next = cursor + 1
			}
			overlapLen = end - next
		} else {
			overlapLen = 0
		}
		cursor = next
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}
	return chunks, nil
}
