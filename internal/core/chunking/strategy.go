package chunking

import (
	"errors"
	"fmt"

	"bookwhisperer/config"
)

// ErrConfiguration indicates invalid strategy parameters. It is returned
// wrapped with details; callers match it with errors.Is.
var ErrConfiguration = errors.New("invalid chunking strategy")

// Strategy controls how a text blob is partitioned into chunks.
type Strategy struct {
	// MaxChunkSize is the upper bound on chunk length, in runes.
	MaxChunkSize int
	// OverlapSize is how many trailing runes of a chunk are copied into the
	// start of the next one to preserve context across the split.
	OverlapSize int
	// RespectBoundaries makes the splitter cut at sentence/paragraph/word
	// boundaries near the size limit instead of at the exact offset.
	RespectBoundaries bool
}

// ForLLM returns the formatting strategy: boundary-respecting with overlap so
// the model sees the tail of the previous chunk. Sizes come from config with
// the stock 3800/200 fallback.
func ForLLM() Strategy {
	maxChars := config.Cfg.Chunking.LLMMaxChars
	if maxChars <= 0 {
		maxChars = 3800
	}
	overlap := config.Cfg.Chunking.LLMOverlap
	if overlap < 0 {
		overlap = 200
	}
	return Strategy{
		MaxChunkSize:      maxChars,
		OverlapSize:       overlap,
		RespectBoundaries: true,
	}
}

// ForTTS returns the synthesis strategy: boundary-respecting, no overlap.
// Each chunk becomes one audio segment, so duplicated context would be heard.
func ForTTS() Strategy {
	maxChars := config.Cfg.TTS.MaxChunkSize
	if maxChars <= 0 {
		maxChars = 5000
	}
	return Strategy{
		MaxChunkSize:      maxChars,
		OverlapSize:       0,
		RespectBoundaries: true,
	}
}

// Validate rejects strategies that cannot make forward progress.
func (s Strategy) Validate() error {
	if s.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max chunk size must be positive, got %d", ErrConfiguration, s.MaxChunkSize)
	}
	if s.OverlapSize < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrConfiguration, s.OverlapSize)
	}
	if s.OverlapSize >= s.MaxChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than max chunk size %d", ErrConfiguration, s.OverlapSize, s.MaxChunkSize)
	}
	return nil
}

// boundaryWindow is how far back from the target offset the boundary locator
// may scan before giving up and forcing a cut.
func (s Strategy) boundaryWindow() int {
	window := s.MaxChunkSize / 4
	if window > 200 {
		window = 200
	}
	if window < 1 {
		window = 1
	}
	return window
}
