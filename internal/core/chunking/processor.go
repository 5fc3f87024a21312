package chunking

import (
	"context"
	"fmt"
)

// Processed pairs a chunk with the output of a transform applied to its text.
// T is string for LLM formatting and []byte for TTS audio.
type Processed[T any] struct {
	Chunk
	Output T
}

// TransformError reports which chunk a transform failed on, so a failed job
// can surface "failed at chunk 3/10".
type TransformError struct {
	Index int
	Total int
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed at chunk %d/%d: %v", e.Index+1, e.Total, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// ProgressFunc is invoked after each chunk completes with the count of
// completed chunks and the total.
type ProgressFunc func(completed, total int)

// ProcessAll applies transform to every chunk sequentially, in index order.
// The external transform APIs are rate-constrained per caller, so chunk i+1
// is only attempted after chunk i completes. Failures are fail-fast: the
// error is tagged with the failing chunk's position, remaining chunks are not
// attempted, and no partial result is returned. Cancellation of ctx stops the
// sequence immediately.
func ProcessAll[T any](
	ctx context.Context,
	chunks []Chunk,
	transform func(context.Context, string) (T, error),
	onProgress ProgressFunc,
) ([]Processed[T], error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	total := chunks[0].Total
	out := make([]Processed[T], 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := transform(ctx, chunk.Text)
		if err != nil {
			return nil, &TransformError{Index: chunk.Index, Total: total, Err: err}
		}

		out = append(out, Processed[T]{Chunk: chunk, Output: result})
		if onProgress != nil {
			onProgress(i+1, total)
		}
	}
	return out, nil
}
