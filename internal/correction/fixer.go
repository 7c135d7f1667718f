package correction

import (
	"context"
	"errors"
	"log/slog"

	"sublime/internal/logging"
)

// DefaultBatchSize is the number of lines submitted per request.
const DefaultBatchSize = 20

// BatchClient is the subset of Client the fixer needs.
type BatchClient interface {
	CorrectBatch(ctx context.Context, req BatchRequest) ([]string, error)
}

// ProgressFunc receives the number of lines processed so far and a copy of
// the accumulated corrected lines after each batch.
type ProgressFunc func(processed int, corrected []string)

// Fixer drives a document through the correction client batch by batch.
type Fixer struct {
	client         BatchClient
	batchSize      int
	referenceLimit int
	logger         *slog.Logger
}

// NewFixer constructs a fixer. A non-positive batchSize falls back to
// DefaultBatchSize; a non-positive referenceLimit disables truncation.
func NewFixer(client BatchClient, batchSize, referenceLimit int, logger *slog.Logger) *Fixer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fixer{
		client:         client,
		batchSize:      batchSize,
		referenceLimit: referenceLimit,
		logger:         logger,
	}
}

// Run corrects lines in order and returns exactly len(lines) results.
//
// Each batch is submitted once. A batch whose request fails, or whose
// response does not contain exactly one line per input line, falls back to
// the original lines for that batch so indices never shift. Cancellation is
// honored at batch boundaries and again before returning, so a cancel
// signaled while the final batch is in flight still aborts the run; a
// cancelled run returns ctx.Err() and its partial results must not be used.
func (f *Fixer) Run(ctx context.Context, lines []string, promptCtx Context, model string, onProgress ProgressFunc) ([]string, error) {
	total := len(lines)
	if total == 0 {
		return nil, nil
	}
	promptCtx = promptCtx.TruncateReference(f.referenceLimit)

	corrected := make([]string, 0, total)
	for start := 0; start < total; start += f.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + f.batchSize
		if end > total {
			end = total
		}
		batch := lines[start:end]

		result, err := f.client.CorrectBatch(ctx, BatchRequest{
			Lines:   batch,
			Context: promptCtx,
			Model:   model,
		})
		switch {
		case err != nil:
			if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return nil, ctx.Err()
			}
			f.logger.Warn("batch failed, keeping original lines",
				logging.Int("batch_start", start),
				logging.Int("batch_size", len(batch)),
				logging.Error(err))
			corrected = append(corrected, batch...)
		case len(result) != len(batch):
			f.logger.Warn("batch length mismatch, keeping original lines",
				logging.Int("batch_start", start),
				logging.Int("expected", len(batch)),
				logging.Int("got", len(result)))
			corrected = append(corrected, batch...)
		default:
			corrected = append(corrected, result...)
		}

		if onProgress != nil {
			snapshot := make([]string, len(corrected))
			copy(snapshot, corrected)
			onProgress(end, snapshot)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return corrected, nil
}
