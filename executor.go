package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// BatchApplyError is fatal to the run: a storage-level failure applying one
// batch. It carries the failing ordinal so the run can resume after the last
// successful batch.
type BatchApplyError struct {
	Ordinal int
	Err     error
}

func (e *BatchApplyError) Error() string {
	return fmt.Sprintf("batch %d failed: %v", e.Ordinal, e.Err)
}

func (e *BatchApplyError) Unwrap() error { return e.Err }

// ExecReport summarizes one executor run. LastOrdinal is the highest
// successfully applied ordinal (0 when nothing applied), which is the value
// to feed ResumeAfter on the next run.
type ExecReport struct {
	BatchesApplied int    `json:"batchesApplied"`
	BatchesSkipped int    `json:"batchesSkipped"`
	RowsApplied    int    `json:"rowsApplied"`
	LastOrdinal    int    `json:"lastOrdinal"`
	FailedOrdinal  int    `json:"failedOrdinal,omitempty"`
	Elapsed        string `json:"elapsed"`
	Err            error  `json:"-"`
}

// Executor applies import batches strictly in order, halting at the first
// failure so the catalog never ends up in an undetectable partial state.
type Executor struct {
	store       Store
	log         *zap.SugaredLogger
	attempts    int
	baseDelay   time.Duration
	resumeAfter int
}

// NewExecutor builds an executor. attempts is the total number of tries per
// batch (minimum 1); baseDelay seeds the exponential backoff between tries.
// resumeAfter skips every ordinal <= it, for continuing a halted run.
func NewExecutor(store Store, log *zap.SugaredLogger, attempts int, baseDelay time.Duration, resumeAfter int) *Executor {
	if attempts < 1 {
		attempts = 1
	}
	return &Executor{
		store:       store,
		log:         log,
		attempts:    attempts,
		baseDelay:   baseDelay,
		resumeAfter: resumeAfter,
	}
}

// Execute applies the batches in ordinal order. Cancellation is honored at
// batch boundaries only, never mid-batch, so a stopped run is always
// resumable from the next ordinal. Batch statuses are updated in place.
func (e *Executor) Execute(ctx context.Context, batches []ImportBatch) ExecReport {
	report := ExecReport{LastOrdinal: e.resumeAfter}
	start := time.Now()

	for i := range batches {
		batch := &batches[i]
		if batch.Ordinal <= e.resumeAfter {
			report.BatchesSkipped++
			continue
		}

		if err := ctx.Err(); err != nil {
			report.Err = err
			break
		}

		batchStart := time.Now()
		if err := e.applyBatch(ctx, batch); err != nil {
			batch.Status = BatchFailed
			report.FailedOrdinal = batch.Ordinal
			report.Err = &BatchApplyError{Ordinal: batch.Ordinal, Err: err}
			e.log.Errorw("batch failed, halting",
				"ordinal", batch.Ordinal,
				"rows", len(batch.Rows),
				"error", err,
			)
			break
		}

		batch.Status = BatchApplied
		report.BatchesApplied++
		report.RowsApplied += len(batch.Rows)
		report.LastOrdinal = batch.Ordinal
		e.log.Infow("batch applied",
			"ordinal", batch.Ordinal,
			"rows", len(batch.Rows),
			"elapsed", time.Since(batchStart).Round(time.Millisecond).String(),
		)
	}

	report.Elapsed = time.Since(start).Round(time.Millisecond).String()
	return report
}

// applyBatch upserts one batch, retrying transient failures with exponential
// backoff. Constraint violations are surfaced immediately.
func (e *Executor) applyBatch(ctx context.Context, batch *ImportBatch) error {
	rows := make([]Row, len(batch.Rows))
	for i, r := range batch.Rows {
		rows[i] = Row{
			"supplement_id":  r.SupplementID,
			"medication_id":  r.MedicationID,
			"severity":       string(r.Severity),
			"description":    r.Description,
			"recommendation": r.Recommendation,
		}
	}

	var err error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		err = e.store.Upsert(ctx, "interactions", rows, "supplement_id,medication_id")
		if err == nil {
			return nil
		}
		if !isRetryableApplyErr(err) {
			return err
		}
		if attempt == e.attempts {
			break
		}
		delay := e.baseDelay << (attempt - 1)
		e.log.Warnw("transient batch failure, retrying",
			"ordinal", batch.Ordinal,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
