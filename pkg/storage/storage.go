// Package storage defines the batched writer contract shared by every
// decoded-log destination: records accumulate in memory and are flushed
// as whole batches, with distinct written and failed totals per writer.
package storage

import (
	"sync/atomic"

	"github.com/chainscope/logdecoder/pkg/types"
	"go.uber.org/zap"
)

const DefaultBatchSize = 1000

// DecodedLogWriter is a batched consumer of decoded records. Write calls
// are serialised by the pipeline's emission lock; Flush must be called
// once on shutdown to push any partial batch.
type DecodedLogWriter interface {
	Write(record *types.DecodedRecord)
	Flush() error
	Name() string
	TotalWritten() uint64
	TotalFailed() uint64
	PendingCount() int
}

// BatchWriter implements the batching half of DecodedLogWriter; concrete
// writers embed it and supply flushBatch. A failed batch is counted and
// dropped; retries are the caller's concern.
type BatchWriter struct {
	name      string
	batchSize int
	pending   []*types.DecodedRecord

	totalWritten atomic.Uint64
	totalFailed  atomic.Uint64

	flushBatch func(records []*types.DecodedRecord) error
	logger     *zap.Logger
}

func NewBatchWriter(name string, batchSize int, flushBatch func(records []*types.DecodedRecord) error, l *zap.Logger) *BatchWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchWriter{
		name:       name,
		batchSize:  batchSize,
		pending:    make([]*types.DecodedRecord, 0, batchSize),
		flushBatch: flushBatch,
		logger:     l,
	}
}

func (w *BatchWriter) Name() string {
	return w.name
}

func (w *BatchWriter) Write(record *types.DecodedRecord) {
	w.pending = append(w.pending, record)
	if len(w.pending) >= w.batchSize {
		if err := w.Flush(); err != nil {
			w.logger.Sugar().Errorw("Failed to flush batch",
				zap.String("writer", w.name),
				zap.Error(err),
			)
		}
	}
}

// Flush pushes the pending batch through flushBatch exactly once. The
// batch is cleared whether or not the flush succeeded.
func (w *BatchWriter) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}

	batch := w.pending
	w.pending = make([]*types.DecodedRecord, 0, w.batchSize)

	if err := w.flushBatch(batch); err != nil {
		w.totalFailed.Add(uint64(len(batch)))
		w.logger.Sugar().Errorw("Batch write failed",
			zap.String("writer", w.name),
			zap.Int("records", len(batch)),
			zap.Error(err),
		)
		return err
	}

	w.totalWritten.Add(uint64(len(batch)))
	w.logger.Sugar().Debugw("Wrote batch",
		zap.String("writer", w.name),
		zap.Int("records", len(batch)),
		zap.Uint64("totalWritten", w.totalWritten.Load()),
	)
	return nil
}

func (w *BatchWriter) TotalWritten() uint64 {
	return w.totalWritten.Load()
}

func (w *BatchWriter) TotalFailed() uint64 {
	return w.totalFailed.Load()
}

func (w *BatchWriter) PendingCount() int {
	return len(w.pending)
}
