package storage

import (
	"testing"

	"github.com/chainscope/logdecoder/pkg/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func record(txHash string, logIndex uint64) *types.DecodedRecord {
	return &types.DecodedRecord{
		TransactionHash: txHash,
		LogIndex:        logIndex,
	}
}

func Test_BatchWriter(t *testing.T) {
	t.Run("flushes once the batch size is reached", func(t *testing.T) {
		batches := make([][]*types.DecodedRecord, 0)
		w := NewBatchWriter("test", 2, func(records []*types.DecodedRecord) error {
			batches = append(batches, records)
			return nil
		}, zap.NewNop())

		w.Write(record("0xaa", 0))
		assert.Equal(t, 0, len(batches))
		assert.Equal(t, 1, w.PendingCount())

		w.Write(record("0xbb", 1))
		assert.Equal(t, 1, len(batches))
		assert.Equal(t, 2, len(batches[0]))
		assert.Equal(t, 0, w.PendingCount())
		assert.Equal(t, uint64(2), w.TotalWritten())
	})

	t.Run("Flush pushes a partial batch", func(t *testing.T) {
		batches := make([][]*types.DecodedRecord, 0)
		w := NewBatchWriter("test", 10, func(records []*types.DecodedRecord) error {
			batches = append(batches, records)
			return nil
		}, zap.NewNop())

		w.Write(record("0xaa", 0))
		assert.Nil(t, w.Flush())
		assert.Equal(t, 1, len(batches))
		assert.Equal(t, uint64(1), w.TotalWritten())
	})

	t.Run("Flush on an empty batch is a no-op", func(t *testing.T) {
		calls := 0
		w := NewBatchWriter("test", 10, func(records []*types.DecodedRecord) error {
			calls++
			return nil
		}, zap.NewNop())

		assert.Nil(t, w.Flush())
		assert.Equal(t, 0, calls)
	})

	t.Run("failed batches count separately from written ones", func(t *testing.T) {
		shouldFail := true
		w := NewBatchWriter("test", 2, func(records []*types.DecodedRecord) error {
			if shouldFail {
				return errors.New("sink unavailable")
			}
			return nil
		}, zap.NewNop())

		w.Write(record("0xaa", 0))
		w.Write(record("0xbb", 1))
		assert.Equal(t, uint64(0), w.TotalWritten())
		assert.Equal(t, uint64(2), w.TotalFailed())

		shouldFail = false
		w.Write(record("0xcc", 2))
		assert.Nil(t, w.Flush())
		assert.Equal(t, uint64(1), w.TotalWritten())
		assert.Equal(t, uint64(2), w.TotalFailed())
	})

	t.Run("a failed batch is not retried", func(t *testing.T) {
		calls := 0
		w := NewBatchWriter("test", 1, func(records []*types.DecodedRecord) error {
			calls++
			return errors.New("sink unavailable")
		}, zap.NewNop())

		w.Write(record("0xaa", 0))
		assert.Equal(t, 1, calls)
		assert.Equal(t, 0, w.PendingCount())
	})
}
