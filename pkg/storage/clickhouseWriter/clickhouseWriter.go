// Package clickhouseWriter inserts decoded records back into the
// warehouse's decoded_logs table using native batched inserts with the
// configured async-insert session settings.
package clickhouseWriter

import (
	"context"

	"github.com/chainscope/logdecoder/pkg/clients/clickhouse"
	"github.com/chainscope/logdecoder/pkg/queryConfig"
	"github.com/chainscope/logdecoder/pkg/storage"
	"github.com/chainscope/logdecoder/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type ClickhouseWriter struct {
	*storage.BatchWriter

	client      *clickhouse.Client
	queryConfig *queryConfig.QueryConfig
	logger      *zap.Logger
}

func NewClickhouseWriter(client *clickhouse.Client, qc *queryConfig.QueryConfig, batchSize int, l *zap.Logger) *ClickhouseWriter {
	w := &ClickhouseWriter{
		client:      client,
		queryConfig: qc,
		logger:      l,
	}
	w.BatchWriter = storage.NewBatchWriter("clickhouse", batchSize, w.writeBatch, l)
	return w
}

// writeBatch sends one native insert for the whole batch. Failures are
// not retried here; the batch counts as failed and the pipeline moves on.
func (w *ClickhouseWriter) writeBatch(records []*types.DecodedRecord) error {
	ctx := context.Background()

	batch, err := w.client.PrepareBatch(ctx, w.queryConfig.DecodedLogsInsertQuery(), w.queryConfig.AsyncInsertSettings())
	if err != nil {
		return errors.Wrap(err, "failed to prepare insert batch")
	}

	for _, record := range records {
		if err := batch.Append(
			record.TransactionHash,
			uint32(record.LogIndex),
			record.ContractAddress,
			record.EventName,
			record.EventSignature,
			record.Signature,
			record.Args,
		); err != nil {
			return errors.Wrap(err, "failed to append record to insert batch")
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "failed to send insert batch")
	}
	return nil
}
