// Package fetcher is the source adapter: it pages raw log rows out of
// the warehouse's logs table in (blockNumber, logIndex) order, with
// removed rows filtered in SQL and null topics dropped.
package fetcher

import (
	"context"

	"github.com/chainscope/logdecoder/pkg/clients/clickhouse"
	"github.com/chainscope/logdecoder/pkg/queryConfig"
	"github.com/chainscope/logdecoder/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Fetcher struct {
	client      *clickhouse.Client
	queryConfig *queryConfig.QueryConfig
	logger      *zap.Logger
}

func NewFetcher(client *clickhouse.Client, qc *queryConfig.QueryConfig, l *zap.Logger) *Fetcher {
	return &Fetcher{
		client:      client,
		queryConfig: qc,
		logger:      l,
	}
}

// FetchPage returns up to pageSize rows of the range starting at offset.
// A short page signals the end of the range to the caller.
func (f *Fetcher) FetchPage(ctx context.Context, startBlock, endBlock uint64, pageSize, offset int) ([]*types.LogRow, error) {
	query := f.queryConfig.FormatLogStreamQuery(startBlock, endBlock, pageSize, offset)

	rows, err := f.client.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query log rows")
	}
	defer rows.Close()

	page := make([]*types.LogRow, 0, pageSize)
	for rows.Next() {
		var (
			row    types.LogRow
			topic0 *string
			topic1 *string
			topic2 *string
			topic3 *string
		)
		if err := rows.Scan(
			&row.TransactionHash,
			&row.BlockNumber,
			&row.Address,
			&row.Data,
			&row.LogIndex,
			&topic0,
			&topic1,
			&topic2,
			&topic3,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan log row")
		}

		// Null topics are omitted; a trailing non-null after a null
		// would be malformed, so topics are appended in order until
		// the first absent one.
		for _, topic := range []*string{topic0, topic1, topic2, topic3} {
			if topic == nil || *topic == "" {
				break
			}
			row.Topics = append(row.Topics, *topic)
		}

		page = append(page, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed reading log rows")
	}

	f.logger.Sugar().Debugw("Fetched log page",
		zap.Int("rows", len(page)),
		zap.Int("offset", offset),
		zap.Uint64("startBlock", startBlock),
		zap.Uint64("endBlock", endBlock),
	)
	return page, nil
}
