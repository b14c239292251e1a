package clickhouseContractStore

import (
	"context"

	"github.com/chainscope/logdecoder/pkg/clients/clickhouse"
	"github.com/chainscope/logdecoder/pkg/contractStore"
	"github.com/chainscope/logdecoder/pkg/queryConfig"
	"github.com/chainscope/logdecoder/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ClickhouseContractStore resolves ABIs out of the warehouse's
// decoded_contracts table with a single batched query per page.
type ClickhouseContractStore struct {
	client      *clickhouse.Client
	queryConfig *queryConfig.QueryConfig
	logger      *zap.Logger
}

func NewClickhouseContractStore(client *clickhouse.Client, qc *queryConfig.QueryConfig, l *zap.Logger) *ClickhouseContractStore {
	return &ClickhouseContractStore{
		client:      client,
		queryConfig: qc,
		logger:      l,
	}
}

func (s *ClickhouseContractStore) ResolveAbis(ctx context.Context, addresses []string) (map[string]*types.ContractAbiRecord, error) {
	index := make(map[string]*types.ContractAbiRecord)
	if len(addresses) == 0 {
		return index, nil
	}

	query := s.queryConfig.FormatContractAbiQuery(addresses)

	rows, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query contract abis")
	}
	defer rows.Close()

	for rows.Next() {
		record := &types.ContractAbiRecord{}
		if err := rows.Scan(&record.Address, &record.Name, &record.Abi, &record.ImplementationAddress); err != nil {
			return nil, errors.Wrap(err, "failed to scan contract abi row")
		}
		contractStore.IndexRecord(index, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed reading contract abi rows")
	}

	s.logger.Sugar().Debugw("Resolved contract ABIs",
		zap.Int("requested", len(addresses)),
		zap.Int("resolved", len(index)),
	)
	return index, nil
}
