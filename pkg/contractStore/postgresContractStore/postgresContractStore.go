// Package postgresContractStore backs the ABI resolver with a postgres
// table for deployments that keep contract metadata outside the
// warehouse.
package postgresContractStore

import (
	"context"
	"fmt"

	"github.com/chainscope/logdecoder/internal/config"
	"github.com/chainscope/logdecoder/pkg/contractStore"
	"github.com/chainscope/logdecoder/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type decodedContract struct {
	Address               string `gorm:"column:address"`
	Name                  string `gorm:"column:name"`
	Abi                   string `gorm:"column:abi"`
	ImplementationAddress string `gorm:"column:implementation_address"`
}

func (decodedContract) TableName() string {
	return "decoded_contracts"
}

type PostgresContractStore struct {
	Db     *gorm.DB
	Logger *zap.Logger
}

func NewPostgresContractStore(db *gorm.DB, l *zap.Logger) *PostgresContractStore {
	return &PostgresContractStore{
		Db:     db,
		Logger: l,
	}
}

// NewGormFromConfig opens the postgres connection used by the store.
func NewGormFromConfig(cfg *config.PostgresConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DbName,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}
	return db, nil
}

func (s *PostgresContractStore) ResolveAbis(ctx context.Context, addresses []string) (map[string]*types.ContractAbiRecord, error) {
	index := make(map[string]*types.ContractAbiRecord)
	if len(addresses) == 0 {
		return index, nil
	}

	normalized := make([]string, 0, len(addresses))
	for _, a := range addresses {
		normalized = append(normalized, contractStore.NormalizeAddress(a))
	}

	var contracts []decodedContract
	result := s.Db.WithContext(ctx).
		Where("abi != '' AND abi IS NOT NULL").
		Where("address IN ? OR implementation_address IN ?", normalized, normalized).
		Find(&contracts)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query contract abis")
	}

	for _, c := range contracts {
		record := &types.ContractAbiRecord{
			Address:               c.Address,
			Name:                  c.Name,
			Abi:                   c.Abi,
			ImplementationAddress: c.ImplementationAddress,
		}
		contractStore.IndexRecord(index, record)
	}

	s.Logger.Sugar().Debugw("Resolved contract ABIs",
		zap.Int("requested", len(addresses)),
		zap.Int("resolved", len(index)),
	)
	return index, nil
}
