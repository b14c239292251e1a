// Package parquetWriter writes decoded records to one columnar file per
// block, either parquet or an indented JSON array. Flushes targeting a
// block that already has a file merge into it rather than clobbering
// earlier records.
package parquetWriter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/chainscope/logdecoder/pkg/storage"
	"github.com/chainscope/logdecoder/pkg/types"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type decodedLogRow struct {
	TransactionHash string `parquet:"transaction_hash" json:"transaction_hash"`
	BlockNumber     uint64 `parquet:"block_number" json:"block_number"`
	LogIndex        uint32 `parquet:"log_index" json:"log_index"`
	ContractAddress string `parquet:"contract_address" json:"contract_address"`
	EventName       string `parquet:"event_name" json:"event_name"`
	EventSignature  string `parquet:"event_signature" json:"event_signature"`
	Signature       string `parquet:"signature" json:"signature"`
	Args            string `parquet:"args" json:"args"`
}

type ParquetWriter struct {
	*storage.BatchWriter

	outputDir  string
	jsonOutput bool
	logger     *zap.Logger
}

func NewParquetWriter(outputDir string, batchSize int, jsonOutput bool, l *zap.Logger) (*ParquetWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", outputDir)
	}

	w := &ParquetWriter{
		outputDir:  outputDir,
		jsonOutput: jsonOutput,
		logger:     l,
	}
	w.BatchWriter = storage.NewBatchWriter("parquet", batchSize, w.writeBatch, l)

	format := "parquet"
	if jsonOutput {
		format = "json"
	}
	l.Sugar().Infow("Created columnar file writer",
		zap.String("outputDir", outputDir),
		zap.String("format", format),
	)
	return w, nil
}

// writeBatch groups the batch by block number and writes one file per
// block, preserving input order within each block.
func (w *ParquetWriter) writeBatch(records []*types.DecodedRecord) error {
	byBlock := make(map[uint64][]decodedLogRow)
	blocks := make([]uint64, 0)
	for _, record := range records {
		if _, seen := byBlock[record.BlockNumber]; !seen {
			blocks = append(blocks, record.BlockNumber)
		}
		byBlock[record.BlockNumber] = append(byBlock[record.BlockNumber], decodedLogRow{
			TransactionHash: record.TransactionHash,
			BlockNumber:     record.BlockNumber,
			LogIndex:        uint32(record.LogIndex),
			ContractAddress: record.ContractAddress,
			EventName:       record.EventName,
			EventSignature:  record.EventSignature,
			Signature:       record.Signature,
			Args:            record.Args,
		})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	for _, blockNumber := range blocks {
		if err := w.writeBlockFile(blockNumber, byBlock[blockNumber]); err != nil {
			return err
		}
	}
	return nil
}

func (w *ParquetWriter) writeBlockFile(blockNumber uint64, rows []decodedLogRow) error {
	if w.jsonOutput {
		return w.writeJsonFile(blockNumber, rows)
	}
	return w.writeParquetFile(blockNumber, rows)
}

func (w *ParquetWriter) blockFileName(blockNumber uint64, ext string) string {
	return filepath.Join(w.outputDir, fmt.Sprintf("block_%d.%s", blockNumber, ext))
}

func (w *ParquetWriter) writeParquetFile(blockNumber uint64, rows []decodedLogRow) error {
	path := w.blockFileName(blockNumber, "parquet")

	if _, err := os.Stat(path); err == nil {
		existing, err := parquet.ReadFile[decodedLogRow](path)
		if err != nil {
			return errors.Wrapf(err, "failed to read existing parquet file %s", path)
		}
		rows = append(existing, rows...)
	}

	if err := parquet.WriteFile(path, rows); err != nil {
		return errors.Wrapf(err, "failed to write parquet file %s", path)
	}

	w.logger.Sugar().Debugw("Wrote block file",
		zap.Uint64("blockNumber", blockNumber),
		zap.Int("records", len(rows)),
		zap.String("path", path),
	)
	return nil
}

func (w *ParquetWriter) writeJsonFile(blockNumber uint64, rows []decodedLogRow) error {
	path := w.blockFileName(blockNumber, "json")

	if raw, err := os.ReadFile(path); err == nil {
		var existing []decodedLogRow
		if err := json.Unmarshal(raw, &existing); err != nil {
			return errors.Wrapf(err, "failed to parse existing json file %s", path)
		}
		rows = append(existing, rows...)
	}

	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal records")
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write json file %s", path)
	}

	w.logger.Sugar().Debugw("Wrote block file",
		zap.Uint64("blockNumber", blockNumber),
		zap.Int("records", len(rows)),
		zap.String("path", path),
	)
	return nil
}
