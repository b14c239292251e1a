// Package queryConfig holds the SQL templates and warehouse session
// settings driving the source reads and the decoded-log insert. Every
// query is overridable by dropping files into a config directory; missing
// files fall back to the compiled defaults.
package queryConfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultPageSize = 25000

const defaultLogStreamQuery = `SELECT transactionHash, toUInt64(blockNumber) AS blockNumber, address, data, toUInt64(logIndex) AS logIndex,
       topic0, topic1, topic2, topic3
FROM logs
WHERE blockNumber >= {START_BLOCK} AND blockNumber <= {END_BLOCK}
  AND removed = 0
ORDER BY blockNumber, logIndex
LIMIT {PAGE_SIZE} OFFSET {OFFSET}`

const defaultContractAbiQuery = `SELECT ADDRESS, NAME, ABI, IMPLEMENTATION_ADDRESS
FROM decoded_contracts
WHERE (ADDRESS IN ({ADDRESS_LIST}) OR IMPLEMENTATION_ADDRESS IN ({ADDRESS_LIST}))
  AND ABI != '' AND ABI IS NOT NULL`

const defaultDecodedLogsInsertQuery = `INSERT INTO decoded_logs (
    transactionHash,
    logIndex,
    contractAddress,
    eventName,
    eventSignature,
    signature,
    args
)`

// File names recognized inside the SQL config directory.
const (
	configFileName            = "config.json"
	logStreamFileName         = "log_stream.sql"
	contractAbiFileName       = "contract_abi.sql"
	decodedLogsInsertFileName = "decoded_logs_insert.sql"
	settingsFileName          = "clickhouse_settings.sql"
)

// QueryConfig is built once at startup and read-only afterwards.
type QueryConfig struct {
	pageSize            int
	logStreamQuery      string
	contractAbiQuery    string
	decodedLogsInsert   string
	asyncInsertSettings map[string]any
	logger              *zap.Logger
}

type configFile struct {
	Pagination struct {
		PageSize int `json:"page_size"`
	} `json:"pagination"`
}

// NewQueryConfig returns the compiled defaults.
func NewQueryConfig(l *zap.Logger) *QueryConfig {
	return &QueryConfig{
		pageSize:            DefaultPageSize,
		logStreamQuery:      defaultLogStreamQuery,
		contractAbiQuery:    defaultContractAbiQuery,
		decodedLogsInsert:   defaultDecodedLogsInsertQuery,
		asyncInsertSettings: DefaultAsyncInsertSettings(),
		logger:              l,
	}
}

// DefaultAsyncInsertSettings are the session settings applied before each
// decoded-log insert.
func DefaultAsyncInsertSettings() map[string]any {
	return map[string]any{
		"async_insert":               1,
		"wait_for_async_insert":      0,
		"async_insert_threads":       4,
		"async_insert_max_data_size": 100000000,
		"max_insert_block_size":      100000,
	}
}

// NewQueryConfigFromDir loads overrides from configDir on top of the
// defaults. Individual missing files are not errors; an unreadable
// directory falls back to defaults entirely.
func NewQueryConfigFromDir(configDir string, l *zap.Logger) *QueryConfig {
	qc := NewQueryConfig(l)

	if configDir == "" {
		return qc
	}

	if raw, err := os.ReadFile(filepath.Join(configDir, configFileName)); err == nil {
		var cf configFile
		if err := json.Unmarshal(raw, &cf); err != nil {
			l.Sugar().Warnw("Failed to parse query config file, keeping defaults",
				zap.String("file", configFileName),
				zap.Error(err),
			)
		} else if cf.Pagination.PageSize > 0 {
			qc.pageSize = cf.Pagination.PageSize
		}
	} else {
		l.Sugar().Warnw("Query config file not found, using defaults", zap.String("file", configFileName))
	}

	qc.logStreamQuery = qc.loadQueryFile(configDir, logStreamFileName, qc.logStreamQuery)
	qc.contractAbiQuery = qc.loadQueryFile(configDir, contractAbiFileName, qc.contractAbiQuery)
	qc.decodedLogsInsert = qc.loadQueryFile(configDir, decodedLogsInsertFileName, qc.decodedLogsInsert)

	if raw, err := os.ReadFile(filepath.Join(configDir, settingsFileName)); err == nil {
		settings, err := parseSettings(string(raw))
		if err != nil {
			l.Sugar().Warnw("Failed to parse session settings file, keeping defaults", zap.Error(err))
		} else {
			qc.asyncInsertSettings = settings
		}
	}

	l.Sugar().Infow("Loaded SQL query configuration", zap.String("configDir", configDir))
	return qc
}

func (qc *QueryConfig) loadQueryFile(configDir, name, fallback string) string {
	raw, err := os.ReadFile(filepath.Join(configDir, name))
	if err != nil {
		qc.logger.Sugar().Warnw("Query file not found, using default", zap.String("file", name))
		return fallback
	}
	return strings.TrimSpace(string(raw))
}

// parseSettings reads `name = value` lines, skipping blanks and comment
// lines. A leading SET keyword is tolerated so plain clickhouse-client
// session files work unchanged.
func parseSettings(content string) (map[string]any, error) {
	settings := make(map[string]any)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";"))
		if line == "" || strings.HasPrefix(line, "--") || strings.HasPrefix(line, "-") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "SET "))
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("malformed settings line %q", line)
		}
		name := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if n, err := strconv.Atoi(value); err == nil {
			settings[name] = n
		} else {
			settings[name] = value
		}
	}
	return settings, nil
}

func (qc *QueryConfig) PageSize() int {
	return qc.pageSize
}

func (qc *QueryConfig) AsyncInsertSettings() map[string]any {
	return qc.asyncInsertSettings
}

// FormatLogStreamQuery substitutes the block range and pagination
// placeholders into the log stream template.
func (qc *QueryConfig) FormatLogStreamQuery(startBlock, endBlock uint64, pageSize, offset int) string {
	r := strings.NewReplacer(
		"{START_BLOCK}", strconv.FormatUint(startBlock, 10),
		"{END_BLOCK}", strconv.FormatUint(endBlock, 10),
		"{PAGE_SIZE}", strconv.Itoa(pageSize),
		"{OFFSET}", strconv.Itoa(offset),
	)
	return r.Replace(qc.logStreamQuery)
}

// FormatContractAbiQuery substitutes the quoted, comma-separated address
// list into the contract ABI template.
func (qc *QueryConfig) FormatContractAbiQuery(addresses []string) string {
	quoted := make([]string, 0, len(addresses))
	for _, a := range addresses {
		quoted = append(quoted, fmt.Sprintf("'%s'", strings.ReplaceAll(a, "'", "''")))
	}
	return strings.ReplaceAll(qc.contractAbiQuery, "{ADDRESS_LIST}", strings.Join(quoted, ","))
}

// DecodedLogsInsertQuery is the INSERT statement handed to the batch
// preparer; the column order is fixed by the warehouse schema.
func (qc *QueryConfig) DecodedLogsInsertQuery() string {
	return qc.decodedLogsInsert
}
