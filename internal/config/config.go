package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "LOG_DECODER"

// Flag names, shared between the cobra command definitions and the viper
// lookups so the two can never drift apart.
const (
	Debug = "debug"

	WarehouseHost     = "host"
	WarehouseUser     = "user"
	WarehousePassword = "password"
	WarehouseDatabase = "database"
	WarehousePort     = "port"
	WarehouseSecure   = "secure"
	WarehousePoolSize = "pool-size"

	BlockRangeFlag    = "blockrange"
	Workers           = "workers"
	PageSize          = "page-size"
	BatchSize         = "batch-size"
	InsertDecodedLogs = "insert-decoded-logs"
	OutputDir         = "output-dir"
	JsonOutput        = "json"
	SqlConfigDir      = "sql-config-dir"
	DisableHeuristics = "disable-heuristics"
	StrictUtf8        = "strict-utf8"

	LogLevel = "log-level"
	LogFile  = "log-file"

	AbiSource        = "abi-source"
	PostgresHost     = "postgres.host"
	PostgresPort     = "postgres.port"
	PostgresUser     = "postgres.user"
	PostgresPassword = "postgres.password"
	PostgresDbName   = "postgres.dbname"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample-rate"
	PrometheusEnabled       = "prometheus.enabled"
	PrometheusPort          = "prometheus.port"
)

const (
	AbiSourceClickhouse = "clickhouse"
	AbiSourcePostgres   = "postgres"
)

type BlockRange struct {
	StartBlock uint64
	EndBlock   uint64
}

type WarehouseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Secure   bool
	PoolSize int
}

type PostgresConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DbName   string
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type Config struct {
	Debug bool

	LogLevel string
	LogFile  string

	BlockRange        BlockRange
	Workers           int
	PageSize          int
	BatchSize         int
	InsertDecodedLogs bool
	OutputDir         string
	JsonOutput        bool
	SqlConfigDir      string
	DisableHeuristics bool
	StrictUtf8        bool

	AbiSource string

	WarehouseConfig  WarehouseConfig
	PostgresConfig   PostgresConfig
	DataDogConfig    DataDogConfig
	PrometheusConfig PrometheusConfig
}

func KebabToSnakeCase(s string) string {
	return strings.NewReplacer("-", "_", ".", "_").Replace(s)
}

// ParseBlockRange reads the `start-end` form of the blockrange flag.
func ParseBlockRange(s string) (BlockRange, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return BlockRange{}, fmt.Errorf("block range must be of the form start-end, got %q", s)
	}
	start, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return BlockRange{}, fmt.Errorf("invalid start block %q: %w", parts[0], err)
	}
	end, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return BlockRange{}, fmt.Errorf("invalid end block %q: %w", parts[1], err)
	}
	if end < start {
		return BlockRange{}, fmt.Errorf("end block %d precedes start block %d", end, start)
	}
	return BlockRange{StartBlock: start, EndBlock: end}, nil
}

// NewConfig materialises the typed config from whatever viper has
// accumulated from flags and environment.
func NewConfig() (*Config, error) {
	blockRange, err := ParseBlockRange(viper.GetString(normalize(BlockRangeFlag)))
	if err != nil {
		return nil, err
	}

	c := &Config{
		Debug: viper.GetBool(normalize(Debug)),

		LogLevel: viper.GetString(normalize(LogLevel)),
		LogFile:  viper.GetString(normalize(LogFile)),

		BlockRange:        blockRange,
		Workers:           viper.GetInt(normalize(Workers)),
		PageSize:          viper.GetInt(normalize(PageSize)),
		BatchSize:         viper.GetInt(normalize(BatchSize)),
		InsertDecodedLogs: viper.GetBool(normalize(InsertDecodedLogs)),
		OutputDir:         viper.GetString(normalize(OutputDir)),
		JsonOutput:        viper.GetBool(normalize(JsonOutput)),
		SqlConfigDir:      viper.GetString(normalize(SqlConfigDir)),
		DisableHeuristics: viper.GetBool(normalize(DisableHeuristics)),
		StrictUtf8:        viper.GetBool(normalize(StrictUtf8)),

		AbiSource: viper.GetString(normalize(AbiSource)),

		WarehouseConfig: WarehouseConfig{
			Host:     viper.GetString(normalize(WarehouseHost)),
			Port:     viper.GetInt(normalize(WarehousePort)),
			User:     viper.GetString(normalize(WarehouseUser)),
			Password: viper.GetString(normalize(WarehousePassword)),
			Database: viper.GetString(normalize(WarehouseDatabase)),
			Secure:   viper.GetBool(normalize(WarehouseSecure)),
			PoolSize: viper.GetInt(normalize(WarehousePoolSize)),
		},
		PostgresConfig: PostgresConfig{
			Host:     viper.GetString(normalize(PostgresHost)),
			Port:     viper.GetInt(normalize(PostgresPort)),
			Username: viper.GetString(normalize(PostgresUser)),
			Password: viper.GetString(normalize(PostgresPassword)),
			DbName:   viper.GetString(normalize(PostgresDbName)),
		},
		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalize(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalize(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalize(DataDogStatsdSampleRate)),
			},
		},
		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalize(PrometheusEnabled)),
			Port:    viper.GetInt(normalize(PrometheusPort)),
		},
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func normalize(flag string) string {
	return KebabToSnakeCase(flag)
}

// Validate catches configuration errors before any connection is opened.
func (c *Config) Validate() error {
	if c.WarehouseConfig.Host == "" {
		return fmt.Errorf("--%s is required", WarehouseHost)
	}
	if c.WarehouseConfig.User == "" {
		return fmt.Errorf("--%s is required", WarehouseUser)
	}
	if c.WarehouseConfig.Database == "" {
		return fmt.Errorf("--%s is required", WarehouseDatabase)
	}
	if c.WarehouseConfig.Port <= 0 {
		return fmt.Errorf("--%s must be a positive port number", WarehousePort)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("--%s must be positive", Workers)
	}
	switch c.AbiSource {
	case AbiSourceClickhouse, AbiSourcePostgres:
	default:
		return fmt.Errorf("--%s must be one of %s, %s", AbiSource, AbiSourceClickhouse, AbiSourcePostgres)
	}
	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return fmt.Errorf("--%s must be one of debug, info, warning, error", LogLevel)
	}
	return nil
}
