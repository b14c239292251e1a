package cmd

import (
	"os"
	"strings"

	"github.com/chainscope/logdecoder/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "logdecoder",
	Short: "Decode EVM event logs against contract ABIs into analytics storage",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.WarehouseHost, "", `ClickHouse host`)
	rootCmd.PersistentFlags().Int(config.WarehousePort, 9000, `ClickHouse native protocol port`)
	rootCmd.PersistentFlags().String(config.WarehouseUser, "", `ClickHouse username`)
	rootCmd.PersistentFlags().String(config.WarehousePassword, "", `ClickHouse password`)
	rootCmd.PersistentFlags().String(config.WarehouseDatabase, "", `ClickHouse database name`)
	rootCmd.PersistentFlags().Bool(config.WarehouseSecure, false, `Use TLS for the native connection`)
	rootCmd.PersistentFlags().Int(config.WarehousePoolSize, 8, `Size of the native connection pool`)

	rootCmd.PersistentFlags().String(config.BlockRangeFlag, "", `Inclusive block range to process, e.g. 18000000-18001000`)
	rootCmd.PersistentFlags().Int(config.Workers, 4, `Number of parallel decode workers per page`)
	rootCmd.PersistentFlags().Int(config.PageSize, 0, `Rows per source page (0 uses the query config value)`)
	rootCmd.PersistentFlags().Int(config.BatchSize, 0, `Writer batch size (0 scales with the worker count)`)
	rootCmd.PersistentFlags().Bool(config.InsertDecodedLogs, false, `Insert decoded logs back into the warehouse`)
	rootCmd.PersistentFlags().String(config.OutputDir, "decoded_logs", `Directory for per-block output files`)
	rootCmd.PersistentFlags().Bool(config.JsonOutput, false, `Write JSON block files instead of parquet`)
	rootCmd.PersistentFlags().String(config.SqlConfigDir, "", `Directory with SQL template overrides`)
	rootCmd.PersistentFlags().Bool(config.DisableHeuristics, false, `Disable the unknown-event decoding fallback`)
	rootCmd.PersistentFlags().Bool(config.StrictUtf8, false, `Treat invalid UTF-8 in string values as a decode error`)

	rootCmd.PersistentFlags().String(config.LogLevel, "info", `One of debug, info, warning, error`)
	rootCmd.PersistentFlags().String(config.LogFile, "", `Also write logs to this file`)

	rootCmd.PersistentFlags().String(config.AbiSource, config.AbiSourceClickhouse, `Where contract ABIs live: clickhouse or postgres`)
	rootCmd.PersistentFlags().String(config.PostgresHost, "localhost", `PostgreSQL host (abi-source postgres)`)
	rootCmd.PersistentFlags().Int(config.PostgresPort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.PostgresUser, "", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.PostgresPassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.PostgresDbName, "", `PostgreSQL database name`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runVersionCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
