package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chainscope/logdecoder/internal/config"
	"github.com/chainscope/logdecoder/internal/logger"
	"github.com/chainscope/logdecoder/internal/metrics"
	"github.com/chainscope/logdecoder/internal/metrics/prometheus"
	"github.com/chainscope/logdecoder/internal/shutdown"
	"github.com/chainscope/logdecoder/pkg/clients/clickhouse"
	"github.com/chainscope/logdecoder/pkg/contractStore"
	"github.com/chainscope/logdecoder/pkg/contractStore/clickhouseContractStore"
	"github.com/chainscope/logdecoder/pkg/contractStore/postgresContractStore"
	"github.com/chainscope/logdecoder/pkg/decoder"
	"github.com/chainscope/logdecoder/pkg/fetcher"
	"github.com/chainscope/logdecoder/pkg/pipeline"
	"github.com/chainscope/logdecoder/pkg/queryConfig"
	"github.com/chainscope/logdecoder/pkg/storage"
	"github.com/chainscope/logdecoder/pkg/storage/clickhouseWriter"
	"github.com/chainscope/logdecoder/pkg/storage/parquetWriter"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Stream and decode a block range of event logs",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.NewConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		l, err := logger.NewLogger(&logger.LoggerConfig{
			Debug:      cfg.Debug,
			Level:      cfg.LogLevel,
			OutputFile: cfg.LogFile,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to set up logging: %v\n", err)
			os.Exit(1)
		}
		defer l.Sync() //nolint:errcheck

		runId := uuid.New().String()
		l = l.With(zap.String("runId", runId))

		l.Sugar().Infow("ClickHouse log decoder",
			zap.String("host", cfg.WarehouseConfig.Host),
			zap.Int("port", cfg.WarehouseConfig.Port),
			zap.String("user", cfg.WarehouseConfig.User),
			zap.String("database", cfg.WarehouseConfig.Database),
			zap.Uint64("startBlock", cfg.BlockRange.StartBlock),
			zap.Uint64("endBlock", cfg.BlockRange.EndBlock),
			zap.Int("workers", cfg.Workers),
			zap.Bool("insertDecodedLogs", cfg.InsertDecodedLogs),
			zap.String("outputDir", cfg.OutputDir),
			zap.Bool("jsonOutput", cfg.JsonOutput),
			zap.String("abiSource", cfg.AbiSource),
		)

		metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics clients", zap.Error(err))
		}
		sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		metricsShutdown := make(chan bool)
		if cfg.PrometheusConfig.Enabled {
			ps := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			if err := ps.Start(metricsShutdown); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		progress := newProgressDisplay(cfg.BlockRange.StartBlock, cfg.BlockRange.EndBlock)
		progress.SetStatus("Connecting...")

		client, err := clickhouse.NewClient(&clickhouse.ClientConfig{
			Host:     cfg.WarehouseConfig.Host,
			Port:     cfg.WarehouseConfig.Port,
			Username: cfg.WarehouseConfig.User,
			Password: cfg.WarehouseConfig.Password,
			Database: cfg.WarehouseConfig.Database,
			Secure:   cfg.WarehouseConfig.Secure,
			PoolSize: cfg.WarehouseConfig.PoolSize,
		}, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to create clickhouse client", zap.Error(err))
		}
		defer client.Close() //nolint:errcheck

		if err := client.TestConnection(ctx); err != nil {
			l.Sugar().Fatalw("ClickHouse connection test failed", zap.Error(err))
		}
		l.Sugar().Infow("Connected to ClickHouse", zap.String("connection", client.ConnectionInfo()))

		qc := queryConfig.NewQueryConfigFromDir(cfg.SqlConfigDir, l)

		pageSize := cfg.PageSize
		if pageSize <= 0 {
			pageSize = qc.PageSize()
		}
		batchSize := cfg.BatchSize
		if batchSize <= 0 {
			batchSize = 1000 * cfg.Workers
		}

		var cs contractStore.ContractStore
		if cfg.AbiSource == config.AbiSourcePostgres {
			db, err := postgresContractStore.NewGormFromConfig(&cfg.PostgresConfig)
			if err != nil {
				l.Sugar().Fatalw("Failed to connect to postgres ABI store", zap.Error(err))
			}
			cs = postgresContractStore.NewPostgresContractStore(db, l)
		} else {
			cs = clickhouseContractStore.NewClickhouseContractStore(client, qc, l)
		}

		writers := make([]storage.DecodedLogWriter, 0)
		fileWriter, err := parquetWriter.NewParquetWriter(cfg.OutputDir, batchSize, cfg.JsonOutput, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to create file writer", zap.Error(err))
		}
		writers = append(writers, fileWriter)

		if cfg.InsertDecodedLogs {
			writers = append(writers, clickhouseWriter.NewClickhouseWriter(client, qc, batchSize, l))
		}

		f := fetcher.NewFetcher(client, qc, l)

		p := pipeline.NewPipeline(f, cs, writers, &pipeline.PipelineConfig{
			StartBlock: cfg.BlockRange.StartBlock,
			EndBlock:   cfg.BlockRange.EndBlock,
			PageSize:   pageSize,
			Workers:    cfg.Workers,
			Decoder: decoder.Config{
				Heuristics: !cfg.DisableHeuristics,
				StrictUTF8: cfg.StrictUtf8,
			},
		}, sink, progress, l)

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()
		done := make(chan bool)
		go shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			cancel()
			if cfg.PrometheusConfig.Enabled {
				metricsShutdown <- true
			}
		}, time.Second*5, l)

		summary, err := p.Run(ctx)
		progress.Finish()

		reportSummary(l, summary)

		if err != nil {
			l.Sugar().Errorw("Run failed", zap.Error(err))
			os.Exit(1)
		}
	},
}

func reportSummary(l *zap.Logger, summary *pipeline.RunSummary) {
	l.Sugar().Infow("Run summary",
		zap.Uint64("totalProcessed", summary.TotalProcessed),
		zap.Uint64("totalDecoded", summary.TotalDecoded),
		zap.Uint64("totalSkipped", summary.TotalSkipped),
		zap.Uint64("uniqueBlocks", summary.UniqueBlocks),
	)
	for _, ws := range summary.WriterStats {
		l.Sugar().Infow("Writer statistics",
			zap.String("writer", ws.Name),
			zap.Uint64("written", ws.TotalWritten),
			zap.Uint64("failed", ws.TotalFailed),
		)
	}
}
