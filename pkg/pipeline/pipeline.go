// Package pipeline drives the streaming decode run: it pages log rows
// out of the source, resolves ABIs once per page, fans decoding out
// across a worker pool grouped by contract, and fans the decoded records
// into the writers through a single emission lock.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chainscope/logdecoder/internal/metrics"
	"github.com/chainscope/logdecoder/internal/metrics/metricsTypes"
	"github.com/chainscope/logdecoder/pkg/abi"
	"github.com/chainscope/logdecoder/pkg/contractStore"
	"github.com/chainscope/logdecoder/pkg/decoder"
	"github.com/chainscope/logdecoder/pkg/storage"
	"github.com/chainscope/logdecoder/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// LogSource pages raw rows out of the underlying store in
// (blockNumber, logIndex) order. A page shorter than pageSize ends the
// iteration.
type LogSource interface {
	FetchPage(ctx context.Context, startBlock, endBlock uint64, pageSize, offset int) ([]*types.LogRow, error)
}

// Progress is a snapshot handed to the observer after each contract group
// and at the end of each page.
type Progress struct {
	PageNumber     int
	TotalProcessed uint64
	TotalDecoded   uint64
	UniqueBlocks   uint64
	ActiveWorkers  int
}

// ProgressObserver receives status and counter updates; implementations
// must be cheap and safe for concurrent use: UpdateProgress is called
// from the worker goroutines while a page is decoding, with no pipeline
// lock held.
type ProgressObserver interface {
	SetStatus(status string)
	UpdateProgress(p Progress)
}

type noopObserver struct{}

func (noopObserver) SetStatus(string)        {}
func (noopObserver) UpdateProgress(Progress) {}

type PipelineConfig struct {
	StartBlock uint64
	EndBlock   uint64
	PageSize   int
	Workers    int
	Decoder    decoder.Config
}

type Pipeline struct {
	Source        LogSource
	ContractStore contractStore.ContractStore
	Writers       []storage.DecodedLogWriter
	Logger        *zap.Logger

	config      *PipelineConfig
	metricsSink *metrics.MetricsSink
	progress    ProgressObserver

	totalProcessed atomic.Uint64
	totalDecoded   atomic.Uint64
	totalSkipped   atomic.Uint64

	blocksMu        sync.Mutex
	processedBlocks map[uint64]struct{}

	// writeMu serialises one record's emission across all writers.
	writeMu sync.Mutex
}

func NewPipeline(
	source LogSource,
	cs contractStore.ContractStore,
	writers []storage.DecodedLogWriter,
	cfg *PipelineConfig,
	ms *metrics.MetricsSink,
	observer ProgressObserver,
	l *zap.Logger,
) *Pipeline {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Pipeline{
		Source:          source,
		ContractStore:   cs,
		Writers:         writers,
		Logger:          l,
		config:          cfg,
		metricsSink:     ms,
		progress:        observer,
		processedBlocks: make(map[uint64]struct{}),
	}
}

// RunSummary is the end-of-run report.
type RunSummary struct {
	TotalProcessed uint64
	TotalDecoded   uint64
	TotalSkipped   uint64
	UniqueBlocks   uint64
	WriterStats    []WriterStats
}

type WriterStats struct {
	Name         string
	TotalWritten uint64
	TotalFailed  uint64
}

// Run streams the configured block range to completion. Source failures
// abort the run after draining and flushing; everything else is lossy by
// design and only shows up in the counters.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	p.progress.SetStatus("Streaming & decoding logs")

	offset := 0
	pageNumber := 1
	for {
		page, err := p.Source.FetchPage(ctx, p.config.StartBlock, p.config.EndBlock, p.config.PageSize, offset)
		if err != nil {
			p.Logger.Sugar().Errorw("Failed to fetch log page, aborting run",
				zap.Int("pageNumber", pageNumber),
				zap.Error(err),
			)
			p.flushWriters()
			return p.summary(), errors.Wrap(err, "source failure")
		}

		if len(page) > 0 {
			p.processPage(ctx, pageNumber, page)
		}

		if len(page) < p.config.PageSize {
			break
		}
		offset += p.config.PageSize
		pageNumber++
	}

	p.progress.SetStatus("Streaming completed")
	p.flushWriters()

	summary := p.summary()
	p.Logger.Sugar().Infow("Streaming log processing completed",
		zap.Uint64("totalProcessed", summary.TotalProcessed),
		zap.Uint64("totalDecoded", summary.TotalDecoded),
		zap.Uint64("totalSkipped", summary.TotalSkipped),
		zap.Uint64("uniqueBlocks", summary.UniqueBlocks),
	)
	return summary, nil
}

// processPage runs one page through resolve → group → dispatch → drain.
func (p *Pipeline) processPage(ctx context.Context, pageNumber int, page []*types.LogRow) {
	pageStart := time.Now()
	p.progress.SetStatus("Decoding")

	p.trackBlocks(page)

	p.Logger.Sugar().Infow("Processing page",
		zap.Int("pageNumber", pageNumber),
		zap.Int("rows", len(page)),
	)

	groups, order := groupByContract(page)

	abis, err := p.resolveAbisForPage(ctx, order)
	if err != nil {
		// The page completes with zero decoded records; the range keeps
		// streaming.
		p.Logger.Sugar().Errorw("Failed to resolve ABIs for page, skipping page",
			zap.Int("pageNumber", pageNumber),
			zap.Error(err),
		)
		p.totalProcessed.Add(uint64(len(page)))
		p.totalSkipped.Add(uint64(len(page)))
		return
	}

	workerCount := p.config.Workers
	if len(order) < workerCount {
		workerCount = len(order)
	}

	var (
		cursorMu sync.Mutex
		cursor   int
		active   atomic.Int64
		wg       sync.WaitGroup
	)

	nextGroup := func() (string, bool) {
		cursorMu.Lock()
		defer cursorMu.Unlock()
		if cursor >= len(order) {
			return "", false
		}
		address := order[cursor]
		cursor++
		return address, true
	}

	for workerId := 0; workerId < workerCount; workerId++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				address, ok := nextGroup()
				if !ok {
					return
				}
				active.Add(1)
				p.processContractGroup(address, groups[address], abis)
				active.Add(-1)

				p.progress.UpdateProgress(Progress{
					PageNumber:     pageNumber,
					TotalProcessed: p.totalProcessed.Load(),
					TotalDecoded:   p.totalDecoded.Load(),
					UniqueBlocks:   p.uniqueBlockCount(),
					ActiveWorkers:  int(active.Load()),
				})
			}
		}()
	}
	wg.Wait()

	pageProcessed := p.totalProcessed.Load()
	pageDecoded := p.totalDecoded.Load()
	_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_PageProcessDuration, time.Since(pageStart), nil)
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_BlocksProcessed, float64(p.uniqueBlockCount()), nil)

	p.progress.UpdateProgress(Progress{
		PageNumber:     pageNumber,
		TotalProcessed: pageProcessed,
		TotalDecoded:   pageDecoded,
		UniqueBlocks:   p.uniqueBlockCount(),
	})

	p.Logger.Sugar().Infow("Completed page",
		zap.Int("pageNumber", pageNumber),
		zap.Uint64("totalProcessed", pageProcessed),
		zap.Uint64("totalDecoded", pageDecoded),
		zap.Duration("duration", time.Since(pageStart)),
	)
}

// processContractGroup decodes one contract's rows end-to-end on a
// single worker. Panics are contained to the group.
func (p *Pipeline) processContractGroup(address string, rows []*types.LogRow, abis map[string]*types.ContractAbiRecord) {
	defer func() {
		if r := recover(); r != nil {
			p.Logger.Sugar().Errorw("Recovered from panic while processing contract group",
				zap.String("contractAddress", address),
				zap.Any("panic", r),
			)
		}
	}()

	record, found := abis[contractStore.NormalizeAddress(address)]
	if !found {
		p.Logger.Sugar().Debugw("No ABI found for contract, skipping group",
			zap.String("contractAddress", address),
			zap.Int("rows", len(rows)),
		)
		p.markGroupSkipped(rows)
		return
	}

	parsedAbi, err := abi.ParseString(record.Abi)
	if err != nil {
		p.Logger.Sugar().Warnw("Failed to parse ABI for contract, skipping group",
			zap.String("contractAddress", address),
			zap.Int("rows", len(rows)),
			zap.Error(err),
		)
		p.markGroupSkipped(rows)
		return
	}
	if len(parsedAbi.EventsBySignature) < len(parsedAbi.Events) {
		p.Logger.Sugar().Warnw("ABI declares duplicate event signatures, the latest entry wins",
			zap.String("contractAddress", address),
		)
	}

	d := decoder.NewDecoder(parsedAbi, p.config.Decoder)

	for _, row := range rows {
		p.totalProcessed.Add(1)
		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_LogsProcessed, nil, 1)

		if len(row.Topics) == 0 {
			p.totalSkipped.Add(1)
			_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_LogsSkipped, nil, 1)
			continue
		}

		entry := types.LogEntry{
			Address: row.Address,
			Topics:  nonEmptyTopics(row.Topics),
			Data:    row.Data,
		}

		decodedLog, err := d.DecodeLog(entry)
		if err != nil {
			p.Logger.Sugar().Debugw("Failed to decode log",
				zap.String("transactionHash", row.TransactionHash),
				zap.Uint64("blockNumber", row.BlockNumber),
				zap.Uint64("logIndex", row.LogIndex),
				zap.Error(err),
			)
			p.totalSkipped.Add(1)
			_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_LogsSkipped, nil, 1)
			continue
		}

		record, err := buildRecord(row, decodedLog)
		if err != nil {
			p.Logger.Sugar().Debugw("Failed to serialise decoded log",
				zap.String("transactionHash", row.TransactionHash),
				zap.Uint64("logIndex", row.LogIndex),
				zap.Error(err),
			)
			p.totalSkipped.Add(1)
			continue
		}

		p.emit(record)
		p.totalDecoded.Add(1)
		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_LogsDecoded, nil, 1)
	}
}

// emit hands one record to every writer under the single emission lock.
func (p *Pipeline) emit(record *types.DecodedRecord) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	for _, w := range p.Writers {
		w.Write(record)
	}
}

func (p *Pipeline) markGroupSkipped(rows []*types.LogRow) {
	p.totalProcessed.Add(uint64(len(rows)))
	p.totalSkipped.Add(uint64(len(rows)))
	_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_GroupsSkipped, nil, 1)
	_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_LogsSkipped, nil, float64(len(rows)))
}

func (p *Pipeline) resolveAbisForPage(ctx context.Context, addresses []string) (map[string]*types.ContractAbiRecord, error) {
	resolveStart := time.Now()
	abis, err := p.ContractStore.ResolveAbis(ctx, addresses)
	if err != nil {
		return nil, err
	}
	_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_AbiResolveDuration, time.Since(resolveStart), nil)
	p.Logger.Sugar().Debugw("Resolved ABIs for page",
		zap.Int("contracts", len(addresses)),
		zap.Int("resolved", len(abis)),
	)
	return abis, nil
}

func (p *Pipeline) trackBlocks(page []*types.LogRow) {
	p.blocksMu.Lock()
	defer p.blocksMu.Unlock()
	maxBlock := uint64(0)
	for _, row := range page {
		p.processedBlocks[row.BlockNumber] = struct{}{}
		if row.BlockNumber > maxBlock {
			maxBlock = row.BlockNumber
		}
	}
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_CurrentBlockHeight, float64(maxBlock), nil)
}

func (p *Pipeline) uniqueBlockCount() uint64 {
	p.blocksMu.Lock()
	defer p.blocksMu.Unlock()
	return uint64(len(p.processedBlocks))
}

func (p *Pipeline) flushWriters() {
	for _, w := range p.Writers {
		if err := w.Flush(); err != nil {
			p.Logger.Sugar().Errorw("Failed to flush writer",
				zap.String("writer", w.Name()),
				zap.Error(err),
			)
		}
		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_RecordsWritten,
			[]metricsTypes.MetricsLabel{{Name: "writer", Value: w.Name()}},
			float64(w.TotalWritten()),
		)
		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_RecordsFailed,
			[]metricsTypes.MetricsLabel{{Name: "writer", Value: w.Name()}},
			float64(w.TotalFailed()),
		)
	}
}

func (p *Pipeline) summary() *RunSummary {
	stats := make([]WriterStats, 0, len(p.Writers))
	for _, w := range p.Writers {
		stats = append(stats, WriterStats{
			Name:         w.Name(),
			TotalWritten: w.TotalWritten(),
			TotalFailed:  w.TotalFailed(),
		})
	}
	return &RunSummary{
		TotalProcessed: p.totalProcessed.Load(),
		TotalDecoded:   p.totalDecoded.Load(),
		TotalSkipped:   p.totalSkipped.Load(),
		UniqueBlocks:   p.uniqueBlockCount(),
		WriterStats:    stats,
	}
}

// groupByContract splits a page into per-address groups, keeping rows in
// input order within each group and groups in first-seen order.
func groupByContract(page []*types.LogRow) (map[string][]*types.LogRow, []string) {
	groups := make(map[string][]*types.LogRow)
	order := make([]string, 0)
	for _, row := range page {
		if _, seen := groups[row.Address]; !seen {
			order = append(order, row.Address)
		}
		groups[row.Address] = append(groups[row.Address], row)
	}
	return groups, order
}

func nonEmptyTopics(topics []string) []string {
	filtered := make([]string, 0, len(topics))
	for _, t := range topics {
		if t != "" {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// buildRecord carries the source row's identity onto the decoded output
// and serialises the parameters as an ordered JSON object.
func buildRecord(row *types.LogRow, decodedLog *decoder.DecodedLog) (*types.DecodedRecord, error) {
	args, err := serializeArgs(decodedLog.Params)
	if err != nil {
		return nil, err
	}
	return &types.DecodedRecord{
		TransactionHash: row.TransactionHash,
		BlockNumber:     row.BlockNumber,
		LogIndex:        row.LogIndex,
		ContractAddress: row.Address,
		EventName:       decodedLog.EventName,
		EventSignature:  decodedLog.EventSignature,
		Signature:       decodedLog.Signature,
		Args:            args,
	}, nil
}

// serializeArgs builds the args JSON object with one key per parameter
// in declared order. Unnamed parameters key as param<i>; duplicate names
// get a positional suffix instead of silently collapsing.
func serializeArgs(params []decoder.DecodedParam) (string, error) {
	om := newOrderedArgs()
	for i, param := range params {
		key := param.Name
		if key == "" {
			key = fmt.Sprintf("param%d", i)
		}
		if _, exists := om.Get(key); exists {
			key = fmt.Sprintf("%s_%d", key, i)
		}
		om.Set(key, param.Value)
	}
	out, err := json.Marshal(om)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
