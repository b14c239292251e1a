package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_LogsProcessed  = "logsProcessed"
	Metric_Incr_LogsDecoded    = "logsDecoded"
	Metric_Incr_LogsSkipped    = "logsSkipped"
	Metric_Incr_GroupsSkipped  = "contractGroupsSkipped"
	Metric_Incr_RecordsWritten = "recordsWritten"
	Metric_Incr_RecordsFailed  = "recordsFailed"

	Metric_Gauge_CurrentBlockHeight = "currentBlockHeight"
	Metric_Gauge_BlocksProcessed    = "blocksProcessed"

	Metric_Timing_PageProcessDuration = "page.process.duration"
	Metric_Timing_AbiResolveDuration  = "abi.resolve.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_LogsProcessed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_LogsDecoded,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_LogsSkipped,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_GroupsSkipped,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_RecordsWritten,
			Labels: []string{"writer"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_RecordsFailed,
			Labels: []string{"writer"},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_CurrentBlockHeight,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_BlocksProcessed,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_PageProcessDuration,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_AbiResolveDuration,
			Labels: []string{},
		},
	},
}
