package cmd

import (
	"fmt"

	"github.com/chainscope/logdecoder/pkg/pipeline"
	"github.com/schollz/progressbar/v3"
)

// progressDisplay adapts the terminal progress widget to the pipeline's
// observer interface. It tracks unique blocks against the requested
// range and folds the counters into the bar description.
type progressDisplay struct {
	bar        *progressbar.ProgressBar
	totalBlock int64
}

func newProgressDisplay(startBlock, endBlock uint64) *progressDisplay {
	total := int64(endBlock-startBlock) + 1
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("Starting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
	return &progressDisplay{
		bar:        bar,
		totalBlock: total,
	}
}

func (pd *progressDisplay) SetStatus(status string) {
	pd.bar.Describe(status)
}

func (pd *progressDisplay) UpdateProgress(p pipeline.Progress) {
	pd.bar.Describe(fmt.Sprintf("page %d | processed %d | decoded %d | workers %d",
		p.PageNumber, p.TotalProcessed, p.TotalDecoded, p.ActiveWorkers,
	))
	_ = pd.bar.Set64(int64(p.UniqueBlocks))
}

func (pd *progressDisplay) Finish() {
	_ = pd.bar.Finish()
}
