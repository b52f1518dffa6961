package store

import (
	"time"

	"github.com/roach88/speller/internal/monitor"
)

func monitorSource() monitor.Source { return monitor.NewChannelSource(0) }

func sampleAt(v float64, at time.Time) monitor.Sample {
	return monitor.Sample{Value: v, At: at}
}
