// Package metrics periodically samples the device registry and
// resource pools and forwards the readings to a time-series sink.
package metrics

import (
	"context"
	"time"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/manager"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

// Sink receives the sampled readings. *influxdb.Client satisfies it.
type Sink interface {
	WriteDeviceCounts(total, ready, failed int)
	WritePoolUtilisation(pool string, used, capacity uint64)
}

// Source supplies the readings. *manager.Manager satisfies it.
type Source interface {
	GetStats() manager.Stats
	ResourceStats() resource.Stats
}

// Reporter samples a Source into a Sink on a fixed interval.
type Reporter struct {
	source   Source
	sink     Sink
	interval time.Duration
}

// NewReporter creates a reporter. An interval of zero falls back to
// one minute.
func NewReporter(source Source, sink Sink, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reporter{
		source:   source,
		sink:     sink,
		interval: interval,
	}
}

// Run samples until the context is cancelled. One sample is taken
// immediately so short-lived runs still report.
func (r *Reporter) Run(ctx context.Context) {
	r.Sample()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sample()
		}
	}
}

// Sample takes one reading and forwards it.
func (r *Reporter) Sample() {
	stats := r.source.GetStats()
	r.sink.WriteDeviceCounts(
		stats.Total,
		stats.ByState[device.StateReady],
		stats.ByState[device.StateFailed],
	)

	pools := r.source.ResourceStats()
	r.sink.WritePoolUtilisation("irq", uint64(pools.IRQUsed), uint64(pools.IRQCapacity))
	r.sink.WritePoolUtilisation("dma", uint64(pools.DMAUsed), uint64(pools.DMACapacity))
	r.sink.WritePoolUtilisation("mmio", pools.MMIOUsed, pools.MMIOTotal)
}
