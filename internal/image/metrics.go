package image

import (
	"context"
	"time"
)

// MetricsRecorder receives read-path and cache-admin telemetry from an
// Image. It is satisfied by *imgmetrics.Recorder; this package accepts
// the narrow interface rather than importing the telemetry stack
// directly, so the core stays usable without pulling in OTel.
type MetricsRecorder interface {
	RecordRead(ctx context.Context, hit bool, n int, latency time.Duration)
	RecordPrune(ctx context.Context, evicted int)
}

// SetMetricsRecorder attaches m to img; every subsequent Read and prune
// reports through it. A nil m (the default) disables reporting.
func (img *Image) SetMetricsRecorder(m MetricsRecorder) { img.metrics = m }

func (img *Image) recordRead(hit bool, n int, start time.Time) {
	if img.metrics == nil {
		return
	}
	img.metrics.RecordRead(context.Background(), hit, n, time.Since(start))
}

func (img *Image) recordPrune(evicted uint32) {
	if img.metrics == nil {
		return
	}
	img.metrics.RecordPrune(context.Background(), int(evicted))
}
