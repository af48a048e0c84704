// Package imgmetrics records OpenTelemetry counters and histograms for
// the read path and cache of an image, the same shape gcsfuse's
// common package uses for its own cache-hit telemetry.
package imgmetrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// CacheHitKey annotates a read with whether it hit the mapped
	// cache, mirroring gcsfuse's own CacheHitKey convention.
	CacheHitKey = "cache_hit"

	// ASIDKey annotates an operation with a string form of the ASID it
	// ran against, for per-address-space breakdowns.
	ASIDKey = "asid"
)

var (
	readMeter  = otel.Meter("ptimage/read")
	cacheMeter = otel.Meter("ptimage/cache")

	cacheHitAttributeSet sync.Map
)

func getCacheHitAttributeSet(hit bool) metric.MeasurementOption {
	key := "false"
	if hit {
		key = "true"
	}
	if v, ok := cacheHitAttributeSet.Load(key); ok {
		return v.(metric.MeasurementOption)
	}
	opt := metric.WithAttributeSet(attribute.NewSet(attribute.String(CacheHitKey, key)))
	v, _ := cacheHitAttributeSet.LoadOrStore(key, opt)
	return v.(metric.MeasurementOption)
}

// Recorder is the handle a reader uses to emit telemetry for one
// image's read path. It is safe to share across images; its
// measurements carry only the cache_hit attribute, so they are not
// broken down per image.
type Recorder struct {
	readCount      metric.Int64Counter
	readBytesCount metric.Int64Counter
	readLatency    metric.Float64Histogram
	pruneCount     metric.Int64Counter
	pruneEvictions metric.Int64Counter
}

// NewRecorder builds a Recorder backed by the global OTel meter
// provider. Callers that never install a provider (the common case
// outside the ptdump --print-stats path) still get a working, no-op
// Recorder, since the default OTel SDK is a no-op.
func NewRecorder() (*Recorder, error) {
	readCount, err1 := readMeter.Int64Counter("ptimage/read_count",
		metric.WithDescription("The cumulative number of Image.Read calls, by cache hit or miss."))
	readBytesCount, err2 := readMeter.Int64Counter("ptimage/read_bytes_count",
		metric.WithDescription("The cumulative number of bytes returned by Image.Read."),
		metric.WithUnit("By"))
	readLatency, err3 := readMeter.Float64Histogram("ptimage/read_latency",
		metric.WithDescription("The distribution of Image.Read latencies."),
		metric.WithUnit("us"))
	pruneCount, err4 := cacheMeter.Int64Counter("ptimage/prune_count",
		metric.WithDescription("The cumulative number of cache prune passes."))
	pruneEvictions, err5 := cacheMeter.Int64Counter("ptimage/prune_evictions",
		metric.WithDescription("The cumulative number of entries unmapped by prune."))

	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return nil, err
	}

	return &Recorder{
		readCount:      readCount,
		readBytesCount: readBytesCount,
		readLatency:    readLatency,
		pruneCount:     pruneCount,
		pruneEvictions: pruneEvictions,
	}, nil
}

// RecordRead reports one Image.Read call: whether it succeeded (Image
// reports a read served by an already-mapped entry, a newly mapped
// entry, or the read-memory callback as a hit), how many bytes it
// returned, and how long it took.
func (r *Recorder) RecordRead(ctx context.Context, hit bool, n int, latency time.Duration) {
	if r == nil {
		return
	}
	opt := getCacheHitAttributeSet(hit)
	r.readCount.Add(ctx, 1, opt)
	r.readBytesCount.Add(ctx, int64(n), opt)
	r.readLatency.Record(ctx, float64(latency.Microseconds()), opt)
}

// RecordPrune reports one prune pass and how many entries it unmapped.
func (r *Recorder) RecordPrune(ctx context.Context, evicted int) {
	if r == nil {
		return
	}
	r.pruneCount.Add(ctx, 1)
	r.pruneEvictions.Add(ctx, int64(evicted))
}
