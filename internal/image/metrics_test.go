package image

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	reads   int
	hits    int
	prunes  int
	evicted int
}

func (f *fakeRecorder) RecordRead(ctx context.Context, hit bool, n int, latency time.Duration) {
	f.reads++
	if hit {
		f.hits++
	}
}

func (f *fakeRecorder) RecordPrune(ctx context.Context, evicted int) {
	f.prunes++
	f.evicted += evicted
}

func TestReadReportsHitAndMissToRecorder(t *testing.T) {
	img := Alloc("")
	defer img.Fini()

	rec := &fakeRecorder{}
	img.SetMetricsRecorder(rec)

	sec := newTestSection(t, "a", 0x100, 0)
	require.NoError(t, img.Add(sec, wildcard(), 0x1000))

	buf := make([]byte, 1)
	_, err := img.Read(buf, wildcard(), 0x1000)
	require.NoError(t, err)
	_, err = img.Read(buf, wildcard(), 0x5000)
	assert.Error(t, err)

	assert.Equal(t, 2, rec.reads)
	assert.Equal(t, 1, rec.hits)
}

func TestPruneReportsEvictionsToRecorder(t *testing.T) {
	img := Alloc("")
	defer img.Fini()
	img.SetCacheSize(1)

	rec := &fakeRecorder{}
	img.SetMetricsRecorder(rec)

	secA := newTestSection(t, "a", 0x10, 0)
	secB := newTestSection(t, "b", 0x10, 0)
	require.NoError(t, img.Add(secA, wildcard(), 0x1000))
	require.NoError(t, img.Add(secB, wildcard(), 0x2000))

	buf := make([]byte, 1)
	_, err := img.Read(buf, wildcard(), 0x1000)
	require.NoError(t, err)
	_, err = img.Read(buf, wildcard(), 0x2000)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.prunes)
	assert.Equal(t, 1, rec.evicted)
	assert.LessOrEqual(t, img.MappedCount(), uint32(1))
}

func TestNilMetricsRecorderIsSafe(t *testing.T) {
	img := Alloc("")
	defer img.Fini()

	sec := newTestSection(t, "a", 0x10, 0)
	require.NoError(t, img.Add(sec, wildcard(), 0x1000))

	buf := make([]byte, 1)
	assert.NotPanics(t, func() {
		_, _ = img.Read(buf, wildcard(), 0x1000)
	})
}
