package imgmetrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallStdoutProviderRecordsAndShutsDown(t *testing.T) {
	shutdown, err := InstallStdoutProvider()
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	r, err := NewRecorder()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		r.RecordRead(context.Background(), true, 16, time.Microsecond)
		r.RecordPrune(context.Background(), 1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, shutdown(ctx))
}
