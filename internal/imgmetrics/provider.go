package imgmetrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InstallStdoutProvider installs an OTel MeterProvider that periodically
// writes collected metrics as JSON to stdout, the same shape gcsfuse's
// test helpers build with a ManualReader but driven by a real
// PeriodicReader for --print-stats runs. It returns a shutdown func the
// caller must invoke before exit so the final collection gets flushed.
func InstallStdoutProvider() (shutdown func(context.Context) error, err error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}
