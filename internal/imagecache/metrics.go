package imagecache

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type coreMetricsCollection struct {
	lookupCount           metric.Int64Counter
	loadCount             metric.Int64Counter
	droppedDuplicateCount metric.Int64Counter
	cancelledCount        metric.Int64Counter
	loadDuration          metric.Float64Histogram
}

var metrics coreMetricsCollection

func init() {
	const name = "imagecache/core"
	meter := otel.Meter(name)

	lookupCount, err := meter.Int64Counter(
		"imagecache/lookup_count",
		metric.WithDescription("Decoded image store lookups made by load tasks"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create lookup count metric: %w", err))
	}

	loadCount, err := meter.Int64Counter(
		"imagecache/load_count",
		metric.WithDescription("Load tasks run to completion"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create load count metric: %w", err))
	}

	droppedDuplicateCount, err := meter.Int64Counter(
		"imagecache/dropped_duplicate_count",
		metric.WithDescription("Load requests dropped because the key was already in flight"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create dropped duplicate count metric: %w", err))
	}

	cancelledCount, err := meter.Int64Counter(
		"imagecache/cancelled_count",
		metric.WithDescription("Load tasks cancelled before they started"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create cancelled count metric: %w", err))
	}

	loadDuration, err := meter.Float64Histogram(
		"imagecache/load_duration_seconds",
		metric.WithDescription("Time spent by a load task on the worker"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create load duration metric: %w", err))
	}

	metrics = coreMetricsCollection{
		lookupCount:           lookupCount,
		loadCount:             loadCount,
		droppedDuplicateCount: droppedDuplicateCount,
		cancelledCount:        cancelledCount,
		loadDuration:          loadDuration,
	}
}
