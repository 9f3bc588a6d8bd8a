package imagecache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/Amund211/imagecache/internal/domain"
	"github.com/Amund211/imagecache/internal/logging"
	"github.com/Amund211/imagecache/internal/reporting"
	"github.com/Amund211/imagecache/internal/serialqueue"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type loadTask struct {
	id     string
	ctx    context.Context
	ref    domain.ImageReference
	key    string
	format domain.ImageFormat

	// Guarded by Core.mu
	listeners []func(domain.LoadResult)
	handle    *serialqueue.Task
}

func newLoadTask(ctx context.Context, ref domain.ImageReference, format domain.ImageFormat, onComplete func(domain.LoadResult)) *loadTask {
	return &loadTask{
		id:        uuid.NewString(),
		ctx:       ctx,
		ref:       ref,
		key:       domain.Key(ref),
		format:    format,
		listeners: []func(domain.LoadResult){onComplete},
	}
}

// execute is the task body. It only runs on the worker, and never for a cancelled task.
func (c *Core) execute(task *loadTask) {
	source := domain.Source(task.ref)
	ctx := logging.AddToContext(task.ctx, logging.FromContextOr(task.ctx, c.logger))
	ctx = logging.AddImageToContext(ctx, task.key, source, task.id)
	ctx = reporting.AddTagsToContext(ctx, map[string]string{"source": source})
	ctx = reporting.AddExtrasToContext(ctx, map[string]string{"imageKey": task.key, "loadID": task.id})
	start := time.Now()
	ctx = reporting.SetStartedAtInContext(ctx, start)

	img, err := c.load(ctx, task, source)

	outcome := outcomeOf(err)
	attributes := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	)
	metrics.loadCount.Add(ctx, 1, attributes)
	metrics.loadDuration.Record(ctx, time.Since(start).Seconds(), attributes)

	listeners := c.releaseInFlight(task)

	logging.FromContext(ctx).InfoContext(
		ctx,
		"Image load finished",
		slog.String("outcome", outcome),
		slog.Int("listeners", len(listeners)),
		slog.String("duration", time.Since(start).String()),
	)

	result := domain.LoadResult{
		Image:     img,
		Completed: true,
		Err:       err,
	}
	c.completion.Schedule(func() {
		for _, listener := range listeners {
			listener(result)
		}
	})
}

func (c *Core) load(ctx context.Context, task *loadTask, source string) (image.Image, error) {
	if img, ok := c.lookup(task.key); ok {
		metrics.lookupCount.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "hit")))
		logging.FromContext(ctx).InfoContext(ctx, "Getting image", "cache", "hit")
		return img, nil
	}
	metrics.lookupCount.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "miss")))
	logging.FromContext(ctx).InfoContext(ctx, "Getting image", "cache", "miss")

	switch ref := task.ref.(type) {
	case domain.LocalFile:
		return c.loadLocal(ctx, task, ref)
	case domain.RemoteURL:
		return c.loadRemote(ctx, task, ref)
	default:
		panic(fmt.Sprintf("unknown image reference type %T (%s)", task.ref, source))
	}
}

func (c *Core) loadLocal(ctx context.Context, task *loadTask, ref domain.LocalFile) (image.Image, error) {
	logger := logging.FromContext(ctx)

	resourcePath, err := c.local.Resolve(domain.LocationPath(ref), task.format.Extension())
	if err != nil {
		err := fmt.Errorf("%w: %w", domain.ErrPath, err)
		// NOTE: A missing resource is a caller error, so it is logged but not reported
		logger.ErrorContext(ctx, "Failed to resolve local image", "error", err.Error())
		return nil, err
	}

	data, err := c.local.Fetch(resourcePath)
	if err != nil {
		err := fmt.Errorf("%w: failed to read %s: %w", domain.ErrLoad, resourcePath, err)
		logger.ErrorContext(ctx, "Failed to read local image", "error", err.Error())
		reporting.Report(ctx, err)
		return nil, err
	}

	return c.decodeAndStore(ctx, task, data)
}

func (c *Core) loadRemote(ctx context.Context, task *loadTask, ref domain.RemoteURL) (image.Image, error) {
	logger := logging.FromContext(ctx)

	// The load is not bound to the caller's lifetime, the HTTP client timeout applies instead
	data, err := c.remote.Fetch(context.WithoutCancel(ctx), ref.URL)
	if err != nil {
		err := fmt.Errorf("%w: %w", domain.ErrLoad, err)
		logger.ErrorContext(ctx, "Failed to fetch remote image", "error", err.Error())
		reporting.Report(ctx, err)
		return nil, err
	}

	return c.decodeAndStore(ctx, task, data)
}

func (c *Core) decodeAndStore(ctx context.Context, task *loadTask, data []byte) (image.Image, error) {
	img, err := c.decoder.Decode(data)
	if err != nil {
		err := fmt.Errorf("%w: %w", domain.ErrLoad, err)
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to decode image", "error", err.Error(), "bytes", len(data))
		reporting.Report(ctx, err)
		return nil, err
	}

	c.store(task.key, img)
	return img, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrPath):
		return "path_error"
	default:
		return "load_error"
	}
}
