// Package imagecache loads images from the bundle or over HTTP and keeps the decoded
// results in memory.
//
// All loads run one at a time on a single worker, in submission order. At most one
// load per key is in flight: while a key is in flight, further requests for it are
// dropped without a callback (or, with SubscribeDuplicates, attached to the running
// load). Results are delivered on a separate serial completion context.
package imagecache

import (
	"context"
	"image"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Amund211/imagecache/internal/adapters/cache"
	"github.com/Amund211/imagecache/internal/domain"
	"github.com/Amund211/imagecache/internal/logging"
	"github.com/Amund211/imagecache/internal/serialqueue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type LocalFetcher interface {
	// Resolve returns the bundle path of resource with the given extension
	Resolve(resource string, extension string) (string, error)
	Fetch(resourcePath string) ([]byte, error)
}

type RemoteFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// CompletionContext runs scheduled functions one at a time, asynchronously to the caller.
type CompletionContext interface {
	Schedule(fn func())
}

type DuplicatePolicy int

const (
	// DropDuplicates silently ignores a request for a key that is already in flight.
	// A batch containing such a key stops submitting at that key and never reports completion.
	DropDuplicates DuplicatePolicy = iota
	// SubscribeDuplicates delivers the running load's result to the duplicate request as well.
	SubscribeDuplicates
)

type Core struct {
	local   LocalFetcher
	remote  RemoteFetcher
	decoder Decoder

	decodedImages cache.Store[image.Image]

	mu       sync.Mutex
	inFlight map[string]*loadTask

	worker          *serialqueue.Queue
	completion      CompletionContext
	ownedCompletion *serialqueue.Queue

	duplicatePolicy DuplicatePolicy
	logger          *slog.Logger
}

type Option func(*Core)

func WithStore(store cache.Store[image.Image]) Option {
	return func(c *Core) {
		c.decodedImages = store
	}
}

func WithCompletionContext(completion CompletionContext) Option {
	return func(c *Core) {
		c.completion = completion
	}
}

func WithDuplicatePolicy(policy DuplicatePolicy) Option {
	return func(c *Core) {
		c.duplicatePolicy = policy
	}
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// New builds the cache. Build one per process and share it; call Close on shutdown.
func New(local LocalFetcher, remote RemoteFetcher, decoder Decoder, opts ...Option) *Core {
	c := &Core{
		local:           local,
		remote:          remote,
		decoder:         decoder,
		inFlight:        make(map[string]*loadTask),
		duplicatePolicy: DropDuplicates,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.decodedImages == nil {
		c.decodedImages = cache.NewBasicStore[image.Image]()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("component", "imagecache"))
	}
	if c.completion == nil {
		c.ownedCompletion = serialqueue.New("image-completion")
		c.completion = c.ownedCompletion
	}
	c.worker = serialqueue.New("image-load")

	return c
}

// LoadImage loads ref and calls onComplete on the completion context with the result.
//
// If a load for the same key is already in flight, the call is dropped and onComplete is
// never called (unless the cache was built with SubscribeDuplicates). A RemoteURL that
// does not pass domain.ParseRemoteURL is a programming error and panics.
func (c *Core) LoadImage(ctx context.Context, ref domain.ImageReference, format domain.ImageFormat, onComplete func(domain.LoadResult)) {
	c.submit(ctx, ref, format, onComplete)
}

// LoadImages loads every ref and calls onAllComplete(true) once all of them have completed,
// successfully or not.
//
// With DropDuplicates, the first ref that is already in flight stops the batch: the refs
// before it stay submitted, the rest are skipped and onAllComplete is never called.
func (c *Core) LoadImages(ctx context.Context, refs []domain.ImageReference, format domain.ImageFormat, onAllComplete func(bool)) {
	if onAllComplete == nil {
		onAllComplete = func(bool) {}
	}

	if len(refs) == 0 {
		c.completion.Schedule(func() {
			onAllComplete(true)
		})
		return
	}

	total := int64(len(refs))
	var loaded atomic.Int64
	onComplete := func(result domain.LoadResult) {
		if !result.Completed {
			return
		}
		if loaded.Add(1) == total {
			onAllComplete(true)
		}
	}

	for i, ref := range refs {
		if !c.submit(ctx, ref, format, onComplete) {
			c.loggerFor(ctx).WarnContext(
				ctx,
				"Aborting image batch, request was dropped",
				slog.String("imageKey", domain.Key(ref)),
				slog.Int("submitted", i),
				slog.Int("total", len(refs)),
			)
			return
		}
	}
}

// ClearCache drops every decoded image. Loads in flight are not affected.
func (c *Core) ClearCache() {
	c.decodedImages.Clear()
	c.logger.Info("Cleared image cache")
}

// Cancel cancels the load for key if it has not started yet. Its callback is never called.
func (c *Core) Cancel(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.inFlight[key]
	if !ok || !task.handle.Cancel() {
		return false
	}
	delete(c.inFlight, key)

	metrics.cancelledCount.Add(context.Background(), 1)
	return true
}

// CancelAllPending cancels every load that has not started yet and returns how many were cancelled.
func (c *Core) CancelAllPending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cancelled := c.worker.CancelAll()
	for key, task := range c.inFlight {
		if task.handle.State() == serialqueue.Cancelled {
			delete(c.inFlight, key)
		}
	}

	if len(cancelled) > 0 {
		metrics.cancelledCount.Add(context.Background(), int64(len(cancelled)))
		c.logger.Info("Cancelled pending image loads", slog.Int("count", len(cancelled)))
	}
	return len(cancelled)
}

func (c *Core) IsInFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.inFlight[key]
	return ok
}

func (c *Core) CachedImage(key string) (image.Image, bool) {
	return c.lookup(key)
}

// Close waits for queued loads and their callbacks, then stops the worker.
// Loads requested after Close are dropped.
func (c *Core) Close() {
	c.worker.Close()
	if c.ownedCompletion != nil {
		c.ownedCompletion.Close()
	}
}

func (c *Core) submit(ctx context.Context, ref domain.ImageReference, format domain.ImageFormat, onComplete func(domain.LoadResult)) bool {
	if remoteRef, ok := ref.(domain.RemoteURL); ok {
		if _, err := domain.ParseImageURL(remoteRef.URL); err != nil {
			panic("imagecache: " + err.Error())
		}
	}

	key := domain.Key(ref)
	source := domain.Source(ref)
	if onComplete == nil {
		onComplete = func(domain.LoadResult) {}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.inFlight[key]; ok {
		if c.duplicatePolicy == SubscribeDuplicates {
			existing.listeners = append(existing.listeners, onComplete)
			return true
		}

		metrics.droppedDuplicateCount.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
		c.loggerFor(ctx).InfoContext(ctx, "Dropping image request, key already in flight", slog.String("imageKey", key))
		return false
	}

	task := newLoadTask(ctx, ref, format, onComplete)
	c.inFlight[key] = task
	task.handle = c.worker.Submit(func() {
		c.execute(task)
	})

	if task.handle.State() == serialqueue.Cancelled {
		// The worker is closed
		delete(c.inFlight, key)
		c.loggerFor(ctx).WarnContext(ctx, "Dropping image request, cache is closed", slog.String("imageKey", key))
		return false
	}

	return true
}

func (c *Core) lookup(key string) (image.Image, bool) {
	return c.decodedImages.Get(key)
}

func (c *Core) store(key string, img image.Image) {
	c.decodedImages.Set(key, img)
}

// releaseInFlight removes task from the registry and returns everyone waiting for its result.
func (c *Core) releaseInFlight(task *loadTask) []func(domain.LoadResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.inFlight[task.key]; ok && current == task {
		delete(c.inFlight, task.key)
	}

	listeners := task.listeners
	task.listeners = nil
	return listeners
}

func (c *Core) loggerFor(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, c.logger)
}
