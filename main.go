package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Amund211/imagecache/internal/adapters/bundle"
	"github.com/Amund211/imagecache/internal/adapters/cache"
	"github.com/Amund211/imagecache/internal/adapters/decoder"
	"github.com/Amund211/imagecache/internal/adapters/remote"
	"github.com/Amund211/imagecache/internal/config"
	"github.com/Amund211/imagecache/internal/domain"
	"github.com/Amund211/imagecache/internal/imagecache"
	"github.com/Amund211/imagecache/internal/logging"
	"github.com/Amund211/imagecache/internal/ratelimiting"
	"github.com/Amund211/imagecache/internal/reporting"
	"github.com/Amund211/imagecache/internal/telemetry"
	"github.com/google/uuid"
	_ "golang.org/x/crypto/x509roots/fallback"
)

var errLoadFailed = errors.New("one or more images failed to load")

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTraceLogHandler(slog.NewJSONHandler(os.Stderr, nil))).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	formatFlag := flag.String("format", domain.DefaultFormat.String(), "format of local images (png|jpg)")
	waitFlag := flag.Duration("wait", 2*time.Minute, "max time to wait for all images")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-format png|jpg] [-wait duration] REF...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	format, err := domain.ParseImageFormat(*formatFlag)
	if err != nil {
		fail("Invalid format", "error", err.Error())
	}

	refs, err := parseReferences(flag.Args())
	if err != nil {
		fail("Invalid image reference", "error", err.Error())
	}
	if len(refs) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	err = run(config, logger, refs, format, *waitFlag)
	if err != nil {
		fail("Failed to load images", "error", err.Error())
	}
}

func run(conf config.Config, logger *slog.Logger, refs []domain.ImageReference, format domain.ImageFormat, wait time.Duration) error {
	ctx := logging.AddToContext(context.Background(), logger)

	flush, err := reporting.NewSentryOrMock(conf)
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	defer flush()
	logger.Info("Initialized Sentry")

	if conf.TelemetryEnabled() {
		shutdown, err := telemetry.SetupOTelSDK(ctx, telemetry.ServiceName)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to shut down telemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized telemetry")
	}

	rateLimiter, stopRateLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(conf.RemoteRateLimit()),
		ratelimiting.BurstSize(conf.RemoteBurst()),
	)
	defer stopRateLimiter()

	core := imagecache.New(
		bundle.NewOS(conf.BundleDir()),
		remote.New(remote.NewHTTPClient(conf.HTTPTimeout()), rateLimiter),
		decoder.New(),
		imagecache.WithStore(cache.NewStore[image.Image](conf.CacheCapacity())),
		imagecache.WithDuplicatePolicy(duplicatePolicy(conf.DuplicatePolicy())),
		imagecache.WithLogger(logger.With("component", "imagecache")),
	)
	defer core.Close()
	logger.Info("Init complete", "images", len(refs))

	var mu sync.Mutex
	results := make(map[string]domain.LoadResult, len(refs))
	wg := sync.WaitGroup{}
	wg.Add(len(refs))
	for _, ref := range refs {
		key := domain.Key(ref)
		core.LoadImage(ctx, ref, format, func(result domain.LoadResult) {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			results[key] = result
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(wait):
		cancelled := core.CancelAllPending()
		logger.Error("Timed out waiting for images", "wait", wait.String(), "cancelled", cancelled)
	}

	mu.Lock()
	defer mu.Unlock()

	failed := 0
	for _, ref := range refs {
		key := domain.Key(ref)
		result, ok := results[key]
		switch {
		case !ok:
			failed++
			logger.Error("Image did not complete", "imageKey", key)
		case result.Err != nil:
			failed++
			logger.Error("Failed to load image", "imageKey", key, "error", result.Err.Error())
		default:
			bounds := result.Image.Bounds()
			logger.Info("Loaded image", "imageKey", key, "width", bounds.Dx(), "height", bounds.Dy())
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errLoadFailed, failed, len(refs))
	}
	return nil
}

// parseReferences turns command line arguments into distinct image references.
// Arguments starting with http:// or https:// are remote, the rest are bundle paths.
func parseReferences(args []string) ([]domain.ImageReference, error) {
	refs := make([]domain.ImageReference, 0, len(args))
	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		ref, err := parseReference(arg)
		if err != nil {
			return nil, err
		}

		key := domain.Key(ref)
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseReference(arg string) (domain.ImageReference, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		ref, err := domain.ParseRemoteURL(arg)
		if err != nil {
			return nil, err
		}
		return ref, nil
	}

	split := strings.LastIndex(arg, "/") + 1
	ref := domain.LocalFile{
		Directory: arg[:split],
		Name:      arg[split:],
	}
	if ref.Name == "" {
		return nil, fmt.Errorf("%w: missing file name in %q", domain.ErrPath, arg)
	}
	return ref, nil
}

func duplicatePolicy(policy config.DuplicatePolicy) imagecache.DuplicatePolicy {
	if policy == config.SubscribeDuplicates {
		return imagecache.SubscribeDuplicates
	}
	return imagecache.DropDuplicates
}
