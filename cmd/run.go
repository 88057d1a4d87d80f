package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadharvest/leadharvest/internal/api"
	"github.com/leadharvest/leadharvest/internal/archive"
	archivegcs "github.com/leadharvest/leadharvest/internal/archive/gcs"
	archivelocal "github.com/leadharvest/leadharvest/internal/archive/local"
	"github.com/leadharvest/leadharvest/internal/clock/system"
	"github.com/leadharvest/leadharvest/internal/config"
	"github.com/leadharvest/leadharvest/internal/dedupe"
	dedupefile "github.com/leadharvest/leadharvest/internal/dedupe/file"
	dedupepg "github.com/leadharvest/leadharvest/internal/dedupe/postgres"
	"github.com/leadharvest/leadharvest/internal/enrich"
	"github.com/leadharvest/leadharvest/internal/headless"
	"github.com/leadharvest/leadharvest/internal/httpx"
	"github.com/leadharvest/leadharvest/internal/leads"
	"github.com/leadharvest/leadharvest/internal/logging"
	"github.com/leadharvest/leadharvest/internal/metrics"
	"github.com/leadharvest/leadharvest/internal/pipeline"
	"github.com/leadharvest/leadharvest/internal/politeness"
	"github.com/leadharvest/leadharvest/internal/progress"
	"github.com/leadharvest/leadharvest/internal/publisher"
	publishermem "github.com/leadharvest/leadharvest/internal/publisher/memory"
	publisherps "github.com/leadharvest/leadharvest/internal/publisher/pubsub"
	"github.com/leadharvest/leadharvest/internal/sink"
	"github.com/leadharvest/leadharvest/internal/sitecrawl"
	"github.com/leadharvest/leadharvest/internal/source/directory"
	"github.com/leadharvest/leadharvest/internal/source/places"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Starts a harvest run",
		Long: `Executes every (location, category) task from the configuration in order.
Interrupts (SIGINT/SIGTERM) stop the run between units of work; dedupe state
is persisted on the way out so the next run resumes past completed work.`,
		RunE: runHarvest,
	}
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := system.New()
	exec := httpx.New(httpx.Config{
		Timeout:        cfg.RequestTimeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		InitialBackoff: cfg.InitialBackoff(),
	}, logger)
	limiter := politeness.New(politeness.Config{RPS: cfg.Crawl.PerHostRPS, Burst: 1})

	store, err := buildDedupeStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	pub, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	crawler, closeCrawler, err := buildSiteCrawler(ctx, cfg, exec, limiter, logger)
	if err != nil {
		return err
	}
	defer closeCrawler()

	tasks := leads.Tasks(cfg.Locations, cfg.Categories)
	tracker := progress.NewTracker(len(tasks), clk)
	scheduler := enrich.New(enrich.Config{
		Concurrency:  cfg.Crawl.Concurrency,
		SkipWebsites: cfg.Crawl.SkipWebsites,
	}, crawler, store, tracker, logger)

	primary := directory.New(directory.Config{
		BaseURL:        cfg.Sources.Directory.BaseURL,
		ScrapeEndpoint: cfg.Sources.Serper.ScrapeEndpoint,
		APIKey:         cfg.Sources.Serper.APIKey,
		Timeout:        cfg.RequestTimeout(),
	}, exec, limiter, logger)
	fallback := places.New(places.Config{
		Endpoint: cfg.Sources.Serper.PlacesEndpoint,
		APIKey:   cfg.Sources.Serper.APIKey,
	}, exec, logger)

	if cfg.Server.Port > 0 {
		srv := api.NewServer(tracker, logger)
		srv.Start(cfg.Server.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("observe server shutdown failed", zap.Error(err))
			}
		}()
	}

	orch := pipeline.New(
		pipeline.Config{
			MaxPages:      cfg.Sources.MaxPages,
			FlushInterval: cfg.FlushInterval(),
			Topic:         cfg.Publisher.Topic,
		},
		primary,
		fallback,
		scheduler,
		sink.NewCSV(cfg.Output.Path, cfg.Output.IncludePhone),
		store,
		tracker,
		pub,
		clk,
		logger,
	)

	if err := orch.Run(ctx, tasks); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run harvest: %w", err)
	}
	return nil
}

// closableStore joins the dedupe interface with provider cleanup.
type closableStore struct {
	dedupe.Store
	close func()
}

func (s closableStore) Close() {
	if s.close != nil {
		s.close()
	}
}

func buildDedupeStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (closableStore, error) {
	switch cfg.Dedupe.Provider {
	case "file":
		return closableStore{Store: dedupefile.New(cfg.Dedupe.Path, logger)}, nil
	case "postgres":
		store, err := dedupepg.New(ctx, cfg.Dedupe.DSN)
		if err != nil {
			return closableStore{}, fmt.Errorf("init postgres dedupe store: %w", err)
		}
		return closableStore{Store: store, close: store.Close}, nil
	default:
		return closableStore{}, fmt.Errorf("unknown dedupe provider: %s", cfg.Dedupe.Provider)
	}
}

// closablePublisher joins the publisher interface with provider cleanup.
type closablePublisher struct {
	leads.Publisher
	close func()
}

func (p closablePublisher) Close() {
	if p.close != nil {
		p.close()
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (closablePublisher, error) {
	switch cfg.Publisher.Provider {
	case "noop":
		return closablePublisher{Publisher: publisher.NewNoop()}, nil
	case "memory":
		return closablePublisher{Publisher: publishermem.New()}, nil
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.Publisher.ProjectID)
		if err != nil {
			return closablePublisher{}, fmt.Errorf("init pubsub client: %w", err)
		}
		pub, err := publisherps.New(client)
		if err != nil {
			return closablePublisher{}, err
		}
		return closablePublisher{Publisher: pub, close: func() {
			pub.Close()
			_ = client.Close()
		}}, nil
	default:
		return closablePublisher{}, fmt.Errorf("unknown publisher provider: %s", cfg.Publisher.Provider)
	}
}

func buildSiteCrawler(
	ctx context.Context,
	cfg config.Config,
	exec *httpx.Executor,
	limiter *politeness.Limiter,
	logger *zap.Logger,
) (*sitecrawl.Crawler, func(), error) {
	cleanup := func() {}
	var opts []sitecrawl.Option

	if cfg.Headless.Enabled {
		renderer, err := headless.NewRenderer(headless.Config{
			NavTimeout:     time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			MaxConcurrency: cfg.Headless.MaxConcurrency,
			UserAgent:      exec.NextAgent(),
		}, logger)
		if err != nil {
			// A missing browser degrades to the fast path only.
			logger.Warn("headless renderer unavailable", zap.Error(err))
		} else {
			opts = append(opts, sitecrawl.WithHeadless(renderer, headless.NewDetector(cfg.Headless.MinHTMLBytes)))
			cleanup = renderer.Close
		}
	}

	blobStore, err := buildArchive(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	opts = append(opts, sitecrawl.WithArchive(blobStore))

	return sitecrawl.New(exec, limiter, logger, opts...), cleanup, nil
}

func buildArchive(ctx context.Context, cfg config.Config) (leads.BlobStore, error) {
	switch cfg.Archive.Provider {
	case "noop":
		return archive.NewNoop(), nil
	case "local":
		store, err := archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		return archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.GCSBucket, Prefix: cfg.Archive.Prefix})
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}
}
