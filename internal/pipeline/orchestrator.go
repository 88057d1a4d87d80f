// Package pipeline drives a harvest run end to end: resolve listings per
// task, enrich them, stream records out, and keep dedupe state durable.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadharvest/leadharvest/internal/dedupe"
	"github.com/leadharvest/leadharvest/internal/enrich"
	"github.com/leadharvest/leadharvest/internal/leads"
	"github.com/leadharvest/leadharvest/internal/metrics"
	"github.com/leadharvest/leadharvest/internal/progress"
)

// Config controls the orchestrator.
type Config struct {
	// MaxPages bounds how deep the primary source is paged per task.
	MaxPages int
	// FlushInterval is how often dedupe state is persisted mid-run. Zero or
	// negative disables interval flushing; location boundaries still flush.
	FlushInterval time.Duration
	// Topic is where per-task completion events are published.
	Topic string
}

// TaskEvent is the payload published after each completed task.
type TaskEvent struct {
	RunID       string    `json:"run_id"`
	City        string    `json:"city"`
	Region      string    `json:"region"`
	Category    string    `json:"category"`
	Listings    int       `json:"listings"`
	Records     int       `json:"records"`
	CompletedAt time.Time `json:"completed_at"`
}

// Orchestrator runs tasks strictly in order. Tasks never abort the run; only
// output-header failure at startup is fatal. Cancellation stops between
// units of work, then state is persisted and a summary written.
type Orchestrator struct {
	cfg       Config
	primary   leads.Source
	fallback  leads.Source
	scheduler *enrich.Scheduler
	sink      leads.Sink
	store     dedupe.Store
	tracker   *progress.Tracker
	publisher leads.Publisher
	clock     leads.Clock
	logger    *zap.Logger
	runID     string
}

// New constructs an Orchestrator with a fresh run ID.
func New(
	cfg Config,
	primary leads.Source,
	fallback leads.Source,
	scheduler *enrich.Scheduler,
	sink leads.Sink,
	store dedupe.Store,
	tracker *progress.Tracker,
	publisher leads.Publisher,
	clock leads.Clock,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.Topic == "" {
		cfg.Topic = "task-events"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		primary:   primary,
		fallback:  fallback,
		scheduler: scheduler,
		sink:      sink,
		store:     store,
		tracker:   tracker,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		runID:     uuid.NewString(),
	}
}

// RunID identifies this run in published events and logs.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run executes the tasks in order. It returns an error only when the output
// header cannot be established or the context is cancelled; per-task
// failures are logged and skipped.
func (o *Orchestrator) Run(ctx context.Context, tasks []leads.Task) error {
	if err := o.sink.EnsureHeader(); err != nil {
		return fmt.Errorf("ensure output header: %w", err)
	}
	if err := o.store.Load(ctx); err != nil {
		return fmt.Errorf("load dedupe state: %w", err)
	}

	o.logger.Info("run starting",
		zap.String("run_id", o.runID),
		zap.Int("tasks", len(tasks)),
		zap.Int("known_keys", o.store.Size()),
	)

	lastFlush := o.clock.Now()
	var prevLoc leads.Location
	for i, task := range tasks {
		if ctx.Err() != nil {
			o.finish(len(tasks))
			return ctx.Err()
		}
		// A location boundary means every task for the previous location has
		// completed; checkpoint so a rerun can resume past it.
		if i > 0 && task.Location != prevLoc {
			o.persist(ctx)
		}
		prevLoc = task.Location

		o.runTask(ctx, task)

		if o.cfg.FlushInterval > 0 && o.clock.Now().Sub(lastFlush) >= o.cfg.FlushInterval {
			o.persist(ctx)
			lastFlush = o.clock.Now()
		}
	}

	o.finish(len(tasks))
	return ctx.Err()
}

func (o *Orchestrator) runTask(ctx context.Context, task leads.Task) {
	listings := o.resolve(ctx, task)

	records := o.scheduler.Enrich(ctx, task, listings)

	outcome := "ok"
	if len(listings) == 0 {
		outcome = "empty"
	}
	if len(records) > 0 {
		if err := o.sink.Append(records); err != nil {
			// The run continues; the loss is loud and visible in metrics.
			outcome = "sink_error"
			o.logger.Error("record write failed, batch dropped",
				zap.String("category", task.Category),
				zap.String("location", task.Location.String()),
				zap.Int("records", len(records)),
				zap.Error(err),
			)
		} else {
			o.tracker.AddRecords(len(records))
			metrics.ObserveRecords(len(records))
		}
	}
	metrics.ObserveTask(outcome)
	o.tracker.TaskDone()

	snap := o.tracker.Snapshot()
	o.logger.Info("task complete",
		zap.String("category", task.Category),
		zap.String("location", task.Location.String()),
		zap.Int("listings", len(listings)),
		zap.Int("records", len(records)),
		zap.String("progress", fmt.Sprintf("%d/%d", snap.Completed, snap.Total)),
		zap.String("eta", snap.ETA),
	)

	o.publishEvent(ctx, task, len(listings), len(records))
}

// resolve pages the primary source and, when it yields nothing at all, asks
// the fallback for its single page.
func (o *Orchestrator) resolve(ctx context.Context, task leads.Task) []leads.Listing {
	var listings []leads.Listing
	for page := 1; page <= o.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			return listings
		}
		batch, hasMore, err := o.primary.Resolve(ctx, task.Category, task.Location, page)
		if err != nil {
			o.logger.Warn("primary source failed",
				zap.String("category", task.Category),
				zap.String("location", task.Location.String()),
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}
		observeBatch(batch)
		listings = append(listings, batch...)
		if !hasMore {
			break
		}
	}

	if len(listings) == 0 && o.fallback != nil && ctx.Err() == nil {
		batch, _, err := o.fallback.Resolve(ctx, task.Category, task.Location, 1)
		if err != nil {
			o.logger.Warn("fallback source failed",
				zap.String("category", task.Category),
				zap.String("location", task.Location.String()),
				zap.Error(err),
			)
		} else {
			observeBatch(batch)
			listings = batch
		}
	}
	return listings
}

func (o *Orchestrator) publishEvent(ctx context.Context, task leads.Task, listings, records int) {
	if o.publisher == nil {
		return
	}
	event := TaskEvent{
		RunID:       o.runID,
		City:        task.Location.City,
		Region:      task.Location.Region,
		Category:    task.Category,
		Listings:    listings,
		Records:     records,
		CompletedAt: o.clock.Now(),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, event); err != nil {
		o.logger.Warn("task event publish failed", zap.Error(err))
	}
}

func (o *Orchestrator) persist(ctx context.Context) {
	if err := o.store.Persist(ctx); err != nil {
		o.logger.Error("dedupe persist failed", zap.Error(err))
	}
}

// finish checkpoints state and writes the run summary. It runs on both
// normal completion and cancellation.
func (o *Orchestrator) finish(total int) {
	// Persisting must survive the cancelled run context.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	o.persist(flushCtx)

	snap := o.tracker.Snapshot()
	o.logger.Info("run finished",
		zap.String("run_id", o.runID),
		zap.Int("completed", snap.Completed),
		zap.Int("total", total),
		zap.Int64("websites_fetched", snap.WebsitesFetched),
		zap.Int64("emails_found", snap.EmailsFound),
		zap.Int64("records_written", snap.RecordsWritten),
		zap.Int("known_keys", o.store.Size()),
	)
}

func observeBatch(batch []leads.Listing) {
	if len(batch) == 0 {
		return
	}
	metrics.ObserveListings(batch[0].SourceHint, len(batch))
}
