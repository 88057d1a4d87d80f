// Package enrich turns resolved listings into output records: dedupe at
// admission, email discovery per listing, one record per discovered address.
package enrich

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/leadharvest/leadharvest/internal/dedupe"
	"github.com/leadharvest/leadharvest/internal/extract"
	"github.com/leadharvest/leadharvest/internal/leads"
	"github.com/leadharvest/leadharvest/internal/metrics"
	"github.com/leadharvest/leadharvest/internal/progress"
)

// Config controls the scheduler.
type Config struct {
	// Concurrency is the number of listings enriched in parallel.
	Concurrency int
	// SkipWebsites disables site crawling; only source-supplied emails are
	// used.
	SkipWebsites bool
}

// Scheduler fans a task's listings out over a bounded worker pool. Each
// listing is admitted through the dedupe store exactly once; admitted
// listings produce one record per discovered email, or a single emailless
// record when discovery comes up empty.
type Scheduler struct {
	cfg     Config
	crawler leads.SiteCrawler
	store   dedupe.Store
	tracker *progress.Tracker
	logger  *zap.Logger
}

// New constructs a Scheduler.
func New(cfg Config, crawler leads.SiteCrawler, store dedupe.Store, tracker *progress.Tracker, logger *zap.Logger) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, crawler: crawler, store: store, tracker: tracker, logger: logger}
}

// Enrich processes the listings and returns records in listing order.
// Cancellation stops the pool promptly; records produced before the
// cancellation are still returned so the caller can flush them.
func (s *Scheduler) Enrich(ctx context.Context, task leads.Task, listings []leads.Listing) []leads.Record {
	if len(listings) == 0 {
		return nil
	}

	type job struct {
		idx     int
		listing leads.Listing
	}
	jobs := make(chan job)
	results := make([][]leads.Record, len(listings))

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			for j := range jobs {
				results[j.idx] = s.process(ctx, task, j.listing)
			}
		}()
	}

feed:
	for i, l := range listings {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- job{idx: i, listing: l}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	var out []leads.Record
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out
}

func (s *Scheduler) process(ctx context.Context, task leads.Task, l leads.Listing) []leads.Record {
	key := dedupe.Key(l.Name, task.Location)
	if !s.store.TryAdd(key) {
		metrics.ObserveDedupeHit()
		s.logger.Debug("duplicate listing skipped",
			zap.String("name", l.Name),
			zap.String("location", task.Location.String()),
		)
		return nil
	}

	emails := s.discover(ctx, l)
	if s.tracker != nil {
		s.tracker.AddEmails(len(emails))
	}
	metrics.ObserveEmails(len(emails))

	record := func(email string) leads.Record {
		return leads.Record{
			Name:     l.Name,
			Phone:    l.Phone,
			Website:  l.Website,
			Email:    email,
			Category: task.Category,
			City:     task.Location.City,
			Region:   task.Location.Region,
		}
	}

	if len(emails) == 0 {
		// Emailless listings still make the output; the contact columns that
		// did resolve keep their value.
		return []leads.Record{record("")}
	}
	records := make([]leads.Record, 0, len(emails))
	for _, email := range emails {
		records = append(records, record(email))
	}
	return records
}

// discover picks emails for a listing: a valid source-supplied address wins
// outright, otherwise the listing's website is crawled.
func (s *Scheduler) discover(ctx context.Context, l leads.Listing) []string {
	if l.Email != "" && extract.Valid(l.Email) {
		return []string{strings.ToLower(strings.TrimSpace(l.Email))}
	}
	if l.Website == "" || s.cfg.SkipWebsites || s.crawler == nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	emails := s.crawler.Crawl(ctx, l.Website)
	if s.tracker != nil {
		s.tracker.AddWebsites(1)
	}
	return emails
}
