// Package progress tracks task completion and derived throughput counters.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/leadharvest/leadharvest/internal/leads"
)

// UnknownETA is reported while throughput is still zero.
const UnknownETA = "unknown"

// Snapshot is a point-in-time view of pipeline progress.
type Snapshot struct {
	Completed       int     `json:"completed"`
	Total           int     `json:"total"`
	WebsitesFetched int64   `json:"websites_fetched"`
	EmailsFound     int64   `json:"emails_found"`
	RecordsWritten  int64   `json:"records_written"`
	Throughput      float64 `json:"tasks_per_second"`
	ETA             string  `json:"eta"`
}

// Tracker counts completed tasks and cumulative work totals. Safe for
// concurrent use.
type Tracker struct {
	clock leads.Clock
	start time.Time

	mu        sync.Mutex
	total     int
	completed int
	websites  int64
	emails    int64
	records   int64
}

// NewTracker starts tracking a run of total tasks.
func NewTracker(total int, clock leads.Clock) *Tracker {
	return &Tracker{
		clock: clock,
		start: clock.Now(),
		total: total,
	}
}

// TaskDone marks one task complete.
func (t *Tracker) TaskDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
}

// AddWebsites records websites visited during enrichment.
func (t *Tracker) AddWebsites(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.websites += int64(n)
}

// AddEmails records distinct emails extracted.
func (t *Tracker) AddEmails(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emails += int64(n)
}

// AddRecords records rows appended to the sink.
func (t *Tracker) AddRecords(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records += int64(n)
}

// Snapshot computes throughput (completed tasks per elapsed second) and the
// h:m:s ETA for the remaining tasks, or UnknownETA at zero throughput.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := t.clock.Now().Sub(t.start).Seconds()
	var throughput float64
	if elapsed > 0 {
		throughput = float64(t.completed) / elapsed
	}

	eta := UnknownETA
	if throughput > 0 {
		remaining := float64(t.total-t.completed) / throughput
		eta = formatETA(time.Duration(remaining * float64(time.Second)))
	}

	return Snapshot{
		Completed:       t.completed,
		Total:           t.total,
		WebsitesFetched: t.websites,
		EmailsFound:     t.emails,
		RecordsWritten:  t.records,
		Throughput:      throughput,
		ETA:             eta,
	}
}

func formatETA(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
