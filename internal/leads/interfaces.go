package leads

import (
	"context"
	"time"
)

// Source resolves a (category, location, page) query to candidate listings.
// The boolean reports whether the source believes more pages exist. Sources
// degrade to an empty slice on transport or parse failures; the error is
// informational and never aborts the pipeline.
type Source interface {
	Resolve(ctx context.Context, category string, loc Location, page int) ([]Listing, bool, error)
}

// Sink appends completed records to durable storage.
type Sink interface {
	EnsureHeader() error
	Append(records []Record) error
}

// SiteCrawler visits a listing's website and returns any extracted emails.
// An empty slice is a normal outcome, not an error.
type SiteCrawler interface {
	Crawl(ctx context.Context, website string) []string
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes task completion events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (swappable in tests).
type Clock interface {
	Now() time.Time
}
