// Package leads defines the core types shared across the pipeline.
package leads

import "strings"

// Location identifies a city/region pair from the search table.
type Location struct {
	City   string `mapstructure:"city" json:"city"`
	Region string `mapstructure:"region" json:"region"`
}

// String renders the location as "City, Region" for search queries.
func (l Location) String() string {
	if l.Region == "" {
		return l.City
	}
	return l.City + ", " + l.Region
}

// Task is one (location, category) search unit. Tasks are immutable and
// consumed exactly once by the orchestrator, in generation order.
type Task struct {
	Location Location
	Category string
}

// Listing is a business candidate resolved from a search source, prior to
// enrichment. It is owned by the scheduler unit that processes it and is
// discarded after producing records.
type Listing struct {
	Name    string
	Phone   string
	Website string
	// Email is set when the originating source already carried a contact
	// address; the scheduler uses it directly and skips crawling.
	Email string
	// SourceHint labels which adapter produced the listing. Informational
	// only; downstream code must not branch on it.
	SourceHint string
}

// Record is one output row: a listing paired with zero or one extracted email.
// A listing with no discovered email still yields exactly one record with an
// empty Email so its existence is visible in the output.
type Record struct {
	Name     string
	Phone    string
	Website  string
	Email    string
	Category string
	City     string
	Region   string
}

// Tasks builds the cartesian product of locations and categories,
// location-major, so all categories of one location run before the next
// location starts.
func Tasks(locations []Location, categories []string) []Task {
	tasks := make([]Task, 0, len(locations)*len(categories))
	for _, loc := range locations {
		for _, cat := range categories {
			cat = strings.TrimSpace(cat)
			if cat == "" {
				continue
			}
			tasks = append(tasks, Task{Location: loc, Category: cat})
		}
	}
	return tasks
}
