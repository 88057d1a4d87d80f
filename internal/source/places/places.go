// Package places implements the fallback listing source: a hosted places
// search API queried over JSON. It is only consulted when the primary
// directory source yields nothing for a task.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/leadharvest/leadharvest/internal/httpx"
	"github.com/leadharvest/leadharvest/internal/leads"
)

const sourceHint = "places"

// resultsPerQuery is the page size requested from the API.
const resultsPerQuery = 20

// Config controls the places source.
type Config struct {
	Endpoint string
	APIKey   string
}

// Source resolves queries against the places API. With no API key configured
// it is inert: Resolve answers empty with no error so the pipeline treats the
// fallback as unavailable rather than failed.
type Source struct {
	cfg    Config
	exec   *httpx.Executor
	logger *zap.Logger
}

// New constructs a Source.
func New(cfg Config, exec *httpx.Executor, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{cfg: cfg, exec: exec, logger: logger}
}

type query struct {
	Q        string `json:"q"`
	Location string `json:"location"`
	Num      int    `json:"num"`
	Page     int    `json:"page"`
}

type place struct {
	Title       string `json:"title"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
	Website     string `json:"website"`
	Email       string `json:"email"`
}

type result struct {
	Places []place `json:"places"`
}

// Resolve performs one API query. The API is not paginated past what a single
// query returns, so hasMore is always false.
func (s *Source) Resolve(ctx context.Context, category string, loc leads.Location, page int) ([]leads.Listing, bool, error) {
	if s.cfg.APIKey == "" {
		return nil, false, nil
	}

	payload, err := json.Marshal([]query{{
		Q:        category,
		Location: loc.String(),
		Num:      resultsPerQuery,
		Page:     page,
	}})
	if err != nil {
		return nil, false, fmt.Errorf("marshal places query: %w", err)
	}

	resp, err := s.exec.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    s.cfg.Endpoint,
		Header: http.Header{
			"X-API-KEY":    {s.cfg.APIKey},
			"Content-Type": {"application/json"},
		},
		Body: payload,
	})
	if err != nil {
		return nil, false, err
	}

	results, err := decodeResults(resp.Body)
	if err != nil {
		return nil, false, err
	}

	var listings []leads.Listing
	for _, r := range results {
		for _, p := range r.Places {
			name := strings.TrimSpace(p.Title)
			if name == "" {
				continue
			}
			listings = append(listings, leads.Listing{
				Name:       name,
				Phone:      strings.TrimSpace(p.PhoneNumber),
				Website:    strings.TrimSpace(p.Website),
				Email:      strings.ToLower(strings.TrimSpace(p.Email)),
				SourceHint: sourceHint,
			})
		}
	}
	return listings, false, nil
}

// decodeResults accepts both the batched array form and the single-object
// form the API uses for one-query requests.
func decodeResults(body []byte) ([]result, error) {
	var batch []result
	if err := json.Unmarshal(body, &batch); err == nil {
		return batch, nil
	}
	var single result
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("decode places response: %w", err)
	}
	return []result{single}, nil
}
