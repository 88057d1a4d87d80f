// Package directory implements the primary listing source: a public business
// directory queried by search term, geo string and page number, parsed by
// structural selectors.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/leadharvest/leadharvest/internal/httpx"
	"github.com/leadharvest/leadharvest/internal/leads"
	"github.com/leadharvest/leadharvest/internal/politeness"
)

const sourceHint = "directory"

// Config controls the directory source.
type Config struct {
	BaseURL string
	// ScrapeEndpoint and APIKey enable the fetch-proxy path, used to reduce
	// blocking when the fallback credential is configured.
	ScrapeEndpoint string
	APIKey         string
	Timeout        time.Duration
}

// Source resolves (category, location, page) queries against the directory.
// Any transport or parse failure degrades to an empty result list.
type Source struct {
	cfg     Config
	exec    *httpx.Executor
	limiter *politeness.Limiter
	logger  *zap.Logger
}

// New constructs a Source.
func New(cfg Config, exec *httpx.Executor, limiter *politeness.Limiter, logger *zap.Logger) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{cfg: cfg, exec: exec, limiter: limiter, logger: logger}
}

// Resolve fetches one result page and parses it into listings plus a
// has-more-pages signal.
func (s *Source) Resolve(ctx context.Context, category string, loc leads.Location, page int) ([]leads.Listing, bool, error) {
	searchURL := s.searchURL(category, loc, page)
	if err := s.limiter.Wait(ctx, s.cfg.BaseURL); err != nil {
		return nil, false, err
	}

	var (
		body []byte
		err  error
	)
	if s.cfg.APIKey != "" && s.cfg.ScrapeEndpoint != "" {
		body, err = s.fetchViaProxy(ctx, searchURL)
	} else {
		body, err = s.fetchDirect(ctx, searchURL)
	}
	if err != nil {
		s.logger.Debug("directory fetch failed",
			zap.String("url", searchURL),
			zap.Error(err),
		)
		return nil, false, err
	}

	listings, hasMore := parseListings(body)
	return listings, hasMore, nil
}

func (s *Source) searchURL(category string, loc leads.Location, page int) string {
	q := url.Values{}
	q.Set("search_terms", category)
	q.Set("geo_location_terms", loc.String())
	if page > 1 {
		q.Set("page", fmt.Sprintf("%d", page))
	}
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/search?" + q.Encode()
}

// fetchDirect retrieves the page with a throwaway colly collector, rotating
// the outbound identity per call.
func (s *Source) fetchDirect(ctx context.Context, searchURL string) ([]byte, error) {
	collector := colly.NewCollector()
	collector.UserAgent = s.exec.NextAgent()
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(s.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(searchURL)
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("directory visit: %w", err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("directory response: %w", fetchErr)
		}
		return body, nil
	}
}

// fetchViaProxy retrieves the page through the scrape proxy using the
// retrying executor. The proxy answers with JSON carrying the page HTML; a
// non-JSON answer is treated as the HTML itself.
func (s *Source) fetchViaProxy(ctx context.Context, searchURL string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"url": searchURL})
	if err != nil {
		return nil, fmt.Errorf("marshal proxy request: %w", err)
	}
	resp, err := s.exec.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    s.cfg.ScrapeEndpoint,
		Header: http.Header{
			"X-API-KEY":    {s.cfg.APIKey},
			"Content-Type": {"application/json"},
		},
		Body: payload,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		HTML string `json:"html"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err == nil && parsed.HTML != "" {
		return []byte(parsed.HTML), nil
	}
	return resp.Body, nil
}

// parseListings extracts one listing per result row and the next-page signal.
// Rows without a business name are dropped.
func parseListings(body []byte) ([]leads.Listing, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}

	var listings []leads.Listing
	doc.Find("div.result").Each(func(_ int, row *goquery.Selection) {
		name := strings.TrimSpace(row.Find("a.business-name").First().Text())
		if name == "" {
			return
		}
		listing := leads.Listing{
			Name:       name,
			Phone:      strings.TrimSpace(row.Find("div.phones").First().Text()),
			SourceHint: sourceHint,
		}
		if href, ok := row.Find("a.track-visit-website").First().Attr("href"); ok {
			listing.Website = strings.TrimSpace(href)
		}
		listings = append(listings, listing)
	})

	hasMore := doc.Find("a.next").Length() > 0
	return listings, hasMore
}
