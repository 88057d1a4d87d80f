// Package sitecrawl probes a business website for contact emails.
package sitecrawl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/leadharvest/leadharvest/internal/extract"
	"github.com/leadharvest/leadharvest/internal/httpx"
	"github.com/leadharvest/leadharvest/internal/leads"
	"github.com/leadharvest/leadharvest/internal/politeness"
)

// candidatePaths is the fixed ordered probe list: root first, then common
// contact/about/info variants.
var candidatePaths = []string{
	"/",
	"/contact",
	"/contact-us",
	"/contactus",
	"/contact_us",
	"/about",
	"/about-us",
	"/aboutus",
	"/impressum",
	"/info",
	"/support",
}

// Renderer re-renders a page with a real browser. Optional.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// Detector decides whether a fetched body warrants a headless re-render.
type Detector interface {
	ShouldPromote(body []byte) bool
}

// Crawler visits a fixed set of candidate paths on a site until one of them
// yields at least one email.
type Crawler struct {
	exec     *httpx.Executor
	limiter  *politeness.Limiter
	renderer Renderer
	detector Detector
	archive  leads.BlobStore
	logger   *zap.Logger
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithHeadless enables browser re-rendering for pages the detector flags.
func WithHeadless(r Renderer, d Detector) Option {
	return func(c *Crawler) {
		c.renderer = r
		c.detector = d
	}
}

// WithArchive stores the raw HTML of pages that yielded emails.
func WithArchive(store leads.BlobStore) Option {
	return func(c *Crawler) {
		c.archive = store
	}
}

// New constructs a Crawler.
func New(exec *httpx.Executor, limiter *politeness.Limiter, logger *zap.Logger, opts ...Option) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Crawler{
		exec:    exec,
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl probes the site's candidate paths in order and returns the first
// path's non-empty email set. Unreachable or malformed paths are skipped.
// Exhausting all paths with no emails returns nil; that is a normal outcome.
func (c *Crawler) Crawl(ctx context.Context, website string) []string {
	origin, err := normalizeOrigin(website)
	if err != nil {
		c.logger.Debug("unusable website url", zap.String("website", website), zap.Error(err))
		return nil
	}

	attempted := make(map[string]struct{})
	for _, path := range candidatePaths {
		if ctx.Err() != nil {
			return nil
		}
		target := origin + path
		if _, done := attempted[target]; done {
			continue
		}
		attempted[target] = struct{}{}

		// Pace successive path fetches against the same host.
		if err := c.limiter.Wait(ctx, target); err != nil {
			return nil
		}

		resp, err := c.exec.Do(ctx, httpx.Request{URL: target})
		if err != nil {
			c.logger.Debug("path fetch failed", zap.String("url", target), zap.Error(err))
			continue
		}
		attempted[resp.FinalURL] = struct{}{}

		body := resp.Body
		emails := extract.Emails(body)
		if len(emails) == 0 && c.renderer != nil && c.detector.ShouldPromote(body) {
			if rendered, rerr := c.renderer.Render(ctx, target); rerr == nil {
				body = rendered
				emails = extract.Emails(body)
			} else {
				c.logger.Debug("headless render failed", zap.String("url", target), zap.Error(rerr))
			}
		}

		if len(emails) > 0 {
			c.archivePage(ctx, target, body)
			return emails
		}
	}
	return nil
}

func (c *Crawler) archivePage(ctx context.Context, target string, body []byte) {
	if c.archive == nil {
		return
	}
	u, err := url.Parse(target)
	if err != nil {
		return
	}
	sum := sha256.Sum256([]byte(target))
	path := fmt.Sprintf("%s/%s.html", u.Hostname(), hex.EncodeToString(sum[:8]))
	if _, err := c.archive.Put(ctx, path, "text/html; charset=utf-8", body); err != nil {
		c.logger.Warn("archive page failed", zap.String("url", target), zap.Error(err))
	}
}

// normalizeOrigin parses the website URL, defaulting the scheme to https, and
// returns its origin without a trailing slash.
func normalizeOrigin(website string) (string, error) {
	website = strings.TrimSpace(website)
	if website == "" {
		return "", fmt.Errorf("empty website")
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil {
		return "", fmt.Errorf("parse website: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("website %q has no host", website)
	}
	return u.Scheme + "://" + u.Host, nil
}
