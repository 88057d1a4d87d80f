// Package extract pulls contact emails out of raw page content.
package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`)
	validEmail   = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@(?:[A-Za-z0-9\-]+\.)+[A-Za-z]{2,}$`)

	// Candidates matching these fragments are almost always markup noise or
	// placeholder addresses, never a reachable contact.
	junkFragments = []string{
		".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg",
		"example.com", "@example", "yourdomain", "youremail",
		"sampleemail", "noreply@", "no-reply@",
	}
)

// Emails returns the set of syntactically valid email addresses found in the
// page, lower-cased and deduplicated. Two passes contribute to the result:
// mailto anchors, then visible text. Extraction is best-effort; invalid
// candidates are silently dropped.
func Emails(page []byte) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(candidate string) {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if !valid(candidate) {
			return
		}
		if _, dup := seen[candidate]; dup {
			return
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}

	for _, c := range fromAnchors(page) {
		add(c)
	}
	for _, c := range fromText(page) {
		add(c)
	}
	return out
}

// fromAnchors collects mailto anchor targets, stripping the scheme and any
// trailing query component (subject=, body=, ...).
func fromAnchors(page []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}
	var found []string
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		found = append(found, addr)
	})
	return found
}

// fromText scans the page's visible text for address-shaped substrings. The
// HTML is rendered to plain text first so script and style bodies do not
// contribute false positives; if rendering fails the raw bytes are scanned
// instead.
func fromText(page []byte) []string {
	text, err := html2text.FromReader(bytes.NewReader(page), html2text.Options{TextOnly: true})
	if err != nil {
		text = string(page)
	}
	return emailPattern.FindAllString(text, -1)
}

// Valid reports whether a single address passes the same syntax and junk
// checks applied during page extraction. Matching is case-insensitive.
func Valid(candidate string) bool {
	return valid(strings.ToLower(strings.TrimSpace(candidate)))
}

func valid(candidate string) bool {
	if candidate == "" || !validEmail.MatchString(candidate) {
		return false
	}
	for _, frag := range junkFragments {
		if strings.Contains(candidate, frag) {
			return false
		}
	}
	return true
}
