// Package source fetches a single trending-term source and normalizes it into
// a terms.Batch. Structured JSON feeds and scraped HTML pages share one
// descriptor type; every per-source failure is absorbed here.
package source

import (
	"fmt"
	"strings"
)

// Kind selects how a source's payload is interpreted.
type Kind string

// Supported source kinds.
const (
	KindStructuredAPI Kind = "structured-api"
	KindHTMLScrape    Kind = "html-scrape"
)

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	return k == KindStructuredAPI || k == KindHTMLScrape
}

// Rule is the extraction rule applied to a fetched payload.
type Rule struct {
	// ItemsPath locates the array of items in a JSON payload (gjson syntax,
	// e.g. "data" or "data.realtime"). Empty means the document root.
	ItemsPath string
	// TitleField is the field holding the term in each item. Empty means the
	// item itself is the term.
	TitleField string
	// StatusPath optionally locates a top-level status field; when set the
	// payload is rejected unless its value renders as StatusOK.
	StatusPath string
	StatusOK   string
	// Selector is the CSS selector for html-scrape sources.
	Selector string
}

// Source describes one fetchable origin of terms.
type Source struct {
	Name string
	Kind Kind
	URL  string
	Rule Rule
}

// Label returns the name used in logs, falling back to the URL.
func (s Source) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// Validate checks that the descriptor can be fetched.
func (s Source) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("source %q: unsupported kind %q", s.Label(), s.Kind)
	}
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("source %q: url is required", s.Label())
	}
	if s.Kind == KindHTMLScrape && strings.TrimSpace(s.Rule.Selector) == "" {
		return fmt.Errorf("source %q: selector is required for %s", s.Label(), s.Kind)
	}
	return nil
}

// JoinURL composes a base URL and an endpoint suffix with exactly one slash
// between them. An empty suffix yields the base unchanged.
func JoinURL(base, endpoint string) string {
	if endpoint == "" {
		return base
	}
	if base == "" {
		return endpoint
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
