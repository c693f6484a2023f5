package source

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/JakeFAU/hotterms/internal/terms"
)

// Payload rejection reasons.
var (
	ErrInvalidJSON      = errors.New("payload is not valid JSON")
	ErrUnexpectedStatus = errors.New("payload status is not the expected success value")
	ErrMissingItems     = errors.New("payload has no items array")
	ErrMissingSelector  = errors.New("selector is required")
)

// extractJSON pulls the title of every item out of a structured payload.
func extractJSON(body []byte, rule Rule) (terms.Batch, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	if rule.StatusPath != "" {
		status := gjson.GetBytes(body, rule.StatusPath)
		if !status.Exists() || status.String() != rule.StatusOK {
			return nil, fmt.Errorf("%w: %s=%s", ErrUnexpectedStatus, rule.StatusPath, status.Raw)
		}
	}

	items := gjson.ParseBytes(body)
	if rule.ItemsPath != "" {
		items = items.Get(rule.ItemsPath)
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("%w at %q", ErrMissingItems, rule.ItemsPath)
	}

	batch := terms.Batch{}
	items.ForEach(func(_, item gjson.Result) bool {
		title := item
		if rule.TitleField != "" {
			title = item.Get(rule.TitleField)
		}
		if title.Type == gjson.String && title.Str != "" {
			batch = append(batch, title.Str)
		}
		return true
	})
	return batch, nil
}

// extractHTML returns the trimmed text of every element matching selector.
func extractHTML(body []byte, selector string) (terms.Batch, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, ErrMissingSelector
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	batch := terms.Batch{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(strings.ToValidUTF8(s.Text(), "�"))
		if text != "" {
			batch = append(batch, text)
		}
	})
	return batch, nil
}
