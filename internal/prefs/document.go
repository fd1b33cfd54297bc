// Package prefs extracts report-formatting directives from free text and
// persists them to a per-user preference document. The document is plain
// text: a recognizable section header, one `key: value` line per known key,
// and a rolling window of free-text `rule:` lines.
package prefs

import (
	"fmt"
	"sort"
	"strings"
)

// SectionHeader marks the start of the managed section in the document.
const SectionHeader = "## centavo preferences"

// MaxRules bounds the rolling window of free-text rule lines.
const MaxRules = 25

// Known single-value keys, in the order they are written.
var keyOrder = []string{
	"decimals",
	"date_format",
	"include_assets",
	"exclude_assets",
	"show_cash_flow",
	"show_timestamp",
	"show_freshness",
}

// Document is the parsed preference document for one user.
type Document struct {
	// Values holds known single-value keys (last write wins).
	Values map[string]string
	// Rules holds free-text rule lines, oldest first.
	Rules []string
}

// NewDocument returns an empty document.
func NewDocument() Document {
	return Document{Values: make(map[string]string)}
}

// ParseDocument reads the managed section out of a document body. Content
// before the header and after the next `## ` header is ignored. A missing
// header yields an empty document.
func ParseDocument(body string) Document {
	doc := NewDocument()
	inSection := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == SectionHeader {
			inSection = true
			continue
		}
		if inSection && strings.HasPrefix(trimmed, "## ") {
			break
		}
		if !inSection || trimmed == "" {
			continue
		}
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "rule" {
			if value != "" {
				doc.Rules = append(doc.Rules, value)
			}
			continue
		}
		if isKnownKey(key) {
			doc.Values[key] = value
		}
	}
	doc.truncateRules()
	return doc
}

// Render writes the document back out in canonical order, so the result is
// safely re-parsable by ParseDocument.
func (d Document) Render() string {
	var b strings.Builder
	b.WriteString(SectionHeader)
	b.WriteString("\n")
	for _, key := range keyOrder {
		if v, ok := d.Values[key]; ok && v != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, v)
		}
	}
	// Unknown-but-stored keys sort after the canonical ones.
	var extra []string
	for k := range d.Values {
		if !isKnownKey(k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		if d.Values[k] != "" {
			fmt.Fprintf(&b, "%s: %s\n", k, d.Values[k])
		}
	}
	for _, r := range d.Rules {
		fmt.Fprintf(&b, "rule: %s\n", r)
	}
	return b.String()
}

// Merge applies directives to the document. Known keys overwrite; rules
// append with exact-match dedupe and a most-recent-25 window. Merging the
// same directives twice yields the same document.
func (d *Document) Merge(dir Directives) {
	if d.Values == nil {
		d.Values = make(map[string]string)
	}
	if dir.Decimals != nil {
		d.Values["decimals"] = fmt.Sprintf("%d", clampDecimals(*dir.Decimals))
	}
	if dir.DateFormat != "" {
		d.Values["date_format"] = dir.DateFormat
	}
	if len(dir.IncludeAssets) > 0 {
		d.Values["include_assets"] = strings.Join(dir.IncludeAssets, ", ")
	}
	if len(dir.ExcludeAssets) > 0 {
		d.Values["exclude_assets"] = strings.Join(dir.ExcludeAssets, ", ")
	}
	if dir.ShowCashFlow != nil {
		d.Values["show_cash_flow"] = onOff(*dir.ShowCashFlow)
	}
	if dir.ShowTimestamp != nil {
		d.Values["show_timestamp"] = onOff(*dir.ShowTimestamp)
	}
	if dir.ShowFreshness != nil {
		d.Values["show_freshness"] = onOff(*dir.ShowFreshness)
	}
	for _, rule := range dir.Rules {
		rule = strings.TrimSpace(rule)
		if rule == "" || d.hasRule(rule) {
			continue
		}
		d.Rules = append(d.Rules, rule)
	}
	d.truncateRules()
}

func (d *Document) hasRule(rule string) bool {
	for _, r := range d.Rules {
		if r == rule {
			return true
		}
	}
	return false
}

func (d *Document) truncateRules() {
	if len(d.Rules) > MaxRules {
		d.Rules = d.Rules[len(d.Rules)-MaxRules:]
	}
}

func isKnownKey(key string) bool {
	for _, k := range keyOrder {
		if k == key {
			return true
		}
	}
	return false
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func clampDecimals(n int) int {
	if n < 0 {
		return 0
	}
	if n > 8 {
		return 8
	}
	return n
}
