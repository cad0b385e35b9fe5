package feed

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// GeneratedGUIDPrefix marks GUIDs derived by hashing when a feed item carries
// no usable identifier.
const GeneratedGUIDPrefix = "generated:"

// Normalizer turns a ParsedEntry into a storable Entry: stable GUID,
// selected content, bounded summary, absolute URLs, sanitized HTML.
type Normalizer struct {
	sanitizer     *Sanitizer
	summaryMaxLen int
}

func NewNormalizer(summaryMaxLen int) *Normalizer {
	return &Normalizer{
		sanitizer:     NewSanitizer(),
		summaryMaxLen: summaryMaxLen,
	}
}

// Run normalizes one parsed entry. feedID seeds hash-derived GUIDs so
// identical empty items from different feeds never collide; baseURL anchors
// relative URL resolution.
func (n *Normalizer) Run(feedID, baseURL string, pe ParsedEntry) Entry {
	entry := Entry{
		GUID:   n.guid(feedID, pe),
		URL:    strings.TrimSpace(pe.Link),
		Title:  StripControlChars(strings.TrimSpace(pe.Title)),
		Author: StripControlChars(strings.TrimSpace(pe.Author)),
	}

	content := cmp.Or(strings.TrimSpace(pe.Content), strings.TrimSpace(pe.Summary))
	content = RewriteURLs(content, baseURL)
	content = n.sanitizer.Run(content)
	entry.Content = StripControlChars(content)

	entry.Summary = n.summarize(pe.Summary)
	entry.PublishedAt = publishedDate(pe)

	return entry
}

// guid falls back through id, link and title; when all are blank it derives
// a deterministic hash so re-ingesting the same item never duplicates it.
func (n *Normalizer) guid(feedID string, pe ParsedEntry) string {
	if id := strings.TrimSpace(pe.ID); id != "" {
		return id
	}
	if link := strings.TrimSpace(pe.Link); link != "" {
		return link
	}
	if title := strings.TrimSpace(pe.Title); title != "" {
		return title
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", feedID, pe.Title, pe.Link)))
	return GeneratedGUIDPrefix + hex.EncodeToString(sum[:])
}

func (n *Normalizer) summarize(raw string) string {
	summary := StripControlChars(strings.TrimSpace(raw))
	if summary == "" {
		return ""
	}

	runes := []rune(summary)
	if n.summaryMaxLen > 0 && len(runes) > n.summaryMaxLen {
		return string(runes[:n.summaryMaxLen]) + "..."
	}
	return summary
}

func publishedDate(pe ParsedEntry) *time.Time {
	if pe.PublishedAt != nil {
		t := pe.PublishedAt.UTC()
		return &t
	}
	if pe.UpdatedAt != nil {
		t := pe.UpdatedAt.UTC()
		return &t
	}
	return nil
}

// StripControlChars removes bytes 0x00-0x08, 0x0B, 0x0C and 0x0E-0x1F, which
// are illegal in XML output. Tab, newline and CR are kept.
func StripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
}
