package feed

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Parser wraps gofeed and flattens its loosely-typed items into ParsedEntry
// values so everything downstream operates on a fixed shape.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Metadata, []ParsedEntry, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
	}

	entries := make([]ParsedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, p.flattenItem(item))
	}

	return metadata, entries, nil
}

func (p *Parser) flattenItem(item *gofeed.Item) ParsedEntry {
	entry := ParsedEntry{
		ID:      item.GUID,
		Link:    item.Link,
		Title:   item.Title,
		Summary: item.Description,
		Content: item.Content,
	}

	if item.PublishedParsed != nil {
		entry.PublishedAt = item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		entry.UpdatedAt = item.UpdatedParsed
	}

	entry.Author = p.extractAuthor(item)

	return entry
}

func (p *Parser) extractAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		if s := p.formatAuthor(item.Authors[0].Name, item.Authors[0].Email); s != "" {
			return s
		}
	}
	if item.Author != nil {
		return p.formatAuthor(item.Author.Name, item.Author.Email)
	}
	return ""
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}
