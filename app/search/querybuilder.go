package search

import (
	"strconv"
	"strings"

	"feedvault/app/database"
)

// QueryBuilder turns a raw search string into a parameterized keyword query.
// The generated WHERE fragment never contains user text, only placeholders.
type QueryBuilder struct {
	maxWords int
}

func NewQueryBuilder(maxWords int) *QueryBuilder {
	if maxWords <= 0 {
		maxWords = 6
	}
	return &QueryBuilder{maxWords: maxWords}
}

// Build produces the keyword query for raw. ok is false when the query is
// empty after trimming. A quoted phrase (or a single word) becomes one
// substring match against title or content; multiple words must all occur
// in the title or all in the content, ranking topical matches over
// scattershot ones.
func (b *QueryBuilder) Build(raw string, limit int) (database.KeywordQuery, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return database.KeywordQuery{}, false
	}

	if phrase, ok := quotedPhrase(trimmed); ok {
		if phrase == "" {
			return database.KeywordQuery{}, false
		}
		return database.KeywordQuery{
			Where: "(title ILIKE $1 OR content ILIKE $1)",
			Args:  []interface{}{likePattern(phrase)},
			Limit: limit,
		}, true
	}

	words := dedupeWords(strings.Fields(trimmed))

	truncated := false
	if len(words) > b.maxWords {
		words = words[:b.maxWords]
		truncated = true
	}

	if len(words) == 1 {
		return database.KeywordQuery{
			Where:     "(title ILIKE $1 OR content ILIKE $1)",
			Args:      []interface{}{likePattern(words[0])},
			Limit:     limit,
			Truncated: truncated,
		}, true
	}

	args := make([]interface{}, len(words))
	titleConds := make([]string, len(words))
	contentConds := make([]string, len(words))
	for i, word := range words {
		args[i] = likePattern(word)
		placeholder := "$" + strconv.Itoa(i+1)
		titleConds[i] = "title ILIKE " + placeholder
		contentConds[i] = "content ILIKE " + placeholder
	}

	where := "((" + strings.Join(titleConds, " AND ") + ") OR (" +
		strings.Join(contentConds, " AND ") + "))"

	return database.KeywordQuery{
		Where:     where,
		Args:      args,
		Limit:     limit,
		Truncated: truncated,
	}, true
}

// Phrase returns the effective needle for exact-title comparison: the quoted
// phrase if present, the raw query otherwise.
func (b *QueryBuilder) Phrase(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if phrase, ok := quotedPhrase(trimmed); ok {
		return phrase
	}
	return trimmed
}

func quotedPhrase(s string) (string, bool) {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.TrimSpace(s[1 : len(s)-1]), true
	}
	return "", false
}

// likePattern wraps the needle in wildcards, escaping LIKE metacharacters so
// user input cannot widen the match.
func likePattern(needle string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(needle)
	return "%" + escaped + "%"
}

func dedupeWords(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := words[:0]
	for _, w := range words {
		lower := strings.ToLower(w)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, w)
	}
	return out
}
