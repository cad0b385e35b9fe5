package feed

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Regex-based rewriting instead of a DOM round-trip: feeds embed HTML
// fragments that a parser would "fix up", and comments must survive
// byte-for-byte. Comments are swapped for placeholders before rewriting and
// restored afterward so nothing inside them is ever touched.
var (
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

	dqURLAttrRe = regexp.MustCompile(`(?i)\s(?:src|href|poster|data)\s*=\s*"[^"]*"`)
	sqURLAttrRe = regexp.MustCompile(`(?i)\s(?:src|href|poster|data)\s*=\s*'[^']*'`)

	dqSrcsetRe = regexp.MustCompile(`(?i)\ssrcset\s*=\s*"[^"]*"`)
	sqSrcsetRe = regexp.MustCompile(`(?i)\ssrcset\s*=\s*'[^']*'`)
)

// RewriteURLs makes every src/href/poster/data attribute and every srcset
// candidate absolute relative to baseURL. Already-absolute values,
// protocol-relative values, data:/mailto:/tel:/javascript: URLs and bare
// fragments pass through unchanged.
func RewriteURLs(html, baseURL string) string {
	if html == "" {
		return html
	}

	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || !base.IsAbs() {
		return html
	}

	// Shelter comments behind placeholders.
	var comments []string
	html = commentRe.ReplaceAllStringFunc(html, func(c string) string {
		comments = append(comments, c)
		return fmt.Sprintf("\x00fv-comment-%d\x00", len(comments)-1)
	})

	rewriteAttr := func(m string) string {
		name, quote, val, ok := splitAttr(m)
		if !ok {
			return m
		}
		return name + "=" + quote + resolveURL(base, val) + quote
	}
	html = dqURLAttrRe.ReplaceAllStringFunc(html, rewriteAttr)
	html = sqURLAttrRe.ReplaceAllStringFunc(html, rewriteAttr)

	rewriteSrcset := func(m string) string {
		name, quote, val, ok := splitAttr(m)
		if !ok {
			return m
		}
		return name + "=" + quote + resolveSrcset(base, val) + quote
	}
	html = dqSrcsetRe.ReplaceAllStringFunc(html, rewriteSrcset)
	html = sqSrcsetRe.ReplaceAllStringFunc(html, rewriteSrcset)

	// Restore comments.
	for i, c := range comments {
		html = strings.Replace(html, fmt.Sprintf("\x00fv-comment-%d\x00", i), c, 1)
	}

	return html
}

// splitAttr decomposes a regex match like ` src = "value"` into the part
// before '=', the quote character and the quoted value.
func splitAttr(m string) (name, quote, val string, ok bool) {
	eq := strings.Index(m, "=")
	if eq < 0 || len(m) < eq+3 {
		return "", "", "", false
	}
	name = strings.TrimRight(m[:eq], " \t")
	rest := strings.TrimLeft(m[eq+1:], " \t")
	if len(rest) < 2 {
		return "", "", "", false
	}
	quote = rest[:1]
	val = rest[1 : len(rest)-1]
	return name, quote, val, true
}

var passthroughSchemes = []string{"data:", "mailto:", "tel:", "javascript:"}

func resolveURL(base *url.URL, val string) string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
		return val
	}

	lower := strings.ToLower(trimmed)
	for _, scheme := range passthroughSchemes {
		if strings.HasPrefix(lower, scheme) {
			return val
		}
	}

	ref, err := url.Parse(trimmed)
	if err != nil {
		return val
	}
	if ref.IsAbs() {
		return val
	}

	// Absolute paths resolve against the origin, relative paths against the
	// base directory; url.ResolveReference implements both per RFC 3986.
	return base.ResolveReference(ref).String()
}

// resolveSrcset rewrites each candidate URL in a srcset list, preserving
// width/density descriptors.
func resolveSrcset(base *url.URL, val string) string {
	candidates := strings.Split(val, ",")
	out := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		fields[0] = resolveURL(base, fields[0])
		out = append(out, strings.Join(fields, " "))
	}

	return strings.Join(out, ", ")
}
