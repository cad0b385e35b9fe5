package feed

import (
	"strings"

	"golang.org/x/net/html"
)

// allowedTags is the allow-list of tags kept in sanitized content. Anything
// else is unwrapped: the tag disappears, its children stay.
var allowedTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "blockquote": true, "br": true,
	"code": true, "dd": true, "del": true, "div": true, "dl": true,
	"dt": true, "em": true, "figcaption": true, "figure": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "i": true, "img": true, "ins": true, "li": true,
	"ol": true, "p": true, "pre": true, "q": true, "s": true,
	"small": true, "span": true, "strong": true, "sub": true, "sup": true,
	"table": true, "tbody": true, "td": true, "tfoot": true, "th": true,
	"thead": true, "tr": true, "u": true, "ul": true,
}

// strippedContainers are removed together with their children; leaving a
// bare <script> body or <video> fallback behind as text would be worse than
// losing it.
var strippedContainers = map[string]bool{
	"script": true, "style": true, "iframe": true,
	"video": true, "audio": true, "picture": true,
}

// strippedVoids have no end tag; the token alone is dropped.
var strippedVoids = map[string]bool{
	"source": true, "track": true,
}

var allowedAttrs = map[string]map[string]bool{
	"a":   {"href": true, "title": true},
	"img": {"src": true, "srcset": true, "alt": true, "title": true, "width": true, "height": true},
	"td":  {"colspan": true, "rowspan": true},
	"th":  {"colspan": true, "rowspan": true},
	"q":   {"cite": true},
	"blockquote": {"cite": true},
}

var voidTags = map[string]bool{
	"br": true, "hr": true, "img": true,
}

// Sanitizer filters entry HTML down to the allow-list above and removes any
// href/src-like attribute whose value smuggles a javascript: URL.
type Sanitizer struct{}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// Run sanitizes an HTML fragment. Stripped containers drop their children by
// depth tracking; when the input is malformed (unbalanced tags) inline
// fallback text can still leak through, which we accept rather than trying
// to repair broken markup.
func (s *Sanitizer) Run(input string) string {
	if input == "" {
		return input
	}

	var out strings.Builder
	z := html.NewTokenizer(strings.NewReader(input))

	stripTag := ""
	stripDepth := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		if stripDepth > 0 {
			switch tt {
			case html.StartTagToken:
				name, _ := z.TagName()
				if string(name) == stripTag {
					stripDepth++
				}
			case html.EndTagToken:
				name, _ := z.TagName()
				if string(name) == stripTag {
					stripDepth--
					if stripDepth == 0 {
						stripTag = ""
					}
				}
			}
			continue
		}

		switch tt {
		case html.TextToken:
			out.WriteString(html.EscapeString(string(z.Text())))

		case html.CommentToken:
			tok := z.Token()
			out.WriteString("<!--")
			out.WriteString(tok.Data)
			out.WriteString("-->")

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			name := tok.Data

			if strippedVoids[name] {
				continue
			}
			if strippedContainers[name] {
				if tt == html.StartTagToken {
					stripTag = name
					stripDepth = 1
				}
				continue
			}
			if !allowedTags[name] {
				continue // unwrap: children still render
			}

			writeTag(&out, name, tok.Attr, tt == html.SelfClosingTagToken || voidTags[name])

		case html.EndTagToken:
			tok := z.Token()
			name := tok.Data
			if !allowedTags[name] || strippedContainers[name] || strippedVoids[name] || voidTags[name] {
				continue
			}
			out.WriteString("</")
			out.WriteString(name)
			out.WriteString(">")
		}
	}

	return out.String()
}

// urlAttrs are the attributes checked for javascript: payloads.
var urlAttrs = map[string]bool{
	"href": true, "src": true, "srcset": true, "cite": true,
	"poster": true, "data": true,
}

func writeTag(out *strings.Builder, name string, attrs []html.Attribute, selfClose bool) {
	out.WriteString("<")
	out.WriteString(name)

	allowed := allowedAttrs[name]
	for _, attr := range attrs {
		key := strings.ToLower(attr.Key)
		if allowed == nil || !allowed[key] {
			continue
		}
		// javascript: anywhere in the value, not just as a prefix; attackers
		// pad with whitespace and entities to defeat prefix checks. The
		// attribute goes, the element and its text stay.
		if urlAttrs[key] && strings.Contains(strings.ToLower(attr.Val), "javascript:") {
			continue
		}
		out.WriteString(" ")
		out.WriteString(key)
		out.WriteString(`="`)
		out.WriteString(html.EscapeString(attr.Val))
		out.WriteString(`"`)
	}

	if selfClose {
		out.WriteString("/>")
	} else {
		out.WriteString(">")
	}
}
