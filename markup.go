package bundler

import (
	"fmt"
	"regexp"
	"strings"
)

// Attr is a single markup attribute. An empty Key makes Value the attribute
// name, rendering a bare boolean attribute such as defer.
type Attr struct {
	Key   string
	Value any
}

// Attributes is an ordered attribute list. Rendering follows slice order.
type Attributes []Attr

// Flag returns a positional attribute rendered as its bare name.
func Flag(name string) Attr {
	return Attr{Value: name}
}

// renderAttributes serializes attrs in order, separated by single spaces.
// A key that already appeared earlier is skipped, so mandatory attributes
// placed first always win.
func renderAttributes(attrs Attributes) string {
	seen := make(map[string]struct{}, len(attrs))
	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		name, element, ok := attributeElement(attr.Key, attr.Value)
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		parts = append(parts, element)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// attributeElement renders one attribute. It reports false when the
// attribute is to be omitted (nil or false values).
func attributeElement(key string, value any) (name, element string, ok bool) {
	if key == "" {
		s, isString := value.(string)
		if !isString || s == "" {
			return "", "", false
		}
		return s, s, true
	}

	switch v := value.(type) {
	case nil:
		return "", "", false
	case bool:
		if !v {
			return "", "", false
		}
		return key, key, true
	case string:
		return key, key + `="` + escapeAttribute(v) + `"`, true
	default:
		return key, key + `="` + escapeAttribute(fmt.Sprint(v)) + `"`, true
	}
}

var entityPattern = regexp.MustCompile(`^&(#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)

// escapeAttribute escapes quotes and HTML-reserved characters. Entities that
// are already encoded are kept as they are.
func escapeAttribute(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			if entityPattern.MatchString(s[i:]) {
				b.WriteByte(c)
			} else {
				b.WriteString("&amp;")
			}
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#039;")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ScriptTag renders a script reference.
func ScriptTag(src string, attrs Attributes) string {
	all := append(Attributes{{Key: "src", Value: src}}, attrs...)
	return "<script " + renderAttributes(all) + "></script>\n"
}

// StylesheetTag renders a stylesheet link. rel="stylesheet" is always
// present and cannot be overridden.
func StylesheetTag(href string, attrs Attributes) string {
	all := append(Attributes{{Key: "href", Value: href}, {Key: "rel", Value: "stylesheet"}}, attrs...)
	return "<link " + renderAttributes(all) + ">\n"
}
