package bundler

import (
	"bytes"
	"regexp"
)

// cssURLPattern matches url(...) with optional quotes and surrounding
// whitespace. Group 2 is the target.
var cssURLPattern = regexp.MustCompile(`(?i)url\(\s*(["']?)(.*?)(["']?)\s*\)`)

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// RewriteCSSURLs prefixes every relative url(...) target in content with
// folder, so references stay valid once the stylesheet is concatenated into
// a bundle stored elsewhere. Absolute paths, fragments and URLs with a
// scheme (including data:) are left alone.
func RewriteCSSURLs(folder string, content []byte) []byte {
	if folder == "" {
		return content
	}
	matches := cssURLPattern.FindAllSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content
	}

	var out bytes.Buffer
	out.Grow(len(content) + len(matches)*len(folder))
	last := 0
	for _, m := range matches {
		start, end := m[4], m[5]
		if !isRelativeURL(content[start:end]) {
			continue
		}
		out.Write(content[last:start])
		out.WriteString(folder)
		last = start
	}
	out.Write(content[last:])
	return out.Bytes()
}

func isRelativeURL(target []byte) bool {
	target = bytes.TrimSpace(target)
	if len(target) == 0 {
		return false
	}
	switch target[0] {
	case '/', '#':
		return false
	}
	return !schemePattern.Match(target)
}
