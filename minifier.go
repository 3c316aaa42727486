package bundler

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
)

// Minifier transforms aggregated content for one asset kind. Errors, such
// as syntax errors, are returned to the caller of Make unchanged.
type Minifier interface {
	Minify(content string) (string, error)
}

// MinifierFunc adapts a plain function to the Minifier interface.
type MinifierFunc func(content string) (string, error)

// Minify implements Minifier.
func (f MinifierFunc) Minify(content string) (string, error) {
	return f(content)
}

// Passthrough returns content unchanged.
var Passthrough Minifier = MinifierFunc(func(content string) (string, error) {
	return content, nil
})

const (
	mediaTypeJS  = "application/javascript"
	mediaTypeCSS = "text/css"
)

type tdewolffMinifier struct {
	m         *minify.M
	mediaType string
}

func (t tdewolffMinifier) Minify(content string) (string, error) {
	return t.m.String(t.mediaType, content)
}

// NewJSMinifier returns the default JavaScript minifier.
func NewJSMinifier() Minifier {
	m := minify.New()
	m.AddFunc(mediaTypeJS, js.Minify)
	return tdewolffMinifier{m: m, mediaType: mediaTypeJS}
}

// NewCSSMinifier returns the default stylesheet minifier.
func NewCSSMinifier() Minifier {
	m := minify.New()
	m.AddFunc(mediaTypeCSS, css.Minify)
	return tdewolffMinifier{m: m, mediaType: mediaTypeCSS}
}
