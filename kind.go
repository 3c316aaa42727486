package bundler

import (
	"fmt"
	"strings"
)

// Kind is the set of capabilities that differ between asset kinds. The
// build pipeline itself is shared and lives on Provider.
type Kind struct {
	// Name identifies the kind in logs, configuration and manifests.
	Name string

	// Extension is appended to every artifact name, dot included.
	Extension string

	// Transform rewrites one file's content before concatenation. folder is
	// the file's directory relative to the public root (or its remote base
	// URL), with a trailing slash. Nil means no transform.
	Transform func(folder string, content []byte) []byte

	// Render produces the markup referencing url.
	Render func(url string, attrs Attributes) string

	// NewMinifier builds the default minifier for the kind.
	NewMinifier func() Minifier
}

var (
	// Script bundles JavaScript into <script> references.
	Script = Kind{
		Name:        "script",
		Extension:   ".js",
		Render:      ScriptTag,
		NewMinifier: NewJSMinifier,
	}

	// Stylesheet bundles CSS into <link rel="stylesheet"> references and
	// rewrites relative url(...) targets while aggregating.
	Stylesheet = Kind{
		Name:        "stylesheet",
		Extension:   ".css",
		Transform:   RewriteCSSURLs,
		Render:      StylesheetTag,
		NewMinifier: NewCSSMinifier,
	}
)

// KindByName resolves "script"/"js" and "stylesheet"/"css".
func KindByName(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "script", "js", "javascript":
		return Script, nil
	case "stylesheet", "css":
		return Stylesheet, nil
	default:
		return Kind{}, fmt.Errorf("unknown asset kind %q", name)
	}
}
