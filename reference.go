package bundler

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var remotePattern = regexp.MustCompile(`^(https?:)?//`)

// IsRemote reports whether ref points at a remote resource: http://,
// https:// or protocol-relative //.
func IsRemote(ref string) bool {
	return remotePattern.MatchString(ref)
}

// remoteURL turns a protocol-relative reference into a fetchable URL.
func remoteURL(ref string) string {
	if strings.HasPrefix(ref, "//") {
		return "http:" + ref
	}
	return ref
}

// cleanRoot normalizes the configured public root. "." and "" both mean
// "no root".
func cleanRoot(root string) string {
	if root == "" {
		return ""
	}
	root = filepath.Clean(root)
	if root == "." {
		return ""
	}
	return root
}

// resolve maps a local reference onto the filesystem. Remote references are
// returned untouched.
func resolve(root, ref string) string {
	if IsRemote(ref) {
		return ref
	}
	if root == "" {
		return filepath.Clean(ref)
	}
	return filepath.Join(root, ref)
}

// relative strips the public root from a resolved reference, yielding the
// slash-separated root-relative form used for fingerprints and URLs. Files
// outside the root keep their resolved path.
func relative(root, file string) string {
	if IsRemote(file) || root == "" {
		return filepath.ToSlash(file)
	}
	rel, err := filepath.Rel(root, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}

// folder returns the directory portion of a reference, with a trailing
// slash, as seen from the public root. Files at the top level have no
// folder.
func folder(root, file string) string {
	if IsRemote(file) {
		u := remoteURL(file)
		hostStart := strings.Index(u, "://") + len("://")
		if i := strings.LastIndex(u, "/"); i >= hostStart {
			return u[:i+1]
		}
		return ""
	}
	dir := path.Dir(relative(root, file))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir + "/"
}

// joinURL concatenates a base URL and a slash-separated path with exactly
// one slash between them.
func joinURL(base, p string) string {
	if base == "" {
		if strings.HasPrefix(p, "/") {
			return p
		}
		return "/" + p
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(p, "/")
}
