package resource

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
)

// Resolve turns an expanded image URL into what will be loaded and watched.
//
// Absolute filesystem paths are cleaned and used as is. Scheme-qualified
// URIs are used verbatim, except file:// URIs which resolve to their path.
// Anything else is a path relative to the directory of sourceFile. The local
// result reports whether resolved is a filesystem path.
func Resolve(rawURL, sourceFile string) (resolved string, local bool, err error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false, errors.New("image url is empty")
	}

	if filepath.IsAbs(rawURL) {
		return filepath.Clean(rawURL), true, nil
	}

	if u, ok := absoluteURI(rawURL); ok {
		if !strings.EqualFold(u.Scheme, "file") {
			return rawURL, false, nil
		}
		p := filepath.FromSlash(u.Path)
		if p == "" || !filepath.IsAbs(p) {
			return "", false, errors.New("file URI has no absolute path")
		}
		return filepath.Clean(p), true, nil
	}

	if sourceFile == "" {
		return "", false, errors.New("source file path is empty")
	}
	abs, err := filepath.Abs(filepath.Join(filepath.Dir(sourceFile), rawURL))
	if err != nil {
		return "", false, err
	}
	return abs, true, nil
}

// absoluteURI reports whether s carries a URI scheme. Single-letter schemes
// are Windows drive letters, not URIs.
func absoluteURI(s string) (*url.URL, bool) {
	u, err := url.Parse(s)
	if err != nil || len(u.Scheme) < 2 {
		return nil, false
	}
	return u, true
}
