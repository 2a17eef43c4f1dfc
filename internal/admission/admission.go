// Package admission decides which extracted links become crawl work. Both
// functions are pure and safe for concurrent use.
package admission

import "strings"

// Canonicalize turns a raw extracted link into the comparable form used as
// frontier identity. Only a handful of rewrites are applied:
//
//   - the link is lowercased
//   - one leading "../" or "/../" loses its ".." so the rest is kept verbatim
//   - stylesheet and script links drop their query string
//   - root-relative links get rootURL prepended
//
// Fragments, trailing slashes and percent-encoding are left untouched, and
// "../" is not resolved against the current path.
func Canonicalize(rawLink, rootURL string) string {
	link := strings.ToLower(rawLink)

	if strings.HasPrefix(link, "../") {
		link = link[2:]
	}
	if strings.HasPrefix(link, "/../") {
		link = link[3:]
	}

	if strings.Contains(link, ".css?") || strings.Contains(link, ".js?") {
		link = link[:strings.IndexByte(link, '?')]
	}

	if strings.HasPrefix(link, "/") {
		// A trailing slash on the root is dropped so "R/" + "/a" is "R/a", not "R//a".
		link = strings.TrimSuffix(rootURL, "/") + link
	}
	return link
}

// InScope reports whether canonicalURL belongs to the site rooted at rootURL.
// Blank links and anything not prefixed by the exact root string (other hosts,
// mailto:, javascript: and so on) are out of scope.
func InScope(canonicalURL, rootURL string) bool {
	if strings.TrimSpace(canonicalURL) == "" || rootURL == "" {
		return false
	}
	return strings.HasPrefix(canonicalURL, rootURL)
}

// Admit canonicalizes rawLink and reports whether it is in scope.
func Admit(rawLink, rootURL string) (string, bool) {
	canonical := Canonicalize(rawLink, rootURL)
	return canonical, InScope(canonical, rootURL)
}
