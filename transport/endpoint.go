package transport

import (
	"net/url"
	"strings"
)

// Endpoint derives the URL for kind from the spans endpoint by replacing
// its trailing path segment. Unparsable URLs are returned unchanged.
func Endpoint(base string, kind Kind) string {
	if kind == KindSpans || base == "" {
		return base
	}

	u, err := url.Parse(base)
	if err != nil {
		return base
	}

	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[:i]
	} else {
		path = ""
	}

	u.Path = path + "/" + string(kind)
	u.RawPath = ""
	return u.String()
}
