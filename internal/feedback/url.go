package feedback

import (
	"fmt"
	"net/url"
)

// NormalizeURL strips query and fragment from a page URL, keeping only
// origin + path, so feedback for the same page lands in one session
// regardless of query parameters.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing page URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("page URL %q is not absolute", raw)
	}
	return u.Scheme + "://" + u.Host + u.Path, nil
}

// titleFromURL derives a session display title from the URL path,
// falling back to the raw URL when the path is empty.
func titleFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}
