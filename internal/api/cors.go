package api

import (
	"net/http"
	"regexp"
	"strings"
)

// CORS restricts browser access to the configured origin patterns.
// Patterns may contain `*` wildcards (e.g. "http://localhost:*") so the
// widget works regardless of the dev server's port. Unlisted origins
// get the first configured pattern echoed back, which the browser will
// reject.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	matchers := make([]*regexp.Regexp, 0, len(allowedOrigins))
	for _, pattern := range allowedOrigins {
		matchers = append(matchers, compileOriginPattern(pattern))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := allowedOrigins[0]
			if origin != "" {
				for _, m := range matchers {
					if m.MatchString(origin) {
						allowed = origin
						break
					}
				}
			}

			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// compileOriginPattern turns a wildcard pattern into an anchored
// regexp, escaping everything except `*`.
func compileOriginPattern(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")
}
