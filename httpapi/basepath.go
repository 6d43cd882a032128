package httpapi

import (
	"net/http"
	"strings"
)

// normalizeBasePath turns a configured mount point into "/prefix" form, or ""
// when the bridge is served from the root.
func normalizeBasePath(value string) string {
	path := strings.Trim(strings.TrimSpace(value), "/")
	if path == "" {
		return ""
	}
	return "/" + path
}

// mountBasePath serves h under prefix so /bridge and /api/* resolve below it.
// The bare prefix redirects to prefix+"/".
func mountBasePath(prefix string, h http.Handler) http.Handler {
	if prefix == "" {
		return h
	}
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, h))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}
