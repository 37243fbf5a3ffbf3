package xhttp

import "net/http"

// Status codes used by the package, aliased so callers stay on the xhttp
// surface instead of mixing net/http into fasthttp handlers.
const (
	StatusNotFound            = http.StatusNotFound
	StatusRequestTimeout      = http.StatusRequestTimeout
	StatusInternalServerError = http.StatusInternalServerError
)

// StatusText returns the canonical reason phrase for a status code.
func StatusText(code int) string {
	return http.StatusText(code)
}
