package kit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const unmatchedRoute = "unmatched"

// ChiRoutePattern returns the matched chi pattern ("/api/templates/{id}")
// so metric labels stay bounded. Requests that never reached a route share
// one label instead of leaking raw paths.
func ChiRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if rp := rctx.RoutePattern(); rp != "" && rp != "/*" {
		return rp
	}
	return unmatchedRoute
}
