package middleware

import (
	"net/http"
	"runtime/debug"

	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/metrics"
)

// Recovery turns a handler panic into a 500. The panic value and stack are
// logged, never sent to the client.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	log = log.With("recovery")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				endpoint := routeTemplate(r)
				metrics.HTTPPanicsRecovered.WithLabelValues(endpoint).Inc()
				log.Error("PANIC on %s %s (%s): %v\n%s", r.Method, r.URL.Path, endpoint, rec, debug.Stack())

				writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
