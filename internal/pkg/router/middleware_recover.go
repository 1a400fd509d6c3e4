package router

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/sendratama/otpgate/internal/pkg/stacktrace"
)

// middlewareRecoverer converts handler panics into a JSON 500 response.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel compare on purpose
				panic(rvr)
			}

			frames := stacktrace.InternalPaths(debug.Stack())
			if len(frames) == 0 {
				slog.ErrorContext(r.Context(), "panic in http handler", "panic", rvr, "stack", string(debug.Stack()))
			} else {
				slog.ErrorContext(r.Context(), "panic in http handler", "panic", rvr, "stack", frames)
			}

			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			if r.Header.Get("Connection") != "Upgrade" {
				w.WriteHeader(http.StatusInternalServerError)
			}
			json.NewEncoder(w).Encode(map[string]string{"message": "Internal server error"}) //nolint:errcheck // response is already committed
		}()

		next.ServeHTTP(w, r)
	})
}
