package observability

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/platinummonkey/synergyhub/pkg/contextkeys"
)

// RecoveryMiddleware turns a handler panic into a logged error and a call to
// respond, which writes the 500 in the caller's error format. A nil respond
// falls back to a plain-text 500. http.ErrAbortHandler is re-raised so the
// server can drop the connection.
func RecoveryMiddleware(logger *Logger, respond func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	if respond == nil {
		respond = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				fields := map[string]interface{}{
					"panic":      fmt.Sprint(v),
					"stack":      string(debug.Stack()),
					"route":      r.Method + " " + r.URL.Path,
					"request_id": contextkeys.GetRequestID(r.Context()),
				}
				if start, ok := contextkeys.GetRequestStartTime(r.Context()); ok {
					fields["elapsed_ms"] = time.Since(start).Milliseconds()
				}
				logger.WithFields(fields).Error("Recovered handler panic")
				respond(w, r)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
