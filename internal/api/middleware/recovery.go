package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/kybernus/license-api/internal/pkg/errors"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/metrics"
	"github.com/kybernus/license-api/internal/pkg/utils"
)

// Recovery turns a handler panic into a logged 500 with the usual error body.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					metrics.RecordPanic()
					log.WithFields(map[string]interface{}{
						"error":      fmt.Sprint(err),
						"stack":      string(debug.Stack()),
						"method":     r.Method,
						"path":       r.URL.Path,
						"request_id": GetRequestID(r),
					}).Error("Panic recovered")

					utils.WriteError(w, errors.Internal("Internal server error", fmt.Errorf("panic: %v", err)))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
