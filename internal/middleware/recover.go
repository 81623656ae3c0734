package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/quizbirr/quizbirr-api/internal/pkg/errorhandler"
)

// Recover turns a handler panic into a 500. A panic inside a unit of work has already
// rolled the database transaction back by the time it reaches here.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				errorhandler.HandlePanicError(r.Context(), w, rec, debug.Stack())
			}
		}()

		next.ServeHTTP(w, r)
	})
}
