package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/errdesk/internal/api/response"
	"github.com/kiranshivaraju/errdesk/internal/intake"
	"github.com/kiranshivaraju/errdesk/pkg/models"
)

const (
	panicCode     = "PANIC"
	panicCategory = "Runtime"
)

// Capturer records an automatically caught error. *intake.Service
// satisfies it.
type Capturer interface {
	Capture(ctx context.Context, in intake.CaptureInput) *models.ErrorLog
}

// Recovery turns handler panics into a 500 and records each panic as an
// error log through c. A nil c only logs.
func Recovery(c Capturer) func(http.Handler) http.Handler {
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

				stack := string(debug.Stack())
				slog.Error("panic recovered",
					"error", rec,
					"stack", stack,
					"method", r.Method,
					"path", r.URL.Path,
				)
				if c != nil {
					c.Capture(context.WithoutCancel(r.Context()), intake.CaptureInput{
						Err:        panicError(rec),
						Title:      fmt.Sprintf("Panic in %s %s", r.Method, routePattern(r)),
						Code:       panicCode,
						Category:   panicCategory,
						StackTrace: stack,
						URL:        r.URL.String(),
						UserAgent:  r.UserAgent(),
					})
				}
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("%v", rec)
}

// routePattern returns the matched chi pattern, e.g. /api/v1/errors/{errorID},
// falling back to the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
