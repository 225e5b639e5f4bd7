package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const timeoutMessage = "request processing exceeded the allowed time"

// RequestTimeout puts a deadline on the request context and runs the handler
// on the calling goroutine. Handlers stop at the deadline by returning the
// context's error, which becomes a 504. The progress websocket (/ws) is
// long-lived and the submit route waits on the mail provider, so both are
// skipped.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Skipper: func(c echo.Context) bool { return skipTimeout(c.Request().URL.Path) },
		Timeout: timeout,
		ErrorHandler: func(err error, c echo.Context) error {
			if errors.Is(err, context.DeadlineExceeded) {
				return echo.NewHTTPError(http.StatusGatewayTimeout, timeoutMessage).SetInternal(err)
			}
			return err
		},
	})
}

func skipTimeout(p string) bool {
	return p == "/ws" || strings.HasPrefix(p, "/ws/") || strings.HasSuffix(strings.TrimSuffix(p, "/"), "/submit")
}
