package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/makeitmeme/internal/middleware"
)

// Logging creates request logging middleware for the API. Every response
// carries an X-Request-ID header.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger)
}
