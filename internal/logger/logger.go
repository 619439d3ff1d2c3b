// Package logger holds the process-wide zap logger and the access-log
// middleware shared by the console and the stub API.
package logger

import (
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Log discards everything until Init is called, so packages and tests can log
// unconditionally. *zap.SugaredLogger also satisfies resty.Logger.
var Log = zap.NewNop().Sugar()

// Init replaces Log with a development logger at the given level.
// "warning" is accepted as an alias of "warn".
func Init(level string) error {
	if level == "warning" {
		level = "warn"
	}
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = atomicLevel
	cfg.DisableStacktrace = atomicLevel.Level() > zap.DebugLevel
	built, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = built.Sugar()

	return nil
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func Sync() error {
	err := Log.Sync()
	if err == nil || errors.Is(err, os.ErrInvalid) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) {
		return nil
	}

	return err
}

// WithLoggingHTTPMiddleware writes one access-log line per request.
func WithLoggingHTTPMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		h.ServeHTTP(wrapped, r)

		status := wrapped.Status()
		if status == 0 {
			status = http.StatusOK
		}
		Log.Infoln(
			"uri", r.RequestURI,
			"method", r.Method,
			"status", status,
			"duration", time.Since(start),
			"size", wrapped.BytesWritten(),
		)
	})
}
