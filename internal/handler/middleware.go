package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vokorun/runclub/internal/auth"
)

type contextKey string

const snapshotKey contextKey = "snapshot"

// Logger writes one structured access-log line per request.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", chimw.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Identity resolves the session's identity to a snapshot on every request and
// stores it in the request context. It must run inside the session middleware.
func Identity(sessions *auth.Sessions, resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := resolver.Resolve(r.Context(), sessions.Identity(r.Context()))
			ctx := context.WithValue(r.Context(), snapshotKey, snap)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SnapshotFrom returns the snapshot stored by Identity, or the signed-out
// snapshot if there is none.
func SnapshotFrom(ctx context.Context) auth.Snapshot {
	snap, _ := ctx.Value(snapshotKey).(auth.Snapshot)
	return snap
}
