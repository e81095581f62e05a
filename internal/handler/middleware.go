package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/seatsync/seatsync/internal/model"
)

// RequesterHeader carries the id of the user making the request.
const RequesterHeader = "X-User-ID"

type requesterKey struct{}

// RequesterFrom returns the user resolved by Requester, or nil.
func RequesterFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(requesterKey{}).(*model.User)
	return u
}

// Requester resolves the X-User-ID header against the directory and stores
// the user in the request context. Unknown or missing ids get a 401.
func (h *BookingHandler) Requester(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequesterHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+RequesterHeader+" header")
			return
		}
		u, err := h.svc.ResolveUser(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unknown user: "+id)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requesterKey{}, u)))
	})
}

// Logger writes one structured access log line per request.
func Logger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("remote", r.RemoteAddr))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// CORS allows browser clients on any origin to call the API.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+RequesterHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
