package http

import (
	"context"
	nethttp "net/http"
	"time"

	"atmledger/internal/domain"
	"atmledger/internal/logger"
	"atmledger/internal/session"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	sessionKey   ctxKey = "session"
)

func requestID(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// requestLogger puts a request-scoped logger into the context and logs one
// line per request.
func requestLogger(base zerolog.Logger) func(nethttp.Handler) nethttp.Handler {
	return func(next nethttp.Handler) nethttp.Handler {
		return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			start := time.Now()
			id, _ := r.Context().Value(requestIDKey).(string)
			log := base.With().Str("request_id", id).Logger()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), log)))

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("http request")
		})
	}
}

func recoverer(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == nethttp.ErrAbortHandler {
					panic(rec)
				}
				logger.FromContext(r.Context()).Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("panic recovered")
				writeJSON(w, nethttp.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireSession(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			writeError(w, r, domain.ErrUnauthorized)
			return
		}
		sess, err := h.sessions.Touch(c.Value)
		if err != nil {
			clearSessionCookie(w)
			writeError(w, r, err)
			return
		}
		if sess.Warn {
			w.Header().Set("X-Session-Warning", "idle")
		}

		log := logger.FromContext(r.Context()).With().Str("operator", sess.Identity.Username).Logger()
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		ctx = logger.WithContext(ctx, log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireCSRF(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sess := sessionFrom(r.Context())
		if err := h.sessions.VerifyCSRF(sess.ID, r.Header.Get(csrfHeader)); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFrom(ctx context.Context) session.Session {
	sess, _ := ctx.Value(sessionKey).(session.Session)
	return sess
}

func setSessionCookie(w nethttp.ResponseWriter, sess session.Session) {
	nethttp.SetCookie(w, &nethttp.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: nethttp.SameSiteStrictMode,
	})
}

func clearSessionCookie(w nethttp.ResponseWriter) {
	nethttp.SetCookie(w, &nethttp.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
