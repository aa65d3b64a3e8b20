package http

import (
	"encoding/json"
	"errors"
	nethttp "net/http"

	"atmledger/internal/domain"
	"atmledger/internal/logger"
	"atmledger/internal/port"
	"atmledger/internal/session"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	sessionCookie = "atm_session"
	csrfHeader    = "X-CSRF-Token"
)

type Services struct {
	Withdrawals port.WithdrawalService
	Cards       port.CardInfoService
	Operations  port.OperationService
	Auth        port.AuthService
}

type Handler struct {
	svc      Services
	sessions *session.Store
	validate *validator.Validate
	log      zerolog.Logger
	metrics  nethttp.Handler
}

type Option func(*Handler)

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h nethttp.Handler) Option {
	return func(hd *Handler) { hd.metrics = h }
}

func NewHandler(svc Services, sessions *session.Store, log zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		svc:      svc,
		sessions: sessions,
		validate: validator.New(),
		log:      log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Routes() nethttp.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(h.log))
	r.Use(recoverer)

	r.Get("/health", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ok"})
	})
	if h.metrics != nil {
		r.Method(nethttp.MethodGet, "/metrics", h.metrics)
	}

	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)

		r.Get("/session", h.Session)
		r.Get("/cards/{cardID}/info", h.CardInfo)
		r.Get("/cards/active", h.ActiveCards)
		r.Get("/atms/active", h.ActiveATMs)
		r.Get("/operations", h.Operations)

		r.Group(func(r chi.Router) {
			r.Use(h.requireCSRF)
			r.Use(chimw.AllowContentType("application/json"))

			r.Post("/logout", h.Logout)
			r.Post("/withdraw", h.Withdraw)
			r.Post("/withdraw/unlocked", h.WithdrawUnlocked)
			r.Post("/withdrawals", h.Withdraw)
		})
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w nethttp.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps err onto a status code. Storage details never leave the
// process; they are logged instead.
func writeError(w nethttp.ResponseWriter, r *nethttp.Request, err error) {
	status, msg := statusFor(err)
	if status == nethttp.StatusInternalServerError {
		logger.FromContext(r.Context()).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidCSRF):
		return nethttp.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return nethttp.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInactive), errors.Is(err, domain.ErrInsufficientFunds):
		return nethttp.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrSessionExpired):
		return nethttp.StatusUnauthorized, err.Error()
	default:
		return nethttp.StatusInternalServerError, "internal error"
	}
}
