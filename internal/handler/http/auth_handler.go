package http

import (
	"encoding/json"
	"fmt"
	nethttp "net/http"

	"atmledger/internal/domain"
	"atmledger/internal/logger"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type sessionResponse struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	CSRFToken   string `json:"csrf_token"`
	IdleTimeout int    `json:"idle_timeout_seconds"`
	Warn        bool   `json:"warn,omitempty"`
}

func (h *Handler) Login(w nethttp.ResponseWriter, r *nethttp.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	id, err := h.svc.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		logger.FromContext(r.Context()).Warn().Str("username", req.Username).Msg("login failed")
		writeError(w, r, err)
		return
	}

	sess := h.sessions.Create(*id)
	setSessionCookie(w, sess)
	logger.FromContext(r.Context()).Info().Str("operator", id.Username).Msg("operator logged in")

	writeJSON(w, nethttp.StatusOK, sessionResponse{
		Username:    id.Username,
		Role:        id.Role,
		CSRFToken:   sess.CSRFToken,
		IdleTimeout: int(h.sessions.IdleTimeout().Seconds()),
	})
}

// Session reports the current session; calling it also keeps it alive.
func (h *Handler) Session(w nethttp.ResponseWriter, r *nethttp.Request) {
	sess := sessionFrom(r.Context())
	writeJSON(w, nethttp.StatusOK, sessionResponse{
		Username:    sess.Identity.Username,
		Role:        sess.Identity.Role,
		CSRFToken:   sess.CSRFToken,
		IdleTimeout: int(h.sessions.IdleTimeout().Seconds()),
		Warn:        sess.Warn,
	})
}

func (h *Handler) Logout(w nethttp.ResponseWriter, r *nethttp.Request) {
	h.sessions.Delete(sessionFrom(r.Context()).ID)
	clearSessionCookie(w)
	w.WriteHeader(nethttp.StatusNoContent)
}
