package http

import (
	"encoding/json"
	"fmt"
	nethttp "net/http"

	"atmledger/internal/domain"
)

type withdrawalResponse struct {
	WithdrawalID int64  `json:"withdrawal_id"`
	AccountID    int64  `json:"account_id"`
	Commission   string `json:"commission"`
	Total        string `json:"total"`
	Mode         string `json:"mode"`
	Message      string `json:"message"`
}

// Withdraw runs a withdrawal in the mode named by the body, serialized by
// default.
func (h *Handler) Withdraw(w nethttp.ResponseWriter, r *nethttp.Request) {
	h.withdraw(w, r, "")
}

// WithdrawUnlocked always runs without the account lock. Demo only.
func (h *Handler) WithdrawUnlocked(w nethttp.ResponseWriter, r *nethttp.Request) {
	h.withdraw(w, r, domain.ModeUnserialized)
}

func (h *Handler) withdraw(w nethttp.ResponseWriter, r *nethttp.Request, force domain.Mode) {
	var req domain.WithdrawalReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidRequest, err))
		return
	}
	if force != "" {
		req.Mode = force
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	sess := sessionFrom(r.Context())
	res, err := h.svc.Withdrawals.Execute(r.Context(), sess.Identity, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, nethttp.StatusOK, withdrawalResponse{
		WithdrawalID: res.WithdrawalID,
		AccountID:    res.AccountID,
		Commission:   res.Commission.StringFixed(domain.MoneyPlaces),
		Total:        res.Total.StringFixed(domain.MoneyPlaces),
		Mode:         string(res.Mode),
		Message:      res.Message,
	})
}
