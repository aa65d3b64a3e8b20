package http

import (
	"fmt"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"atmledger/internal/domain"

	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

type cardInfoResponse struct {
	CardID      int64  `json:"card_id"`
	PanLast4    string `json:"pan_last4"`
	IssuingBank string `json:"issuing_bank"`
	Balance     string `json:"balance"`
	Currency    string `json:"currency"`
	FullName    string `json:"full_name"`
}

func (h *Handler) CardInfo(w nethttp.ResponseWriter, r *nethttp.Request) {
	cardID, err := strconv.ParseInt(chi.URLParam(r, "cardID"), 10, 64)
	if err != nil || cardID <= 0 {
		writeError(w, r, fmt.Errorf("%w: invalid card id", domain.ErrInvalidRequest))
		return
	}

	info, err := h.svc.Cards.Lookup(r.Context(), cardID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, nethttp.StatusOK, cardInfoResponse{
		CardID:      info.CardID,
		PanLast4:    info.PanLast4,
		IssuingBank: info.IssuingBank,
		Balance:     info.Balance.StringFixed(domain.MoneyPlaces),
		Currency:    info.Currency,
		FullName:    info.FullName,
	})
}

type activeATMResponse struct {
	ID       int64  `json:"atm_id"`
	Location string `json:"location"`
	BankName string `json:"bank_name"`
}

func (h *Handler) ActiveATMs(w nethttp.ResponseWriter, r *nethttp.Request) {
	atms, err := h.svc.Operations.ActiveATMs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]activeATMResponse, 0, len(atms))
	for _, a := range atms {
		out = append(out, activeATMResponse{ID: a.ID, Location: a.Location, BankName: a.BankName})
	}
	writeJSON(w, nethttp.StatusOK, out)
}

type activeCardResponse struct {
	ID       int64  `json:"card_id"`
	PanLast4 string `json:"pan_last4"`
	FullName string `json:"full_name"`
}

func (h *Handler) ActiveCards(w nethttp.ResponseWriter, r *nethttp.Request) {
	cards, err := h.svc.Operations.ActiveCards(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]activeCardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, activeCardResponse{ID: c.ID, PanLast4: c.PanLast4, FullName: c.FullName})
	}
	writeJSON(w, nethttp.StatusOK, out)
}

type filterView struct {
	BankID   int64  `json:"bank_id,omitempty"`
	ATMID    int64  `json:"atm_id,omitempty"`
	CardID   int64  `json:"card_id,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

type operationResponse struct {
	WithdrawalID int64     `json:"withdrawal_id"`
	CreatedAt    time.Time `json:"created_at"`
	Amount       string    `json:"amount"`
	Commission   string    `json:"commission"`
	Total        string    `json:"total"`
	ATMID        int64     `json:"atm_id"`
	ATMLocation  string    `json:"atm_location"`
	ATMBank      string    `json:"atm_bank"`
	CardID       int64     `json:"card_id"`
	PanLast4     string    `json:"pan_last4"`
	CardBank     string    `json:"card_bank"`
	FullName     string    `json:"full_name"`
}

type operationsResponse struct {
	Filters    filterView          `json:"filters"`
	Operations []operationResponse `json:"operations"`
}

// Operations lists the ledger. A request with a query string replaces the
// session's remembered filter; a bare request reuses it while it is fresh.
func (h *Handler) Operations(w nethttp.ResponseWriter, r *nethttp.Request) {
	sess := sessionFrom(r.Context())

	var filter domain.OperationFilter
	if r.URL.RawQuery != "" {
		f, err := parseFilter(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		filter = f
		h.sessions.SaveFilters(sess.ID, filter)
	} else if saved, ok := h.sessions.Filters(sess.ID); ok {
		filter = saved
	}

	ops, err := h.svc.Operations.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := operationsResponse{Filters: viewOf(filter), Operations: make([]operationResponse, 0, len(ops))}
	for _, op := range ops {
		out.Operations = append(out.Operations, operationResponse{
			WithdrawalID: op.ID,
			CreatedAt:    op.CreatedAt,
			Amount:       op.Amount.StringFixed(domain.MoneyPlaces),
			Commission:   op.Commission.StringFixed(domain.MoneyPlaces),
			Total:        op.Total.StringFixed(domain.MoneyPlaces),
			ATMID:        op.ATMID,
			ATMLocation:  op.ATMLocation,
			ATMBank:      op.ATMBank,
			CardID:       op.CardID,
			PanLast4:     op.PanLast4,
			CardBank:     op.CardBank,
			FullName:     op.FullName,
		})
	}
	writeJSON(w, nethttp.StatusOK, out)
}

func parseFilter(r *nethttp.Request) (domain.OperationFilter, error) {
	q := r.URL.Query()
	var f domain.OperationFilter
	var err error

	if f.ATMBankID, err = parseID(q.Get("bank_id")); err != nil {
		return f, fmt.Errorf("%w: bank_id: %v", domain.ErrInvalidRequest, err)
	}
	if f.ATMID, err = parseID(q.Get("atm_id")); err != nil {
		return f, fmt.Errorf("%w: atm_id: %v", domain.ErrInvalidRequest, err)
	}
	if f.CardID, err = parseID(q.Get("card_id")); err != nil {
		return f, fmt.Errorf("%w: card_id: %v", domain.ErrInvalidRequest, err)
	}
	if f.DateFrom, err = parseDate(q.Get("date_from")); err != nil {
		return f, fmt.Errorf("%w: date_from: %v", domain.ErrInvalidRequest, err)
	}
	if f.DateTo, err = parseDate(q.Get("date_to")); err != nil {
		return f, fmt.Errorf("%w: date_to: %v", domain.ErrInvalidRequest, err)
	}
	return f, nil
}

func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a positive integer", s)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func viewOf(f domain.OperationFilter) filterView {
	v := filterView{BankID: f.ATMBankID, ATMID: f.ATMID, CardID: f.CardID}
	if !f.DateFrom.IsZero() {
		v.DateFrom = f.DateFrom.Format(dateLayout)
	}
	if !f.DateTo.IsZero() {
		v.DateTo = f.DateTo.Format(dateLayout)
	}
	return v
}
