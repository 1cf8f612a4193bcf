package http

import (
	"net/http"
	"time"

	"defter/internal/core"
	"defter/internal/services"
)

type transactionRequest struct {
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	OpenEnded   bool   `json:"open_ended"`
	EntityID    string `json:"entity_id"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
}

type transactionJSON struct {
	ID           string    `json:"id"`
	Date         string    `json:"date,omitempty"`
	Amount       float64   `json:"amount"`
	DisplayValue float64   `json:"display_value"`
	Kind         string    `json:"kind"`
	OpenEnded    bool      `json:"open_ended"`
	EntityID     string    `json:"entity_id,omitempty"`
	Description  string    `json:"description,omitempty"`
	Unit         string    `json:"unit"`
	RawAmount    *float64  `json:"raw_amount,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toTransactionJSON(t core.Transaction, displayValue float64) transactionJSON {
	return transactionJSON{
		ID:           t.ID,
		Date:         t.Date.String(),
		Amount:       t.Amount,
		DisplayValue: displayValue,
		Kind:         string(t.Kind),
		OpenEnded:    t.OpenEnded,
		EntityID:     t.EntityID,
		Description:  t.Description,
		Unit:         string(t.Unit),
		RawAmount:    t.RawAmount,
		CreatedAt:    t.CreatedAt,
	}
}

func (req transactionRequest) toInput(w http.ResponseWriter) (services.TransactionInput, bool) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid date, want YYYY-MM-DD"})
		return services.TransactionInput{}, false
	}
	return services.TransactionInput{
		Date:        date,
		Amount:      req.Amount,
		Kind:        core.Kind(req.Kind),
		OpenEnded:   req.OpenEnded,
		EntityID:    req.EntityID,
		Description: sanitizeInput(req.Description),
		Unit:        core.Unit(req.Unit),
	}, true
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.TransactionFilter{
		Kind:     core.Kind(q.Get("kind")),
		EntityID: q.Get("entity"),
	}
	var err error
	if filter.From, err = core.ParseDate(q.Get("from")); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid from date"})
		return
	}
	if filter.To, err = core.ParseDate(q.Get("to")); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid to date"})
		return
	}

	txs, err := s.ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snapshot, err := s.rateStore.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]transactionJSON, len(txs))
	for i, t := range txs {
		out[i] = toTransactionJSON(t, core.DisplayValue(t, snapshot))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, ok := req.toInput(w)
	if !ok {
		return
	}

	created, err := s.ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(created, created.Amount))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	snapshot, err := s.rateStore.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(t, core.DisplayValue(t, snapshot)))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, ok := req.toInput(w)
	if !ok {
		return
	}

	updated, err := s.ledger.UpdateTransaction(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(updated, updated.Amount))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
