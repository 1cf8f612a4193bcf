package http

import (
	"net/http"
	"time"

	"defter/internal/core"
)

type entityRequest struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Contact string `json:"contact"`
	Note    string `json:"note"`
}

type entityJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role,omitempty"`
	Contact   string    `json:"contact,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toEntityJSON(e core.Entity) entityJSON {
	return entityJSON{
		ID:        e.ID,
		Name:      e.Name,
		Role:      e.Role,
		Contact:   e.Contact,
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
	}
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.ledger.ListEntities(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]entityJSON, len(entities))
	for i, e := range entities {
		out[i] = toEntityJSON(e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req entityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := s.ledger.CreateEntity(r.Context(), core.Entity{
		Name:    sanitizeInput(req.Name),
		Role:    sanitizeInput(req.Role),
		Contact: sanitizeInput(req.Contact),
		Note:    sanitizeInput(req.Note),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntityJSON(created))
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.ledger.GetEntity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityJSON(e))
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteEntity(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEntityStatement(w http.ResponseWriter, r *http.Request) {
	st, err := s.ledger.EntityStatement(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows := make([]transactionJSON, len(st.Transactions))
	for i, t := range st.Transactions {
		rows[i] = toTransactionJSON(t, st.Values[i])
	}

	writeJSON(w, http.StatusOK, struct {
		Entity       entityJSON        `json:"entity"`
		Transactions []transactionJSON `json:"transactions"`
		Totals       kindTotalsJSON    `json:"totals"`
		Net          float64           `json:"net"`
		Rates        ratesJSON         `json:"rates"`
	}{
		Entity:       toEntityJSON(st.Entity),
		Transactions: rows,
		Totals:       toKindTotalsJSON(st.Totals),
		Net:          st.Net,
		Rates:        toRatesJSON(st.Rates),
	})
}
