package http

import (
	"net/http"
	"time"

	"defter/internal/core"
)

type ratesJSON struct {
	USD       float64   `json:"usd"`
	EUR       float64   `json:"eur"`
	GoldGram  float64   `json:"gold_gram"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRatesJSON(r core.Rates) ratesJSON {
	return ratesJSON{
		USD:       r.USD,
		EUR:       r.EUR,
		GoldGram:  r.GoldGram,
		Source:    r.Source,
		UpdatedAt: r.UpdatedAt,
	}
}

func (s *Server) handleGetRates(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.rateStore.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRatesJSON(snapshot))
}

type ratesRequest struct {
	USD      float64 `json:"usd"`
	EUR      float64 `json:"eur"`
	GoldGram float64 `json:"gold_gram"`
}

// handlePutRates lets the user enter rates by hand, for when both providers
// are unreachable. Zero or negative values are rejected outright.
func (s *Server) handlePutRates(w http.ResponseWriter, r *http.Request) {
	var req ratesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.USD <= 0 || req.EUR <= 0 || req.GoldGram <= 0 {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "rates must be positive"})
		return
	}

	snapshot := core.Rates{
		USD:      req.USD,
		EUR:      req.EUR,
		GoldGram: req.GoldGram,
		Source:   "manual entry",
	}
	if err := s.rateStore.Save(r.Context(), snapshot, true); err != nil {
		writeError(w, r, err)
		return
	}
	s.reportCache.Purge()

	saved, err := s.rateStore.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRatesJSON(saved))
}

// handleRefreshRates triggers an immediate provider refresh, in addition to
// whatever schedule the worker runs on.
func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	if err := s.rateService.Refresh(r.Context(), ""); err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	s.reportCache.Purge()

	snapshot, err := s.rateStore.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRatesJSON(snapshot))
}
