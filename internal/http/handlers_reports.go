package http

import (
	"encoding/json"
	"net/http"

	"defter/internal/core"
	"defter/internal/services"
)

type kindTotalsJSON struct {
	Collected  float64 `json:"collected"`
	Paid       float64 `json:"paid"`
	Payable    float64 `json:"payable"`
	Receivable float64 `json:"receivable"`
}

func toKindTotalsJSON(k core.KindTotals) kindTotalsJSON {
	return kindTotalsJSON{
		Collected:  k.Collected,
		Paid:       k.Paid,
		Payable:    k.Payable,
		Receivable: k.Receivable,
	}
}

type entityNetJSON struct {
	EntityID string  `json:"entity_id,omitempty"`
	Name     string  `json:"name"`
	Net      float64 `json:"net"`
}

func toEntityNetsJSON(nets []core.EntityNet) []entityNetJSON {
	out := make([]entityNetJSON, len(nets))
	for i, n := range nets {
		out[i] = entityNetJSON{EntityID: n.EntityID, Name: n.Name, Net: n.Net}
	}
	return out
}

type monthFlowJSON struct {
	Month     string  `json:"month"`
	Collected float64 `json:"collected"`
	Paid      float64 `json:"paid"`
}

func toMonthFlowsJSON(months []core.MonthFlow) []monthFlowJSON {
	out := make([]monthFlowJSON, len(months))
	for i, m := range months {
		out[i] = monthFlowJSON{Month: m.Month, Collected: m.Collected, Paid: m.Paid}
	}
	return out
}

// serveCachedReport answers from the report cache when it can. A freshly
// built body is cached only if no data change arrived while building, so a
// slow build can never pin a stale report.
func (s *Server) serveCachedReport(w http.ResponseWriter, r *http.Request, key string, build func() (any, error)) {
	if body, ok := s.reportCache.Get(key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	seq := s.notifier.Seq()
	report, err := build()
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := json.Marshal(report)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.notifier.Seq() == seq {
		s.reportCache.Set(key, body)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleSummaryReport(w http.ResponseWriter, r *http.Request) {
	s.serveCachedReport(w, r, "summary", func() (any, error) {
		sum, err := s.ledger.Summary(r.Context())
		if err != nil {
			return nil, err
		}
		return struct {
			Totals            kindTotalsJSON  `json:"totals"`
			NetPosition       float64         `json:"net_position"`
			PlannedReceivable float64         `json:"planned_receivable"`
			PlannedPayable    float64         `json:"planned_payable"`
			UpcomingTotal     float64         `json:"upcoming_total"`
			TopDebtors        []entityNetJSON `json:"top_debtors"`
			TopCreditors      []entityNetJSON `json:"top_creditors"`
			Monthly           []monthFlowJSON `json:"monthly"`
			Rates             ratesJSON       `json:"rates"`
		}{
			Totals:            toKindTotalsJSON(sum.Totals),
			NetPosition:       sum.NetPosition,
			PlannedReceivable: sum.PlannedReceivable,
			PlannedPayable:    sum.PlannedPayable,
			UpcomingTotal:     sum.UpcomingTotal,
			TopDebtors:        toEntityNetsJSON(sum.TopDebtors),
			TopCreditors:      toEntityNetsJSON(sum.TopCreditors),
			Monthly:           toMonthFlowsJSON(sum.Monthly),
			Rates:             toRatesJSON(sum.Rates),
		}, nil
	})
}

type balanceReportJSON struct {
	Total    float64         `json:"total"`
	Entities []entityNetJSON `json:"entities"`
	Rates    ratesJSON       `json:"rates"`
}

func toBalanceReportJSON(rep services.BalanceReport) balanceReportJSON {
	return balanceReportJSON{
		Total:    rep.Total,
		Entities: toEntityNetsJSON(rep.Entities),
		Rates:    toRatesJSON(rep.Rates),
	}
}

func (s *Server) handleReceivablesReport(w http.ResponseWriter, r *http.Request) {
	s.serveCachedReport(w, r, "receivables", func() (any, error) {
		rep, err := s.ledger.Receivables(r.Context())
		if err != nil {
			return nil, err
		}
		return toBalanceReportJSON(rep), nil
	})
}

func (s *Server) handlePayablesReport(w http.ResponseWriter, r *http.Request) {
	s.serveCachedReport(w, r, "payables", func() (any, error) {
		rep, err := s.ledger.Payables(r.Context())
		if err != nil {
			return nil, err
		}
		return toBalanceReportJSON(rep), nil
	})
}

func (s *Server) handleUpcomingReport(w http.ResponseWriter, r *http.Request) {
	s.serveCachedReport(w, r, "upcoming", func() (any, error) {
		rep, err := s.ledger.Upcoming(r.Context())
		if err != nil {
			return nil, err
		}

		type bucketJSON struct {
			FromDays int               `json:"from_days"`
			ToDays   int               `json:"to_days"`
			Total    float64           `json:"total"`
			Items    []transactionJSON `json:"items"`
		}
		buckets := make([]bucketJSON, len(rep.Buckets))
		for i, b := range rep.Buckets {
			items := make([]transactionJSON, len(b.Items))
			for j, t := range b.Items {
				items[j] = toTransactionJSON(t, core.DisplayValue(t, rep.Rates))
			}
			buckets[i] = bucketJSON{
				FromDays: b.FromDays,
				ToDays:   b.ToDays,
				Total:    b.Total,
				Items:    items,
			}
		}
		return struct {
			Buckets []bucketJSON `json:"buckets"`
			Total   float64      `json:"total"`
			Rates   ratesJSON    `json:"rates"`
		}{Buckets: buckets, Total: rep.Total, Rates: toRatesJSON(rep.Rates)}, nil
	})
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	s.serveCachedReport(w, r, "monthly", func() (any, error) {
		months, err := s.ledger.Monthly(r.Context())
		if err != nil {
			return nil, err
		}
		return struct {
			Months []monthFlowJSON `json:"months"`
		}{Months: toMonthFlowsJSON(months)}, nil
	})
}
