package services

import (
	"context"
	"fmt"

	"defter/internal/core"
)

// Summary is the dashboard view: overall totals, the headline positions,
// top balances per side, the trailing cash-flow series and the rate
// snapshot they were computed with.
type Summary struct {
	Totals            core.KindTotals
	NetPosition       float64 // realized cash: collected minus paid
	PlannedReceivable float64 // planned receivable still open: receivable minus collected
	PlannedPayable    float64
	UpcomingTotal     float64 // payables due within 30 days
	TopDebtors        []core.EntityNet
	TopCreditors      []core.EntityNet
	Monthly           []core.MonthFlow
	Rates             core.Rates
}

// BalanceReport lists per-entity balances for one side of the ledger.
type BalanceReport struct {
	Total    float64
	Entities []core.EntityNet
	Rates    core.Rates
}

// UpcomingReport buckets dated payables by due window.
type UpcomingReport struct {
	Buckets []core.DueBucket
	Total   float64
	Rates   core.Rates
}

// Statement is the full history of a single entity.
type Statement struct {
	Entity       core.Entity
	Transactions []core.Transaction
	Values       []float64 // display value per transaction
	Totals       core.KindTotals
	Net          float64
	Rates        core.Rates
}

const topBalances = 5

// Summary builds the dashboard report from the full transaction list and
// the current rate snapshot.
func (s *LedgerService) Summary(ctx context.Context) (Summary, error) {
	txs, names, snapshot, err := s.reportInputs(ctx)
	if err != nil {
		return Summary{}, err
	}

	totals := core.SumByKind(txs, snapshot)
	nets := core.EntityNets(txs, snapshot, names)

	var debtors, creditors []core.EntityNet
	for _, n := range nets {
		if n.Net > 0 && len(debtors) < topBalances {
			debtors = append(debtors, n)
		}
	}
	for i := len(nets) - 1; i >= 0 && len(creditors) < topBalances; i-- {
		if nets[i].Net < 0 {
			creditors = append(creditors, nets[i])
		}
	}

	today := core.Today(s.now())
	var upcoming float64
	for _, b := range core.UpcomingPayables(txs, snapshot, today) {
		upcoming += b.Total
	}

	return Summary{
		Totals:            totals,
		NetPosition:       totals.Collected - totals.Paid,
		PlannedReceivable: totals.Receivable - totals.Collected,
		PlannedPayable:    core.TotalPayables(txs, snapshot),
		UpcomingTotal:     upcoming,
		TopDebtors:        debtors,
		TopCreditors:      creditors,
		Monthly:           core.MonthlyCashflow(txs, snapshot, today),
		Rates:             snapshot,
	}, nil
}

func (s *LedgerService) Receivables(ctx context.Context) (BalanceReport, error) {
	txs, names, snapshot, err := s.reportInputs(ctx)
	if err != nil {
		return BalanceReport{}, err
	}
	return BalanceReport{
		Total:    core.TotalReceivables(txs, snapshot),
		Entities: core.ReceivablesByEntity(txs, snapshot, names),
		Rates:    snapshot,
	}, nil
}

func (s *LedgerService) Payables(ctx context.Context) (BalanceReport, error) {
	txs, names, snapshot, err := s.reportInputs(ctx)
	if err != nil {
		return BalanceReport{}, err
	}
	return BalanceReport{
		Total:    core.TotalPayables(txs, snapshot),
		Entities: core.PayablesByEntity(txs, snapshot, names),
		Rates:    snapshot,
	}, nil
}

func (s *LedgerService) Upcoming(ctx context.Context) (UpcomingReport, error) {
	txs, _, snapshot, err := s.reportInputs(ctx)
	if err != nil {
		return UpcomingReport{}, err
	}
	buckets := core.UpcomingPayables(txs, snapshot, core.Today(s.now()))
	var total float64
	for _, b := range buckets {
		total += b.Total
	}
	return UpcomingReport{Buckets: buckets, Total: total, Rates: snapshot}, nil
}

// Monthly returns realized cash movement for the trailing six months.
func (s *LedgerService) Monthly(ctx context.Context) ([]core.MonthFlow, error) {
	txs, err := s.storage.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	snapshot, err := s.rateStore.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	return core.MonthlyCashflow(txs, snapshot, core.Today(s.now())), nil
}

// EntityStatement returns one entity's transactions oldest first, each with
// its display value, plus per-kind totals and the running balance.
func (s *LedgerService) EntityStatement(ctx context.Context, entityID string) (Statement, error) {
	entity, err := s.storage.GetEntity(ctx, entityID)
	if err != nil {
		return Statement{}, err
	}
	txs, err := s.storage.ListTransactionsForEntity(ctx, entityID)
	if err != nil {
		return Statement{}, fmt.Errorf("load transactions: %w", err)
	}
	snapshot, err := s.rateStore.Load(ctx)
	if err != nil {
		return Statement{}, fmt.Errorf("load rates: %w", err)
	}

	values := make([]float64, len(txs))
	for i, t := range txs {
		values[i] = core.DisplayValue(t, snapshot)
	}
	totals := core.SumByKind(txs, snapshot)

	return Statement{
		Entity:       entity,
		Transactions: txs,
		Values:       values,
		Totals:       totals,
		Net:          totals.Net(),
		Rates:        snapshot,
	}, nil
}

func (s *LedgerService) reportInputs(ctx context.Context) ([]core.Transaction, map[string]string, core.Rates, error) {
	txs, err := s.storage.ListTransactions(ctx)
	if err != nil {
		return nil, nil, core.Rates{}, fmt.Errorf("load transactions: %w", err)
	}
	names, err := s.storage.EntityNames(ctx)
	if err != nil {
		return nil, nil, core.Rates{}, fmt.Errorf("load entity names: %w", err)
	}
	snapshot, err := s.rateStore.Load(ctx)
	if err != nil {
		return nil, nil, core.Rates{}, fmt.Errorf("load rates: %w", err)
	}
	return txs, names, snapshot, nil
}
