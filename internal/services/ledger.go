// Package services orchestrates ledger operations across storage, the rate
// snapshot and the AMQP change fanout.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"defter/internal/core"
	"defter/internal/rates"
	"defter/internal/storage"
)

// ChangePublisher fans a data change out to other running sessions.
type ChangePublisher interface {
	PublishChange(ctx context.Context, change storage.Change) error
}

// TransactionInput is a transaction as entered by the user: the amount is
// free-form text and the currency unit may be blank for the base currency.
type TransactionInput struct {
	Date        core.Date
	Amount      string
	Kind        core.Kind
	OpenEnded   bool
	EntityID    string
	Description string
	Unit        core.Unit
}

// TransactionFilter narrows a transaction listing. Zero fields match all.
type TransactionFilter struct {
	Kind     core.Kind
	EntityID string
	From     core.Date
	To       core.Date
}

// LedgerService owns entity and transaction writes: it validates input,
// freezes base-currency snapshots at save time and publishes change
// notifications after every mutation.
type LedgerService struct {
	storage   *storage.SQLiteRepository
	rateStore *rates.Store
	publisher ChangePublisher
	now       func() time.Time
}

func NewLedgerService(st *storage.SQLiteRepository, rateStore *rates.Store, publisher ChangePublisher) *LedgerService {
	return &LedgerService{
		storage:   st,
		rateStore: rateStore,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *LedgerService) CreateEntity(ctx context.Context, e core.Entity) (core.Entity, error) {
	if err := e.Validate(); err != nil {
		return core.Entity{}, err
	}
	e.ID = uuid.NewString()
	e.CreatedAt = s.now()

	if err := s.storage.InsertEntity(ctx, e); err != nil {
		return core.Entity{}, fmt.Errorf("create entity: %w", err)
	}
	s.publish(ctx, storage.Change{Table: storage.TableEntities, Op: storage.OpInsert, ID: e.ID})
	return e, nil
}

func (s *LedgerService) ListEntities(ctx context.Context) ([]core.Entity, error) {
	return s.storage.ListEntities(ctx)
}

func (s *LedgerService) GetEntity(ctx context.Context, id string) (core.Entity, error) {
	return s.storage.GetEntity(ctx, id)
}

// DeleteEntity removes the entity only. Its transactions survive and report
// under the unassigned label from then on.
func (s *LedgerService) DeleteEntity(ctx context.Context, id string) error {
	if err := s.storage.DeleteEntity(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, storage.Change{Table: storage.TableEntities, Op: storage.OpDelete, ID: id})
	return nil
}

// CreateTransaction parses the entered amount, freezes its base-currency
// value against the current rate snapshot and saves the row. A missing rate
// for a foreign unit is a hard error; nothing is saved.
func (s *LedgerService) CreateTransaction(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	t, raw, err := s.buildTransaction(in)
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = uuid.NewString()
	t.CreatedAt = s.now()

	t.Amount, err = s.freeze(ctx, raw, t.Unit)
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.storage.InsertTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.publish(ctx, storage.Change{Table: storage.TableTransactions, Op: storage.OpInsert, ID: t.ID})
	return t, nil
}

// UpdateTransaction rewrites a transaction from user input. For realized
// rows whose kind, unit and raw amount are unchanged the frozen snapshot is
// preserved so that editing a description never re-prices history.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, in TransactionInput) (core.Transaction, error) {
	prev, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	t, raw, err := s.buildTransaction(in)
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = prev.ID
	t.CreatedAt = prev.CreatedAt

	if core.PreserveSnapshot(prev, t.Kind, t.Unit, raw) {
		t.Amount = prev.Amount
	} else {
		t.Amount, err = s.freeze(ctx, raw, t.Unit)
		if err != nil {
			return core.Transaction{}, err
		}
	}

	if err := s.storage.UpdateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.publish(ctx, storage.Change{Table: storage.TableTransactions, Op: storage.OpUpdate, ID: t.ID})
	return t, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, storage.Change{Table: storage.TableTransactions, Op: storage.OpDelete, ID: id})
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}

// ListTransactions returns transactions matching the filter, newest first.
// A kind plus a full date range maps onto a dedicated storage query; those
// results come back in date order instead.
func (s *LedgerService) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	if f.Kind != "" && f.EntityID == "" && !f.From.IsZero() && !f.To.IsZero() {
		return s.storage.ListByKindBetween(ctx, f.Kind, f.From, f.To)
	}
	txs, err := s.storage.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	if f == (TransactionFilter{}) {
		return txs, nil
	}
	out := txs[:0:0]
	for _, t := range txs {
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if f.EntityID != "" && t.EntityID != f.EntityID {
			continue
		}
		if !f.From.IsZero() && (t.Date.IsZero() || t.Date.Before(f.From.Time)) {
			continue
		}
		if !f.To.IsZero() && (t.Date.IsZero() || t.Date.After(f.To.Time)) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// buildTransaction converts user input into a validated transaction without
// an Amount. The parsed raw value is returned for freezing.
func (s *LedgerService) buildTransaction(in TransactionInput) (core.Transaction, float64, error) {
	unit := in.Unit
	if unit == "" {
		unit = core.TRY
	}

	raw := core.ParseAmount(in.Amount)
	if raw <= 0 {
		return core.Transaction{}, 0, core.ErrInvalidAmount
	}

	t := core.Transaction{
		Date:        in.Date,
		Kind:        in.Kind,
		OpenEnded:   in.OpenEnded,
		EntityID:    in.EntityID,
		Description: in.Description,
		Unit:        unit,
	}
	if unit != core.TRY {
		t.RawAmount = &raw
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, 0, err
	}
	return t, raw, nil
}

func (s *LedgerService) freeze(ctx context.Context, raw float64, unit core.Unit) (float64, error) {
	snapshot, err := s.rateStore.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load rates: %w", err)
	}
	return core.FreezeValue(raw, unit, snapshot)
}

func (s *LedgerService) publish(ctx context.Context, change storage.Change) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, change); err != nil {
		// The local write already succeeded; other sessions catch up on
		// their next reload.
		slog.ErrorContext(ctx, "Failed to publish change message",
			"table", change.Table, "op", change.Op, "id", change.ID, "error", err)
	}
}
