package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Collected  Kind = "collected"  // money received, realized
	Paid       Kind = "paid"       // money disbursed, realized
	Payable    Kind = "payable"    // money owed by the ledger owner, planned
	Receivable Kind = "receivable" // money owed to the ledger owner, planned
)

const (
	TRY  Unit = "TRY"
	USD  Unit = "USD"
	EUR  Unit = "EUR"
	Gold Unit = "GOLD" // gold by gram
)

type (
	Kind string

	Unit string

	// Entity is a person or organization transactions are recorded against.
	Entity struct {
		ID        string
		Name      string
		Role      string
		Contact   string
		Note      string
		CreatedAt time.Time
	}

	// Transaction is a single ledger movement. Amount is the base-currency
	// snapshot frozen at save time; RawAmount/Unit keep the original foreign
	// entry so planned kinds can be re-priced at display time.
	Transaction struct {
		ID          string
		Date        Date // zero means no date
		Amount      float64
		Kind        Kind
		OpenEnded   bool
		EntityID    string // empty means unassigned
		Description string
		Unit        Unit
		RawAmount   *float64
		CreatedAt   time.Time
	}

	// Rates is the persisted exchange-rate snapshot: base-currency price of
	// one USD, one EUR, and one gram of gold. Passed explicitly to every
	// normalization and aggregation call, never read as ambient state.
	Rates struct {
		USD       float64
		EUR       float64
		GoldGram  float64
		Source    string
		UpdatedAt time.Time
	}
)

var (
	ErrEmptyName       = errors.New("empty entity name")
	ErrInvalidKind     = errors.New("invalid transaction kind")
	ErrInvalidUnit     = errors.New("invalid currency unit")
	ErrDateRequired    = errors.New("realized transactions require a date")
	ErrDateOrOpenEnded = errors.New("planned transactions require a date or the open-ended flag, not both")
	ErrMissingRaw      = errors.New("foreign-currency transactions require a raw amount")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// Realized reports whether money has actually moved for this kind.
// Realized values are historical fact; planned values are re-priced live.
func (k Kind) Realized() bool {
	return k == Collected || k == Paid
}

func (k Kind) Valid() bool {
	switch k {
	case Collected, Paid, Payable, Receivable:
		return true
	}
	return false
}

func (u Unit) Valid() bool {
	switch u {
	case TRY, USD, EUR, Gold:
		return true
	}
	return false
}

func (e Entity) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if t.Unit != "" && !t.Unit.Valid() {
		return ErrInvalidUnit
	}
	if t.Kind.Realized() {
		if t.Date.IsZero() {
			return ErrDateRequired
		}
		if t.OpenEnded {
			return errors.New("realized transactions cannot be open-ended")
		}
	} else {
		// Planned kinds: concrete date XOR open-ended flag.
		if t.Date.IsZero() == !t.OpenEnded {
			return ErrDateOrOpenEnded
		}
	}
	if t.Unit != "" && t.Unit != TRY && t.RawAmount == nil {
		return ErrMissingRaw
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}
