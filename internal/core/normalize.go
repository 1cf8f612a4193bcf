package core

import (
	"fmt"
	"math"
)

// RateNotSetError is returned when freezing a value needs a rate that is not
// configured. Surfaced to the user verbatim, so the message names the unit.
type RateNotSetError struct {
	Unit Unit
}

func (e *RateNotSetError) Error() string {
	switch e.Unit {
	case Gold:
		return "gram gold price not defined in settings"
	default:
		return fmt.Sprintf("%s rate not defined in settings", e.Unit)
	}
}

// rateFor returns the base-currency multiplier for a unit, 1 for the base
// currency and for unknown units (the snapshot is then already base).
func (r Rates) rateFor(u Unit) float64 {
	switch u {
	case USD:
		return r.USD
	case EUR:
		return r.EUR
	case Gold:
		return r.GoldGram
	default:
		return 1
	}
}

// DisplayValue computes the base-currency value of a transaction under the
// snapshot-vs-live policy:
//
//   - realized kinds (collected, paid) always show the stored snapshot; their
//     value was fixed the moment the money moved and must not drift with
//     later rate changes;
//   - planned kinds (payable, receivable) re-price the raw foreign amount at
//     the current rates, falling back to the snapshot when no raw amount or
//     unit was recorded.
//
// Conversion is multiplication only, so a missing or zero rate degrades to a
// zero contribution instead of failing mid-aggregation.
func DisplayValue(t Transaction, rates Rates) float64 {
	if t.Kind.Realized() {
		return finiteOrZero(t.Amount)
	}
	if t.RawAmount != nil && isFinite(*t.RawAmount) && t.Unit != "" && t.Unit != TRY {
		rate := rates.rateFor(t.Unit)
		if rate <= 0 {
			return 0
		}
		return *t.RawAmount * rate
	}
	if t.RawAmount != nil && isFinite(*t.RawAmount) && t.Unit == TRY {
		return *t.RawAmount
	}
	return finiteOrZero(t.Amount)
}

// FreezeValue converts a raw amount to the base currency at save time. This
// is the one place a missing rate is a hard error: writing a silent zero into
// a realized snapshot would corrupt history permanently.
func FreezeValue(raw float64, unit Unit, rates Rates) (float64, error) {
	if unit == "" || unit == TRY {
		return raw, nil
	}
	rate := rates.rateFor(unit)
	if rate <= 0 {
		return 0, &RateNotSetError{Unit: unit}
	}
	return raw * rate, nil
}

// rawTolerance bounds float drift when comparing a re-entered raw amount
// against the stored one during an edit.
const rawTolerance = 1e-9

// PreserveSnapshot reports whether an edit should keep the previously frozen
// base-currency value instead of re-freezing at current rates. Only realized
// transactions qualify, and only when kind, unit and raw amount are all
// unchanged; editing the date or description must not re-price history.
func PreserveSnapshot(prev Transaction, kind Kind, unit Unit, raw float64) bool {
	if !kind.Realized() || prev.Kind != kind {
		return false
	}
	prevUnit := prev.Unit
	if prevUnit == "" {
		prevUnit = TRY
	}
	if unit == "" {
		unit = TRY
	}
	if prevUnit != unit {
		return false
	}
	prevRaw := prev.Amount
	if prev.RawAmount != nil {
		prevRaw = *prev.RawAmount
	}
	return math.Abs(prevRaw-raw) < rawTolerance
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func finiteOrZero(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}
