package core

import (
	"errors"
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestDisplayValueRealizedIgnoresRateChanges(t *testing.T) {
	raw := 10.0
	tx := Transaction{
		Kind:      Paid,
		Date:      NewDate(2026, 8, 1),
		Amount:    100, // frozen at save time
		Unit:      USD,
		RawAmount: &raw,
	}
	if got := DisplayValue(tx, Rates{USD: 10}); got != 100 {
		t.Fatalf("realized display = %v, want frozen 100", got)
	}
	// Later rate change must not drift the realized value.
	if got := DisplayValue(tx, Rates{USD: 35}); got != 100 {
		t.Fatalf("realized display after rate change = %v, want 100", got)
	}
}

func TestDisplayValuePlannedTracksLiveRates(t *testing.T) {
	tx := Transaction{
		Kind:      Payable,
		OpenEnded: true,
		Amount:    300, // stale snapshot from creation time
		Unit:      USD,
		RawAmount: ptr(10),
	}
	if got := DisplayValue(tx, Rates{USD: 30}); got != 300 {
		t.Fatalf("planned display = %v, want 300", got)
	}
	if got := DisplayValue(tx, Rates{USD: 35}); got != 350 {
		t.Fatalf("planned display after rate change = %v, want 350", got)
	}
}

func TestDisplayValuePlannedFallbacks(t *testing.T) {
	cases := []struct {
		name string
		tx   Transaction
		r    Rates
		want float64
	}{
		{
			name: "no raw amount falls back to snapshot",
			tx:   Transaction{Kind: Receivable, OpenEnded: true, Amount: 120},
			r:    Rates{USD: 30},
			want: 120,
		},
		{
			name: "base unit raw is identity",
			tx:   Transaction{Kind: Receivable, OpenEnded: true, Amount: 99, Unit: TRY, RawAmount: ptr(75)},
			r:    Rates{},
			want: 75,
		},
		{
			name: "missing rate contributes zero rather than failing",
			tx:   Transaction{Kind: Payable, OpenEnded: true, Amount: 500, Unit: EUR, RawAmount: ptr(10)},
			r:    Rates{EUR: 0},
			want: 0,
		},
		{
			name: "gold converts by gram rate",
			tx:   Transaction{Kind: Payable, OpenEnded: true, Amount: 0, Unit: Gold, RawAmount: ptr(5)},
			r:    Rates{GoldGram: 2400.50},
			want: 12002.5,
		},
		{
			name: "non-finite raw falls back to snapshot",
			tx:   Transaction{Kind: Payable, OpenEnded: true, Amount: 80, Unit: USD, RawAmount: ptr(math.NaN())},
			r:    Rates{USD: 30},
			want: 80,
		},
		{
			name: "non-finite snapshot degrades to zero",
			tx:   Transaction{Kind: Collected, Date: NewDate(2026, 1, 1), Amount: math.Inf(1)},
			r:    Rates{},
			want: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DisplayValue(tc.tx, tc.r); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("DisplayValue = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFreezeValue(t *testing.T) {
	r := Rates{USD: 41.2345, EUR: 44.51, GoldGram: 2401.22}

	got, err := FreezeValue(10, USD, r)
	if err != nil || math.Abs(got-412.345) > 1e-9 {
		t.Fatalf("FreezeValue(10, USD) = %v, %v", got, err)
	}

	got, err = FreezeValue(250, TRY, r)
	if err != nil || got != 250 {
		t.Fatalf("FreezeValue base unit = %v, %v", got, err)
	}

	_, err = FreezeValue(10, EUR, Rates{USD: 41})
	var rateErr *RateNotSetError
	if !errors.As(err, &rateErr) || rateErr.Unit != EUR {
		t.Fatalf("expected RateNotSetError for EUR, got %v", err)
	}

	_, err = FreezeValue(1, Gold, Rates{})
	if err == nil {
		t.Fatal("expected error freezing gold with no gram price")
	}
}

func TestPreserveSnapshot(t *testing.T) {
	prev := Transaction{
		Kind:      Paid,
		Date:      NewDate(2026, 7, 1),
		Amount:    412.34,
		Unit:      USD,
		RawAmount: ptr(10),
	}

	if !PreserveSnapshot(prev, Paid, USD, 10) {
		t.Error("unchanged kind/unit/raw should preserve the frozen snapshot")
	}
	if PreserveSnapshot(prev, Paid, USD, 11) {
		t.Error("changed raw amount must re-freeze")
	}
	if PreserveSnapshot(prev, Paid, EUR, 10) {
		t.Error("changed unit must re-freeze")
	}
	if PreserveSnapshot(prev, Collected, USD, 10) {
		t.Error("changed kind must re-freeze")
	}
	if PreserveSnapshot(prev, Payable, USD, 10) {
		t.Error("planned kinds never preserve; they re-price at display time")
	}

	// Base-currency rows store no raw amount; the snapshot doubles as raw.
	base := Transaction{Kind: Collected, Date: NewDate(2026, 7, 2), Amount: 90}
	if !PreserveSnapshot(base, Collected, TRY, 90) {
		t.Error("base-unit row with unchanged amount should preserve")
	}
}
