package core

import (
	"math"
	"sort"
)

// UnassignedLabel is shown for transactions whose entity is missing or was
// deleted; dangling references resolve here instead of failing.
const UnassignedLabel = "(none)"

// EntityNet is one entity's signed balance. Positive means the entity owes
// the ledger owner, negative means the owner owes the entity.
type EntityNet struct {
	EntityID string
	Name     string
	Net      float64
}

// KindTotals are one entity's per-kind display-value sums.
type KindTotals struct {
	Collected  float64
	Paid       float64
	Payable    float64
	Receivable float64
}

// Net applies the four-term balance formula:
// net = +receivable +paid -collected -payable.
func (k KindTotals) Net() float64 {
	return k.Receivable + k.Paid - k.Collected - k.Payable
}

// SumByKind accumulates display values per kind over a set of transactions.
func SumByKind(txs []Transaction, rates Rates) KindTotals {
	var out KindTotals
	for _, t := range txs {
		v := DisplayValue(t, rates)
		switch t.Kind {
		case Collected:
			out.Collected += v
		case Paid:
			out.Paid += v
		case Payable:
			out.Payable += v
		case Receivable:
			out.Receivable += v
		}
	}
	return out
}

// NetBalance computes the signed balance over one entity's transactions.
func NetBalance(txs []Transaction, rates Rates) float64 {
	return SumByKind(txs, rates).Net()
}

// EntityNets groups transactions by entity and computes each group's net.
// names maps entity id to display name; missing ids resolve to "(none)".
// Results are sorted by net descending (largest creditor first).
func EntityNets(txs []Transaction, rates Rates, names map[string]string) []EntityNet {
	groups := make(map[string]*EntityNet)
	var order []string
	for _, t := range txs {
		key := t.EntityID
		g, ok := groups[key]
		if !ok {
			g = &EntityNet{EntityID: key, Name: entityName(key, names)}
			groups[key] = g
			order = append(order, key)
		}
		v := DisplayValue(t, rates)
		switch t.Kind {
		case Receivable, Paid:
			g.Net += v
		case Collected, Payable:
			g.Net -= v
		}
	}
	out := make([]EntityNet, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Net > out[j].Net })
	return out
}

// TotalReceivables sums, over entities, max(0, receivables - collections).
// This deliberately nets receivables against collections per entity before
// filtering sign, and ignores payable/paid activity entirely. It is NOT the
// mirror of TotalPayables; the two formulas are independent in the source
// system and must stay that way pending product confirmation.
func TotalReceivables(txs []Transaction, rates Rates) float64 {
	nets := make(map[string]float64)
	for _, t := range txs {
		switch t.Kind {
		case Receivable:
			nets[t.EntityID] += DisplayValue(t, rates)
		case Collected:
			nets[t.EntityID] -= DisplayValue(t, rates)
		}
	}
	var total float64
	for _, n := range nets {
		if n > 0 {
			total += n
		}
	}
	return total
}

// ReceivablesByEntity returns the per-entity receivable-minus-collected
// positions that are still positive, largest first.
func ReceivablesByEntity(txs []Transaction, rates Rates, names map[string]string) []EntityNet {
	nets := make(map[string]float64)
	var order []string
	for _, t := range txs {
		if t.Kind != Receivable && t.Kind != Collected {
			continue
		}
		if _, ok := nets[t.EntityID]; !ok {
			order = append(order, t.EntityID)
		}
		if t.Kind == Receivable {
			nets[t.EntityID] += DisplayValue(t, rates)
		} else {
			nets[t.EntityID] -= DisplayValue(t, rates)
		}
	}
	var out []EntityNet
	for _, key := range order {
		if nets[key] > 0 {
			out = append(out, EntityNet{EntityID: key, Name: entityName(key, names), Net: nets[key]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Net > out[j].Net })
	return out
}

// TotalPayables sums |net| over entities whose full four-term net is
// negative. Unlike TotalReceivables this includes receivable and collected
// contributions, so an entity the owner both owes and is owed by nets out
// before counting.
func TotalPayables(txs []Transaction, rates Rates) float64 {
	var total float64
	for _, g := range EntityNets(txs, rates, nil) {
		if g.Net < 0 {
			total += math.Abs(g.Net)
		}
	}
	return total
}

// PayablesByEntity returns the entities with a negative four-term net, most
// negative first.
func PayablesByEntity(txs []Transaction, rates Rates, names map[string]string) []EntityNet {
	var out []EntityNet
	for _, g := range EntityNets(txs, rates, names) {
		if g.Net < 0 {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Net < out[j].Net })
	return out
}

// DueBucket is one time window of upcoming payables.
type DueBucket struct {
	FromDays int
	ToDays   int
	Items    []Transaction
	Total    float64
}

// UpcomingPayables buckets dated payable transactions into the 0-7, 8-14 and
// 15-30 day windows (bounds inclusive) relative to today. Open-ended
// payables have no date and never appear in a bucket.
func UpcomingPayables(txs []Transaction, rates Rates, today Date) []DueBucket {
	buckets := []DueBucket{
		{FromDays: 0, ToDays: 7},
		{FromDays: 8, ToDays: 14},
		{FromDays: 15, ToDays: 30},
	}
	for _, t := range txs {
		if t.Kind != Payable || t.Date.IsZero() {
			continue
		}
		days := today.DaysUntil(t.Date)
		for i := range buckets {
			if days >= buckets[i].FromDays && days <= buckets[i].ToDays {
				buckets[i].Items = append(buckets[i].Items, t)
				buckets[i].Total += DisplayValue(t, rates)
				break
			}
		}
	}
	return buckets
}

// MonthFlow is one month of realized cash movement.
type MonthFlow struct {
	Month     string // YYYY-MM
	Collected float64
	Paid      float64
}

// MonthlyCashflow buckets realized transactions by calendar month over the
// trailing six months ending with the current one. Undated rows and months
// outside the window are excluded.
func MonthlyCashflow(txs []Transaction, rates Rates, today Date) []MonthFlow {
	out := make([]MonthFlow, 6)
	sums := make(map[string]*MonthFlow, 6)
	for i := 0; i < 6; i++ {
		m := today.AddMonths(i - 5)
		out[i] = MonthFlow{Month: m.MonthKey()}
		sums[out[i].Month] = &out[i]
	}
	for _, t := range txs {
		if !t.Kind.Realized() || t.Date.IsZero() {
			continue
		}
		mf, ok := sums[t.Date.MonthKey()]
		if !ok {
			continue
		}
		v := DisplayValue(t, rates)
		if t.Kind == Collected {
			mf.Collected += v
		} else {
			mf.Paid += v
		}
	}
	return out
}

func entityName(id string, names map[string]string) string {
	if id == "" {
		return UnassignedLabel
	}
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return UnassignedLabel
}
