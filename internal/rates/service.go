package rates

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"defter/internal/core"

	"golang.org/x/sync/errgroup"
)

// troyOunceGrams converts an XAU (troy ounce) price to a per-gram price.
const troyOunceGrams = 31.1034768

const base = string(core.TRY)

// Service refreshes the persisted rate snapshot from the external
// providers: USD and EUR through primary-then-secondary, gold through an
// ordered chain of secondary-provider strategies.
type Service struct {
	store     *Store
	primary   PairSource
	secondary PairSource
	now       func() time.Time
}

func NewService(store *Store, primary, secondary PairSource) *Service {
	return &Service{
		store:     store,
		primary:   primary,
		secondary: secondary,
		now:       time.Now,
	}
}

// Refresh fetches USD and EUR rates, resolves the gold gram price when it
// can, and persists the snapshot. It fails only when a currency pair cannot
// be obtained from either provider; gold failure silently preserves the
// previous stored value.
func (s *Service) Refresh(ctx context.Context, sourceNote string) error {
	var usd, eur float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		usd, err = s.pairRate(gctx, "USD", base)
		return err
	})
	g.Go(func() error {
		var err error
		eur, err = s.pairRate(gctx, "EUR", base)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh rates: %w", err)
	}

	goldGram, goldOK := s.goldGram(ctx, usd, eur)

	goldNote := "gold: previous value kept"
	if goldOK {
		goldNote = "gold: ok"
	}
	source := sourceNote
	if source == "" {
		source = fmt.Sprintf("Frankfurter (ECB) + exchangerate.host; %s", goldNote)
	}

	snapshot := core.Rates{
		USD:       usd,
		EUR:       eur,
		GoldGram:  goldGram,
		Source:    source,
		UpdatedAt: s.now(),
	}
	if err := s.store.Save(ctx, snapshot, goldOK); err != nil {
		return fmt.Errorf("persist rates: %w", err)
	}

	slog.InfoContext(ctx, "Rates refreshed",
		"usd", usd, "eur", eur, "gold_resolved", goldOK, "source", source)
	return nil
}

// RefreshWithRetry applies the startup policy: one attempt, and on failure a
// single retry after 500ms. The caller logs and proceeds on total failure.
func (s *Service) RefreshWithRetry(ctx context.Context, sourceNote string) error {
	err := s.Refresh(ctx, sourceNote+" #1")
	if err == nil {
		return nil
	}
	slog.WarnContext(ctx, "Rate refresh failed, retrying once", "error", err)
	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Refresh(ctx, sourceNote+" #2")
}

// pairRate resolves a currency pair through the primary provider, falling
// back to the secondary on any failure. Both must fail for an error.
func (s *Service) pairRate(ctx context.Context, from, to string) (float64, error) {
	v, err := s.primary.Rate(ctx, from, to)
	if err == nil {
		return v, nil
	}
	slog.WarnContext(ctx, "Primary rate provider failed, trying fallback",
		"from", from, "to", to, "error", err)

	v, ferr := s.secondary.Rate(ctx, from, to)
	if ferr != nil {
		return 0, fmt.Errorf("%s->%s unavailable from both providers: %w", from, to, ferr)
	}
	return v, nil
}

// goldGram resolves the base-currency gram-gold price through an ordered
// chain of strategies, first success wins. The already-fetched USD and EUR
// rates are passed as hints so the inversion strategies skip a redundant
// pair lookup. Returns ok=false when every strategy fails.
func (s *Service) goldGram(ctx context.Context, usdHint, eurHint float64) (float64, bool) {
	strategies := []func(context.Context) (float64, error){
		// Direct XAU -> base.
		func(ctx context.Context) (float64, error) {
			return s.secondary.Rate(ctx, "XAU", base)
		},
		// USD -> XAU inverted, times USD -> base.
		func(ctx context.Context) (float64, error) {
			usdToXau, err := s.secondary.Rate(ctx, "USD", "XAU")
			if err != nil {
				return 0, err
			}
			if usdToXau <= 0 {
				return 0, fmt.Errorf("non-positive USD->XAU rate %v", usdToXau)
			}
			usdRate := usdHint
			if !validRate(usdRate) {
				if usdRate, err = s.pairRate(ctx, "USD", base); err != nil {
					return 0, err
				}
			}
			return (1 / usdToXau) * usdRate, nil
		},
		// base -> XAU inverted.
		func(ctx context.Context) (float64, error) {
			baseToXau, err := s.secondary.Rate(ctx, base, "XAU")
			if err != nil {
				return 0, err
			}
			if baseToXau <= 0 {
				return 0, fmt.Errorf("non-positive %s->XAU rate %v", base, baseToXau)
			}
			return 1 / baseToXau, nil
		},
		// EUR -> XAU inverted, times EUR -> base.
		func(ctx context.Context) (float64, error) {
			eurToXau, err := s.secondary.Rate(ctx, "EUR", "XAU")
			if err != nil {
				return 0, err
			}
			if eurToXau <= 0 {
				return 0, fmt.Errorf("non-positive EUR->XAU rate %v", eurToXau)
			}
			eurRate := eurHint
			if !validRate(eurRate) {
				if eurRate, err = s.pairRate(ctx, "EUR", base); err != nil {
					return 0, err
				}
			}
			return (1 / eurToXau) * eurRate, nil
		},
	}

	xauBase, err := firstSuccess(ctx, strategies)
	if err != nil {
		slog.WarnContext(ctx, "Gold rate unavailable, keeping previous value", "error", err)
		return 0, false
	}
	return xauBase / troyOunceGrams, true
}

// firstSuccess tries each strategy in order and returns the first finite
// positive result. Individual failures fall through silently.
func firstSuccess(ctx context.Context, strategies []func(context.Context) (float64, error)) (float64, error) {
	var lastErr error
	for _, try := range strategies {
		v, err := try(ctx)
		if err == nil && validRate(v) {
			return v, nil
		}
		if err == nil {
			err = fmt.Errorf("strategy returned invalid rate %v", v)
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no strategies configured")
	}
	return 0, lastErr
}

func validRate(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
