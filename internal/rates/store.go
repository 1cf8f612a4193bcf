package rates

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"defter/internal/core"
)

// Settings is the key-value settings store the rate snapshot persists in.
type Settings interface {
	GetSetting(ctx context.Context, key, def string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Keys of the persisted rate snapshot. Values are decimal-point strings.
const (
	KeyUSD       = "fx_usd"
	KeyEUR       = "fx_eur"
	KeyGoldGram  = "fx_gold_per_gram"
	KeySource    = "fx_source"
	KeyUpdatedAt = "fx_updated_at"
)

// Store reads and writes the four persisted exchange-rate settings.
type Store struct {
	settings Settings
}

func NewStore(settings Settings) *Store {
	return &Store{settings: settings}
}

// Load reads the current snapshot. Missing or garbled values read as zero;
// reading never fails on bad content, only on store errors.
func (s *Store) Load(ctx context.Context) (core.Rates, error) {
	var r core.Rates
	var err error
	if r.USD, err = s.loadRate(ctx, KeyUSD); err != nil {
		return core.Rates{}, err
	}
	if r.EUR, err = s.loadRate(ctx, KeyEUR); err != nil {
		return core.Rates{}, err
	}
	if r.GoldGram, err = s.loadRate(ctx, KeyGoldGram); err != nil {
		return core.Rates{}, err
	}
	if r.Source, err = s.settings.GetSetting(ctx, KeySource, ""); err != nil {
		return core.Rates{}, fmt.Errorf("load rate source: %w", err)
	}
	raw, err := s.settings.GetSetting(ctx, KeyUpdatedAt, "")
	if err != nil {
		return core.Rates{}, fmt.Errorf("load rate timestamp: %w", err)
	}
	if raw != "" {
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			r.UpdatedAt = t
		}
	}
	return r, nil
}

// Save persists a snapshot: USD and EUR at four fraction digits, gold at
// two. When withGold is false the previous gold value is left untouched;
// a failed gold refresh must not zero out good prior data.
func (s *Store) Save(ctx context.Context, r core.Rates, withGold bool) error {
	if err := s.settings.SetSetting(ctx, KeyUSD, formatRate(r.USD, 4)); err != nil {
		return fmt.Errorf("save usd rate: %w", err)
	}
	if err := s.settings.SetSetting(ctx, KeyEUR, formatRate(r.EUR, 4)); err != nil {
		return fmt.Errorf("save eur rate: %w", err)
	}
	if withGold {
		if err := s.settings.SetSetting(ctx, KeyGoldGram, formatRate(r.GoldGram, 2)); err != nil {
			return fmt.Errorf("save gold rate: %w", err)
		}
	}
	if err := s.settings.SetSetting(ctx, KeySource, r.Source); err != nil {
		return fmt.Errorf("save rate source: %w", err)
	}
	updated := r.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	if err := s.settings.SetSetting(ctx, KeyUpdatedAt, updated.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("save rate timestamp: %w", err)
	}
	return nil
}

func (s *Store) loadRate(ctx context.Context, key string) (float64, error) {
	raw, err := s.settings.GetSetting(ctx, key, "0")
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", key, err)
	}
	return parseRate(raw), nil
}

// parseRate tolerates a decimal comma in manually entered values.
func parseRate(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func formatRate(v float64, digits int) string {
	return strconv.FormatFloat(v, 'f', digits, 64)
}
