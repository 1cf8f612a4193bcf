// Package rates fetches foreign-exchange and gold rates from external
// providers and maintains the persisted rate snapshot.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultPrimaryURL is an ECB-style "latest rate between two codes"
	// API. It has no gold support.
	DefaultPrimaryURL = "https://api.frankfurter.app"
	// DefaultSecondaryURL is a "convert between two codes" API that also
	// understands the XAU pseudo-code. Used as FX fallback and as the sole
	// gold source.
	DefaultSecondaryURL = "https://api.exchangerate.host"
)

const (
	fetchAttempts  = 3
	fetchBackoff   = 500 * time.Millisecond
	attemptTimeout = 8 * time.Second
)

// PairSource resolves the rate between two currency codes.
type PairSource interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

// getJSON fetches url and decodes the JSON body into out, retrying up to
// fetchAttempts times with linearly increasing backoff (attempt x 500ms) and
// an 8-second per-attempt timeout.
func getJSON(ctx context.Context, client *http.Client, rawURL string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		lastErr = getJSONOnce(ctx, client, rawURL, out)
		if lastErr == nil {
			return nil
		}
		if attempt < fetchAttempts {
			select {
			case <-time.After(time.Duration(attempt) * fetchBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func getJSONOnce(ctx context.Context, client *http.Client, rawURL string, out any) error {
	actx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Frankfurter is the primary FX provider (ECB reference rates).
type Frankfurter struct {
	baseURL string
	client  *http.Client
}

func NewFrankfurter(baseURL string) *Frankfurter {
	if baseURL == "" {
		baseURL = DefaultPrimaryURL
	}
	return &Frankfurter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: attemptTimeout},
	}
}

func (c *Frankfurter) Rate(ctx context.Context, from, to string) (float64, error) {
	u := fmt.Sprintf("%s/latest?from=%s&to=%s", c.baseURL, url.QueryEscape(from), url.QueryEscape(to))

	var result struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := getJSON(ctx, c.client, u, &result); err != nil {
		return 0, fmt.Errorf("frankfurter %s->%s: %w", from, to, err)
	}
	v, ok := result.Rates[to]
	if !ok {
		return 0, fmt.Errorf("frankfurter rate missing for %s->%s", from, to)
	}
	slog.DebugContext(ctx, "Fetched rate", "provider", "frankfurter", "from", from, "to", to, "rate", v)
	return v, nil
}

// ExchangeRateHost is the secondary FX provider and the only gold source.
type ExchangeRateHost struct {
	baseURL string
	client  *http.Client
}

func NewExchangeRateHost(baseURL string) *ExchangeRateHost {
	if baseURL == "" {
		baseURL = DefaultSecondaryURL
	}
	return &ExchangeRateHost{
		baseURL: baseURL,
		client:  &http.Client{Timeout: attemptTimeout},
	}
}

func (c *ExchangeRateHost) Rate(ctx context.Context, from, to string) (float64, error) {
	u := fmt.Sprintf("%s/convert?from=%s&to=%s", c.baseURL, url.QueryEscape(from), url.QueryEscape(to))

	var result struct {
		Result *float64 `json:"result"`
	}
	if err := getJSON(ctx, c.client, u, &result); err != nil {
		return 0, fmt.Errorf("exchangerate.host %s->%s: %w", from, to, err)
	}
	if result.Result == nil {
		return 0, fmt.Errorf("exchangerate.host rate missing for %s->%s", from, to)
	}
	slog.DebugContext(ctx, "Fetched rate", "provider", "exchangerate.host", "from", from, "to", to, "rate", *result.Result)
	return *result.Result, nil
}
