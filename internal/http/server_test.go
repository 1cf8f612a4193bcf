package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"defter/internal/rates"
	"defter/internal/services"
	"defter/internal/storage"
)

// stubSource serves fixed pair rates for the refresh endpoint.
type stubSource struct {
	rates map[string]float64
}

func (s *stubSource) Rate(_ context.Context, from, to string) (float64, error) {
	if v, ok := s.rates[from+"->"+to]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("pair %s->%s not configured", from, to)
}

type testEnv struct {
	server *Server
	client *httptest.Server
	repo   *storage.SQLiteRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "defter.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := rates.NewStore(repo)
	primary := &stubSource{rates: map[string]float64{"USD->TRY": 41, "EUR->TRY": 44}}
	secondary := &stubSource{rates: map[string]float64{"XAU->TRY": 74648.34432}}
	rateService := rates.NewService(store, primary, secondary)
	ledger := services.NewLedgerService(repo, store, nil)

	srv := NewServer(":0", ledger, store, rateService, repo.Notifier())
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &testEnv{server: srv, client: ts, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.client.URL+path, buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (e *testEnv) setRates(t *testing.T, usd, eur, gold string) {
	t.Helper()
	ctx := context.Background()
	for key, v := range map[string]string{
		rates.KeyUSD: usd, rates.KeyEUR: eur, rates.KeyGoldGram: gold,
	} {
		if v == "" {
			continue
		}
		if err := e.repo.SetSetting(ctx, key, v); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, _ := env.do(t, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestEntityCRUD(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/entities", map[string]string{
		"name": "Acme Construction", "role": "customer",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	var created entityJSON
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Name != "Acme Construction" {
		t.Errorf("created = %+v", created)
	}

	resp, body = env.do(t, http.MethodGet, "/entities", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list []entityJSON
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}

	resp, _ = env.do(t, http.MethodDelete, "/entities/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/entities/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
}

func TestEntityValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/entities", map[string]string{"name": "   "})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("blank name status = %d, want 422", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, env.client.URL+"/entities", bytes.NewReader([]byte("{not json")))
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", resp2.StatusCode)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.setRates(t, "41.0000", "44.0000", "2400.00")

	resp, body := env.do(t, http.MethodPost, "/transactions", map[string]any{
		"date": "2026-08-30", "amount": "10", "kind": "collected", "unit": "USD",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	var created transactionJSON
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Amount != 410 {
		t.Errorf("frozen amount = %v, want 410", created.Amount)
	}
	if created.RawAmount == nil || *created.RawAmount != 10 {
		t.Errorf("raw amount = %v", created.RawAmount)
	}

	resp, body = env.do(t, http.MethodPut, "/transactions/"+created.ID, map[string]any{
		"date": "2026-08-30", "amount": "10", "kind": "collected", "unit": "USD",
		"description": "wire transfer",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d: %s", resp.StatusCode, body)
	}
	var updated transactionJSON
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Amount != 410 || updated.Description != "wire transfer" {
		t.Errorf("updated = %+v", updated)
	}

	resp, body = env.do(t, http.MethodGet, "/transactions/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var fetched transactionJSON
	if err := json.Unmarshal(body, &fetched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fetched.DisplayValue != 410 {
		t.Errorf("display value = %v", fetched.DisplayValue)
	}

	resp, _ = env.do(t, http.MethodDelete, "/transactions/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/transactions/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
}

func TestCreateTransactionMissingRateConflicts(t *testing.T) {
	env := newTestEnv(t)
	// EUR rate never set; the save must be refused.
	resp, body := env.do(t, http.MethodPost, "/transactions", map[string]any{
		"date": "2026-08-30", "amount": "100", "kind": "payable", "unit": "EUR",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409: %s", resp.StatusCode, body)
	}
}

func TestTransactionValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	cases := []map[string]any{
		{"date": "2026-08-30", "amount": "100", "kind": "bogus"},
		{"date": "2026-08-30", "amount": "zero", "kind": "collected"},
		{"amount": "100", "kind": "collected"},                      // realized without date
		{"amount": "100", "kind": "payable"},                        // planned without date or flag
		{"date": "2026-08-30", "amount": "100", "kind": "payable", "open_ended": true}, // both
	}
	for i, payload := range cases {
		resp, body := env.do(t, http.MethodPost, "/transactions", payload)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("case %d status = %d, want 422: %s", i, resp.StatusCode, body)
		}
	}
}

func TestListTransactionsWithFilters(t *testing.T) {
	env := newTestEnv(t)

	for _, payload := range []map[string]any{
		{"date": "2026-07-01", "amount": "100", "kind": "collected"},
		{"date": "2026-08-15", "amount": "200", "kind": "paid"},
		{"amount": "300", "kind": "payable", "open_ended": true},
	} {
		if resp, body := env.do(t, http.MethodPost, "/transactions", payload); resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed status = %d: %s", resp.StatusCode, body)
		}
	}

	resp, body := env.do(t, http.MethodGet, "/transactions?kind=paid", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list []transactionJSON
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Amount != 200 {
		t.Errorf("kind filter = %+v", list)
	}

	resp, body = env.do(t, http.MethodGet, "/transactions?from=2026-08-01&to=2026-08-31", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Amount != 200 {
		t.Errorf("range filter = %+v", list)
	}

	resp, _ = env.do(t, http.MethodGet, "/transactions?from=garbage", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad from date status = %d, want 422", resp.StatusCode)
	}
}

func TestSummaryReportReflectsNewWrites(t *testing.T) {
	env := newTestEnv(t)

	summary := func() map[string]any {
		resp, body := env.do(t, http.MethodGet, "/reports/summary", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("summary status = %d: %s", resp.StatusCode, body)
		}
		var out map[string]any
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decode summary: %v", err)
		}
		return out
	}

	if got := summary()["net_position"].(float64); got != 0 {
		t.Errorf("empty ledger net position = %v", got)
	}

	// Prime the cache, then write; the next read must see the change.
	if resp, body := env.do(t, http.MethodPost, "/transactions", map[string]any{
		"date": "2026-08-30", "amount": "150", "kind": "receivable",
	}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}

	if got := summary()["planned_receivable"].(float64); got != 150 {
		t.Errorf("planned receivable after write = %v, want 150", got)
	}

	if resp, body := env.do(t, http.MethodPost, "/transactions", map[string]any{
		"date": "2026-08-31", "amount": "60", "kind": "collected",
	}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}

	got := summary()
	if net := got["net_position"].(float64); net != 60 {
		t.Errorf("net position = %v, want 60", net)
	}
	if planned := got["planned_receivable"].(float64); planned != 90 {
		t.Errorf("planned receivable = %v, want 90", planned)
	}
	if months, ok := got["monthly"].([]any); !ok || len(months) != 6 {
		t.Errorf("monthly series = %v", got["monthly"])
	}
}

func TestRatesEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPut, "/rates", map[string]any{
		"usd": 41.5, "eur": 44.25, "gold_gram": 2400.0,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put rates status = %d: %s", resp.StatusCode, body)
	}
	var saved ratesJSON
	if err := json.Unmarshal(body, &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.USD != 41.5 || saved.GoldGram != 2400 || saved.Source != "manual entry" {
		t.Errorf("saved = %+v", saved)
	}

	resp, _ = env.do(t, http.MethodPut, "/rates", map[string]any{"usd": -1.0, "eur": 44.0, "gold_gram": 2400.0})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("negative rate status = %d, want 422", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodGet, "/rates", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get rates status = %d", resp.StatusCode)
	}
	var current ratesJSON
	if err := json.Unmarshal(body, &current); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if current.EUR != 44.25 {
		t.Errorf("current = %+v", current)
	}

	resp, body = env.do(t, http.MethodPost, "/rates/refresh", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d: %s", resp.StatusCode, body)
	}
	var refreshed ratesJSON
	if err := json.Unmarshal(body, &refreshed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if refreshed.USD != 41 || refreshed.EUR != 44 {
		t.Errorf("refreshed = %+v", refreshed)
	}
	if refreshed.GoldGram < 2400 || refreshed.GoldGram > 2401 {
		t.Errorf("gold gram = %v, want ~2400", refreshed.GoldGram)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := newLRUCache[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3") // evicts a

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if v, ok := c.Get("b"); !ok || v != "2" {
		t.Errorf("b = %q, %v", v, ok)
	}

	c.Purge()
	if _, ok := c.Get("b"); ok {
		t.Error("purge should drop everything")
	}
}
