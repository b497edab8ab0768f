package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/market"
)

func testClient(retryCount int) *PolygonClient {
	logger, _ := zap.NewDevelopment()
	return newClient(100, 10*time.Millisecond, retryCount, logger)
}

func TestMinuteBars_Success(t *testing.T) {
	client := testClient(3)

	var gotTicker string
	var gotFrom, gotTo time.Time
	client.aggs = func(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
		gotTicker, gotFrom, gotTo = ticker, from, to
		return []market.Bar{{Timestamp: from, Close: 18000}}, nil
	}

	bars, err := client.MinuteBars(context.Background(), "I:NDX", "2024-05-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bars) != 1 || bars[0].Close != 18000 {
		t.Errorf("unexpected bars: %+v", bars)
	}
	if gotTicker != "I:NDX" {
		t.Errorf("expected ticker I:NDX, got %s", gotTicker)
	}
	if market.ClockOf(gotFrom).String() != "09:30" {
		t.Errorf("expected window to open at 09:30, got %s", market.ClockOf(gotFrom))
	}
	if market.ClockOf(gotTo).String() != "15:59" {
		t.Errorf("expected window to close at 15:59, got %s", market.ClockOf(gotTo))
	}
}

func TestMinuteBars_EmptyIsNotFound(t *testing.T) {
	client := testClient(0)
	client.aggs = func(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
		return nil, nil
	}

	_, err := client.MinuteBars(context.Background(), "I:NDX", "2024-05-11")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMinuteBars_NotFoundStatus(t *testing.T) {
	client := testClient(3)
	attempts := 0
	client.aggs = func(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
		attempts++
		return nil, &models.ErrorResponse{StatusCode: http.StatusNotFound}
	}

	_, err := client.MinuteBars(context.Background(), "I:NDX", "2024-05-10")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}

func TestMinuteBars_RateLimited(t *testing.T) {
	client := testClient(2)
	attempts := 0
	client.aggs = func(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
		attempts++
		return nil, &models.ErrorResponse{StatusCode: http.StatusTooManyRequests}
	}

	_, err := client.MinuteBars(context.Background(), "I:NDX", "2024-05-10")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}

	// Should have attempted 3 times (initial + 2 retries)
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestMinuteBars_RecoversAfterServerError(t *testing.T) {
	client := testClient(2)
	attempts := 0
	client.aggs = func(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
		attempts++
		if attempts == 1 {
			return nil, &models.ErrorResponse{StatusCode: http.StatusBadGateway}
		}
		return []market.Bar{{Timestamp: from, Close: 1}}, nil
	}

	bars, err := client.MinuteBars(context.Background(), "I:NDX", "2024-05-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 1 || attempts != 2 {
		t.Errorf("expected recovery on second attempt, got %d bars after %d attempts", len(bars), attempts)
	}
}

func TestMinuteBars_AuthFailed(t *testing.T) {
	client := testClient(3)
	client.aggs = func(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
		return nil, &models.ErrorResponse{StatusCode: http.StatusUnauthorized}
	}

	_, err := client.MinuteBars(context.Background(), "I:NDX", "2024-05-10")
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

func TestMinuteBars_ContextCancelled(t *testing.T) {
	client := testClient(5)
	ctx, cancel := context.WithCancel(context.Background())
	client.aggs = func(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
		cancel()
		return nil, &models.ErrorResponse{StatusCode: http.StatusServiceUnavailable}
	}

	_, err := client.MinuteBars(ctx, "I:NDX", "2024-05-10")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOptionContracts_UsesRoot(t *testing.T) {
	client := testClient(0)

	var gotUnderlying string
	var gotExp time.Time
	client.contracts = func(ctx context.Context, underlying string, expiration time.Time, expired bool) ([]market.Contract, error) {
		gotUnderlying, gotExp = underlying, expiration
		return []market.Contract{{Ticker: "O:NDX240510P18000000", Type: market.Put, Strike: 18000, Expiration: "2024-05-10"}}, nil
	}

	contracts, err := client.OptionContracts(context.Background(), "I:NDX", "2024-05-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUnderlying != "NDX" {
		t.Errorf("expected root NDX, got %s", gotUnderlying)
	}
	if gotExp.Format("2006-01-02") != "2024-05-10" {
		t.Errorf("unexpected expiration %v", gotExp)
	}
	if len(contracts) != 1 {
		t.Errorf("expected 1 contract, got %d", len(contracts))
	}
}

func TestOptionContracts_InvalidDate(t *testing.T) {
	client := testClient(0)
	if _, err := client.OptionContracts(context.Background(), "I:NDX", "10/05/2024"); err == nil {
		t.Error("expected error for invalid expiration")
	}
}

func TestOptionContracts_ExpiredOnlyBeforeToday(t *testing.T) {
	client := testClient(0)
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	client.now = func() time.Time { return time.Date(2026, 10, 19, 16, 30, 0, 0, ny) }

	var gotExpired bool
	client.contracts = func(ctx context.Context, underlying string, expiration time.Time, expired bool) ([]market.Contract, error) {
		gotExpired = expired
		return []market.Contract{{Ticker: "O:NDX261019P18000000", Type: market.Put, Strike: 18000}}, nil
	}

	tests := []struct {
		expiration string
		want       bool
	}{
		{"2026-10-16", true},
		{"2026-10-19", false},
		{"2026-10-20", false},
	}
	for _, tt := range tests {
		if _, err := client.OptionContracts(context.Background(), "I:NDX", tt.expiration); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.expiration, err)
		}
		if gotExpired != tt.want {
			t.Errorf("%s: expired = %v, want %v", tt.expiration, gotExpired, tt.want)
		}
	}
}

func TestListContracts_ExpiredQuery(t *testing.T) {
	var queries []url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"ticker":"O:NDX261019P18000000","underlying_ticker":"NDX","contract_type":"put","expiration_date":"2026-10-19","strike_price":18000}]}`))
	}))
	defer srv.Close()

	rest := polygon.New("test-key")
	rest.HTTP.SetBaseURL(srv.URL)
	exp := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	contracts, err := listContracts(context.Background(), rest, "NDX", exp, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contracts) != 1 || contracts[0].Type != market.Put || contracts[0].Strike != 18000 {
		t.Errorf("unexpected contracts: %+v", contracts)
	}
	if _, err := listContracts(context.Background(), rest, "NDX", exp, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(queries) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(queries))
	}
	if queries[0].Has("expired") {
		t.Errorf("same-day query sent expired=%s", queries[0].Get("expired"))
	}
	if got := queries[1].Get("expired"); got != "true" {
		t.Errorf("past-date query expired = %q, want true", got)
	}
	for _, q := range queries {
		if q.Get("underlying_ticker") != "NDX" || q.Get("expiration_date") != "2026-10-19" {
			t.Errorf("unexpected query %v", q)
		}
	}
}
