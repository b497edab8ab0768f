package download

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/api"
	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
	"github.com/carloswaibl/algotrader/internal/staging"
)

type mockClient struct {
	bars      map[string][]market.Bar
	contracts []market.Contract
}

func (m *mockClient) MinuteBars(ctx context.Context, ticker, date string) ([]market.Bar, error) {
	bars, ok := m.bars[ticker]
	if !ok {
		return nil, api.ErrNotFound
	}
	return bars, nil
}

func (m *mockClient) OptionContracts(ctx context.Context, underlying, expiration string) ([]market.Contract, error) {
	if len(m.contracts) == 0 {
		return nil, api.ErrNotFound
	}
	return m.contracts, nil
}

func sessionBars(t *testing.T, closes ...float64) []market.Bar {
	t.Helper()
	open, err := market.SessionOpen("2024-05-10")
	if err != nil {
		t.Fatal(err)
	}
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Timestamp: open.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: 10}
	}
	return bars
}

func newTestService(t *testing.T, client api.Client, opts Options) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	logger, _ := zap.NewDevelopment()
	return NewService(client, staging.NewManager(dir), 2, opts, logger), dir
}

func TestService_DownloadUnderlying(t *testing.T) {
	client := &mockClient{bars: map[string][]market.Bar{
		"I:NDX": sessionBars(t, 18000, 18001, 18002),
	}}
	svc, dir := newTestService(t, client, Options{Tickers: []string{"I:NDX"}, ArchiveRaw: true})

	result, err := svc.DownloadUnderlying(context.Background(), "2024-05-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success != 1 || result.Rows != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}

	bars, dropped, err := data.ReadBars(filepath.Join(dir, "NDX_20240510.parquet"))
	if err != nil {
		t.Fatalf("reading committed bars: %v", err)
	}
	if len(bars) != 3 || dropped != 0 {
		t.Errorf("expected 3 bars, got %d (dropped %d)", len(bars), dropped)
	}

	if _, err := os.Stat(filepath.Join(dir, "NDX_20240510.parquet.jsonl.zst")); err != nil {
		t.Errorf("expected raw archive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".staging", "2024-05-10")); !os.IsNotExist(err) {
		t.Error("staging should be cleaned up")
	}
}

func TestService_DownloadOptions(t *testing.T) {
	client := &mockClient{
		bars: map[string][]market.Bar{
			"I:NDX":                sessionBars(t, 18000, 18010),
			"O:NDX240510P17900000": sessionBars(t, 2.5, 2.0),
			"O:NDX240510C18100000": sessionBars(t, 3.0),
			// 17000 put never traded
		},
		contracts: []market.Contract{
			{Ticker: "O:NDX240510P17900000", Type: market.Put, Strike: 17900, Expiration: "2024-05-10"},
			{Ticker: "O:NDX240510C18100000", Type: market.Call, Strike: 18100, Expiration: "2024-05-10"},
			{Ticker: "O:NDX240510P17000000", Type: market.Put, Strike: 17000, Expiration: "2024-05-10"},
		},
	}
	svc, dir := newTestService(t, client, Options{
		Tickers:       []string{"I:NDX"},
		ContractTypes: []market.ContractType{market.Put},
		RiskFreeRate:  0.05,
	})

	result, err := svc.DownloadOptions(context.Background(), "2024-05-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	rows, err := data.ReadChain(filepath.Join(dir, "NDX_OPTIONS_20240510.parquet"))
	if err != nil {
		t.Fatalf("reading chain: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 put rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Type != market.Put || r.Strike != 17900 {
			t.Errorf("unexpected row %+v", r)
		}
		if r.Bid != r.Ask {
			t.Errorf("bid and ask should both be the close, got %v/%v", r.Bid, r.Ask)
		}
		if !r.HasDelta() || r.Delta >= 0 {
			t.Errorf("expected a negative put delta, got %v", r.Delta)
		}
	}
	if rows[1].UnderlyingPrice != 18010 {
		t.Errorf("expected underlying 18010 on second minute, got %v", rows[1].UnderlyingPrice)
	}
}

func TestService_StrikeRange(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	svc := NewService(&mockClient{}, staging.NewManager(t.TempDir()), 1, Options{StrikeRange: 50}, logger)

	in := []market.Contract{
		{Type: market.Put, Strike: 17990},
		{Type: market.Call, Strike: 18040},
		{Type: market.Put, Strike: 17900},
		{Type: market.Call, Strike: 0},
	}
	out := svc.filterContracts(in, 18000)
	if len(out) != 2 {
		t.Errorf("expected 2 contracts within range, got %+v", out)
	}
}

func TestService_SkipsNonTradingDays(t *testing.T) {
	client := &mockClient{bars: map[string][]market.Bar{"I:NDX": sessionBars(t, 1)}}
	svc, _ := newTestService(t, client, Options{Tickers: []string{"I:NDX"}})

	result, err := svc.Run(context.Background(), []string{"2024-05-11", "2024-05-12"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("expected no tasks for a weekend, got %d", result.Total)
	}
}

func TestService_Tasks(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	svc := NewService(&mockClient{}, staging.NewManager(t.TempDir()), 1, Options{Tickers: []string{"I:NDX", "I:SPX"}, Options: true}, logger)

	tasks := svc.Tasks([]string{"2024-05-10"})
	if len(tasks) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(tasks))
	}

	barsOnly := svc.Tasks([]string{"2024-05-10"}, DatasetBars)
	if len(barsOnly) != 2 {
		t.Errorf("expected 2 bar tasks, got %d", len(barsOnly))
	}
}

func TestService_Resume(t *testing.T) {
	client := &mockClient{bars: map[string][]market.Bar{
		"I:NDX": sessionBars(t, 18000, 18001, 18002),
	}}

	for _, resume := range []bool{true, false} {
		svc, dir := newTestService(t, client, Options{Tickers: []string{"I:NDX"}, Resume: resume})
		finalPath := filepath.Join(dir, "NDX_20240510.parquet")
		if err := os.WriteFile(finalPath, []byte("existing"), 0600); err != nil {
			t.Fatal(err)
		}

		result, err := svc.DownloadUnderlying(context.Background(), "2024-05-10")
		if err != nil {
			t.Fatalf("resume=%v: unexpected error: %v", resume, err)
		}

		if resume {
			if result.Skipped != 1 {
				t.Errorf("resume=true: expected 1 skipped, got %+v", result)
			}
			content, _ := os.ReadFile(finalPath)
			if string(content) != "existing" {
				t.Error("resume=true: existing file was replaced")
			}
			continue
		}

		if result.Skipped != 0 || result.Success != 1 {
			t.Errorf("resume=false: expected a fresh download, got %+v", result)
		}
		bars, _, err := data.ReadBars(finalPath)
		if err != nil {
			t.Fatalf("resume=false: reading replaced bars: %v", err)
		}
		if len(bars) != 3 {
			t.Errorf("resume=false: expected 3 bars, got %d", len(bars))
		}
	}
}

func TestService_CommitsCompletedFilesOfPartialDate(t *testing.T) {
	client := &mockClient{bars: map[string][]market.Bar{
		"I:NDX": sessionBars(t, 18000, 18001),
	}}
	svc, dir := newTestService(t, client, Options{Tickers: []string{"I:NDX"}, Options: true})

	result, err := svc.Run(context.Background(), []string{"2024-05-10"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success != 1 || result.NotFound != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if _, err := os.Stat(filepath.Join(dir, "NDX_20240510.parquet")); err != nil {
		t.Errorf("bars should be committed without the chain: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "NDX_OPTIONS_20240510.parquet")); !os.IsNotExist(err) {
		t.Error("chain should not exist")
	}
}
