package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/carloswaibl/algotrader/internal/market"
)

// Client interface for testability
type Client interface {
	MinuteBars(ctx context.Context, ticker, date string) ([]market.Bar, error)
	OptionContracts(ctx context.Context, underlying, expiration string) ([]market.Contract, error)
}

type aggsFunc func(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error)

type contractsFunc func(ctx context.Context, underlying string, expiration time.Time, expired bool) ([]market.Contract, error)

// PolygonClient fetches minute aggregates and option reference data.
// Every call passes through the rate limiter and is retried with
// exponential backoff on throttling and 5xx responses.
type PolygonClient struct {
	aggs       aggsFunc
	contracts  contractsFunc
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func NewClient(apiKey string, ratePerSec float64, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *PolygonClient {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}
	rest := polygon.NewWithClient(apiKey, &http.Client{
		Transport: transport,
		Timeout:   timeout,
	})

	c := newClient(ratePerSec, retryDelay, retryCount, logger)
	c.aggs = func(ctx context.Context, ticker string, from, to time.Time) ([]market.Bar, error) {
		return listAggs(ctx, rest, ticker, from, to)
	}
	c.contracts = func(ctx context.Context, underlying string, expiration time.Time, expired bool) ([]market.Contract, error) {
		return listContracts(ctx, rest, underlying, expiration, expired)
	}
	return c
}

func newClient(ratePerSec float64, retryDelay time.Duration, retryCount int, logger *zap.Logger) *PolygonClient {
	burst := int(ratePerSec * 2)
	if burst < 1 {
		burst = 1
	}
	return &PolygonClient{
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
		retryCount: retryCount,
		retryDelay: retryDelay,
		now:        time.Now,
		logger:     logger,
	}
}

// MinuteBars returns the regular-session minute bars of ticker on date
// (YYYY-MM-DD, New York). ErrNotFound means the vendor had no bars.
func (c *PolygonClient) MinuteBars(ctx context.Context, ticker, date string) ([]market.Bar, error) {
	open, err := market.SessionOpen(date)
	if err != nil {
		return nil, err
	}
	from := open
	to := open.Add(market.SessionMinutes*time.Minute - time.Minute)

	var bars []market.Bar
	err = c.do(ctx, "aggs "+ticker+" "+date, func() error {
		var callErr error
		bars, callErr = c.aggs(ctx, ticker, from, to)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNotFound
	}
	return bars, nil
}

// OptionContracts lists the contracts on underlying expiring on expiration.
// Only expirations before today's New York session are queried as expired;
// the vendor still lists same-day contracts as active.
func (c *PolygonClient) OptionContracts(ctx context.Context, underlying, expiration string) ([]market.Contract, error) {
	exp, err := time.Parse("2006-01-02", expiration)
	if err != nil {
		return nil, fmt.Errorf("invalid expiration %q: %w", expiration, err)
	}
	expired := expiration < market.SessionDate(c.now())

	var contracts []market.Contract
	err = c.do(ctx, "contracts "+underlying+" "+expiration, func() error {
		var callErr error
		contracts, callErr = c.contracts(ctx, market.Root(underlying), exp, expired)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, ErrNotFound
	}
	return contracts, nil
}

func (c *PolygonClient) do(ctx context.Context, op string, call func() error) error {
	c.logger.Debug("requesting", zap.String("op", op))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		// Wait for rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := classify(call())
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrRateLimited), errors.Is(err, ErrServer):
			lastErr = err
			continue
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrAuthFailed):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			var resp *models.ErrorResponse
			if errors.As(err, &resp) {
				return err
			}
			// transport failure
			lastErr = err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// classify maps vendor status codes onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var resp *models.ErrorResponse
	if !errors.As(err, &resp) {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %d", ErrServer, resp.StatusCode)
	}
	return err
}

func listAggs(ctx context.Context, rest *polygon.Client, ticker string, from, to time.Time) ([]market.Bar, error) {
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   models.Minute,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithOrder(models.Asc).WithAdjusted(true)

	iter := rest.ListAggs(ctx, params)

	var bars []market.Bar
	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, market.Bar{
			Timestamp: time.Time(agg.Timestamp).UTC(),
			Open:      agg.Open,
			High:      agg.High,
			Low:       agg.Low,
			Close:     agg.Close,
			Volume:    agg.Volume,
			VWAP:      agg.VWAP,
			Trades:    agg.Transactions,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}

func listContracts(ctx context.Context, rest *polygon.Client, underlying string, expiration time.Time, expired bool) ([]market.Contract, error) {
	params := models.ListOptionsContractsParams{}.
		WithUnderlyingTicker(models.EQ, underlying).
		WithExpirationDate(models.EQ, models.Date(expiration)).
		WithLimit(1000)
	if expired {
		params = params.WithExpired(true)
	}

	iter := rest.ListOptionsContracts(ctx, params)

	var contracts []market.Contract
	for iter.Next() {
		oc := iter.Item()
		ct, err := market.ParseContractType(oc.ContractType)
		if err != nil {
			continue
		}
		contracts = append(contracts, market.Contract{
			Ticker:     oc.Ticker,
			Underlying: oc.UnderlyingTicker,
			Type:       ct,
			Expiration: time.Time(oc.ExpirationDate).Format("2006-01-02"),
			Strike:     oc.StrikePrice,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return contracts, nil
}
