// Package adapters holds clients for external services.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// DefaultRatesURL is the exchangerate-api v6 endpoint.
const DefaultRatesURL = "https://v6.exchangerate-api.com/v6"

var ErrMissingAPIKey = errors.New("rates feed: missing API key")

// FeedRates is one response of the rates feed: how many units of each
// currency code one unit of Base buys.
type FeedRates struct {
	Base      string
	FetchedAt time.Time
	Rates     map[string]decimal.Decimal
}

// RatesFeed fetches the latest conversion rates from an
// exchangerate-api compatible endpoint.
type RatesFeed struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	attempts   int
	retryDelay time.Duration
}

func NewRatesFeed(baseURL, apiKey string) *RatesFeed {
	if baseURL == "" {
		baseURL = DefaultRatesURL
	}
	return &RatesFeed{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		attempts:   3,
		retryDelay: 2 * time.Second,
	}
}

type latestResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

// Latest fetches the rates for base, retrying transient failures.
func (f *RatesFeed) Latest(ctx context.Context, base string) (FeedRates, error) {
	if f.apiKey == "" {
		return FeedRates{}, ErrMissingAPIKey
	}
	url := fmt.Sprintf("%s/%s/latest/%s", f.baseURL, f.apiKey, strings.ToUpper(base))

	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		rates, retry, err := f.fetch(ctx, url)
		if err == nil {
			return rates, nil
		}
		lastErr = err
		if !retry || attempt == f.attempts {
			break
		}
		slog.WarnContext(ctx, "Rates feed request failed, retrying",
			"attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return FeedRates{}, ctx.Err()
		case <-time.After(f.retryDelay):
		}
	}
	return FeedRates{}, fmt.Errorf("fetch rates: %w", lastErr)
}

func (f *RatesFeed) fetch(ctx context.Context, url string) (FeedRates, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FeedRates{}, false, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return FeedRates{}, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return FeedRates{}, true, fmt.Errorf("rates feed returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return FeedRates{}, false, fmt.Errorf("rates feed returned status %d", resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return FeedRates{}, false, fmt.Errorf("decode rates: %w", err)
	}
	if body.Result != "" && body.Result != "success" {
		return FeedRates{}, false, fmt.Errorf("rates feed error: %s", body.ErrorType)
	}
	if len(body.ConversionRates) == 0 {
		return FeedRates{}, false, errors.New("rates feed returned no rates")
	}
	return FeedRates{
		Base:      body.BaseCode,
		FetchedAt: time.Now().UTC(),
		Rates:     body.ConversionRates,
	}, false, nil
}
