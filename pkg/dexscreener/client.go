// Package dexscreener implements core.MarketData over the DexScreener HTTP API
package dexscreener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/logger"
)

const (
	DefaultBaseURL  = "https://api.dexscreener.com"
	DefaultTimeout  = 10 * time.Second
	DefaultRetryMax = 10 * time.Second

	pairsPath  = "/latest/dex/pairs/"
	searchPath = "/latest/dex/search"

	maxBodySize = 4 << 20
)

// Config holds the client settings, zero values take the defaults
type Config struct {
	BaseURL    string
	Timeout    time.Duration // Per request deadline, expired requests are transient failures
	MaxRetries int           // Retries of a rate limited request
	RetryMin   time.Duration // First retry pause
	RetryMax   time.Duration // Longest retry pause, a longer Retry-After is not waited for
	HTTPClient *http.Client
}

// Client queries DexScreener. It never throttles successive calls by itself,
// callers space their requests.
type Client struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	retryMin   time.Duration
	retryMax   time.Duration
	http       *http.Client
	log        logger.Logger
}

func NewClient(config Config, log logger.Logger) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		retryMin:   config.RetryMin,
		retryMax:   config.RetryMax,
		http:       config.HTTPClient,
		log:        log,
	}

	if client.baseURL == "" {
		client.baseURL = DefaultBaseURL
	}
	if client.timeout <= 0 {
		client.timeout = DefaultTimeout
	}
	if client.retryMin <= 0 {
		client.retryMin = 500 * time.Millisecond
	}
	if client.retryMax <= 0 {
		client.retryMax = DefaultRetryMax
	}
	if client.http == nil {
		client.http = &http.Client{}
	}

	return client
}

// FetchByAddress returns the pair state, or nil when the provider has no such pair
func (c *Client) FetchByAddress(ctx context.Context, id string) (*core.Item, error) {
	endpoint := c.baseURL + pairsPath + escapePath(id)

	body, err := c.get(ctx, "fetch", id, endpoint)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	item, found, err := decodePair(body)
	if err != nil {
		return nil, &core.ProviderError{Op: "fetch", Key: id, Err: fmt.Errorf("%w: %v", core.ErrTransient, err)}
	}
	if !found {
		return nil, nil
	}

	return &item, nil
}

// Search returns the pairs matching query, best match first
func (c *Client) Search(ctx context.Context, query string) ([]core.Item, error) {
	endpoint := c.baseURL + searchPath + "?" + url.Values{"q": {query}}.Encode()

	body, err := c.get(ctx, "search", query, endpoint)
	if errors.Is(err, core.ErrNotFound) {
		return []core.Item{}, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := decodePairs(body)
	if err != nil {
		return nil, &core.ProviderError{Op: "search", Key: query, Err: fmt.Errorf("%w: %v", core.ErrTransient, err)}
	}

	return items, nil
}

// get performs the request, retrying rate limited answers with backoff
func (c *Client) get(ctx context.Context, op, key, endpoint string) ([]byte, error) {
	retry := &backoff.Backoff{
		Min:    c.retryMin,
		Max:    c.retryMax,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; ; attempt++ {
		body, err := c.do(ctx, op, key, endpoint)
		if err == nil || !errors.Is(err, core.ErrRateLimited) || attempt >= c.maxRetries {
			return body, err
		}

		wait := retry.Duration()
		var providerErr *core.ProviderError
		if errors.As(err, &providerErr) && providerErr.RetryAfter > wait {
			if providerErr.RetryAfter > c.retryMax {
				return nil, err
			}
			wait = providerErr.RetryAfter
		}

		c.log.WithFields(map[string]any{
			"op":      op,
			"key":     key,
			"attempt": attempt + 1,
			"wait":    wait.String(),
		}).Debug("rate limited by provider, retrying")

		select {
		case <-ctx.Done():
			return nil, &core.ProviderError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", core.ErrTransient, ctx.Err())}
		case <-time.After(wait):
		}
	}
}

func (c *Client) do(ctx context.Context, op, key, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &core.ProviderError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", core.ErrTransient, err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &core.ProviderError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", core.ErrTransient, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &core.ProviderError{
			Op:         op,
			Key:        key,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        core.ErrRateLimited,
		}
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return nil, &core.ProviderError{Op: op, Key: key, Err: core.ErrNotFound}
	case resp.StatusCode != http.StatusOK:
		return nil, &core.ProviderError{Op: op, Key: key, Err: fmt.Errorf("%w: status %d", core.ErrTransient, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &core.ProviderError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", core.ErrTransient, err)}
	}

	return body, nil
}

// escapePath escapes every segment of a pair identifier, "chain/address" keeps its slash
func escapePath(id string) string {
	segments := strings.Split(strings.TrimSpace(id), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}
