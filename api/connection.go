package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned while the circuit breaker for a host is open.
var ErrUnavailable = errors.New("provider temporarily unavailable")

type Connection interface {
	Request(ctx context.Context, endpoint *url.URL) (*http.Response, error)
}

type ClientSettings struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Scheme            string // https unless set
}

type ClientHost struct {
	client  *http.Client
	host    string
	scheme  string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

type Client struct {
	Connection Connection
	ApiKey     string
}

// Request waits for the rate limiter, then issues a GET through the circuit
// breaker. Throttling and server errors count as failures for the breaker.
func (conn *ClientHost) Request(ctx context.Context, endpoint *url.URL) (*http.Response, error) {
	endpoint.Scheme = conn.scheme
	endpoint.Host = conn.host

	if err := conn.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", conn.host, err)
	}

	res, err := conn.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return nil, err
		}

		response, err := conn.client.Do(req)
		if err != nil {
			return nil, err
		}

		if response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= http.StatusInternalServerError {
			io.Copy(io.Discard, response.Body)
			response.Body.Close()
			return nil, fmt.Errorf("%s responded with status %d", conn.host, response.StatusCode)
		}

		return response, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", conn.host, ErrUnavailable)
	}
	if err != nil {
		return nil, err
	}

	return res.(*http.Response), nil
}

func ClientFactory(host string, apiKey string, settings ClientSettings) *Client {
	if settings.Scheme == "" {
		settings.Scheme = "https"
	}
	if settings.RequestsPerSecond <= 0 {
		settings.RequestsPerSecond = 1
	}
	if settings.Burst <= 0 {
		settings.Burst = 1
	}

	breakerSettings := gobreaker.Settings{
		Name:     host,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}

	clientHost := &ClientHost{
		client:  &http.Client{Timeout: settings.Timeout},
		host:    host,
		scheme:  settings.Scheme,
		limiter: rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), settings.Burst),
		breaker: gobreaker.NewCircuitBreaker(breakerSettings),
	}

	return &Client{
		Connection: clientHost,
		ApiKey:     apiKey,
	}
}
