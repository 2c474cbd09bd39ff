package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func getTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return ClientFactory(strings.TrimPrefix(server.URL, "http://"), "key", ClientSettings{
		Timeout:           time.Second,
		RequestsPerSecond: 1000,
		Burst:             10,
		Scheme:            "http",
	})
}

func TestRequestHitsHost(t *testing.T) {
	var gotPath, gotQuery string
	client := getTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	})

	res, err := client.Connection.Request(context.Background(), &url.URL{Path: "/query", RawQuery: "symbol=SPY"})
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "/query", gotPath)
	require.Equal(t, "symbol=SPY", gotQuery)
	require.Equal(t, "key", client.ApiKey)
}

func TestRequestPassesClientErrorsThrough(t *testing.T) {
	client := getTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	res, err := client.Connection.Request(context.Background(), &url.URL{Path: "/missing"})
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestBreakerOpensAfterRepeatedServerErrors(t *testing.T) {
	calls := 0
	client := getTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for range 3 {
		_, err := client.Connection.Request(context.Background(), &url.URL{Path: "/"})
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrUnavailable))
	}

	_, err := client.Connection.Request(context.Background(), &url.URL{Path: "/"})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 3, calls)
}

func TestRequestRespectsCancelledContext(t *testing.T) {
	client := ClientFactory("127.0.0.1:1", "", ClientSettings{RequestsPerSecond: 0.001, Burst: 1, Scheme: "http"})
	conn := client.Connection

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.Request(ctx, &url.URL{Path: "/"})
	require.Error(t, err)
}
