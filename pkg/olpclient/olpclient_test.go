// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package olpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heremaps/here-data-sdk-go/pkg/client"
	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
)

type staticTokenProvider string

func (s staticTokenProvider) GetToken(context.Context) client.Result[string] {
	return client.Ok(string(s))
}

func TestOlpClient_CallApi_AttachesBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "bar", r.URL.Query().Get("foo"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := olpclient.New(olpclient.NewHTTPNetwork(nil), olpclient.WithTokenProvider(staticTokenProvider("tok-123")))

	resp, err := c.CallApi(context.Background(), olpclient.ApiRequest{
		BaseURL:     srv.URL,
		Path:        "/v1/catalog",
		Method:      olpclient.GET,
		QueryParams: map[string]string{"foo": "bar"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestOlpClient_CallApi_RetriesOn503(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := olpclient.New(olpclient.NewHTTPNetwork(nil), olpclient.WithRetryPolicy(olpclient.RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  5 * time.Millisecond,
		MaxDelay:   20 * time.Millisecond,
	}))

	resp, err := c.CallApi(context.Background(), olpclient.ApiRequest{BaseURL: srv.URL, Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestOlpClient_CallApi_GivesUpAfterMaxRetries(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := olpclient.New(olpclient.NewHTTPNetwork(nil), olpclient.WithRetryPolicy(olpclient.RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  2 * time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}))

	resp, err := c.CallApi(context.Background(), olpclient.ApiRequest{BaseURL: srv.URL, Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts)) // 1 initial + 2 retries
}

func TestOlpClient_CallApi_TokenProviderErrorPropagates(t *testing.T) {
	failing := tokenProviderFunc(func(context.Context) client.Result[string] {
		return client.Failed[string](client.NewError(client.KindUnauthorized, "bad credentials"))
	})

	c := olpclient.New(olpclient.NewHTTPNetwork(nil), olpclient.WithTokenProvider(failing))

	_, err := c.CallApi(context.Background(), olpclient.ApiRequest{BaseURL: "http://unused.example", Path: "/x"})
	require.Error(t, err)
}

type tokenProviderFunc func(context.Context) client.Result[string]

func (f tokenProviderFunc) GetToken(ctx context.Context) client.Result[string] { return f(ctx) }

// refreshableTokenProvider hands out "stale" until Invalidate is
// called, then "fresh".
type refreshableTokenProvider struct {
	invalidations int32
}

func (p *refreshableTokenProvider) GetToken(context.Context) client.Result[string] {
	if atomic.LoadInt32(&p.invalidations) > 0 {
		return client.Ok("fresh")
	}
	return client.Ok("stale")
}

func (p *refreshableTokenProvider) Invalidate() { atomic.AddInt32(&p.invalidations, 1) }

func TestOlpClient_CallApi_RefreshesTokenOn401(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	provider := &refreshableTokenProvider{}
	c := olpclient.New(olpclient.NewHTTPNetwork(nil), olpclient.WithTokenProvider(provider))

	resp, err := c.CallApi(context.Background(), olpclient.ApiRequest{BaseURL: srv.URL, Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.invalidations))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOlpClient_CallApi_SecondUnauthorizedPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	provider := &refreshableTokenProvider{}
	c := olpclient.New(olpclient.NewHTTPNetwork(nil), olpclient.WithTokenProvider(provider))

	resp, err := c.CallApi(context.Background(), olpclient.ApiRequest{BaseURL: srv.URL, Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.invalidations))
}
