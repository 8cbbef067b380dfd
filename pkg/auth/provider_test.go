// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heremaps/here-data-sdk-go/pkg/auth"
	"github.com/heremaps/here-data-sdk-go/pkg/client"
	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
)

func newProvider(t *testing.T, handler http.HandlerFunc, minValidity time.Duration) *auth.TokenProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return auth.New(auth.Settings{
		Credentials: auth.AuthenticationCredentials{Key: "k", Secret: "s"},
		EndpointURL: srv.URL,
		MinValidity: minValidity,
		Network:     olpclient.NewHTTPNetwork(nil),
	})
}

func TestTokenProvider_GetToken_Success(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/token", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"accessToken":"tok-1","expiresIn":3600}`))
	}, auth.DefaultMinValidity)

	r := p.GetToken(context.Background())
	require.True(t, r.IsSuccess())
	assert.Equal(t, "tok-1", r.Value.AccessToken)
}

func TestTokenProvider_CachesUntilMinValidity(t *testing.T) {
	var calls int32
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"accessToken":"tok-1","expiresIn":3600}`))
	}, auth.DefaultMinValidity)

	r1 := p.GetToken(context.Background())
	r2 := p.GetToken(context.Background())
	require.True(t, r1.IsSuccess())
	require.True(t, r2.IsSuccess())
	assert.Equal(t, r1.Value.AccessToken, r2.Value.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTokenProvider_ZeroMinValidityAlwaysRefreshes(t *testing.T) {
	var calls int32
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"accessToken":"tok-1","expiresIn":3600}`))
	}, 0)

	_ = p.GetToken(context.Background())
	_ = p.GetToken(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenProvider_ConcurrentCallersCoalesce(t *testing.T) {
	var calls int32
	block := make(chan struct{})
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-block
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"accessToken":"tok-1","expiresIn":3600}`))
	}, auth.DefaultMinValidity)

	const n = 10
	var wg sync.WaitGroup
	results := make([]client.Result[auth.OauthToken], n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.GetToken(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		require.True(t, r.IsSuccess())
		assert.Equal(t, "tok-1", r.Value.AccessToken)
	}
}

func TestTokenProvider_InvalidCredentialsClearsAndErrors(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, auth.DefaultMinValidity)

	r := p.GetToken(context.Background())
	require.False(t, r.IsSuccess())
	assert.Equal(t, client.KindUnauthorized, r.Err.Kind)
	assert.Equal(t, http.StatusUnauthorized, p.GetHttpStatusCode())
	require.NotNil(t, p.GetErrorResponse())
}

func TestTokenProvider_InvalidateForcesRefresh(t *testing.T) {
	var calls int32
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"accessToken":"tok-1","expiresIn":3600}`))
	}, auth.DefaultMinValidity)

	_ = p.GetToken(context.Background())
	p.Invalidate()
	_ = p.GetToken(context.Background())

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenProvider_AsBearerSource(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"accessToken":"tok-1","expiresIn":3600}`))
	}, auth.DefaultMinValidity)

	source := p.AsBearerSource()
	r := source.GetToken(context.Background())
	require.True(t, r.IsSuccess())
	assert.Equal(t, "tok-1", r.Value)
}
