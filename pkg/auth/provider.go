// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/heremaps/here-data-sdk-go/pkg/client"
	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
)

var mon = monkit.Package()

// DefaultMinValidity is the minimum remaining lifetime a cached token
// must have to be reused, per spec §4.8. Zero means "always refresh".
const DefaultMinValidity = 300 * time.Second

// Settings configures a TokenProvider.
type Settings struct {
	Credentials AuthenticationCredentials
	EndpointURL string
	MinValidity time.Duration
	Network     olpclient.Network
	Logger      *zap.Logger
	NowFunc     func() time.Time
}

// TokenProvider acquires, caches, and refreshes bearer tokens. A
// single instance is meant to be shared by every caller using the
// same credentials: GetToken coalesces concurrent refreshes into one
// outbound request via singleflight, and a mutex guards the cached
// token the way the spec's single "cache-inspect + single-flight"
// lock does.
type TokenProvider struct {
	settings Settings
	client   *olpclient.OlpClient
	log      *zap.Logger
	now      func() time.Time

	group singleflight.Group

	mu             sync.Mutex
	token          *OauthToken
	lastErr        *client.ApiError
	lastHTTPStatus int
}

// New builds a TokenProvider. settings.Network must not be nil.
func New(settings Settings) *TokenProvider {
	log := settings.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := settings.NowFunc
	if now == nil {
		now = time.Now
	}
	return &TokenProvider{
		settings: settings,
		client:   olpclient.New(settings.Network),
		log:      log,
		now:      now,
	}
}

// GetToken returns a valid bearer token, refreshing it if the cached
// one has less than MinValidity remaining (or if MinValidity is zero,
// unconditionally). Concurrent callers observe at most one outbound
// refresh request and receive the same resulting token.
func (p *TokenProvider) GetToken(ctx context.Context) (result client.Result[OauthToken]) {
	var err error
	defer mon.Task()(&ctx)(&err)

	if tok, ok := p.cached(); ok {
		return client.Ok(tok)
	}

	v, refreshErr, _ := p.group.Do("token", func() (interface{}, error) {
		if tok, ok := p.cached(); ok {
			return tok, nil
		}
		return p.refresh(ctx)
	})
	if refreshErr != nil {
		err = refreshErr
		if apiErr, ok := refreshErr.(*client.ApiError); ok {
			return client.Failed[OauthToken](apiErr)
		}
		return client.Failed[OauthToken](client.NewError(client.KindNetworkError, refreshErr.Error()))
	}
	return client.Ok(v.(OauthToken))
}

// cached returns the current token if it satisfies MinValidity.
func (p *TokenProvider) cached() (OauthToken, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == nil {
		return OauthToken{}, false
	}
	if p.settings.MinValidity <= 0 {
		return OauthToken{}, false
	}
	if p.token.ExpiresIn(p.now()) <= p.settings.MinValidity {
		return OauthToken{}, false
	}
	return *p.token, true
}

// Invalidate drops the cached token. Callers observing a 401 from a
// non-auth API call invoke this, then call GetToken again for exactly
// one implicit retry, per the propagation policy.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = nil
	p.mu.Unlock()
}

// GetErrorResponse returns the ApiError from the most recent failed
// refresh, or nil if the last refresh succeeded (or none has run).
func (p *TokenProvider) GetErrorResponse() *client.ApiError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// GetHttpStatusCode returns the HTTP status of the most recent token
// endpoint response.
func (p *TokenProvider) GetHttpStatusCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHTTPStatus
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

func (p *TokenProvider) refresh(ctx context.Context) (OauthToken, error) {
	body := signedSignInBody(p.settings.Credentials, p.now().Unix(), newNonce())

	resp, err := p.client.CallApi(ctx, olpclient.ApiRequest{
		BaseURL:     p.settings.EndpointURL,
		Path:        "/oauth2/token",
		Method:      olpclient.POST,
		Body:        body,
		ContentType: "application/json",
	})
	if err != nil {
		// Network failure: the previously cached token, if any,
		// remains valid; we do not clear it here.
		p.log.Warn("token refresh request failed", zap.Error(err))
		apiErr, ok := err.(*client.ApiError)
		if !ok {
			apiErr = client.NewError(client.KindNetworkError, err.Error())
		}
		p.mu.Lock()
		p.lastErr = apiErr
		p.mu.Unlock()
		return OauthToken{}, err
	}

	p.mu.Lock()
	p.lastHTTPStatus = resp.Status
	p.mu.Unlock()

	if resp.Status == 401 || resp.Status == 403 {
		apiErr := client.ErrorFromHTTPStatus(resp.Status, "token endpoint rejected credentials")
		p.mu.Lock()
		p.token = nil
		p.lastErr = apiErr
		p.mu.Unlock()
		return OauthToken{}, apiErr
	}
	if resp.Status != 200 {
		apiErr := client.ErrorFromHTTPStatus(resp.Status, "unexpected token endpoint response")
		p.mu.Lock()
		p.lastErr = apiErr
		p.mu.Unlock()
		return OauthToken{}, apiErr
	}

	var parsed tokenResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		apiErr := client.NewError(client.KindServiceUnavailable, "malformed token response: "+err.Error())
		p.mu.Lock()
		p.lastErr = apiErr
		p.mu.Unlock()
		return OauthToken{}, apiErr
	}

	tok := OauthToken{
		AccessToken:        parsed.AccessToken,
		ExpiryEpochSeconds: p.now().Unix() + parsed.ExpiresIn,
	}

	p.mu.Lock()
	p.token = &tok
	p.lastErr = nil
	p.mu.Unlock()

	return tok, nil
}

// bearerSource adapts TokenProvider to olpclient.TokenProvider, whose
// GetToken returns the bare access token string rather than the full
// OauthToken value.
type bearerSource struct{ p *TokenProvider }

func (b bearerSource) GetToken(ctx context.Context) client.Result[string] {
	r := b.p.GetToken(ctx)
	if !r.IsSuccess() {
		return client.Failed[string](r.Err)
	}
	return client.Ok(r.Value.AccessToken)
}

// Invalidate implements olpclient.TokenInvalidator so a 401 from a
// downstream API drops the cached token and re-enters the provider.
func (b bearerSource) Invalidate() { b.p.Invalidate() }

// AsBearerSource exposes p as an olpclient.TokenProvider, for wiring
// into OlpClient instances used by the rest of the SDK.
func (p *TokenProvider) AsBearerSource() olpclient.TokenProvider {
	return bearerSource{p: p}
}
