// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package olpclient

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/heremaps/here-data-sdk-go/pkg/client"
)

var mon = monkit.Package()

// TokenProvider supplies the bearer token OlpClient attaches to every
// outbound request. pkg/auth.TokenProvider satisfies this interface
// through its AsBearerSource adapter; it is declared here, not
// imported, to keep olpclient independent of the auth package.
type TokenProvider interface {
	GetToken(ctx context.Context) client.Result[string]
}

// TokenInvalidator is optionally implemented by a TokenProvider whose
// cached token can be dropped. CallApi uses it to force one refresh
// after a 401 response from a non-auth endpoint.
type TokenInvalidator interface {
	Invalidate()
}

// ApiRequest describes one logical API call before it is turned into
// a NetworkRequest: a base URL, path parameters, query parameters, an
// optional form body, and an optional raw body.
type ApiRequest struct {
	BaseURL     string
	Path        string
	Method      Verb
	QueryParams map[string]string
	FormParams  map[string]string
	Headers     map[string]string
	Body        []byte
	ContentType string
}

// RetryPolicy controls how OlpClient.CallApi retries transient
// failures and 5xx/429 responses.
type RetryPolicy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterRatio float64 // fraction of the delay randomized, [0,1]
}

// DefaultRetryPolicy mirrors the teacher's connection-retry defaults:
// a handful of attempts with capped exponential backoff and jitter to
// avoid thundering-herd retries against the same host.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:  3,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    5 * time.Second,
	JitterRatio: 0.2,
}

// OlpClient composes a Network, an optional TokenProvider, and a
// RetryPolicy into a single synchronous CallApi entry point used by
// every higher-level package (auth, apilookup, read).
type OlpClient struct {
	network Network
	tokens  TokenProvider
	retry   RetryPolicy
	log     *zap.Logger
}

// Option configures an OlpClient.
type Option func(*OlpClient)

// WithTokenProvider attaches a bearer-token source. Without one,
// CallApi issues unauthenticated requests.
func WithTokenProvider(tp TokenProvider) Option {
	return func(c *OlpClient) { c.tokens = tp }
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *OlpClient) { c.retry = p }
}

// WithLogger attaches structured logging; the zero value is a no-op
// logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *OlpClient) { c.log = log }
}

// New builds an OlpClient around network, which must not be nil.
func New(network Network, opts ...Option) *OlpClient {
	c := &OlpClient{
		network: network,
		retry:   DefaultRetryPolicy,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApiResponse is the fully-buffered result of CallApi.
type ApiResponse struct {
	Status  int
	Headers []Header
	Body    []byte
}

// Header looks up the first response header matching name,
// case-insensitively.
func (r ApiResponse) Header(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// CallApi builds a NetworkRequest from req, attaches a bearer token
// if a TokenProvider is configured, sends it through the underlying
// Network, blocks until completion, and retries according to the
// configured RetryPolicy. It fully buffers the response body, for
// every caller in this module, pkg/read's blob retrieval (ranged
// requests included) among them.
func (c *OlpClient) CallApi(ctx context.Context, req ApiRequest) (resp ApiResponse, err error) {
	defer mon.Task()(&ctx)(&err)

	resp, err = c.callWithRetry(ctx, req)

	// A 401 with a cached token means the token went stale under us:
	// drop it, refresh through the provider, and retry exactly once.
	// A second 401 propagates verbatim (spec §7).
	if err == nil && resp.Status == 401 {
		if inv, ok := c.tokens.(TokenInvalidator); ok {
			inv.Invalidate()
			c.log.Debug("token rejected, refreshing and retrying once", zap.String("path", req.Path))
			resp, err = c.callWithRetry(ctx, req)
		}
	}
	return resp, err
}

func (c *OlpClient) callWithRetry(ctx context.Context, req ApiRequest) (resp ApiResponse, err error) {
	netReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return ApiResponse{}, Error.Wrap(err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.log.Debug("retrying request", zap.String("url", req.Path), zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ApiResponse{}, Error.Wrap(ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err = c.sendOnce(ctx, netReq)
		if err == nil && !isRetryableStatus(resp.Status) {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = Error.New("server returned status %d", resp.Status)
		}
	}
	if lastErr != nil && resp.Status == 0 {
		return ApiResponse{}, lastErr
	}
	return resp, nil
}

func isRetryableStatus(status int) bool {
	return status == 429 || status == 503 || status >= 500
}

func (c *OlpClient) sendOnce(ctx context.Context, req NetworkRequest) (ApiResponse, error) {
	type result struct {
		resp NetworkResponse
		body []byte
	}
	done := make(chan result, 1)

	var body []byte
	_, err := c.network.Send(ctx, req, nil, func(_ int64, chunk []byte) {
		body = append(body, chunk...)
	}, func(nr NetworkResponse) {
		done <- result{resp: nr, body: body}
	})
	if err != nil {
		return ApiResponse{}, Error.Wrap(err)
	}

	select {
	case <-ctx.Done():
		return ApiResponse{}, Error.Wrap(ctx.Err())
	case r := <-done:
		if r.resp.ErrorCode != Success || r.resp.Error != "" {
			return ApiResponse{Status: r.resp.Status}, Error.New("%s", r.resp.Error)
		}
		return ApiResponse{Status: r.resp.Status, Headers: r.resp.Headers, Body: r.body}, nil
	}
}

func (c *OlpClient) buildRequest(ctx context.Context, req ApiRequest) (NetworkRequest, error) {
	u, err := url.Parse(strings.TrimRight(req.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/"))
	if err != nil {
		return NetworkRequest{}, fmt.Errorf("invalid url: %w", err)
	}
	if len(req.QueryParams) > 0 {
		q := u.Query()
		for k, v := range req.QueryParams {
			q.Set(k, v)
		}
		u.RawQuery = encodeSorted(q)
	}

	headers := make([]Header, 0, len(req.Headers)+2)
	for k, v := range req.Headers {
		headers = append(headers, Header{Name: k, Value: v})
	}

	body := req.Body
	if len(req.FormParams) > 0 {
		form := url.Values{}
		for k, v := range req.FormParams {
			form.Set(k, v)
		}
		body = []byte(encodeSorted(form))
		headers = append(headers, Header{Name: "Content-Type", Value: "application/x-www-form-urlencoded"})
	} else if req.ContentType != "" {
		headers = append(headers, Header{Name: "Content-Type", Value: req.ContentType})
	}

	if c.tokens != nil {
		tr := c.tokens.GetToken(ctx)
		if !tr.IsSuccess() {
			return NetworkRequest{}, Error.Wrap(tr.Err)
		}
		headers = append(headers, Header{Name: "Authorization", Value: "Bearer " + tr.Value})
	}

	verb := req.Method
	if verb == "" {
		verb = GET
	}

	return NetworkRequest{
		URL:     u.String(),
		Verb:    verb,
		Headers: headers,
		Body:    body,
	}, nil
}

// encodeSorted is url.Values.Encode inlined with a stable key order;
// it exists only so query strings are deterministic for logging and
// HAR capture.
func encodeSorted(v url.Values) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		for j, val := range v[k] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

func (c *OlpClient) backoff(attempt int) time.Duration {
	d := c.retry.BaseDelay * time.Duration(1<<uint(attempt-1))
	if d > c.retry.MaxDelay {
		d = c.retry.MaxDelay
	}
	jitter := float64(d) * c.retry.JitterRatio
	d = d - time.Duration(jitter) + time.Duration(rand.Float64()*2*jitter)
	if d < 0 {
		d = c.retry.BaseDelay
	}
	return d
}
