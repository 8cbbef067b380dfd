// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package olpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heremaps/here-data-sdk-go/pkg/client"
)

// Network is the transport capability OlpClient drives. It is an
// interface, not a concrete type, so callers can substitute a
// HAR-capturing decorator, a mock for tests, or an alternate
// transport stack without touching OlpClient itself.
type Network interface {
	// Send issues req asynchronously. headerCb and dataCb, if
	// non-nil, are invoked as the response streams in; cb is invoked
	// exactly once with the final NetworkResponse. Send returns the
	// assigned RequestID, or an error if req could not be dispatched
	// at all: a malformed URL, ErrOverload when the transport's
	// parallel-requests limit is reached, or ErrOffline after the
	// transport was closed. No completion callback fires for a
	// rejected request.
	Send(ctx context.Context, req NetworkRequest, headerCb HeaderCallback, dataCb DataCallback, cb CompletionCallback) (RequestID, error)

	// Cancel aborts an in-flight request. It is a no-op if id is
	// unknown or already completed.
	Cancel(id RequestID)
}

// HTTPNetwork is the reference Network implementation, backed by
// net/http.Client. It is safe for concurrent use.
type HTTPNetwork struct {
	client      *http.Client
	maxInFlight int

	nextID   uint64
	mu       sync.Mutex
	closed   bool
	inflight map[RequestID]*requestState
}

// requestState is the bookkeeping for one in-flight request. An entry
// is removed from the inflight map exactly once (by normal
// completion, or by Close), and only its remover may invoke cb, which
// keeps the exactly-one-completion contract.
type requestState struct {
	cancel    context.CancelFunc
	cb        CompletionCallback
	cancelled bool
}

// NewHTTPNetwork builds a Network around client. If client is nil, a
// client with sane connection-pooling defaults is created.
func NewHTTPNetwork(client *http.Client) *HTTPNetwork {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &HTTPNetwork{
		client:   client,
		inflight: make(map[RequestID]*requestState),
	}
}

// NewHTTPNetworkFromSettings builds a Network honoring the proxy,
// timeout, and parallel-requests-limit configuration in settings.
func NewHTTPNetworkFromSettings(settings client.NetworkSettings) *HTTPNetwork {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	if settings.Proxy.Type != client.ProxyNone {
		proxyURL := &url.URL{
			Scheme: proxyScheme(settings.Proxy.Type),
			Host:   net.JoinHostPort(settings.Proxy.Host, strconv.Itoa(settings.Proxy.Port)),
		}
		if settings.Proxy.Username != "" {
			proxyURL.User = url.UserPassword(settings.Proxy.Username, settings.Proxy.Password)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	httpClient := &http.Client{Transport: transport}
	if settings.TimeoutSeconds > 0 {
		httpClient.Timeout = time.Duration(settings.TimeoutSeconds) * time.Second
	}
	n := NewHTTPNetwork(httpClient)
	n.maxInFlight = settings.MaxInFlight
	return n
}

func proxyScheme(t client.ProxyType) string {
	switch t {
	case client.ProxySOCKS4:
		return "socks4"
	case client.ProxySOCKS5:
		return "socks5"
	default:
		return "http"
	}
}

func (n *HTTPNetwork) Send(ctx context.Context, req NetworkRequest, headerCb HeaderCallback, dataCb DataCallback, cb CompletionCallback) (RequestID, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	if req.Settings.TimeoutSeconds > 0 {
		reqCtx, cancel = context.WithTimeout(reqCtx, time.Duration(req.Settings.TimeoutSeconds)*time.Second)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, string(req.Verb), req.URL, body)
	if err != nil {
		cancel()
		return 0, Error.Wrap(err)
	}
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		cancel()
		return 0, ErrOffline
	}
	if n.maxInFlight > 0 && len(n.inflight) >= n.maxInFlight {
		n.mu.Unlock()
		cancel()
		return 0, ErrOverload
	}
	id := RequestID(atomic.AddUint64(&n.nextID, 1))
	n.inflight[id] = &requestState{cancel: cancel, cb: cb}
	n.mu.Unlock()

	go n.do(id, httpReq, headerCb, dataCb)

	return id, nil
}

// take removes id from the inflight map, claiming the exclusive right
// to deliver its completion callback. It reports false if someone
// else (normal completion, or Close) already claimed it.
func (n *HTTPNetwork) take(id RequestID) (*requestState, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	st, ok := n.inflight[id]
	if ok {
		delete(n.inflight, id)
	}
	return st, ok
}

// complete claims id and delivers resp; a no-op if Close got there
// first.
func (n *HTTPNetwork) complete(id RequestID, resp NetworkResponse) {
	st, ok := n.take(id)
	if !ok {
		return
	}
	st.cancel()
	if resp.ErrorCode != Success && st.cancelled {
		// A transport error after Cancel is reported as the cancel,
		// but an HTTP status obtained before cancel took effect wins.
		resp.ErrorCode = CancelledError
		resp.Error = "request cancelled"
	}
	st.cb(resp)
}

func (n *HTTPNetwork) do(id RequestID, httpReq *http.Request, headerCb HeaderCallback, dataCb DataCallback) {
	resp, err := n.client.Do(httpReq)
	if err != nil {
		n.complete(id, NetworkResponse{RequestID: id, ErrorCode: classify(err), Error: err.Error()})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	headers := make([]Header, 0, len(resp.Header))
	for name, values := range resp.Header {
		for _, v := range values {
			headers = append(headers, Header{Name: name, Value: v})
			if headerCb != nil {
				headerCb(name, v)
			}
		}
	}

	var (
		downloaded int64
		buf        = make([]byte, 32*1024)
	)
	for {
		nr, rerr := resp.Body.Read(buf)
		if nr > 0 {
			chunk := make([]byte, nr)
			copy(chunk, buf[:nr])
			if dataCb != nil {
				dataCb(downloaded, chunk)
			}
			downloaded += int64(nr)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			n.complete(id, NetworkResponse{
				RequestID:       id,
				Status:          resp.StatusCode,
				ErrorCode:       classify(rerr),
				Error:           rerr.Error(),
				Headers:         headers,
				BytesDownloaded: downloaded,
			})
			return
		}
	}

	n.complete(id, NetworkResponse{
		RequestID:       id,
		Status:          resp.StatusCode,
		Headers:         headers,
		BytesDownloaded: downloaded,
	})
}

// classify maps a transport error to its ErrorCode.
func classify(err error) ErrorCode {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return CancelledError
	case errors.Is(err, context.DeadlineExceeded):
		return TimeoutError
	case errors.As(err, &netErr) && netErr.Timeout():
		return TimeoutError
	default:
		return IOError
	}
}

// Cancel aborts an in-flight request, best-effort. The completion
// callback still fires: with CancelledError if the abort won, or with
// the HTTP status if the request completed first.
func (n *HTTPNetwork) Cancel(id RequestID) {
	n.mu.Lock()
	st, ok := n.inflight[id]
	if ok {
		st.cancelled = true
	}
	n.mu.Unlock()
	if ok {
		st.cancel()
	}
}

// Close tears the transport down. Every outstanding request receives
// a synthesized completion callback with OfflineError, and subsequent
// Sends are rejected with ErrOffline.
func (n *HTTPNetwork) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	outstanding := n.inflight
	n.inflight = make(map[RequestID]*requestState)
	n.mu.Unlock()

	for id, st := range outstanding {
		st.cancel()
		st.cb(NetworkResponse{
			RequestID: id,
			ErrorCode: OfflineError,
			Error:     "network is deinitialized",
		})
	}
	return nil
}

// IsTemporary reports whether err is itself a net.Error that reports
// a timeout. Any other error, a connection reset or an error that
// only wraps a net.Error included, reports false.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if ok := asNetError(err, &netErr); ok {
		return netErr.Timeout()
	}
	return false
}

func asNetError(err error, target *net.Error) bool {
	ne, ok := err.(net.Error)
	if ok {
		*target = ne
	}
	return ok
}
