// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Package har decorates an olpclient.Network with HAR 1.2 capture,
// mirroring the teacher's capture-then-flush adapter pattern for
// recording I/O for later inspection.
package har

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
)

// Entry is one HAR 1.2 "entries" element, trimmed to the fields this
// adapter actually populates.
type Entry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Time            float64     `json:"time"`
	Request         EntryReq    `json:"request"`
	Response        EntryResp   `json:"response"`
	Cache           struct{}    `json:"cache"`
	Timings         EntryTiming `json:"timings"`
}

// EntryReq is the HAR "request" object.
type EntryReq struct {
	Method      string        `json:"method"`
	URL         string        `json:"url"`
	HTTPVersion string        `json:"httpVersion"`
	Headers     []NameValue   `json:"headers"`
	BodySize    int           `json:"bodySize"`
	PostData    *PostDataSpec `json:"postData,omitempty"`
}

// EntryResp is the HAR "response" object.
type EntryResp struct {
	Status      int         `json:"status"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []NameValue `json:"headers"`
	Content     Content     `json:"content"`
	BodySize    int         `json:"bodySize"`
}

// EntryTiming is the HAR "timings" object; only "wait" is measured.
type EntryTiming struct {
	Wait float64 `json:"wait"`
}

// NameValue is a HAR header/cookie/query-param pair.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Content is the HAR response body wrapper.
type Content struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
}

// PostDataSpec is the HAR request body wrapper.
type PostDataSpec struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// Log is the top-level HAR document.
type Log struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Entries []Entry `json:"entries"`
}

// Creator identifies the tool that produced the log.
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Document is the root HAR object (`{"log": ...}`).
type Document struct {
	Log Log `json:"log"`
}

// CaptureAdapter decorates a Network, recording every request/response
// pair as a HAR entry. Call Flush (or rely on Close, which Flushes)
// to write the accumulated document to w.
type CaptureAdapter struct {
	inner olpclient.Network
	w     io.Writer

	mu      sync.Mutex
	entries []Entry
}

// NewCaptureAdapter wraps inner; captured entries are written to w
// when Flush or Close is called.
func NewCaptureAdapter(inner olpclient.Network, w io.Writer) *CaptureAdapter {
	return &CaptureAdapter{inner: inner, w: w}
}

// Send implements olpclient.Network, recording the round trip.
func (c *CaptureAdapter) Send(ctx context.Context, req olpclient.NetworkRequest, headerCb olpclient.HeaderCallback, dataCb olpclient.DataCallback, cb olpclient.CompletionCallback) (olpclient.RequestID, error) {
	started := time.Now()

	var body []byte
	wrappedData := func(offset int64, chunk []byte) {
		body = append(body, chunk...)
		if dataCb != nil {
			dataCb(offset, chunk)
		}
	}

	wrappedCb := func(resp olpclient.NetworkResponse) {
		c.record(req, resp, body, started)
		cb(resp)
	}

	return c.inner.Send(ctx, req, headerCb, wrappedData, wrappedCb)
}

// Cancel implements olpclient.Network.
func (c *CaptureAdapter) Cancel(id olpclient.RequestID) { c.inner.Cancel(id) }

func (c *CaptureAdapter) record(req olpclient.NetworkRequest, resp olpclient.NetworkResponse, body []byte, started time.Time) {
	entry := Entry{
		StartedDateTime: started.UTC().Format(time.RFC3339Nano),
		Time:            float64(time.Since(started).Milliseconds()),
		Request: EntryReq{
			Method:      string(req.Verb),
			URL:         req.URL,
			HTTPVersion: "HTTP/1.1",
			Headers:     toNameValues(req.Headers),
			BodySize:    len(req.Body),
		},
		Response: EntryResp{
			Status:      resp.Status,
			HTTPVersion: "HTTP/1.1",
			Headers:     toNameValues(resp.Headers),
			Content: Content{
				Size: len(body),
				Text: string(body),
			},
			BodySize: len(body),
		},
		Timings: EntryTiming{Wait: float64(time.Since(started).Milliseconds())},
	}
	if len(req.Body) > 0 {
		entry.Request.PostData = &PostDataSpec{Text: string(req.Body)}
	}

	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
}

func toNameValues(headers []olpclient.Header) []NameValue {
	out := make([]NameValue, 0, len(headers))
	for _, h := range headers {
		out = append(out, NameValue{Name: h.Name, Value: h.Value})
	}
	return out
}

// Flush writes the accumulated HAR document to the configured writer.
// It does not clear the in-memory entries, so it is safe to call more
// than once (e.g. periodically and again on Close).
func (c *CaptureAdapter) Flush() error {
	c.mu.Lock()
	doc := Document{Log: Log{
		Version: "1.2",
		Creator: Creator{Name: "here-data-sdk-go", Version: "1.0"},
		Entries: append([]Entry(nil), c.entries...),
	}}
	c.mu.Unlock()

	enc := json.NewEncoder(c.w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Close flushes the HAR document. It matches io.Closer so
// CaptureAdapter can be deferred alongside the rest of a client's
// teardown.
func (c *CaptureAdapter) Close() error {
	return c.Flush()
}
