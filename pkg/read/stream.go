// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/heremaps/here-data-sdk-go/pkg/client"
	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
)

// SubscriptionMode selects how a consumer shares a stream layer's
// partitions with other subscribers.
type SubscriptionMode string

// Subscription modes (spec §4.17).
const (
	// Serial grants this subscriber every partition; no other
	// subscriber may share the same subscription id.
	Serial SubscriptionMode = "serial"
	// Parallel assigns this subscriber a subset of partitions,
	// coordinated server-side with other subscribers of the same group.
	Parallel SubscriptionMode = "parallel"
)

// SubscriptionId is an opaque handle to a server-side consumer cursor.
type SubscriptionId string

// subState is a subscription's local view of its own lifecycle.
type subState int

const (
	stateNone subState = iota
	stateSubscribed
	statePolling
	stateCommitted
	stateUnsubscribed
)

// SubscribeRequest configures a new subscription.
type SubscribeRequest struct {
	Mode       SubscriptionMode
	Properties ConsumerProperties
}

// StreamClient implements the stream client (component Q): subscribe,
// poll, getData, commitOffsets, seekToOffset and unsubscribe against
// one layer's stream and sub endpoints. One StreamClient tracks at
// most one subscription at a time, matching the spec's client-viewpoint
// state machine: None -> Subscribed -> (Polling <-> Committed) ->
// Unsubscribed.
type StreamClient struct {
	settings Settings
	layer    string
	http     *olpclient.OlpClient
	blobs    *BlobRepository

	mu    sync.Mutex
	state subState
	subID SubscriptionId
}

// NewStreamClient builds a StreamClient for layer.
func NewStreamClient(settings Settings, layer string) *StreamClient {
	return &StreamClient{
		settings: settings,
		layer:    layer,
		http:     settings.httpClient(),
		blobs:    NewBlobRepository(settings, "blob"),
	}
}

// Subscribe opens a subscription. Calling Subscribe again while one is
// already open (Subscribed, Polling or Committed) is idempotent: it
// returns the existing subscription id rather than opening a second
// one (spec §4.17).
func (s *StreamClient) Subscribe(ctx context.Context, req SubscribeRequest) (result client.Result[SubscriptionId]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	s.mu.Lock()
	if s.state != stateNone && s.state != stateUnsubscribed {
		existing := s.subID
		s.mu.Unlock()
		return client.Ok(existing)
	}
	s.mu.Unlock()

	ep := s.settings.Lookup.LookupAPI(ctx, s.settings.CatalogHRN, "stream", s.settings.apiVersion())
	if !ep.IsSuccess() {
		err = ep.Err
		return client.Failed[SubscriptionId](ep.Err)
	}

	mode := req.Mode
	if mode == "" {
		mode = Serial
	}
	params := map[string]string{"mode": string(mode)}
	body, _ := json.Marshal(req.Properties)

	resp, callErr := s.http.CallApi(ctx, olpclient.ApiRequest{
		BaseURL:     ep.Value.BaseURL,
		Path:        "/stream/v2/catalogs/" + s.settings.CatalogHRN + "/layers/" + s.layer + "/subscribe",
		Method:      olpclient.POST,
		QueryParams: params,
		Body:        body,
		ContentType: "application/json",
	})
	if callErr != nil {
		err = callErr
		return client.Failed[SubscriptionId](networkErr(ctx, callErr))
	}
	if apiErr := statusError(resp.Status); apiErr != nil {
		return client.Failed[SubscriptionId](apiErr)
	}

	var parsed struct {
		SubscriptionID string `json:"subscriptionId"`
	}
	if jsonErr := json.Unmarshal(resp.Body, &parsed); jsonErr != nil || parsed.SubscriptionID == "" {
		id := uuid.NewString()
		parsed.SubscriptionID = id
	}

	s.mu.Lock()
	s.subID = SubscriptionId(parsed.SubscriptionID)
	s.state = stateSubscribed
	s.mu.Unlock()

	return client.Ok(s.subID)
}

// Poll retrieves the next batch of messages for sub. It fails with
// InvalidArgument if sub does not match the currently open
// subscription, or if the subscription has been unsubscribed.
func (s *StreamClient) Poll(ctx context.Context, sub SubscriptionId) (result client.Result[[]Message]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	if apiErr := s.checkActive(sub); apiErr != nil {
		return client.Failed[[]Message](apiErr)
	}

	ep := s.settings.Lookup.LookupAPI(ctx, s.settings.CatalogHRN, "stream", s.settings.apiVersion())
	if !ep.IsSuccess() {
		err = ep.Err
		return client.Failed[[]Message](ep.Err)
	}

	resp, callErr := s.http.CallApi(ctx, olpclient.ApiRequest{
		BaseURL: ep.Value.BaseURL,
		Path:    "/stream/v2/catalogs/" + s.settings.CatalogHRN + "/layers/" + s.layer + "/partitions",
		Method:  olpclient.GET,
		QueryParams: map[string]string{
			"subscriptionId": string(sub),
		},
	})
	if callErr != nil {
		err = callErr
		return client.Failed[[]Message](networkErr(ctx, callErr))
	}
	if apiErr := statusError(resp.Status); apiErr != nil {
		return client.Failed[[]Message](apiErr)
	}

	var parsed struct {
		Messages []Message `json:"messages"`
	}
	if jsonErr := json.Unmarshal(resp.Body, &parsed); jsonErr != nil {
		err = jsonErr
		return client.Failed[[]Message](parseErr(jsonErr))
	}

	s.mu.Lock()
	s.state = statePolling
	s.mu.Unlock()

	return client.Ok(parsed.Messages)
}

// GetData resolves msg's bytes: inline data is returned directly,
// otherwise its data handle is blob-fetched.
func (s *StreamClient) GetData(ctx context.Context, msg Message) client.Result[[]byte] {
	if msg.Metadata.InlineData != nil {
		return client.Ok(msg.Metadata.InlineData)
	}
	if msg.Metadata.DataHandle == "" {
		return client.Failed[[]byte](client.NewError(client.KindInvalidArgument, "message has neither inline data nor a data handle"))
	}
	return s.blobs.GetBlob(ctx, s.layer, msg.Metadata.DataHandle, BlobRange{})
}

// CommitOffsets acknowledges progress through offsets for sub.
func (s *StreamClient) CommitOffsets(ctx context.Context, sub SubscriptionId, offsets []StreamOffset) (result client.Result[struct{}]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	if apiErr := s.checkActive(sub); apiErr != nil {
		return client.Failed[struct{}](apiErr)
	}

	if apiErr := s.putOffsets(ctx, sub, "offsets", offsets); apiErr != nil {
		err = apiErr
		return client.Failed[struct{}](apiErr)
	}

	s.mu.Lock()
	s.state = stateCommitted
	s.mu.Unlock()

	return client.Ok(struct{}{})
}

// SeekToOffset repositions sub's cursor to offsets, discarding any
// buffered progress since the last commit.
func (s *StreamClient) SeekToOffset(ctx context.Context, sub SubscriptionId, offsets []StreamOffset) (result client.Result[struct{}]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	if apiErr := s.checkActive(sub); apiErr != nil {
		return client.Failed[struct{}](apiErr)
	}

	if apiErr := s.putOffsets(ctx, sub, "seek", offsets); apiErr != nil {
		err = apiErr
		return client.Failed[struct{}](apiErr)
	}

	return client.Ok(struct{}{})
}

func (s *StreamClient) putOffsets(ctx context.Context, sub SubscriptionId, action string, offsets []StreamOffset) *client.ApiError {
	ep := s.settings.Lookup.LookupAPI(ctx, s.settings.CatalogHRN, "stream", s.settings.apiVersion())
	if !ep.IsSuccess() {
		return ep.Err
	}

	body, _ := json.Marshal(struct {
		Offsets []StreamOffset `json:"offsets"`
	}{Offsets: offsets})

	resp, callErr := s.http.CallApi(ctx, olpclient.ApiRequest{
		BaseURL: ep.Value.BaseURL,
		Path:    "/stream/v2/catalogs/" + s.settings.CatalogHRN + "/layers/" + s.layer + "/" + action,
		Method:  olpclient.PUT,
		QueryParams: map[string]string{
			"subscriptionId": string(sub),
		},
		Body:        body,
		ContentType: "application/json",
	})
	if callErr != nil {
		return networkErr(ctx, callErr)
	}
	return statusError(resp.Status)
}

// Unsubscribe releases sub. Further Poll/CommitOffsets/SeekToOffset
// calls against it fail with InvalidArgument.
func (s *StreamClient) Unsubscribe(ctx context.Context, sub SubscriptionId) (result client.Result[struct{}]) {
	var err error
	defer monRead.Task()(&ctx)(&err)

	if apiErr := s.checkActive(sub); apiErr != nil {
		return client.Failed[struct{}](apiErr)
	}

	ep := s.settings.Lookup.LookupAPI(ctx, s.settings.CatalogHRN, "stream", s.settings.apiVersion())
	if !ep.IsSuccess() {
		err = ep.Err
		return client.Failed[struct{}](ep.Err)
	}

	resp, callErr := s.http.CallApi(ctx, olpclient.ApiRequest{
		BaseURL: ep.Value.BaseURL,
		Path:    "/stream/v2/catalogs/" + s.settings.CatalogHRN + "/layers/" + s.layer + "/subscribe",
		Method:  olpclient.DELETE,
		QueryParams: map[string]string{
			"subscriptionId": string(sub),
		},
	})
	if callErr != nil {
		err = callErr
		return client.Failed[struct{}](networkErr(ctx, callErr))
	}
	if apiErr := statusError(resp.Status); apiErr != nil {
		return client.Failed[struct{}](apiErr)
	}

	s.mu.Lock()
	s.state = stateUnsubscribed
	s.mu.Unlock()

	return client.Ok(struct{}{})
}

// checkActive verifies sub matches the currently open subscription and
// that the subscription has not been unsubscribed.
func (s *StreamClient) checkActive(sub SubscriptionId) *client.ApiError {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateNone || s.state == stateUnsubscribed {
		return client.NewError(client.KindInvalidArgument, "no active subscription")
	}
	if sub != s.subID {
		return client.NewError(client.KindInvalidArgument, "subscription id does not match the active subscription")
	}
	return nil
}
