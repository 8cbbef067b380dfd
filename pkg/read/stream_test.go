// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

package read_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heremaps/here-data-sdk-go/pkg/client"
	"github.com/heremaps/here-data-sdk-go/pkg/read"
)

func streamTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/subscribe") && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"subscriptionId":"sub-1"}`))
		case strings.HasSuffix(r.URL.Path, "/subscribe") && r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/partitions"):
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"messages":[{"metadata":{"partition":1,"inlineData":"aGVsbG8="},"offset":{"partition":1,"offset":5}}]}`))
		case strings.HasSuffix(r.URL.Path, "/offsets"), strings.HasSuffix(r.URL.Path, "/seek"):
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestStreamClient_SubscribeIsIdempotentWhileOpen(t *testing.T) {
	srv := streamTestServer(t)
	defer srv.Close()

	c := read.NewStreamClient(newTestSettings(t, srv, "stream"), "layer")

	r1 := c.Subscribe(context.Background(), read.SubscribeRequest{Mode: read.Serial})
	require.True(t, r1.IsSuccess())

	r2 := c.Subscribe(context.Background(), read.SubscribeRequest{Mode: read.Serial})
	require.True(t, r2.IsSuccess())
	assert.Equal(t, r1.Value, r2.Value)
}

func TestStreamClient_PollAfterUnsubscribeFails(t *testing.T) {
	srv := streamTestServer(t)
	defer srv.Close()

	c := read.NewStreamClient(newTestSettings(t, srv, "stream"), "layer")

	sub := c.Subscribe(context.Background(), read.SubscribeRequest{Mode: read.Serial})
	require.True(t, sub.IsSuccess())

	unsub := c.Unsubscribe(context.Background(), sub.Value)
	require.True(t, unsub.IsSuccess())

	poll := c.Poll(context.Background(), sub.Value)
	require.False(t, poll.IsSuccess())
	assert.Equal(t, client.KindInvalidArgument, poll.Err.Kind)
}

func TestStreamClient_PollWrongSubscriptionFails(t *testing.T) {
	srv := streamTestServer(t)
	defer srv.Close()

	c := read.NewStreamClient(newTestSettings(t, srv, "stream"), "layer")

	sub := c.Subscribe(context.Background(), read.SubscribeRequest{Mode: read.Serial})
	require.True(t, sub.IsSuccess())

	poll := c.Poll(context.Background(), read.SubscriptionId("not-the-active-one"))
	require.False(t, poll.IsSuccess())
	assert.Equal(t, client.KindInvalidArgument, poll.Err.Kind)
}

func TestStreamClient_PollThenCommitThenSeek(t *testing.T) {
	srv := streamTestServer(t)
	defer srv.Close()

	c := read.NewStreamClient(newTestSettings(t, srv, "stream"), "layer")

	sub := c.Subscribe(context.Background(), read.SubscribeRequest{Mode: read.Serial})
	require.True(t, sub.IsSuccess())

	poll := c.Poll(context.Background(), sub.Value)
	require.True(t, poll.IsSuccess())
	require.Len(t, poll.Value, 1)

	data := c.GetData(context.Background(), poll.Value[0])
	require.True(t, data.IsSuccess())
	assert.Equal(t, []byte("hello"), data.Value)

	commit := c.CommitOffsets(context.Background(), sub.Value, []read.StreamOffset{poll.Value[0].Offset})
	require.True(t, commit.IsSuccess())

	seek := c.SeekToOffset(context.Background(), sub.Value, []read.StreamOffset{{Partition: 1, Offset: 0}})
	require.True(t, seek.IsSuccess())
}

func TestStreamClient_GetData_MissingHandleFails(t *testing.T) {
	srv := streamTestServer(t)
	defer srv.Close()

	c := read.NewStreamClient(newTestSettings(t, srv, "stream"), "layer")

	msg := read.Message{Metadata: read.MessageMetadata{Partition: 1}}
	r := c.GetData(context.Background(), msg)
	require.False(t, r.IsSuccess())
	assert.Equal(t, client.KindInvalidArgument, r.Err.Kind)
}
