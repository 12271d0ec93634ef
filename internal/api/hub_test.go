package api

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newHubClient(id string, hub *Hub) *Client {
	return &Client{
		ID:      id,
		Hub:     hub,
		Send:    make(chan []byte, 4),
		closeCh: make(chan struct{}),
	}
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a := newHubClient("a", hub)
	b := newHubClient("b", hub)
	hub.register <- a
	hub.register <- b

	hub.Broadcast([]byte(`{"status":"queued"}`))

	for _, client := range []*Client{a, b} {
		select {
		case msg := <-client.Send:
			assert.JSONEq(t, `{"status":"queued"}`, string(msg))
		case <-time.After(2 * time.Second):
			t.Fatalf("client %s did not receive the broadcast", client.ID)
		}
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a := newHubClient("a", hub)
	hub.register <- a
	hub.unregister <- a

	select {
	case _, ok := <-a.Send:
		assert.False(t, ok, "send channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestHubShutdownDisconnectsClients(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	a := newHubClient("a", hub)
	hub.register <- a

	cancel()

	select {
	case _, ok := <-a.Send:
		assert.False(t, ok, "send channel should be closed on shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("send channel was not closed on shutdown")
	}

	select {
	case <-a.closeCh:
	case <-time.After(2 * time.Second):
		t.Fatal("close channel was not closed on shutdown")
	}
}

func TestClientCloseSendIsIdempotent(t *testing.T) {
	client := newHubClient("a", nil)

	require.NotPanics(t, func() {
		client.closeSend()
		client.closeSend()
	})
}
