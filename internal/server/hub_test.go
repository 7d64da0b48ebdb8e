package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc, chan error) {
	t.Helper()
	h := newHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.run(ctx) }()
	return h, cancel, done
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHubBroadcastAndUnicast(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h, cancel, done := startHub(t)

	a := &Client{id: "a", send: make(chan []byte, 4)}
	b := &Client{id: "b", send: make(chan []byte, 4)}
	require.True(t, h.join(a))
	require.True(t, h.join(b))

	h.announce(EventRemoved, RemovePayload{AgentID: "x"})
	assert.JSONEq(t, `{"type":"removed","payload":{"agentId":"x"}}`, string(recv(t, a)))
	assert.JSONEq(t, `{"type":"removed","payload":{"agentId":"x"}}`, string(recv(t, b)))

	h.sendTo(a, EventError, ErrorEvent{Action: "spawn", Message: "nope"})
	assert.JSONEq(t, `{"type":"error","payload":{"action":"spawn","message":"nope"}}`, string(recv(t, a)))
	select {
	case msg := <-b.send:
		t.Fatalf("unicast leaked to b: %s", msg)
	default:
	}

	h.leave(b)
	cancel()
	require.NoError(t, <-done)

	_, open := <-a.send
	assert.False(t, open, "hub left a client open on shutdown")
	assert.False(t, h.join(&Client{id: "late", send: make(chan []byte)}), "join after shutdown")
	h.announce(EventRemoved, RemovePayload{}) // must not block
}

func TestHubEvictsSlowClient(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h, cancel, done := startHub(t)
	defer func() { cancel(); <-done }()

	// no buffer and nobody reading: the first broadcast cannot be delivered
	slow := &Client{id: "slow", send: make(chan []byte)}
	require.True(t, h.join(slow))

	h.announce(EventRemoved, RemovePayload{AgentID: "1"})

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
