package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newRedisRelay(t *testing.T, addr string) (*Relay, *Hub) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(zerolog.Nop())
	relay := NewRelay(hub, client, nil, "echo-test", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, relay.Start(ctx))
	return relay, hub
}

func receive(t *testing.T, handle *Handle) string {
	t.Helper()
	select {
	case payload := <-handle.Messages():
		return string(payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return ""
	}
}

func TestRelayDeliversAcrossNodesWithoutEcho(t *testing.T) {
	server := miniredis.RunT(t)

	nodeA, _ := newRedisRelay(t, server.Addr())
	nodeB, _ := newRedisRelay(t, server.Addr())
	require.NotEqual(t, nodeA.NodeID(), nodeB.NodeID())

	key := ChatGroup(3)
	local := NewHandle(1, 4)
	remote := NewHandle(2, 4)
	nodeA.JoinGroup(key, local)
	nodeB.JoinGroup(key, remote)

	require.NoError(t, nodeA.Publish(context.Background(), key, []byte(`{"text":"hi"}`)))

	require.Equal(t, `{"text":"hi"}`, receive(t, local))
	require.Equal(t, `{"text":"hi"}`, receive(t, remote))

	// a relayed copy for the publishing node would show up as a second payload
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, local.Messages())
}

func TestRelayEvictsRemoteSessions(t *testing.T) {
	server := miniredis.RunT(t)

	nodeA, _ := newRedisRelay(t, server.Addr())
	nodeB, hubB := newRedisRelay(t, server.Addr())

	key := ChatGroup(4)
	remote := NewHandle(9, 1)
	nodeB.JoinGroup(key, remote)
	require.True(t, hubB.Contains(key, remote))

	require.NoError(t, nodeA.Evict(context.Background(), key, 9))

	select {
	case <-remote.Evicted():
	case <-time.After(2 * time.Second):
		t.Fatal("remote session was not evicted")
	}
}

func TestRelayWithoutTransportActsLocally(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	relay := NewRelay(hub, nil, nil, "", zerolog.Nop())
	require.NoError(t, relay.Start(context.Background()))

	handle := NewHandle(1, 1)
	relay.JoinGroup(ChatGroup(1), handle)
	require.NoError(t, relay.Publish(context.Background(), ChatGroup(1), []byte("x")))
	require.Equal(t, "x", receive(t, handle))

	relay.LeaveGroup(ChatGroup(1), handle)
	require.Zero(t, relay.Members(ChatGroup(1)))
}
