package sdk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/kvstore/memory"
	"github.com/vaultsync/go-nostr/nostrtest"
)

const (
	knownSK = "7f7ff03d123792d6ac594bfa67bf6d0c0ab55b6b1fdb6249303fe861f1ccba9a"
	knownPK = "17162c921dc4d2518f9a101db33695df1afb56ab82f5ff3e5da6eec3ca5cd917"
)

func signed(t *testing.T, kind int, createdAt nostr.Timestamp, content string, tags nostr.Tags) nostr.Event {
	t.Helper()
	evt := nostr.Event{Kind: kind, CreatedAt: createdAt, Content: content, Tags: tags}
	require.NoError(t, evt.Sign(knownSK))
	return evt
}

func testSystem(t *testing.T, relays ...string) *System {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	pool := nostr.NewSimplePool(ctx)
	t.Cleanup(func() {
		pool.Close("test over")
		cancel()
	})
	sys := NewSystem(pool, relays, memory.NewStore())
	sys.QueryTimeout = 2 * time.Second
	return sys
}

func TestFetchProfileMetadata(t *testing.T) {
	r1 := nostrtest.NewRelay()
	defer r1.Close()
	r2 := nostrtest.NewRelay()
	defer r2.Close()

	now := nostr.Now()
	r1.Store(signed(t, nostr.KindProfileMetadata, now-100, `{"name":"old"}`, nil))
	r2.Store(signed(t, nostr.KindProfileMetadata, now-10, `{"name":"alice","display_name":"Alice","picture":"https://example.com/a.png"}`, nil))

	sys := testSystem(t, r1.URL, r2.URL, "ws://127.0.0.1:1")
	pm := sys.FetchProfileMetadata(context.Background(), knownPK)
	assert.Equal(t, knownPK, pm.PubKey)
	assert.Equal(t, "alice", pm.Name)
	assert.Equal(t, "Alice", pm.DisplayName)
	assert.Equal(t, "https://example.com/a.png", pm.Picture)
	require.NotNil(t, pm.Event)
	assert.Equal(t, now-10, pm.Event.CreatedAt)
	assert.Equal(t, "alice", pm.ShortName())
	assert.Eventually(t, func() bool {
		return r1.OpenSubscriptions() == 0 && r2.OpenSubscriptions() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFetchProfileMetadataMissing(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()

	sys := testSystem(t, relay.URL)
	pm := sys.FetchProfileMetadata(context.Background(), knownPK)
	assert.Equal(t, knownPK, pm.PubKey)
	assert.Nil(t, pm.Event)
	npub := pm.Npub()
	require.Len(t, npub, 63)
	assert.Equal(t, npub[0:7]+"…"+npub[58:], pm.ShortName())
}

func TestFetchProfileMetadataGarbage(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()
	relay.Store(signed(t, nostr.KindProfileMetadata, nostr.Now(), "not json", nil))

	sys := testSystem(t, relay.URL)
	pm := sys.FetchProfileMetadata(context.Background(), knownPK)
	assert.Equal(t, knownPK, pm.PubKey)
	assert.Empty(t, pm.Name)
	assert.NotNil(t, pm.Event)
}

func TestCacheFallback(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()
	relay.Store(signed(t, nostr.KindProfileMetadata, nostr.Now(), `{"name":"cached"}`, nil))

	sys := testSystem(t, relay.URL)
	assert.Equal(t, "cached", sys.FetchProfileMetadata(context.Background(), knownPK).Name)

	// no relays answer anymore, the stored copy is used
	sys.Relays = nil
	assert.Equal(t, "cached", sys.FetchProfileMetadata(context.Background(), knownPK).Name)

	sys.KVStore = nil
	assert.Empty(t, sys.FetchProfileMetadata(context.Background(), knownPK).Name)
}

func TestFetchRelayList(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()
	relay.Store(signed(t, nostr.KindRelayListMetadata, nostr.Now(), "", nostr.Tags{
		{"r", "wss://both.example.com/"},
		{"r", "wss://read.example.com", "read"},
		{"r", "wss://write.example.com", "write"},
		{"r", "https://not-a-relay.example.com"},
		{"r", "wss://both.example.com"},
		{"p", knownPK},
	}))

	sys := testSystem(t, relay.URL)
	list := sys.FetchRelayList(context.Background(), knownPK)
	assert.Equal(t, []Relay{
		{URL: "wss://both.example.com", Inbox: true, Outbox: true},
		{URL: "wss://read.example.com", Inbox: true},
		{URL: "wss://write.example.com", Outbox: true},
	}, list)
	assert.Equal(t, []string{"wss://both.example.com", "wss://write.example.com"}, WriteRelays(list))
}

func TestFetchBlossomServers(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()
	relay.Store(signed(t, nostr.KindBlossomServerList, nostr.Now(), "", nostr.Tags{
		{"server", "https://cdn.example.com/"},
		{"server", "blossom.example.com"},
		{"server", "https://cdn.example.com"},
		{"server"},
	}))

	sys := testSystem(t, relay.URL)
	assert.Equal(t,
		[]string{"https://cdn.example.com", "https://blossom.example.com"},
		sys.FetchBlossomServers(context.Background(), knownPK))

	assert.Nil(t, sys.FetchBlossomServers(context.Background(), "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"))
}
