package nostr_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/nostrtest"
)

func signedNote(t *testing.T, sk string, content string, tags ...nostr.Tag) nostr.Event {
	t.Helper()
	evt := nostr.Event{
		Kind:      nostr.KindTextNote,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags(tags),
		Content:   content,
	}
	require.NoError(t, evt.Sign(sk))
	return evt
}

func TestRelayPublish(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()

	rl, err := nostr.RelayConnect(context.Background(), relay.URL)
	require.NoError(t, err)
	defer rl.Close()

	evt := signedNote(t, nostr.GeneratePrivateKey(), "hello")
	require.NoError(t, rl.Publish(context.Background(), evt))

	received := relay.Received()
	require.Len(t, received, 1)
	assert.Equal(t, evt.ID, received[0].ID)
}

func TestRelayPublishRejected(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()
	relay.AcceptEvent = func(nostr.Event) (bool, string) { return false, "no thanks" }

	rl, err := nostr.RelayConnect(context.Background(), relay.URL)
	require.NoError(t, err)
	defer rl.Close()

	err = rl.Publish(context.Background(), signedNote(t, nostr.GeneratePrivateKey(), "hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked: no thanks")
}

func TestRelayPublishUnsigned(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()

	rl, err := nostr.RelayConnect(context.Background(), relay.URL)
	require.NoError(t, err)
	defer rl.Close()

	err = rl.Publish(context.Background(), nostr.Event{Kind: 1, Content: "x"})
	require.Error(t, err)
}

func TestRelaySubscribeStoredThenLive(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()

	sk := nostr.GeneratePrivateKey()
	pk, _ := nostr.GetPublicKey(sk)
	stored := signedNote(t, sk, "stored")
	relay.Store(stored)

	rl, err := nostr.RelayConnect(context.Background(), relay.URL)
	require.NoError(t, err)
	defer rl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	sub, err := rl.Subscribe(ctx, nostr.Filters{{Authors: []string{pk}}})
	require.NoError(t, err)

	select {
	case evt := <-sub.Events:
		assert.Equal(t, stored.ID, evt.ID)
	case <-ctx.Done():
		t.Fatal("no stored event")
	}

	select {
	case <-sub.EndOfStoredEvents:
	case <-ctx.Done():
		t.Fatal("no eose")
	}

	live := signedNote(t, sk, "live")
	relay.Broadcast(live)
	select {
	case evt := <-sub.Events:
		assert.Equal(t, "live", evt.Content)
	case <-ctx.Done():
		t.Fatal("no live event")
	}

	sub.Unsub()
	assert.Equal(t, 0, rl.OpenSubscriptions())
	require.Eventually(t, func() bool { return relay.OpenSubscriptions() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRelayDropsInvalidEvents(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()

	sk := nostr.GeneratePrivateKey()
	pk, _ := nostr.GetPublicKey(sk)

	rl, err := nostr.RelayConnect(context.Background(), relay.URL)
	require.NoError(t, err)
	defer rl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	sub, err := rl.Subscribe(ctx, nostr.Filters{{Authors: []string{pk}, Kinds: []int{nostr.KindTextNote}}})
	require.NoError(t, err)
	<-sub.EndOfStoredEvents

	forged := signedNote(t, sk, "original")
	forged.Content = "tampered"
	relay.Broadcast(forged)

	other := signedNote(t, nostr.GeneratePrivateKey(), "someone else")
	relay.Broadcast(other)

	good := signedNote(t, sk, "good")
	relay.Broadcast(good)

	select {
	case evt := <-sub.Events:
		assert.Equal(t, good.ID, evt.ID)
	case <-ctx.Done():
		t.Fatal("no event")
	}
}

func TestRelayClosedReason(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()
	relay.CloseReason = "auth-required: log in first"

	rl, err := nostr.RelayConnect(context.Background(), relay.URL)
	require.NoError(t, err)
	defer rl.Close()

	sub, err := rl.Subscribe(context.Background(), nostr.Filters{{Kinds: []int{1}}})
	require.NoError(t, err)

	select {
	case reason := <-sub.ClosedReason:
		assert.Equal(t, "auth-required: log in first", reason)
	case <-time.After(2 * time.Second):
		t.Fatal("no CLOSED")
	}

	<-sub.Context.Done()
	require.Eventually(t, func() bool { return rl.OpenSubscriptions() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRelayNoticeHandler(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()

	notices := make(chan string, 1)
	rl, err := nostr.RelayConnect(context.Background(), relay.URL, nostr.WithNoticeHandler(func(notice string) {
		notices <- notice
	}))
	require.NoError(t, err)
	defer rl.Close()

	require.Eventually(t, func() bool { return relay.Connections() == 1 }, time.Second, 10*time.Millisecond)
	relay.Notice("slow down")

	select {
	case notice := <-notices:
		assert.Equal(t, "slow down", notice)
	case <-time.After(2 * time.Second):
		t.Fatal("no notice")
	}
}

func TestRelayConnectionLossEndsSubscriptions(t *testing.T) {
	relay := nostrtest.NewRelay()

	rl, err := nostr.RelayConnect(context.Background(), relay.URL)
	require.NoError(t, err)

	sub, err := rl.Subscribe(context.Background(), nostr.Filters{{Kinds: []int{1}}})
	require.NoError(t, err)
	<-sub.EndOfStoredEvents

	relay.Close()

	select {
	case _, more := <-sub.Events:
		assert.False(t, more)
	case <-time.After(3 * time.Second):
		t.Fatal("subscription outlived the connection")
	}
	assert.False(t, rl.IsConnected())
	assert.Equal(t, 0, rl.OpenSubscriptions())
}

func TestRelayQuerySync(t *testing.T) {
	relay := nostrtest.NewRelay()
	defer relay.Close()

	sk := nostr.GeneratePrivateKey()
	pk, _ := nostr.GetPublicKey(sk)
	relay.Store(signedNote(t, sk, "one"), signedNote(t, sk, "two"))

	rl, err := nostr.RelayConnect(context.Background(), relay.URL)
	require.NoError(t, err)
	defer rl.Close()

	events, err := rl.QuerySync(context.Background(), nostr.Filter{Authors: []string{pk}})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestConnectWithCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := nostr.RelayConnect(ctx, "wss://relay.example.com")
	require.Error(t, err)
}
