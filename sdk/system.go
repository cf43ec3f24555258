// Package sdk does best-effort lookups of the replaceable events a sign-in flow wants to show:
// profile metadata, relay lists and blob server lists.
package sdk

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/kvstore"
)

const defaultQueryTimeout = 5 * time.Second

// System queries a fixed set of relays through a pool. When KVStore is set the newest event
// seen for each (kind, pubkey) is kept there and returned when the relays have nothing.
type System struct {
	Pool         *nostr.SimplePool
	Relays       []string
	KVStore      kvstore.KVStore
	QueryTimeout time.Duration
}

func NewSystem(pool *nostr.SimplePool, relays []string, store kvstore.KVStore) *System {
	return &System{
		Pool:         pool,
		Relays:       relays,
		KVStore:      store,
		QueryTimeout: defaultQueryTimeout,
	}
}

// FetchReplaceable returns the newest event of this kind authored by pubkey, or nil.
func (sys *System) FetchReplaceable(ctx context.Context, pubkey string, kind int) *nostr.Event {
	timeout := sys.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var newest *nostr.Event
	for ie := range sys.Pool.SubManyEose(ctx, sys.Relays, nostr.Filter{
		Kinds:   []int{kind},
		Authors: []string{pubkey},
	}, nostr.WithLabel("kind"+strconv.Itoa(kind))) {
		if newest == nil || ie.CreatedAt > newest.CreatedAt {
			newest = ie.Event
		}
	}

	cached := sys.loadCached(pubkey, kind)
	if newest == nil || (cached != nil && cached.CreatedAt >= newest.CreatedAt) {
		return cached
	}

	sys.storeCached(pubkey, kind, newest)
	return newest
}

func (sys *System) loadCached(pubkey string, kind int) *nostr.Event {
	if sys.KVStore == nil {
		return nil
	}
	data, err := sys.KVStore.Get(cacheKey(pubkey, kind))
	if err != nil || data == nil {
		return nil
	}
	evt := &nostr.Event{}
	if err := evt.UnmarshalJSON(data); err != nil {
		nostr.InfoLogger.Printf("sdk: dropping unreadable cached kind %d of %s: %s\n", kind, pubkey, err)
		return nil
	}
	return evt
}

func (sys *System) storeCached(pubkey string, kind int, evt *nostr.Event) {
	if sys.KVStore == nil {
		return
	}
	data, err := evt.MarshalJSON()
	if err != nil {
		return
	}
	if err := sys.KVStore.Set(cacheKey(pubkey, kind), data); err != nil {
		nostr.InfoLogger.Printf("sdk: failed to cache kind %d of %s: %s\n", kind, pubkey, err)
	}
}

func cacheKey(pubkey string, kind int) []byte {
	return []byte(fmt.Sprintf("evt/%d/%s", kind, pubkey))
}
