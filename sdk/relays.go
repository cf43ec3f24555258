package sdk

import (
	"context"

	"github.com/vaultsync/go-nostr"
)

type Relay struct {
	URL    string
	Inbox  bool
	Outbox bool
}

// FetchRelayList returns the relays of the user's kind 10002 list, in list order.
func (sys *System) FetchRelayList(ctx context.Context, pubkey string) []Relay {
	evt := sys.FetchReplaceable(ctx, pubkey, nostr.KindRelayListMetadata)
	if evt == nil {
		return nil
	}
	return ParseRelayList(evt)
}

// WriteRelays is the subset of relays a signer app would publish to.
func WriteRelays(list []Relay) []string {
	urls := make([]string, 0, len(list))
	for _, r := range list {
		if r.Outbox {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

func ParseRelayList(evt *nostr.Event) []Relay {
	list := make([]Relay, 0, len(evt.Tags))
	seen := make(map[string]bool, len(evt.Tags))
	for tag := range evt.Tags.FindAll("r") {
		if rl, ok := parseRelayFromKind10002(tag); ok && !seen[rl.URL] {
			seen[rl.URL] = true
			list = append(list, rl)
		}
	}
	return list
}

func parseRelayFromKind10002(tag nostr.Tag) (rl Relay, ok bool) {
	if len(tag) < 2 || tag[1] == "" {
		return rl, false
	}
	if !nostr.IsValidRelayURL(tag[1]) {
		return rl, false
	}

	relay := Relay{
		URL: nostr.NormalizeURL(tag[1]),
	}

	if len(tag) == 2 {
		relay.Inbox = true
		relay.Outbox = true
	} else if tag[2] == "write" {
		relay.Outbox = true
	} else if tag[2] == "read" {
		relay.Inbox = true
	}

	return relay, true
}
