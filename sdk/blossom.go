package sdk

import (
	"context"
	"slices"

	"github.com/vaultsync/go-nostr"
)

// FetchBlossomServers returns the normalized server URLs of the user's kind 10063 list.
func (sys *System) FetchBlossomServers(ctx context.Context, pubkey string) []string {
	evt := sys.FetchReplaceable(ctx, pubkey, nostr.KindBlossomServerList)
	if evt == nil {
		return nil
	}
	return ParseBlossomServers(evt)
}

func ParseBlossomServers(evt *nostr.Event) []string {
	servers := make([]string, 0, len(evt.Tags))
	for tag := range evt.Tags.FindAll("server") {
		if len(tag) < 2 {
			continue
		}
		u, err := nostr.NormalizeHTTPURL(tag[1])
		if err != nil {
			nostr.DebugLogger.Printf("sdk: skipping blossom server %q: %s\n", tag[1], err)
			continue
		}
		if !slices.Contains(servers, u) {
			servers = append(servers, u)
		}
	}
	return servers
}
