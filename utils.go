package nostr

import (
	"encoding/hex"
	"net/url"
	"strings"
)

// IsValidRelayURL reports whether u is an explicit ws:// or wss:// address with a host.
func IsValidRelayURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "wss" || parsed.Scheme == "ws") && parsed.Host != ""
}

func IsValid32ByteHex(thing string) bool {
	if strings.ToLower(thing) != thing {
		return false
	}
	if len(thing) != 64 {
		return false
	}
	_, err := hex.DecodeString(thing)
	return err == nil
}
