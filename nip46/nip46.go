// Package nip46 implements both sides of NIP-46 remote signing: the nostrconnect:// handshake
// that pairs a client with a bunker, the client RPC and a bunker-side request handler.
package nip46

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/nip44"
)

var bunkerURLRegex = regexp.MustCompile(`^bunker:\/\/([0-9a-f]{64})\??([?\/\w:.=&%~-]*)$`)

type Request struct {
	ID     string   `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

func (r Request) String() string {
	j, _ := json.Marshal(r)
	return string(j)
}

type Response struct {
	ID     string `json:"id"`
	Error  string `json:"error,omitempty"`
	Result string `json:"result,omitempty"`
}

func (r Response) String() string {
	j, _ := json.Marshal(r)
	return string(j)
}

// IsValidBunkerURL checks the bunker://<hex pubkey>?relay=...&secret=... shape.
func IsValidBunkerURL(input string) bool {
	return bunkerURLRegex.MatchString(input)
}

// ParseBunkerURL extracts the remote signer key, its relays and the optional secret.
func ParseBunkerURL(bunkerURL string) (BunkerSession, error) {
	parsed, err := url.Parse(bunkerURL)
	if err != nil {
		return BunkerSession{}, fmt.Errorf("invalid url: %w", err)
	}

	if parsed.Scheme != "bunker" {
		return BunkerSession{}, fmt.Errorf("wrong scheme '%s', must be bunker://", parsed.Scheme)
	}

	target := parsed.Host
	if !nostr.IsValidPublicKey(target) {
		return BunkerSession{}, fmt.Errorf("'%s' is not a valid public key hex", target)
	}

	relays := nostr.NormalizeRelayURLs(parsed.Query()["relay"])
	if len(relays) == 0 {
		return BunkerSession{}, fmt.Errorf("bunker url has no relays")
	}

	return BunkerSession{
		BunkerPublicKey: target,
		Relays:          relays,
		Secret:          parsed.Query().Get("secret"),
	}, nil
}

func decryptResponse(evt *nostr.Event, ck [32]byte) (Response, error) {
	var resp Response
	plain, err := nip44.Decrypt(evt.Content, ck)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal([]byte(plain), &resp); err != nil {
		return resp, fmt.Errorf("invalid response json: %w", err)
	}
	return resp, nil
}
