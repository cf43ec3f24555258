package nip19

import (
	"strings"

	"github.com/vaultsync/go-nostr"
)

// TranslatePublicKey turns a hex, npub or nprofile public key into always hex.
func TranslatePublicKey(bech32orHexKey string) string {
	if strings.HasPrefix(bech32orHexKey, "npub1") || strings.HasPrefix(bech32orHexKey, "nprofile1") {
		_, data, err := Decode(bech32orHexKey)
		if err != nil {
			return bech32orHexKey
		}
		switch v := data.(type) {
		case string:
			return v
		case nostr.ProfilePointer:
			return v.PublicKey
		}
	}

	// just return what we got
	return bech32orHexKey
}
