package nostr

import (
	"fmt"
)

// ProfilePointer represents a pointer to a Nostr profile, with hints of relays where
// its events can be found.
type ProfilePointer struct {
	PublicKey string   `json:"pubkey"`
	Relays    []string `json:"relays,omitempty"`
}

// ProfilePointerFromTag creates a ProfilePointer from a "p" tag (but it doesn't have to be necessarily a "p" tag, could be something else).
func ProfilePointerFromTag(refTag Tag) (ProfilePointer, error) {
	if len(refTag) < 2 {
		return ProfilePointer{}, fmt.Errorf("tag is too short")
	}
	pk := refTag[1]
	if !IsValidPublicKey(pk) {
		return ProfilePointer{}, fmt.Errorf("invalid pubkey '%s'", pk)
	}

	pointer := ProfilePointer{
		PublicKey: pk,
	}
	if len(refTag) > 2 {
		if relay := NormalizeURL(refTag[2]); IsValidRelayURL(relay) {
			pointer.Relays = []string{relay}
		}
	}
	return pointer, nil
}

// AsTagReference returns the pubkey as it would be seen in the value of a "p" tag.
func (ep ProfilePointer) AsTagReference() string { return ep.PublicKey }

func (ep ProfilePointer) AsTag() Tag {
	if len(ep.Relays) > 0 {
		return Tag{"p", ep.PublicKey, ep.Relays[0]}
	}
	return Tag{"p", ep.PublicKey}
}

// AsFilter returns a filter for events authored by this profile.
func (ep ProfilePointer) AsFilter() Filter { return Filter{Authors: []string{ep.PublicKey}} }
