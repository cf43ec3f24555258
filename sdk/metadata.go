package sdk

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/nip19"
)

type ProfileMetadata struct {
	PubKey string       `json:"-"` // must always be set otherwise things will break
	Event  *nostr.Event `json:"-"` // may be empty if a profile metadata event wasn't found

	// every one of these may be empty
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	About       string `json:"about,omitempty"`
	Website     string `json:"website,omitempty"`
	Picture     string `json:"picture,omitempty"`
	Banner      string `json:"banner,omitempty"`
	NIP05       string `json:"nip05,omitempty"`
	LUD16       string `json:"lud16,omitempty"`
}

func (p ProfileMetadata) Npub() string {
	v, _ := nip19.EncodePublicKey(p.PubKey)
	return v
}

func (p ProfileMetadata) NpubShort() string {
	npub := p.Npub()
	if len(npub) < 63 {
		return npub
	}
	return npub[0:7] + "…" + npub[58:]
}

func (p ProfileMetadata) ShortName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.NpubShort()
}

// FetchProfileMetadata never fails: when nothing usable is found only PubKey is set.
func (sys *System) FetchProfileMetadata(ctx context.Context, pubkey string) ProfileMetadata {
	evt := sys.FetchReplaceable(ctx, pubkey, nostr.KindProfileMetadata)
	if evt == nil {
		return ProfileMetadata{PubKey: pubkey}
	}

	pm, err := ParseMetadata(evt)
	if err != nil {
		nostr.InfoLogger.Printf("sdk: %s\n", err)
		return ProfileMetadata{PubKey: pubkey, Event: evt}
	}
	return pm
}

func ParseMetadata(event *nostr.Event) (meta ProfileMetadata, err error) {
	if event.Kind != nostr.KindProfileMetadata {
		err = fmt.Errorf("event %s is kind %d, not 0", event.ID, event.Kind)
	} else if er := json.Unmarshal([]byte(event.Content), &meta); er != nil {
		cont := event.Content
		if len(cont) > 100 {
			cont = cont[0:99]
		}
		err = fmt.Errorf("failed to parse metadata (%s) from event %s: %w", cont, event.ID, er)
	}

	meta.PubKey = event.PubKey
	meta.Event = event
	return meta, err
}
