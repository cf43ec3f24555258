package nip46

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vaultsync/go-nostr"
)

// Confirmation records how a remote signer proved it accepted our invitation.
type Confirmation string

const (
	// ConfirmationSecret means the bunker echoed the invitation secret back.
	ConfirmationSecret Confirmation = "secret"

	// ConfirmationAck means the bunker only sent a generic "ack". Anyone who saw the
	// invitation could have sent it, so this is a lower assurance pairing.
	ConfirmationAck Confirmation = "ack"
)

// BunkerSession is everything needed to talk to a paired remote signer again later.
type BunkerSession struct {
	BunkerPublicKey string       `json:"bunker_pubkey"`
	ClientSecretKey string       `json:"client_secret_key"`
	Relays          []string     `json:"relays"`
	Secret          string       `json:"secret,omitempty"`
	Confirmation    Confirmation `json:"confirmation,omitempty"`
}

// Validate checks that the session has usable keys and at least one relay.
func (s BunkerSession) Validate() error {
	if !nostr.IsValidPublicKey(s.BunkerPublicKey) {
		return fmt.Errorf("invalid bunker public key '%s'", s.BunkerPublicKey)
	}
	if _, err := s.ClientPublicKey(); err != nil {
		return fmt.Errorf("invalid client secret key: %w", err)
	}
	if len(s.Relays) == 0 {
		return fmt.Errorf("bunker session has no relays")
	}
	switch s.Confirmation {
	case "", ConfirmationSecret, ConfirmationAck:
	default:
		return fmt.Errorf("unknown confirmation '%s'", s.Confirmation)
	}
	return nil
}

func (s BunkerSession) ClientPublicKey() (string, error) {
	if !nostr.IsValid32ByteHex(s.ClientSecretKey) {
		return "", fmt.Errorf("%w: expected 64 hex characters", nostr.ErrInvalidKeyFormat)
	}
	return nostr.GetPublicKey(s.ClientSecretKey)
}

// BunkerURL renders the session as bunker://<pubkey>?relay=...&secret=...
func (s BunkerSession) BunkerURL() string {
	var b strings.Builder
	b.WriteString("bunker://")
	b.WriteString(s.BunkerPublicKey)

	sep := byte('?')
	for _, r := range s.Relays {
		b.WriteByte(sep)
		b.WriteString("relay=")
		b.WriteString(url.QueryEscape(r))
		sep = '&'
	}
	if s.Secret != "" {
		b.WriteByte(sep)
		b.WriteString("secret=")
		b.WriteString(url.QueryEscape(s.Secret))
	}
	return b.String()
}
