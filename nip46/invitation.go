package nip46

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vaultsync/go-nostr"
)

// Invitation is the nostrconnect:// URI a client shows to the user (usually as a QR code) so
// a remote signer can reach it.
type Invitation struct {
	ClientPublicKey string
	Relays          []string
	Secret          string
	Name            string
	URL             string
	Image           string
	Perms           string
	Callback        string
}

// String renders nostrconnect://<pubkey>?relay=..&relay=..&secret=..&name=.. followed by the
// optional url, image, perms and callback parameters.
func (inv Invitation) String() string {
	var b strings.Builder
	b.WriteString("nostrconnect://")
	b.WriteString(inv.ClientPublicKey)

	sep := byte('?')
	param := func(key, value string) {
		b.WriteByte(sep)
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(encodeURIComponent(value))
		sep = '&'
	}

	for _, r := range inv.Relays {
		param("relay", r)
	}
	param("secret", inv.Secret)
	if inv.Name != "" {
		param("name", inv.Name)
	}
	if inv.URL != "" {
		param("url", inv.URL)
	}
	if inv.Image != "" {
		param("image", inv.Image)
	}
	if inv.Perms != "" {
		param("perms", inv.Perms)
	}
	if inv.Callback != "" {
		param("callback", inv.Callback)
	}

	return b.String()
}

// ParseInvitation reads a nostrconnect:// URI.
func ParseInvitation(uri string) (Invitation, error) {
	parsed, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return Invitation{}, fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "nostrconnect" {
		return Invitation{}, fmt.Errorf("wrong scheme '%s', must be nostrconnect://", parsed.Scheme)
	}
	if !nostr.IsValidPublicKey(parsed.Host) {
		return Invitation{}, fmt.Errorf("'%s' is not a valid public key hex", parsed.Host)
	}

	q, err := url.ParseQuery(parsed.RawQuery)
	if err != nil {
		return Invitation{}, fmt.Errorf("invalid query: %w", err)
	}

	inv := Invitation{
		ClientPublicKey: parsed.Host,
		Relays:          nostr.NormalizeRelayURLs(q["relay"]),
		Secret:          q.Get("secret"),
		Name:            q.Get("name"),
		URL:             q.Get("url"),
		Image:           q.Get("image"),
		Perms:           q.Get("perms"),
		Callback:        q.Get("callback"),
	}
	if len(inv.Relays) == 0 {
		return Invitation{}, fmt.Errorf("invitation has no relays")
	}
	if inv.Secret == "" {
		return Invitation{}, fmt.Errorf("invitation has no secret")
	}
	return inv, nil
}

// encodeURIComponent escapes everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func encodeURIComponent(s string) string {
	const upperhex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
