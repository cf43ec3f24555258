// Package logins keeps the list of identities a user signed in with and turns them back into
// signers.
package logins

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/keyer"
	"github.com/vaultsync/go-nostr/nip46"
)

type Kind string

const (
	KindDirectKey        Kind = "direct-key"
	KindRemoteBunker     Kind = "remote-bunker"
	KindBrowserExtension Kind = "browser-extension"
)

var ErrInvalidLogin = errors.New("invalid login")

// DirectKey is the key material of a direct-key login. Exactly one field is set.
type DirectKey struct {
	Nsec      string `json:"nsec,omitempty"`
	Ncryptsec string `json:"ncryptsec,omitempty"`
}

// Login is a stored sign-in record. Records are never edited: to change one, Append a new
// Login with the same ID.
type Login struct {
	ID        string               `json:"id"`
	Kind      Kind                 `json:"kind"`
	PublicKey string               `json:"pubkey"`
	CreatedAt nostr.Timestamp      `json:"created_at"`
	Key       *DirectKey           `json:"key,omitempty"`
	Bunker    *nip46.BunkerSession `json:"bunker,omitempty"`
}

// NewDirectLogin stores the secret key of id as an nsec.
func NewDirectLogin(id keyer.Identity) Login {
	return Login{
		ID:        newID(),
		Kind:      KindDirectKey,
		PublicKey: id.PublicKeyHex(),
		CreatedAt: nostr.Now(),
		Key:       &DirectKey{Nsec: id.Nsec},
	}
}

// NewEncryptedLogin stores the secret key of id as a NIP-49 ncryptsec protected by password.
func NewEncryptedLogin(id keyer.Identity, password string, logn uint8) (Login, error) {
	ncryptsec, err := id.Encrypt(password, logn)
	if err != nil {
		return Login{}, err
	}
	return Login{
		ID:        newID(),
		Kind:      KindDirectKey,
		PublicKey: id.PublicKeyHex(),
		CreatedAt: nostr.Now(),
		Key:       &DirectKey{Ncryptsec: ncryptsec},
	}, nil
}

// NewBunkerLogin records a remote signer session. userPublicKey is the key the bunker signs
// with, which may differ from the bunker's own key.
func NewBunkerLogin(session nip46.BunkerSession, userPublicKey string) Login {
	return Login{
		ID:        newID(),
		Kind:      KindRemoteBunker,
		PublicKey: userPublicKey,
		CreatedAt: nostr.Now(),
		Bunker:    &session,
	}
}

func NewExtensionLogin(publicKey string) Login {
	return Login{
		ID:        newID(),
		Kind:      KindBrowserExtension,
		PublicKey: publicKey,
		CreatedAt: nostr.Now(),
	}
}

// Validate checks that the key material matches the kind.
func (l Login) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidLogin)
	}
	if !nostr.IsValidPublicKey(l.PublicKey) {
		return fmt.Errorf("%w: bad public key %q", ErrInvalidLogin, l.PublicKey)
	}

	switch l.Kind {
	case KindDirectKey:
		if l.Key == nil || l.Bunker != nil {
			return fmt.Errorf("%w: direct-key login needs a key and no bunker", ErrInvalidLogin)
		}
		if (l.Key.Nsec == "") == (l.Key.Ncryptsec == "") {
			return fmt.Errorf("%w: direct-key login needs either nsec or ncryptsec", ErrInvalidLogin)
		}
		if l.Key.Nsec != "" {
			id, err := keyer.ImportIdentity(l.Key.Nsec)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidLogin, err)
			}
			if id.PublicKeyHex() != l.PublicKey {
				return fmt.Errorf("%w: nsec doesn't match public key", ErrInvalidLogin)
			}
		}
	case KindRemoteBunker:
		if l.Bunker == nil || l.Key != nil {
			return fmt.Errorf("%w: remote-bunker login needs a session and no key", ErrInvalidLogin)
		}
		if err := l.Bunker.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidLogin, err)
		}
	case KindBrowserExtension:
		if l.Key != nil || l.Bunker != nil {
			return fmt.Errorf("%w: browser-extension login can't carry key material", ErrInvalidLogin)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidLogin, l.Kind)
	}
	return nil
}

// SignerOptions configures Login.Signer.
type SignerOptions struct {
	keyer.SignerOptions

	// Extension bridges browser-extension logins to the host. When nil those logins can only
	// report their public key.
	Extension *keyer.ManualSigner
}

// Signer reopens the login. Bunker logins reuse the stored session without a new connect.
func (l Login) Signer(ctx context.Context, pool *nostr.SimplePool, opts *SignerOptions) (nostr.Keyer, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &SignerOptions{}
	}

	switch l.Kind {
	case KindDirectKey:
		input := l.Key.Nsec
		if input == "" {
			input = l.Key.Ncryptsec
		}
		return keyer.New(ctx, pool, input, &opts.SignerOptions)
	case KindRemoteBunker:
		if pool == nil {
			pool = nostr.NewSimplePool(ctx)
		}
		return keyer.NewBunkerSigner(ctx, pool, *l.Bunker, &opts.SignerOptions)
	default:
		var ms keyer.ManualSigner
		if opts.Extension != nil {
			ms = *opts.Extension
		}
		if ms.ManualGetPublicKey == nil {
			pk := l.PublicKey
			ms.ManualGetPublicKey = func(context.Context) (string, error) { return pk, nil }
		}
		return ms, nil
	}
}

func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
