package keyer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/nip06"
	"github.com/vaultsync/go-nostr/nip46"
)

var (
	_ nostr.Keyer = (*BunkerSigner)(nil)
	_ nostr.Keyer = (*EncryptedKeySigner)(nil)
	_ nostr.Keyer = (*KeySigner)(nil)
	_ nostr.Keyer = (*ManualSigner)(nil)
)

// SignerOptions contains configuration options for creating a new signer.
type SignerOptions struct {
	// BunkerClientSecretKey is the secret key used for the bunker client
	BunkerClientSecretKey string

	// BunkerSignTimeout is the timeout duration for bunker operations, 30 seconds if zero
	BunkerSignTimeout time.Duration

	// BunkerAuthHandler is called when the bunker answers with an auth_url
	BunkerAuthHandler func(string)

	// PasswordHandler is called when an operation needs access to the encrypted key.
	// If provided, the key will be stored encrypted and this function will be called
	// every time an operation needs access to the key so the user can be prompted.
	PasswordHandler func(context.Context) string

	// Password is used along with ncryptsec to decrypt the key.
	// If provided, the key will be decrypted and stored in plaintext.
	Password string
}

func (opts *SignerOptions) bunkerTimeout() time.Duration {
	if opts.BunkerSignTimeout > 0 {
		return opts.BunkerSignTimeout
	}
	return defaultBunkerTimeout
}

func (opts *SignerOptions) authHandler() func(string) {
	if opts.BunkerAuthHandler != nil {
		return opts.BunkerAuthHandler
	}
	return func(string) {
		nostr.InfoLogger.Printf("auth_url received but not handled")
	}
}

// New creates a new Keyer implementation based on the input string format.
// It supports various input formats:
// - ncryptsec: Creates an EncryptedKeySigner or KeySigner depending on options
// - NIP-46 bunker URL: Creates a BunkerSigner
// - nsec or 64 hex characters: Creates a KeySigner
// - NIP-06 mnemonic words: Creates a KeySigner
//
// The pool is used for relay connections when needed.
func New(ctx context.Context, pool *nostr.SimplePool, input string, opts *SignerOptions) (nostr.Keyer, error) {
	if opts == nil {
		opts = &SignerOptions{}
	}
	input = strings.TrimSpace(input)

	switch {
	case strings.HasPrefix(input, "ncryptsec1"):
		if opts.PasswordHandler != nil {
			return NewEncryptedKeySigner(input, opts.PasswordHandler), nil
		}
		id, err := ImportEncrypted(input, opts.Password)
		if err != nil {
			if opts.Password == "" {
				return nil, fmt.Errorf("failed to decrypt with blank password: %w", err)
			}
			return nil, fmt.Errorf("failed to decrypt with given password: %w", err)
		}
		return NewKeySigner(id), nil

	case nip46.IsValidBunkerURL(input):
		bcsk := opts.BunkerClientSecretKey
		if bcsk == "" {
			bcsk = nostr.GeneratePrivateKey()
		}
		if pool == nil {
			pool = nostr.NewSimplePool(ctx)
		}
		bunker, err := nip46.ConnectBunker(ctx, bcsk, input, pool, opts.authHandler())
		if err != nil {
			return nil, err
		}
		return BunkerSigner{bunker, opts.bunkerTimeout()}, nil

	case strings.Count(input, " ") >= 11 && nip06.ValidateWords(input):
		id, err := ImportMnemonic(input)
		if err != nil {
			return nil, err
		}
		return NewKeySigner(id), nil
	}

	id, err := ImportIdentity(input)
	if err != nil {
		return nil, err
	}
	return NewKeySigner(id), nil
}

func checkUnsigned(evt *nostr.Event) error {
	if evt.ID != "" || evt.Sig != "" {
		return fmt.Errorf("%w: event already has an id or signature", nostr.ErrSigning)
	}
	return nil
}
