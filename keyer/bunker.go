package keyer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/nip46"
)

const defaultBunkerTimeout = time.Second * 30

// BunkerSigner is a signer that asks a bunker using NIP-46 every time it needs to do an operation.
type BunkerSigner struct {
	bunker  *nip46.BunkerClient
	timeout time.Duration
}

func NewBunkerSignerFromBunkerClient(bc *nip46.BunkerClient) BunkerSigner {
	return BunkerSigner{bc, defaultBunkerTimeout}
}

// NewBunkerSigner reopens a session that was established earlier, either by a handshake or
// from a bunker:// URL. No connect request is sent.
func NewBunkerSigner(ctx context.Context, pool *nostr.SimplePool, session nip46.BunkerSession, opts *SignerOptions) (BunkerSigner, error) {
	if opts == nil {
		opts = &SignerOptions{}
	}
	bc, err := nip46.NewBunkerClient(ctx, pool, session, opts.authHandler())
	if err != nil {
		return BunkerSigner{}, err
	}
	return BunkerSigner{bc, opts.bunkerTimeout()}, nil
}

// Client exposes the underlying RPC client.
func (bs BunkerSigner) Client() *nip46.BunkerClient { return bs.bunker }

func (bs BunkerSigner) GetPublicKey(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, bs.timeout, errors.New("get_public_key took too long"))
	defer cancel()
	return bs.bunker.GetPublicKey(ctx)
}

func (bs BunkerSigner) SignEvent(ctx context.Context, evt *nostr.Event) error {
	if err := checkUnsigned(evt); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeoutCause(ctx, bs.timeout, errors.New("sign_event took too long"))
	defer cancel()
	if err := bs.bunker.SignEvent(ctx, evt); err != nil {
		return fmt.Errorf("%w: %w", nostr.ErrSigning, err)
	}
	return nil
}

func (bs BunkerSigner) Encrypt(ctx context.Context, plaintext string, recipient string) (string, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, bs.timeout, errors.New("nip44_encrypt took too long"))
	defer cancel()
	return bs.bunker.NIP44Encrypt(ctx, recipient, plaintext)
}

func (bs BunkerSigner) Decrypt(ctx context.Context, base64ciphertext string, sender string) (string, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, bs.timeout, errors.New("nip44_decrypt took too long"))
	defer cancel()
	return bs.bunker.NIP44Decrypt(ctx, sender, base64ciphertext)
}

// Close stops listening for bunker responses. Later operations fail.
func (bs BunkerSigner) Close() { bs.bunker.Close() }
