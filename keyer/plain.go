package keyer

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/nip44"
)

// KeySigner is a signer that holds the private key in memory and can do all the operations instantly and easily.
type KeySigner struct {
	sk string
	pk string

	conversationKeys *xsync.MapOf[string, [32]byte]
}

// NewKeySigner wraps an identity that is already in memory.
func NewKeySigner(id Identity) KeySigner {
	return KeySigner{
		sk:               id.SecretKeyHex(),
		pk:               id.PublicKeyHex(),
		conversationKeys: xsync.NewMapOf[string, [32]byte](),
	}
}

func (ks KeySigner) GetPublicKey(ctx context.Context) (string, error) { return ks.pk, nil }

func (ks KeySigner) SignEvent(ctx context.Context, evt *nostr.Event) error {
	if err := checkUnsigned(evt); err != nil {
		return err
	}
	if err := evt.Sign(ks.sk); err != nil {
		return fmt.Errorf("%w: %w", nostr.ErrSigning, err)
	}
	return nil
}

func (ks KeySigner) Encrypt(ctx context.Context, plaintext string, recipient string) (string, error) {
	ck, err := ks.conversationKey(recipient)
	if err != nil {
		return "", err
	}
	return nip44.Encrypt(plaintext, ck)
}

func (ks KeySigner) Decrypt(ctx context.Context, base64ciphertext string, sender string) (string, error) {
	ck, err := ks.conversationKey(sender)
	if err != nil {
		return "", err
	}
	return nip44.Decrypt(base64ciphertext, ck)
}

func (ks KeySigner) conversationKey(peer string) ([32]byte, error) {
	if ck, ok := ks.conversationKeys.Load(peer); ok {
		return ck, nil
	}
	ck, err := nip44.GenerateConversationKey(peer, ks.sk)
	if err != nil {
		return ck, err
	}
	ks.conversationKeys.Store(peer, ck)
	return ck, nil
}
