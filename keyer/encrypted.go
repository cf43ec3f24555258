package keyer

import (
	"context"
	"fmt"
	"sync"

	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/nip44"
)

var _ nostr.Keyer = (*EncryptedKeySigner)(nil)

// EncryptedKeySigner is a signer that must ask the user for a password before every operation.
// It stores the private key in encrypted form (NIP-49) and uses a callback to request the password
// when needed for operations.
type EncryptedKeySigner struct {
	ncryptsec string
	callback  func(context.Context) string

	mu sync.Mutex
	pk string
}

func NewEncryptedKeySigner(ncryptsec string, callback func(context.Context) string) *EncryptedKeySigner {
	return &EncryptedKeySigner{ncryptsec: ncryptsec, callback: callback}
}

// GetPublicKey only asks for the password the first time.
func (es *EncryptedKeySigner) GetPublicKey(ctx context.Context) (string, error) {
	es.mu.Lock()
	pk := es.pk
	es.mu.Unlock()
	if pk != "" {
		return pk, nil
	}

	id, err := es.unlock(ctx)
	if err != nil {
		return "", err
	}
	return id.PublicKeyHex(), nil
}

func (es *EncryptedKeySigner) SignEvent(ctx context.Context, evt *nostr.Event) error {
	if err := checkUnsigned(evt); err != nil {
		return err
	}
	id, err := es.unlock(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", nostr.ErrSigning, err)
	}
	if err := evt.Sign(id.SecretKeyHex()); err != nil {
		return fmt.Errorf("%w: %w", nostr.ErrSigning, err)
	}
	return nil
}

func (es *EncryptedKeySigner) Encrypt(ctx context.Context, plaintext string, recipient string) (string, error) {
	id, err := es.unlock(ctx)
	if err != nil {
		return "", err
	}
	ck, err := nip44.GenerateConversationKey(recipient, id.SecretKeyHex())
	if err != nil {
		return "", err
	}
	return nip44.Encrypt(plaintext, ck)
}

func (es *EncryptedKeySigner) Decrypt(ctx context.Context, base64ciphertext string, sender string) (string, error) {
	id, err := es.unlock(ctx)
	if err != nil {
		return "", err
	}
	ck, err := nip44.GenerateConversationKey(sender, id.SecretKeyHex())
	if err != nil {
		return "", err
	}
	return nip44.Decrypt(base64ciphertext, ck)
}

func (es *EncryptedKeySigner) unlock(ctx context.Context) (Identity, error) {
	if es.callback == nil {
		return Identity{}, missingCallback("password")
	}
	id, err := ImportEncrypted(es.ncryptsec, es.callback(ctx))
	if err != nil {
		return Identity{}, fmt.Errorf("invalid password: %w", err)
	}

	es.mu.Lock()
	es.pk = id.PublicKeyHex()
	es.mu.Unlock()
	return id, nil
}
