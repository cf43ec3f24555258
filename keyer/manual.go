package keyer

import (
	"context"
	"fmt"

	"github.com/vaultsync/go-nostr"
)

var _ nostr.Keyer = (*ManualSigner)(nil)

// ManualSigner is a signer that delegates all operations to host-provided functions.
// Browser-extension logins use it: the host bridges each call to window.nostr.
// A missing callback makes the operation fail with ErrSigning.
type ManualSigner struct {
	// ManualGetPublicKey is called when the public key is needed
	ManualGetPublicKey func(context.Context) (string, error)

	// ManualSignEvent is called when an event needs to be signed
	ManualSignEvent func(context.Context, *nostr.Event) error

	// ManualEncrypt is called when a message needs to be encrypted
	ManualEncrypt func(ctx context.Context, plaintext string, recipientPublicKey string) (base64ciphertext string, err error)

	// ManualDecrypt is called when a message needs to be decrypted
	ManualDecrypt func(ctx context.Context, base64ciphertext string, senderPublicKey string) (plaintext string, err error)
}

func (ms ManualSigner) SignEvent(ctx context.Context, evt *nostr.Event) error {
	if ms.ManualSignEvent == nil {
		return missingCallback("sign_event")
	}
	if err := checkUnsigned(evt); err != nil {
		return err
	}
	return ms.ManualSignEvent(ctx, evt)
}

func (ms ManualSigner) GetPublicKey(ctx context.Context) (string, error) {
	if ms.ManualGetPublicKey == nil {
		return "", missingCallback("get_public_key")
	}
	return ms.ManualGetPublicKey(ctx)
}

func (ms ManualSigner) Encrypt(ctx context.Context, plaintext string, recipient string) (string, error) {
	if ms.ManualEncrypt == nil {
		return "", missingCallback("encrypt")
	}
	return ms.ManualEncrypt(ctx, plaintext, recipient)
}

func (ms ManualSigner) Decrypt(ctx context.Context, base64ciphertext string, sender string) (string, error) {
	if ms.ManualDecrypt == nil {
		return "", missingCallback("decrypt")
	}
	return ms.ManualDecrypt(ctx, base64ciphertext, sender)
}

func missingCallback(op string) error {
	return fmt.Errorf("%w: no callback for %s", nostr.ErrSigning, op)
}
