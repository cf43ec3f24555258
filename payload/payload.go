// Package payload encrypts structured values for storage on untrusted relays. Values are
// serialized to canonical JSON and sealed with NIP-44 v2, either with an explicit
// conversation key or through any nostr.Keyer addressed to its own public key.
package payload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/keyer"
	"github.com/vaultsync/go-nostr/nip44"
)

// EncryptPayload serializes v and encrypts it with key.
func EncryptPayload(v any, key [32]byte) (string, error) {
	plain, err := Canonical(v)
	if err != nil {
		return "", err
	}
	ciphertext, err := nip44.Encrypt(string(plain), key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt payload: %w", err)
	}
	return ciphertext, nil
}

// DecryptPayload decrypts ciphertext with key into v. Any failure, including a plaintext
// that doesn't fit v, wraps nostr.ErrDecryption.
func DecryptPayload(ciphertext string, key [32]byte, v any) error {
	plain, err := nip44.Decrypt(ciphertext, key)
	if err != nil {
		return err
	}
	return decode(plain, v)
}

// SelfConversationKey is the conversation key between an identity and itself.
func SelfConversationKey(id keyer.Identity) ([32]byte, error) {
	return nip44.GenerateConversationKey(id.PublicKeyHex(), id.SecretKeyHex())
}

// Seal encrypts v to the keyer's own public key, so it also works when the key lives on a
// remote bunker.
func Seal(ctx context.Context, kr nostr.Keyer, v any) (string, error) {
	pk, err := kr.GetPublicKey(ctx)
	if err != nil {
		return "", err
	}
	plain, err := Canonical(v)
	if err != nil {
		return "", err
	}
	if len(plain) > nip44.MaxPlaintextSize {
		return "", nip44.ErrPlaintextSize
	}
	return kr.Encrypt(ctx, string(plain), pk)
}

// Open reverses Seal.
func Open(ctx context.Context, kr nostr.Keyer, ciphertext string, v any) error {
	pk, err := kr.GetPublicKey(ctx)
	if err != nil {
		return err
	}
	plain, err := kr.Decrypt(ctx, ciphertext, pk)
	if err != nil {
		return err
	}
	return decode(plain, v)
}

// Checksum is the hex SHA-256 of content.
func Checksum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// Canonical returns the JSON of v with every object's keys sorted and no HTML escaping, so
// equal values always produce equal bytes.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	// go through a generic value so struct fields get sorted too
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func decode(plain string, v any) error {
	if err := json.Unmarshal([]byte(plain), v); err != nil {
		return fmt.Errorf("%w: payload is not valid: %w", nostr.ErrDecryption, err)
	}
	return nil
}
