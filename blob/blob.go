// Package blob encrypts binary attachments before they leave the device. Every call gets a
// fresh key and nonce; the ciphertext goes to a blob server while the key and nonce travel
// inside an already encrypted index.
package blob

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/vaultsync/go-nostr"
)

const (
	KeySize   = 32
	NonceSize = 12
)

// Bundle is the result of EncryptBlob.
type Bundle struct {
	Ciphertext []byte
	Key        [KeySize]byte
	Nonce      [NonceSize]byte
}

// Secret is the part of a Bundle needed to decrypt the ciphertext later.
type Secret struct {
	Key   [KeySize]byte
	Nonce [NonceSize]byte
}

func (b Bundle) Secret() Secret {
	return Secret{Key: b.Key, Nonce: b.Nonce}
}

type secretJSON struct {
	Key   string `json:"key"`
	Nonce string `json:"nonce"`
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(secretJSON{
		Key:   hex.EncodeToString(s.Key[:]),
		Nonce: hex.EncodeToString(s.Nonce[:]),
	})
}

func (s *Secret) UnmarshalJSON(data []byte) error {
	var sj secretJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return err
	}

	key, err := hex.DecodeString(sj.Key)
	if err != nil || len(key) != KeySize {
		return fmt.Errorf("blob key must be %d bytes of hex", KeySize)
	}
	nonce, err := hex.DecodeString(sj.Nonce)
	if err != nil || len(nonce) != NonceSize {
		return fmt.Errorf("blob nonce must be %d bytes of hex", NonceSize)
	}

	copy(s.Key[:], key)
	copy(s.Nonce[:], nonce)
	return nil
}

// Decrypt opens a ciphertext that was produced together with this secret.
func (s Secret) Decrypt(ciphertext []byte) ([]byte, error) {
	return DecryptBlob(ciphertext, s.Key, s.Nonce)
}

// EncryptBlob encrypts data with AES-256-GCM under a fresh random key and nonce.
func EncryptBlob(data []byte) (Bundle, error) {
	var b Bundle
	if _, err := rand.Read(b.Key[:]); err != nil {
		return Bundle{}, fmt.Errorf("failed to read randomness: %w", err)
	}
	if _, err := rand.Read(b.Nonce[:]); err != nil {
		return Bundle{}, fmt.Errorf("failed to read randomness: %w", err)
	}

	gcm, err := newGCM(b.Key)
	if err != nil {
		return Bundle{}, err
	}
	b.Ciphertext = gcm.Seal(nil, b.Nonce[:], data, nil)
	return b, nil
}

// DecryptBlob reverses EncryptBlob. A wrong key, wrong nonce or modified ciphertext gives
// nostr.ErrDecryption.
func DecryptBlob(ciphertext []byte, key [KeySize]byte, nonce [NonceSize]byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext is too short", nostr.ErrDecryption)
	}

	plain, err := gcm.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", nostr.ErrDecryption, err)
	}
	return plain, nil
}

// HashBlob is the hex SHA-256 of data.
func HashBlob(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func newGCM(key [KeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to start aes: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to start gcm: %w", err)
	}
	return gcm, nil
}
