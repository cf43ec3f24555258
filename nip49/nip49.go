// Package nip49 protects secret keys with a password (ncryptsec1 strings).
package nip49

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/vaultsync/go-nostr"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type KeySecurityByte byte

const (
	KnownToHaveBeenHandledInsecurely    KeySecurityByte = 0x00
	NotKnownToHaveBeenHandledInsecurely KeySecurityByte = 0x01
	ClientDoesNotTrackThisData          KeySecurityByte = 0x02
)

const (
	version     = 0x02
	saltSize    = 16
	nonceSize   = chacha20poly1305.NonceSizeX
	payloadSize = 2 + saltSize + nonceSize + 1 + 32 + chacha20poly1305.Overhead
)

// Encrypt locks a hex secret key behind password. Higher logn values make scrypt
// slower (and brute force harder): 16 is a sane default for interactive use.
func Encrypt(secretKey string, password string, logn uint8, ksb KeySecurityByte) (b32code string, err error) {
	skb, err := hex.DecodeString(secretKey)
	if err != nil || len(skb) != 32 {
		return "", fmt.Errorf("%w: invalid secret key", nostr.ErrInvalidKeyFormat)
	}
	return EncryptBytes(skb, password, logn, ksb)
}

func EncryptBytes(secretKey []byte, password string, logn uint8, ksb KeySecurityByte) (b32code string, err error) {
	if logn > 30 {
		return "", fmt.Errorf("logn %d is too big", logn)
	}

	concat := make([]byte, 2+saltSize+nonceSize+1, payloadSize)
	concat[0] = version
	concat[1] = logn
	salt := concat[2 : 2+saltSize]
	nonce := concat[2+saltSize : 2+saltSize+nonceSize]
	if _, err := rand.Read(concat[2 : 2+saltSize+nonceSize]); err != nil {
		return "", fmt.Errorf("failed to read randomness: %w", err)
	}
	ad := concat[2+saltSize+nonceSize:]
	ad[0] = byte(ksb)

	key, err := getKey(password, salt, 1<<logn)
	if err != nil {
		return "", err
	}

	c2p1, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("failed to start xchacha20poly1305: %w", err)
	}
	concat = c2p1.Seal(concat, nonce, secretKey, ad)

	bits5, err := bech32.ConvertBits(concat, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode("ncryptsec", bits5)
}

// Decrypt returns the hex secret key. A wrong password gives nostr.ErrDecryption.
func Decrypt(bech32string string, password string) (secretKey string, err error) {
	secb, err := DecryptToBytes(bech32string, password)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(secb), nil
}

func DecryptToBytes(bech32string string, password string) (secretKey []byte, err error) {
	prefix, bits5, err := bech32.DecodeNoLimit(bech32string)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", nostr.ErrDecode, err)
	}
	if prefix != "ncryptsec" {
		return nil, fmt.Errorf("%w: expected prefix ncryptsec1", nostr.ErrDecode)
	}

	data, err := bech32.ConvertBits(bits5, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: failed translating data into 8 bits: %w", nostr.ErrDecode, err)
	}
	if len(data) != payloadSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", nostr.ErrDecode, payloadSize, len(data))
	}
	if data[0] != version {
		return nil, fmt.Errorf("%w: expected version 0x02, got %v", nostr.ErrDecode, data[0])
	}

	logn := data[1]
	if logn > 30 {
		return nil, fmt.Errorf("%w: logn %d is too big", nostr.ErrDecode, logn)
	}
	salt := data[2 : 2+saltSize]
	nonce := data[2+saltSize : 2+saltSize+nonceSize]
	ad := data[2+saltSize+nonceSize : 2+saltSize+nonceSize+1]
	encryptedKey := data[2+saltSize+nonceSize+1:]

	key, err := getKey(password, salt, 1<<logn)
	if err != nil {
		return nil, err
	}

	c2p1, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to start xchacha20poly1305: %w", err)
	}

	secretKey, err = c2p1.Open(nil, nonce, encryptedKey, ad)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong password or corrupted ncryptsec", nostr.ErrDecryption)
	}
	return secretKey, nil
}

func getKey(password string, salt []byte, n int) ([]byte, error) {
	normalizedPassword, _, err := transform.Bytes(norm.NFKC, []byte(password))
	if err != nil {
		return nil, fmt.Errorf("failed to normalize password: %w", err)
	}

	key, err := scrypt.Key(normalizedPassword, salt, n, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to compute key with scrypt: %w", err)
	}
	return key, nil
}
