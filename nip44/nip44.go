package nip44

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/vaultsync/go-nostr"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

const version byte = 2

const (
	MinPlaintextSize = 0x0001 // 1b msg => padded to 32b
	MaxPlaintextSize = 0xffff // 65535 (64kb-1) => padded to 64kb
)

var ErrPlaintextSize = errors.New("plaintext should be between 1b and 64kB")

type encryptOptions struct {
	err   error
	nonce []byte
}

type EncryptOption func(opts *encryptOptions)

// WithCustomNonce replaces the random 32-byte nonce. Only meant for tests.
func WithCustomNonce(nonce []byte) EncryptOption {
	return func(opts *encryptOptions) {
		if len(nonce) != 32 {
			opts.err = errors.New("nonce must be 32 bytes")
		}
		opts.nonce = nonce
	}
}

// Encrypt returns the base64 NIP-44 v2 payload for plaintext.
func Encrypt(plaintext string, conversationKey [32]byte, applyOptions ...EncryptOption) (string, error) {
	opts := encryptOptions{}
	for _, apply := range applyOptions {
		apply(&opts)
	}
	if opts.err != nil {
		return "", opts.err
	}

	var nonce [32]byte
	if opts.nonce != nil {
		copy(nonce[:], opts.nonce)
	} else if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to read randomness: %w", err)
	}

	enc, cc20nonce, auth, err := messageKeys(conversationKey, nonce)
	if err != nil {
		return "", err
	}

	padded, err := pad(plaintext)
	if err != nil {
		return "", err
	}

	ciphertext, err := chacha(enc, cc20nonce, padded)
	if err != nil {
		return "", err
	}

	mac := sha256Hmac(auth, ciphertext, nonce)

	concat := make([]byte, 0, 1+32+len(ciphertext)+32)
	concat = append(concat, version)
	concat = append(concat, nonce[:]...)
	concat = append(concat, ciphertext...)
	concat = append(concat, mac...)
	return base64.StdEncoding.EncodeToString(concat), nil
}

// Decrypt opens a base64 NIP-44 v2 payload. Every failure wraps nostr.ErrDecryption.
func Decrypt(b64ciphertextWrapped string, conversationKey [32]byte) (string, error) {
	cLen := len(b64ciphertextWrapped)
	if cLen < 132 || cLen > 87472 {
		return "", fmt.Errorf("%w: invalid payload length: %d", nostr.ErrDecryption, cLen)
	}
	if b64ciphertextWrapped[0:1] == "#" {
		return "", fmt.Errorf("%w: unknown version", nostr.ErrDecryption)
	}

	decoded, err := base64.StdEncoding.DecodeString(b64ciphertextWrapped)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64", nostr.ErrDecryption)
	}
	if decoded[0] != version {
		return "", fmt.Errorf("%w: unknown version %d", nostr.ErrDecryption, decoded[0])
	}

	dLen := len(decoded)
	if dLen < 99 || dLen > 65603 {
		return "", fmt.Errorf("%w: invalid data length: %d", nostr.ErrDecryption, dLen)
	}

	var nonce [32]byte
	copy(nonce[:], decoded[1:33])
	ciphertext := decoded[33 : dLen-32]
	givenMac := decoded[dLen-32:]

	enc, cc20nonce, auth, err := messageKeys(conversationKey, nonce)
	if err != nil {
		return "", err
	}

	expectedMac := sha256Hmac(auth, ciphertext, nonce)
	if !hmac.Equal(givenMac, expectedMac) {
		return "", fmt.Errorf("%w: invalid hmac", nostr.ErrDecryption)
	}

	padded, err := chacha(enc, cc20nonce, ciphertext)
	if err != nil {
		return "", err
	}

	unpaddedLen := int(binary.BigEndian.Uint16(padded[0:2]))
	if unpaddedLen < MinPlaintextSize || unpaddedLen > MaxPlaintextSize ||
		len(padded) != 2+calcPadding(unpaddedLen) {
		return "", fmt.Errorf("%w: invalid padding", nostr.ErrDecryption)
	}

	unpadded := padded[2 : unpaddedLen+2]
	if len(unpadded) == 0 || len(unpadded) != unpaddedLen {
		return "", fmt.Errorf("%w: invalid padding", nostr.ErrDecryption)
	}

	return string(unpadded), nil
}

// GenerateConversationKey derives the key shared by sk and the owner of pub. Swapping the
// roles of the two parties gives the same key.
func GenerateConversationKey(pub string, sk string) ([32]byte, error) {
	var ck [32]byte

	skb, err := hex.DecodeString(sk)
	if err != nil || len(skb) != 32 {
		return ck, fmt.Errorf("%w: invalid private key hex", nostr.ErrInvalidKeyFormat)
	}
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(skb); overflow || scalar.IsZero() {
		return ck, fmt.Errorf("%w: invalid private key: scalar is zero or not below the curve order",
			nostr.ErrInvalidKeyFormat)
	}

	pkb, err := hex.DecodeString(pub)
	if err != nil || len(pkb) != 32 {
		return ck, fmt.Errorf("%w: invalid public key hex", nostr.ErrInvalidKeyFormat)
	}
	pubkey, err := schnorr.ParsePubKey(pkb)
	if err != nil {
		return ck, fmt.Errorf("%w: %w", nostr.ErrInvalidKeyFormat, err)
	}

	privkey, _ := btcec.PrivKeyFromBytes(skb)
	shared := btcec.GenerateSharedSecret(privkey, pubkey)
	copy(ck[:], hkdf.Extract(sha256.New, shared, []byte("nip44-v2")))
	return ck, nil
}

func chacha(key []byte, nonce []byte, message []byte) ([]byte, error) {
	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, len(message))
	cipher.XORKeyStream(dst, message)
	return dst, nil
}

func sha256Hmac(key []byte, ciphertext []byte, nonce [32]byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(nonce[:])
	h.Write(ciphertext)
	return h.Sum(nil)
}

func messageKeys(conversationKey [32]byte, nonce [32]byte) ([]byte, []byte, []byte, error) {
	r := hkdf.Expand(sha256.New, conversationKey[:], nonce[:])

	enc := make([]byte, 32)
	if _, err := io.ReadFull(r, enc); err != nil {
		return nil, nil, nil, err
	}

	cc20nonce := make([]byte, 12)
	if _, err := io.ReadFull(r, cc20nonce); err != nil {
		return nil, nil, nil, err
	}

	auth := make([]byte, 32)
	if _, err := io.ReadFull(r, auth); err != nil {
		return nil, nil, nil, err
	}

	return enc, cc20nonce, auth, nil
}

func pad(s string) ([]byte, error) {
	sb := []byte(s)
	sbLen := len(sb)
	if sbLen < MinPlaintextSize || sbLen > MaxPlaintextSize {
		return nil, ErrPlaintextSize
	}

	padding := calcPadding(sbLen)
	result := make([]byte, 2, 2+padding)
	binary.BigEndian.PutUint16(result, uint16(sbLen))
	result = append(result, sb...)
	result = append(result, bytes.Repeat([]byte{0}, padding-sbLen)...)
	return result, nil
}

func calcPadding(sLen int) int {
	if sLen <= 32 {
		return 32
	}
	nextPower := 1 << int(math.Floor(math.Log2(float64(sLen-1)))+1)
	chunk := int(math.Max(32, float64(nextPower/8)))
	return chunk * int(math.Floor(float64((sLen-1)/chunk))+1)
}
