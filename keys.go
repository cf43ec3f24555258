package nostr

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// GeneratePrivateKey returns a new random secret key as hex.
// It panics if the system random source fails.
func GeneratePrivateKey() string {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		panic(fmt.Errorf("failed to read randomness: %w", err))
	}
	return hex.EncodeToString(sk.Serialize())
}

// GetPublicKey returns the x-only public key, as hex, for the given hex secret key.
func GetPublicKey(sk string) (string, error) {
	b, err := hex.DecodeString(sk)
	if err != nil {
		return "", err
	}
	if len(b) != 32 {
		return "", fmt.Errorf("secret key must be 32 bytes, got %d", len(b))
	}

	_, pk := btcec.PrivKeyFromBytes(b)
	return hex.EncodeToString(schnorr.SerializePubKey(pk)), nil
}

// IsValidPublicKey checks if pk is a 32-byte lowercase hex x-only key that lies on the curve.
func IsValidPublicKey(pk string) bool {
	if !IsValid32ByteHex(pk) {
		return false
	}
	v, _ := hex.DecodeString(pk)
	_, err := schnorr.ParsePubKey(v)
	return err == nil
}
