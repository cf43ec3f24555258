// Package nip06 derives nostr keys from BIP-39 mnemonic seed words.
package nip06

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"github.com/vaultsync/go-nostr"
)

// GenerateSeedWords returns 24 fresh mnemonic words.
func GenerateSeedWords() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}

	words, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", err
	}

	return words, nil
}

func SeedFromWords(words string) []byte {
	return bip39.NewSeed(words, "")
}

// PrivateKeyFromSeed derives the key at m/44'/1237'/0'/0/0.
func PrivateKeyFromSeed(seed []byte) (string, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return "", err
	}

	derivationPath := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + 1237,
		bip32.FirstHardenedChild + 0,
		0,
		0,
	}

	next := key
	for _, idx := range derivationPath {
		var err error
		if next, err = next.NewChildKey(idx); err != nil {
			return "", err
		}
	}

	// big.Int bytes drop leading zeros
	k := next.Key
	if len(k) < 32 {
		k = append(make([]byte, 32-len(k)), k...)
	}
	return hex.EncodeToString(k), nil
}

// PrivateKeyFromWords validates the words and derives the hex secret key from them.
func PrivateKeyFromWords(words string) (string, error) {
	words = strings.Join(strings.Fields(strings.ToLower(words)), " ")
	if !ValidateWords(words) {
		return "", fmt.Errorf("%w: invalid mnemonic", nostr.ErrInvalidKeyFormat)
	}
	return PrivateKeyFromSeed(SeedFromWords(words))
}

func ValidateWords(words string) bool {
	return bip39.IsMnemonicValid(words)
}
