package keyer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/nip06"
	"github.com/vaultsync/go-nostr/nip19"
	"github.com/vaultsync/go-nostr/nip49"
)

// Identity is a keypair plus its bech32 encodings. It is a plain value: copying it
// copies the secret key, so keep it out of logs.
type Identity struct {
	PublicKey [32]byte
	SecretKey [32]byte
	Npub      string
	Nsec      string
}

// GenerateIdentity creates a fresh random identity.
func GenerateIdentity() (Identity, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to generate key: %w", err)
	}
	return identityFromPrivKey(sk)
}

// ImportIdentity accepts an nsec1 string or exactly 64 hex characters.
func ImportIdentity(input string) (Identity, error) {
	input = strings.TrimSpace(input)

	if len(input) == 64 {
		if skb, err := hex.DecodeString(input); err == nil {
			return identityFromBytes(skb)
		}
	}

	if strings.HasPrefix(strings.ToLower(input), "nsec1") {
		prefix, value, err := nip19.Decode(input)
		if err != nil {
			return Identity{}, err
		}
		if prefix != "nsec" {
			return Identity{}, fmt.Errorf("%w: unexpected prefix '%s'", nostr.ErrDecode, prefix)
		}
		skb, _ := hex.DecodeString(value.(string))
		return identityFromBytes(skb)
	}

	// other well-formed bech32 entities (npub, note...) are not secret keys
	if prefix, _, err := nip19.Decode(input); err == nil {
		return Identity{}, fmt.Errorf("%w: expected nsec, got %s", nostr.ErrInvalidKeyFormat, prefix)
	}

	return Identity{}, fmt.Errorf("%w: expected nsec1 or 64 hex characters", nostr.ErrInvalidKeyFormat)
}

// IdentityFromSecretKey builds an identity from a hex secret key.
func IdentityFromSecretKey(skHex string) (Identity, error) {
	skb, err := hex.DecodeString(skHex)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", nostr.ErrInvalidKeyFormat, err)
	}
	return identityFromBytes(skb)
}

// ImportMnemonic derives the identity from BIP-39 words (NIP-06).
func ImportMnemonic(words string) (Identity, error) {
	sk, err := nip06.PrivateKeyFromWords(words)
	if err != nil {
		return Identity{}, err
	}
	return IdentityFromSecretKey(sk)
}

// ImportEncrypted opens a NIP-49 ncryptsec with password.
func ImportEncrypted(ncryptsec string, password string) (Identity, error) {
	skb, err := nip49.DecryptToBytes(strings.TrimSpace(ncryptsec), password)
	if err != nil {
		return Identity{}, err
	}
	return identityFromBytes(skb)
}

// Encrypt protects the secret key with password, returning an ncryptsec1 string.
func (id Identity) Encrypt(password string, logn uint8) (string, error) {
	return nip49.EncryptBytes(id.SecretKey[:], password, logn, nip49.ClientDoesNotTrackThisData)
}

func (id Identity) PublicKeyHex() string { return hex.EncodeToString(id.PublicKey[:]) }
func (id Identity) SecretKeyHex() string { return hex.EncodeToString(id.SecretKey[:]) }

// String only shows the public side.
func (id Identity) String() string { return id.Npub }

// GoString keeps %#v from printing the secret key.
func (id Identity) GoString() string { return "keyer.Identity{" + id.Npub + "}" }

func identityFromBytes(skb []byte) (Identity, error) {
	if len(skb) != 32 {
		return Identity{}, fmt.Errorf("%w: secret key must be 32 bytes, got %d", nostr.ErrInvalidKeyFormat, len(skb))
	}

	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(skb); overflow {
		return Identity{}, fmt.Errorf("%w: secret key is not below the curve order", nostr.ErrInvalidKeyFormat)
	}
	if scalar.IsZero() {
		return Identity{}, fmt.Errorf("%w: secret key is zero", nostr.ErrInvalidKeyFormat)
	}

	sk, _ := btcec.PrivKeyFromBytes(skb)
	return identityFromPrivKey(sk)
}

func identityFromPrivKey(sk *btcec.PrivateKey) (Identity, error) {
	var id Identity
	copy(id.SecretKey[:], sk.Serialize())
	copy(id.PublicKey[:], schnorr.SerializePubKey(sk.PubKey()))

	var err error
	if id.Npub, err = nip19.EncodePublicKey(id.PublicKeyHex()); err != nil {
		return Identity{}, err
	}
	if id.Nsec, err = nip19.EncodePrivateKey(id.SecretKeyHex()); err != nil {
		return Identity{}, err
	}
	return id, nil
}
