package nip19

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/vaultsync/go-nostr"
)

const (
	TLVDefault uint8 = 0
	TLVRelay   uint8 = 1
)

// Decode returns the prefix and the decoded value: a hex string for "npub", "nsec" and "note"
// and a nostr.ProfilePointer for "nprofile".
func Decode(bech32string string) (prefix string, value any, err error) {
	prefix, bits5, err := bech32.DecodeNoLimit(bech32string)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", nostr.ErrDecode, err)
	}

	data, err := bech32.ConvertBits(bits5, 5, 8, false)
	if err != nil {
		return prefix, nil, fmt.Errorf("%w: failed translating data into 8 bits: %w", nostr.ErrDecode, err)
	}

	switch prefix {
	case "npub", "nsec", "note":
		if len(data) != 32 {
			return prefix, nil, fmt.Errorf("%w: %s should be 32 bytes (%d)", nostr.ErrDecode, prefix, len(data))
		}
		return prefix, hex.EncodeToString(data), nil
	case "nprofile":
		var result nostr.ProfilePointer
		curr := 0
		for {
			t, v := readTLVEntry(data[curr:])
			if v == nil {
				// end here
				if result.PublicKey == "" {
					return prefix, result, fmt.Errorf("%w: no pubkey found for nprofile", nostr.ErrDecode)
				}
				return prefix, result, nil
			}

			switch t {
			case TLVDefault:
				if len(v) != 32 {
					return prefix, nil, fmt.Errorf("%w: pubkey should be 32 bytes (%d)", nostr.ErrDecode, len(v))
				}
				result.PublicKey = hex.EncodeToString(v)
			case TLVRelay:
				result.Relays = append(result.Relays, string(v))
			default:
				// ignore
			}

			curr = curr + 2 + len(v)
		}
	}

	return prefix, data, fmt.Errorf("%w: unknown tag %s", nostr.ErrDecode, prefix)
}

func EncodePrivateKey(privateKeyHex string) (string, error) {
	return encodeHex("nsec", privateKeyHex)
}

func EncodePublicKey(publicKeyHex string) (string, error) {
	return encodeHex("npub", publicKeyHex)
}

func EncodeNote(eventIDHex string) (string, error) {
	return encodeHex("note", eventIDHex)
}

func EncodeProfile(publicKeyHex string, relays []string) (string, error) {
	buf := &bytes.Buffer{}
	pubkey, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pubkey) != 32 {
		return "", fmt.Errorf("invalid pubkey '%s'", publicKeyHex)
	}
	writeTLVEntry(buf, TLVDefault, pubkey)

	for _, url := range relays {
		writeTLVEntry(buf, TLVRelay, []byte(url))
	}

	bits5, err := bech32.ConvertBits(buf.Bytes(), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert bits: %w", err)
	}

	return bech32.Encode("nprofile", bits5)
}

// EncodePointer returns an npub when the pointer has no relays, otherwise an nprofile.
func EncodePointer(pointer nostr.ProfilePointer) (string, error) {
	if len(pointer.Relays) == 0 {
		return EncodePublicKey(pointer.PublicKey)
	}
	return EncodeProfile(pointer.PublicKey, pointer.Relays)
}

func encodeHex(prefix string, value string) (string, error) {
	b, err := hex.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s hex: %w", prefix, err)
	}
	if len(b) != 32 {
		return "", fmt.Errorf("%s should be 32 bytes (%d)", prefix, len(b))
	}

	bits5, err := bech32.ConvertBits(b, 8, 5, true)
	if err != nil {
		return "", err
	}

	return bech32.Encode(prefix, bits5)
}

func readTLVEntry(data []byte) (typ uint8, value []byte) {
	if len(data) < 2 {
		return 0, nil
	}

	typ = data[0]
	length := int(data[1])
	if len(data) < 2+length {
		return 0, nil
	}
	value = data[2 : 2+length]
	return
}

func writeTLVEntry(buf *bytes.Buffer, typ uint8, value []byte) {
	length := len(value)
	buf.WriteByte(typ)
	buf.WriteByte(uint8(length))
	buf.Write(value)
}
