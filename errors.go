package nostr

import "errors"

var (
	// ErrInvalidKeyFormat is returned when a key input is neither a valid nsec nor 64 hex characters.
	ErrInvalidKeyFormat = errors.New("invalid key format")

	// ErrDecode is returned when a bech32 string has a bad checksum, framing or prefix.
	ErrDecode = errors.New("decode error")

	// ErrDecryption is returned on any authentication or framing failure while decrypting.
	// It must be treated as tampering or a wrong key, never retried silently.
	ErrDecryption = errors.New("decryption failed")

	// ErrSigning is returned when an event can't be signed: it was already signed or the key
	// material is not available anymore.
	ErrSigning = errors.New("signing failed")

	// ErrRelayTimeout is returned when no relay delivered a qualifying event in time.
	ErrRelayTimeout = errors.New("relay timeout")

	// ErrNoRelaysAvailable is returned when every relay in a query failed.
	ErrNoRelaysAvailable = errors.New("no relays available")

	// ErrHandshakeTimeout is returned when a remote signer didn't acknowledge a connection
	// invitation before the deadline.
	ErrHandshakeTimeout = errors.New("handshake timed out")
)
