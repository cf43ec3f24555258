package keyer

import (
	"context"
	"fmt"

	"github.com/vaultsync/go-nostr"
)

var (
	_ nostr.User   = (*ReadOnlyUser)(nil)
	_ nostr.Signer = (*ReadOnlySigner)(nil)
)

// ReadOnlyUser is a nostr.User that has this public key
type ReadOnlyUser struct {
	pk string
}

func NewReadOnlyUser(pk string) ReadOnlyUser {
	return ReadOnlyUser{pk}
}

// GetPublicKey returns the public key associated with this user.
func (ros ReadOnlyUser) GetPublicKey(context.Context) (string, error) {
	return ros.pk, nil
}

// ReadOnlySigner is like a ReadOnlyUser, but has a SignEvent method that always fails.
// It stands in for logins whose key material is not reachable from this process.
type ReadOnlySigner struct {
	pk string
}

func NewReadOnlySigner(pk string) ReadOnlySigner {
	return ReadOnlySigner{pk}
}

// SignEvent returns ErrSigning.
func (ros ReadOnlySigner) SignEvent(context.Context, *nostr.Event) error {
	return fmt.Errorf("%w: read-only, we don't have the secret key", nostr.ErrSigning)
}

func (ros ReadOnlySigner) GetPublicKey(context.Context) (string, error) {
	return ros.pk, nil
}
