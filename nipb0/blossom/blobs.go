package blossom

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vaultsync/go-nostr"
)

// UploadBlob stores data on the media server. The server must address it by its SHA-256.
func (c *Client) UploadBlob(ctx context.Context, data []byte) (*BlobDescriptor, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	auth, err := c.authorizationHeader(ctx, "upload", hash)
	if err != nil {
		return nil, err
	}

	bd := BlobDescriptor{}
	if _, err := c.httpCall(ctx, "PUT", "upload", "application/octet-stream", auth, data, &bd); err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", hash, err)
	}
	if bd.SHA256 != hash {
		return nil, fmt.Errorf("server stored %s as '%s'", hash, bd.SHA256)
	}

	return &bd, nil
}

// Download fetches a blob and checks it against its hash.
func (c *Client) Download(ctx context.Context, hash string) ([]byte, error) {
	if !nostr.IsValid32ByteHex(hash) {
		return nil, fmt.Errorf("%s is not a valid 32-byte hex string", hash)
	}

	auth, err := c.authorizationHeader(ctx, "get", hash)
	if err != nil {
		return nil, err
	}

	data, err := c.httpCall(ctx, "GET", hash, "", auth, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", hash, err)
	}

	if sum := sha256.Sum256(data); hex.EncodeToString(sum[:]) != hash {
		return nil, fmt.Errorf("%s returned data that doesn't match %s", c.mediaserver, hash)
	}
	return data, nil
}

// Check checks if a blob exists on the media server. A missing blob gives ErrNotFound.
func (c *Client) Check(ctx context.Context, hash string) error {
	if !nostr.IsValid32ByteHex(hash) {
		return fmt.Errorf("%s is not a valid 32-byte hex string", hash)
	}

	if _, err := c.httpCall(ctx, "HEAD", hash, "", "", nil, nil); err != nil {
		return fmt.Errorf("failed to check for %s: %w", hash, err)
	}
	return nil
}

// Delete deletes a blob from the media server by its hash
func (c *Client) Delete(ctx context.Context, hash string) error {
	if !nostr.IsValid32ByteHex(hash) {
		return fmt.Errorf("%s is not a valid 32-byte hex string", hash)
	}

	auth, err := c.authorizationHeader(ctx, "delete", hash)
	if err != nil {
		return err
	}

	if _, err := c.httpCall(ctx, "DELETE", hash, "", auth, nil, nil); err != nil {
		return fmt.Errorf("failed to delete %s: %w", hash, err)
	}
	return nil
}

// List retrieves the blobs uploaded by pubkey, or by the signer when pubkey is empty.
func (c *Client) List(ctx context.Context, pubkey string) ([]BlobDescriptor, error) {
	if pubkey == "" {
		var err error
		pubkey, err = c.signer.GetPublicKey(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not get pubkey: %w", err)
		}
	}

	if !nostr.IsValidPublicKey(pubkey) {
		return nil, fmt.Errorf("pubkey %s is not valid", pubkey)
	}

	auth, err := c.authorizationHeader(ctx, "list")
	if err != nil {
		return nil, err
	}

	bds := make([]BlobDescriptor, 0, 100)
	if _, err := c.httpCall(ctx, "GET", "list/"+pubkey, "", auth, nil, &bds); err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	return bds, nil
}
