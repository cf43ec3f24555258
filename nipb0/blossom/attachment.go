package blossom

import (
	"context"
	"fmt"

	"github.com/vaultsync/go-nostr/blob"
)

// Attachment is what the vault index keeps about an encrypted file on a blob server.
// Hash is the plaintext hash used for deduplication, Blob the address of the ciphertext.
type Attachment struct {
	Hash   string      `json:"hash"`
	Blob   string      `json:"blob"`
	Size   int         `json:"size"`
	URL    string      `json:"url,omitempty"`
	Secret blob.Secret `json:"secret"`
}

// UploadAttachment encrypts data with a fresh key and uploads the ciphertext.
func (c *Client) UploadAttachment(ctx context.Context, data []byte) (Attachment, error) {
	bundle, err := blob.EncryptBlob(data)
	if err != nil {
		return Attachment{}, err
	}

	bd, err := c.UploadBlob(ctx, bundle.Ciphertext)
	if err != nil {
		return Attachment{}, err
	}

	return Attachment{
		Hash:   blob.HashBlob(data),
		Blob:   bd.SHA256,
		Size:   len(data),
		URL:    bd.URL,
		Secret: bundle.Secret(),
	}, nil
}

// DownloadAttachment fetches, decrypts and verifies an attachment.
func (c *Client) DownloadAttachment(ctx context.Context, att Attachment) ([]byte, error) {
	ciphertext, err := c.Download(ctx, att.Blob)
	if err != nil {
		return nil, err
	}

	data, err := att.Secret.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	if blob.HashBlob(data) != att.Hash {
		return nil, fmt.Errorf("attachment %s decrypted to unexpected content", att.Blob)
	}
	return data, nil
}
