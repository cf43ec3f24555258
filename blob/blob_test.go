package blob

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultsync/go-nostr"
)

func TestBlobRoundTrip(t *testing.T) {
	for _, data := range [][]byte{
		{},
		[]byte("x"),
		[]byte("%PDF-1.7 not really a pdf"),
		bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 1<<16),
	} {
		bundle, err := EncryptBlob(data)
		require.NoError(t, err)
		assert.Len(t, bundle.Ciphertext, len(data)+16)

		plain, err := DecryptBlob(bundle.Ciphertext, bundle.Key, bundle.Nonce)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(data, plain))
	}
}

func TestBlobFreshKeys(t *testing.T) {
	data := []byte("same attachment")
	a, err := EncryptBlob(data)
	require.NoError(t, err)
	b, err := EncryptBlob(data)
	require.NoError(t, err)

	assert.NotEqual(t, a.Key, b.Key)
	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
	assert.Equal(t, HashBlob(data), HashBlob(data))
}

func TestBlobWrongKeyOrNonce(t *testing.T) {
	bundle, err := EncryptBlob([]byte("image bytes"))
	require.NoError(t, err)

	key := bundle.Key
	key[0] ^= 1
	_, err = DecryptBlob(bundle.Ciphertext, key, bundle.Nonce)
	assert.ErrorIs(t, err, nostr.ErrDecryption)

	nonce := bundle.Nonce
	nonce[11] ^= 1
	_, err = DecryptBlob(bundle.Ciphertext, bundle.Key, nonce)
	assert.ErrorIs(t, err, nostr.ErrDecryption)

	tampered := bytes.Clone(bundle.Ciphertext)
	tampered[0] ^= 1
	_, err = DecryptBlob(tampered, bundle.Key, bundle.Nonce)
	assert.ErrorIs(t, err, nostr.ErrDecryption)

	_, err = DecryptBlob([]byte{1, 2, 3}, bundle.Key, bundle.Nonce)
	assert.ErrorIs(t, err, nostr.ErrDecryption)
}

func TestHashBlob(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashBlob(nil))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashBlob([]byte("abc")))
}

func TestSecretJSON(t *testing.T) {
	data := []byte("attachment")
	bundle, err := EncryptBlob(data)
	require.NoError(t, err)

	j, err := json.Marshal(bundle.Secret())
	require.NoError(t, err)

	var fields map[string]string
	require.NoError(t, json.Unmarshal(j, &fields))
	assert.Len(t, fields["key"], 64)
	assert.Len(t, fields["nonce"], 24)

	var secret Secret
	require.NoError(t, json.Unmarshal(j, &secret))
	assert.Equal(t, bundle.Secret(), secret)

	plain, err := secret.Decrypt(bundle.Ciphertext)
	require.NoError(t, err)
	assert.Equal(t, data, plain)

	assert.Error(t, json.Unmarshal([]byte(`{"key":"00","nonce":"00"}`), &secret))
}
