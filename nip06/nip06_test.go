package nip06

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultsync/go-nostr"
)

func TestKnownDerivation(t *testing.T) {
	sk, err := PrivateKeyFromWords("leader monkey parrot ring guide accident before fence cannon height naive bean")
	require.NoError(t, err)
	assert.Equal(t, "7f7ff03d123792d6ac594bfa67bf6d0c0ab55b6b1fdb6249303fe861f1ccba9a", sk)

	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)
	assert.Equal(t, "17162c921dc4d2518f9a101db33695df1afb56ab82f5ff3e5da6eec3ca5cd917", pk)
}

func TestGeneratedWordsAreValid(t *testing.T) {
	words, err := GenerateSeedWords()
	require.NoError(t, err)
	assert.True(t, ValidateWords(words))

	sk1, err := PrivateKeyFromWords(words)
	require.NoError(t, err)
	sk2, err := PrivateKeyFromWords("  " + words + "\n")
	require.NoError(t, err)
	assert.Equal(t, sk1, sk2)
}

func TestInvalidWords(t *testing.T) {
	_, err := PrivateKeyFromWords("not a real mnemonic at all")
	assert.ErrorIs(t, err, nostr.ErrInvalidKeyFormat)
}
