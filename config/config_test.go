package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/keyer"
	"github.com/vaultsync/go-nostr/logins"
	"github.com/vaultsync/go-nostr/nip46"
)

const knownPK = "17162c921dc4d2518f9a101db33695df1afb56ab82f5ff3e5da6eec3ca5cd917"

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
relays:
  - wss://Relay.Example.com/
  - ws://localhost:7777
handshakeTimeout: 45s
queryTimeout: 1500ms
appName: Vault
appURL: https://vault.example.com
perms: sign_event:30078,nip44_encrypt
blobServers:
  - cdn.example.com
loginStorePath: /tmp/logins
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://relay.example.com", "ws://localhost:7777"}, c.Relays)
	assert.Equal(t, 45*time.Second, c.HandshakeTimeout)
	assert.Equal(t, 1500*time.Millisecond, c.QueryTimeout)
	assert.Equal(t, nip46.DefaultClockSkew, c.ClockSkew)
	assert.Equal(t, []string{"https://cdn.example.com"}, c.BlobServers)
	assert.Equal(t, "/tmp/logins", c.LoginStorePath)

	opts := c.HandshakeOptions()
	assert.Equal(t, c.Relays, opts.Relays)
	assert.Equal(t, "Vault", opts.Name)
	assert.Equal(t, "https://vault.example.com", opts.URL)
	assert.Equal(t, "sign_event:30078,nip44_encrypt", opts.Perms)
	assert.Equal(t, 45*time.Second, opts.Timeout)
	assert.Equal(t, nip46.DefaultClockSkew, opts.ClockSkew)
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, nip46.DefaultHandshakeTimeout, c.HandshakeOptions().Timeout)
}

func TestParseErrors(t *testing.T) {
	for name, data := range map[string]string{
		"bad yaml":         "relays: [",
		"bad relay":        "relays: [https://example.com]",
		"bad duration":     "handshakeTimeout: soon",
		"negative timeout": "queryTimeout: -1s",
	} {
		_, err := Parse([]byte(data))
		assert.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.yaml")
	require.NoError(t, os.WriteFile(path, []byte("appName: FromFile\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "FromFile", c.AppName)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenLoginStore(t *testing.T) {
	c := Default()
	c.LoginStorePath = t.TempDir()

	store, kv, err := c.OpenLoginStore()
	require.NoError(t, err)
	l := logins.NewExtensionLogin(knownPK)
	require.NoError(t, store.Append(l))
	require.NoError(t, kv.Close())

	store, kv, err = c.OpenLoginStore()
	require.NoError(t, err)
	defer kv.Close()
	got, err := store.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, l, got)

	c.LoginStorePath = ""
	store, kv, err = c.OpenLoginStore()
	require.NoError(t, err)
	defer kv.Close()
	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBlobClients(t *testing.T) {
	c, err := Parse([]byte("blobServers: [https://a.example.com, b.example.com]"))
	require.NoError(t, err)

	signer := keyer.NewReadOnlySigner(knownPK)
	clients := c.BlobClients(signer)
	require.Len(t, clients, 2)
	assert.Equal(t, "https://a.example.com/", clients[0].GetMediaServer())
	assert.Equal(t, "https://b.example.com/", clients[1].GetMediaServer())
	assert.Equal(t, nostr.Signer(signer), clients[0].GetSigner())
}
