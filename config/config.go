// Package config loads the host defaults for relays, timeouts and storage from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/kvstore"
	"github.com/vaultsync/go-nostr/kvstore/badger"
	"github.com/vaultsync/go-nostr/kvstore/memory"
	"github.com/vaultsync/go-nostr/logins"
	"github.com/vaultsync/go-nostr/nip46"
	"github.com/vaultsync/go-nostr/nipb0/blossom"
	"github.com/vaultsync/go-nostr/sdk"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Relays           []string      `yaml:"relays"`
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout"`
	QueryTimeout     time.Duration `yaml:"queryTimeout"`
	ClockSkew        time.Duration `yaml:"clockSkew"`

	// shown by the remote signer when pairing
	AppName  string `yaml:"appName"`
	AppURL   string `yaml:"appURL"`
	AppImage string `yaml:"appImage"`
	Perms    string `yaml:"perms"`

	BlobServers []string `yaml:"blobServers"`

	// LoginStorePath is a badger directory. Logins are kept in memory when empty.
	LoginStorePath string `yaml:"loginStorePath"`
}

func Default() Config {
	return Config{
		Relays:           []string{"wss://relay.nsec.app", "wss://relay.damus.io"},
		HandshakeTimeout: nip46.DefaultHandshakeTimeout,
		QueryTimeout:     5 * time.Second,
		ClockSkew:        nip46.DefaultClockSkew,
		AppName:          "vaultsync",
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Keys that are absent keep their default value.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.normalize(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) normalize() error {
	for _, r := range c.Relays {
		if !nostr.IsValidRelayURL(r) {
			return fmt.Errorf("invalid relay url '%s'", r)
		}
	}
	c.Relays = nostr.NormalizeRelayURLs(c.Relays)

	for i, s := range c.BlobServers {
		u, err := nostr.NormalizeHTTPURL(s)
		if err != nil {
			return fmt.Errorf("invalid blob server '%s': %w", s, err)
		}
		c.BlobServers[i] = u
	}

	for name, d := range map[string]time.Duration{
		"handshakeTimeout": c.HandshakeTimeout,
		"queryTimeout":     c.QueryTimeout,
		"clockSkew":        c.ClockSkew,
	} {
		if d < 0 {
			return fmt.Errorf("%s can't be negative", name)
		}
	}
	return nil
}

func (c Config) HandshakeOptions() nip46.HandshakeOptions {
	return nip46.HandshakeOptions{
		Relays:    c.Relays,
		Name:      c.AppName,
		URL:       c.AppURL,
		Image:     c.AppImage,
		Perms:     c.Perms,
		Timeout:   c.HandshakeTimeout,
		ClockSkew: c.ClockSkew,
	}
}

// OpenLoginStore opens the store at LoginStorePath. The returned KVStore must be closed by
// the caller.
func (c Config) OpenLoginStore() (*logins.Store, kvstore.KVStore, error) {
	var kv kvstore.KVStore = memory.NewStore()
	if c.LoginStorePath != "" {
		bs, err := badger.NewStore(c.LoginStorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open login store at %s: %w", c.LoginStorePath, err)
		}
		kv = bs
	}
	return logins.NewStore(kv), kv, nil
}

// System builds the lookup helper over the configured relays.
func (c Config) System(pool *nostr.SimplePool, cache kvstore.KVStore) *sdk.System {
	sys := sdk.NewSystem(pool, c.Relays, cache)
	if c.QueryTimeout > 0 {
		sys.QueryTimeout = c.QueryTimeout
	}
	return sys
}

// BlobClients returns one client per configured blob server, in order.
func (c Config) BlobClients(signer nostr.Signer) []*blossom.Client {
	clients := make([]*blossom.Client, len(c.BlobServers))
	for i, s := range c.BlobServers {
		clients[i] = blossom.NewClient(s, signer)
	}
	return clients
}
