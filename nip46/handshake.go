package nip46

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/nip44"
)

const (
	DefaultHandshakeTimeout = 120 * time.Second
	DefaultClockSkew        = 5 * time.Second
)

var ErrHandshakeUsed = errors.New("handshake already used, create a new one")

type State int32

const (
	StateIdle State = iota
	StateAwaitingAck
	StateConnected
	StateTimedOut
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAck:
		return "awaiting-ack"
	case StateConnected:
		return "connected"
	case StateTimedOut:
		return "timed-out"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type HandshakeOptions struct {
	Relays []string

	// shown to the user by the remote signer
	Name     string
	URL      string
	Image    string
	Perms    string
	Callback string

	// Timeout bounds Wait, 120 seconds if zero.
	Timeout time.Duration

	// ClockSkew is how far back answers are accepted from, 5 seconds if zero.
	ClockSkew time.Duration
}

// Handshake pairs this client with a remote signer through a nostrconnect:// invitation.
// It owns a fresh ephemeral key and secret and can only be waited on once.
type Handshake struct {
	pool *nostr.SimplePool
	opts HandshakeOptions

	clientSecretKey string
	clientPublicKey string
	secret          string

	state   atomic.Int32
	started atomic.Bool
}

func NewHandshake(pool *nostr.SimplePool, opts HandshakeOptions) (*Handshake, error) {
	if len(opts.Relays) == 0 {
		return nil, fmt.Errorf("%w: handshake needs at least one relay", nostr.ErrNoRelaysAvailable)
	}
	opts.Relays = slices.Clone(opts.Relays)
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultHandshakeTimeout
	}
	if opts.ClockSkew <= 0 {
		opts.ClockSkew = DefaultClockSkew
	}

	secret := make([]byte, 8)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, err
	}

	return &Handshake{
		pool:            pool,
		opts:            opts,
		clientSecretKey: sk,
		clientPublicKey: pk,
		secret:          hex.EncodeToString(secret),
	}, nil
}

func (h *Handshake) State() State { return State(h.state.Load()) }

func (h *Handshake) ClientPublicKey() string { return h.clientPublicKey }

func (h *Handshake) Invitation() Invitation {
	return Invitation{
		ClientPublicKey: h.clientPublicKey,
		Relays:          slices.Clone(h.opts.Relays),
		Secret:          h.secret,
		Name:            h.opts.Name,
		URL:             h.opts.URL,
		Image:           h.opts.Image,
		Perms:           h.opts.Perms,
		Callback:        h.opts.Callback,
	}
}

// Wait listens on all the invitation relays at once until a remote signer answers with our
// secret (or with a bare "ack"), the timeout expires or ctx is canceled.
func (h *Handshake) Wait(ctx context.Context) (BunkerSession, error) {
	if !h.started.CompareAndSwap(false, true) {
		return BunkerSession{}, ErrHandshakeUsed
	}
	h.state.Store(int32(StateAwaitingAck))

	since := nostr.Timestamp(time.Now().Add(-h.opts.ClockSkew).Unix())
	filter := nostr.Filter{
		Kinds: []int{nostr.KindNostrConnect},
		Tags:  nostr.TagMap{"p": []string{h.clientPublicKey}},
		Since: &since,
	}

	ie, err := h.pool.QueryFirst(ctx, h.opts.Relays, filter,
		nostr.WithTimeout(h.opts.Timeout),
		nostr.WithAccept(func(ie nostr.RelayEvent) bool {
			_, ok := h.match(ie.Event)
			return ok
		}),
		nostr.KeepAfterEOSE(),
		nostr.WithQueryLabel("nip46"),
	)

	switch {
	case errors.Is(err, nostr.ErrRelayTimeout):
		h.state.Store(int32(StateTimedOut))
		return BunkerSession{}, fmt.Errorf("%w after %s: make sure the signer app is online and retry, or generate a new invitation",
			nostr.ErrHandshakeTimeout, h.opts.Timeout)
	case err != nil:
		h.state.Store(int32(StateAborted))
		return BunkerSession{}, err
	case ie == nil:
		h.state.Store(int32(StateAborted))
		return BunkerSession{}, nostr.ErrNoRelaysAvailable
	}

	confirmation, _ := h.match(ie.Event)
	if confirmation == ConfirmationAck {
		nostr.InfoLogger.Printf("nip46: %s answered with a bare ack instead of the secret, pairing with lower assurance\n", ie.PubKey)
	}
	h.state.Store(int32(StateConnected))

	return BunkerSession{
		BunkerPublicKey: ie.PubKey,
		ClientSecretKey: h.clientSecretKey,
		Relays:          slices.Clone(h.opts.Relays),
		Secret:          h.secret,
		Confirmation:    confirmation,
	}, nil
}

func (h *Handshake) match(evt *nostr.Event) (Confirmation, bool) {
	ck, err := nip44.GenerateConversationKey(evt.PubKey, h.clientSecretKey)
	if err != nil {
		nostr.InfoLogger.Printf("nip46: ignoring answer from invalid key %s: %s\n", evt.PubKey, err)
		return "", false
	}

	resp, err := decryptResponse(evt, ck)
	if err != nil {
		nostr.InfoLogger.Printf("nip46: ignoring undecryptable answer %s from %s: %s\n", evt.ID, evt.PubKey, err)
		return "", false
	}

	switch resp.Result {
	case h.secret:
		return ConfirmationSecret, true
	case "ack":
		return ConfirmationAck, true
	}

	nostr.DebugLogger.Printf("nip46: answer %s from %s doesn't match the invitation\n", evt.ID, evt.PubKey)
	return "", false
}

// Connect runs a whole handshake: onInvitation gets the nostrconnect:// URI to show and the
// call returns once a remote signer is paired.
func Connect(ctx context.Context, pool *nostr.SimplePool, opts HandshakeOptions, onInvitation func(string)) (BunkerSession, error) {
	h, err := NewHandshake(pool, opts)
	if err != nil {
		return BunkerSession{}, err
	}
	if onInvitation != nil {
		onInvitation(h.Invitation().String())
	}
	return h.Wait(ctx)
}
