package nip46

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/nip44"
)

// BunkerClient sends NIP-46 requests to a remote signer and waits for its answers.
type BunkerClient struct {
	serial          atomic.Uint64
	clientSecretKey string
	clientPublicKey string
	pool            *nostr.SimplePool
	target          string
	relays          []string
	conversationKey [32]byte
	listeners       *xsync.MapOf[string, chan Response]
	idPrefix        string
	onAuth          func(string)
	session         BunkerSession

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}

	// memoized
	pkMu                 sync.Mutex
	getPublicKeyResponse string
}

// NewBunkerClient starts listening for answers from the bunker of an already established
// session. It lives until ctx is canceled or Close is called.
// onAuth is called with the URL the user must visit when the bunker asks for it.
func NewBunkerClient(
	ctx context.Context,
	pool *nostr.SimplePool,
	session BunkerSession,
	onAuth func(string),
) (*BunkerClient, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	clientPubKey, _ := session.ClientPublicKey()

	ck, err := nip44.GenerateConversationKey(session.BunkerPublicKey, session.ClientSecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to compute conversation key: %w", err)
	}

	if pool == nil {
		pool = nostr.NewSimplePool(ctx)
	}
	if onAuth == nil {
		onAuth = func(string) {}
	}

	ctx, cancel := context.WithCancel(ctx)
	bunker := &BunkerClient{
		clientSecretKey: session.ClientSecretKey,
		clientPublicKey: clientPubKey,
		pool:            pool,
		target:          session.BunkerPublicKey,
		relays:          session.Relays,
		conversationKey: ck,
		listeners:       xsync.NewMapOf[string, chan Response](),
		idPrefix:        "vs-" + strconv.Itoa(rand.IntN(65536)),
		onAuth:          onAuth,
		session:         session,
		ctx:             ctx,
		cancel:          cancel,
		ready:           make(chan struct{}),
	}

	since := nostr.Timestamp(time.Now().Add(-DefaultClockSkew).Unix())
	events := pool.SubscribeManyNotifyEOSE(ctx, session.Relays, nostr.Filter{
		Tags:  nostr.TagMap{"p": []string{clientPubKey}},
		Kinds: []int{nostr.KindNostrConnect},
		Since: &since,
	}, bunker.ready, nostr.WithLabel("nip46"))

	go func() {
		for ie := range events {
			if ie.Kind != nostr.KindNostrConnect || ie.PubKey != bunker.target {
				continue
			}

			resp, err := decryptResponse(ie.Event, ck)
			if err != nil {
				nostr.DebugLogger.Printf("nip46: bad response %s from %s: %s\n", ie.ID, ie.Relay.URL, err)
				continue
			}

			if resp.Result == "auth_url" {
				bunker.onAuth(resp.Error)
				continue
			}

			if dispatcher, ok := bunker.listeners.Load(resp.ID); ok {
				select {
				case dispatcher <- resp:
				default:
				}
			}
		}
	}()

	return bunker, nil
}

// ConnectBunker establishes an RPC connection to a NIP-46 signer using the relays and secret
// provided in the bunkerURL. pool can be passed to reuse an existing pool, otherwise a new
// pool will be created.
func ConnectBunker(
	ctx context.Context,
	clientSecretKey string,
	bunkerURL string,
	pool *nostr.SimplePool,
	onAuth func(string),
) (*BunkerClient, error) {
	session, err := ParseBunkerURL(bunkerURL)
	if err != nil {
		return nil, err
	}
	session.ClientSecretKey = clientSecretKey

	bunker, err := NewBunkerClient(ctx, pool, session, onAuth)
	if err != nil {
		return nil, err
	}

	result, err := bunker.RPC(ctx, "connect", []string{session.BunkerPublicKey, session.Secret})
	if err != nil {
		bunker.Close()
		return nil, err
	}
	if session.Secret != "" && result == session.Secret {
		bunker.session.Confirmation = ConfirmationSecret
	} else {
		bunker.session.Confirmation = ConfirmationAck
	}

	return bunker, nil
}

// Session returns what is needed to reopen this client later with NewBunkerClient.
func (bunker *BunkerClient) Session() BunkerSession { return bunker.session }

func (bunker *BunkerClient) Ping(ctx context.Context) error {
	_, err := bunker.RPC(ctx, "ping", []string{})
	return err
}

func (bunker *BunkerClient) GetPublicKey(ctx context.Context) (string, error) {
	bunker.pkMu.Lock()
	pk := bunker.getPublicKeyResponse
	bunker.pkMu.Unlock()
	if pk != "" {
		return pk, nil
	}

	resp, err := bunker.RPC(ctx, "get_public_key", []string{})
	if err != nil {
		return "", err
	}
	if !nostr.IsValidPublicKey(resp) {
		return "", fmt.Errorf("bunker returned an invalid public key '%s'", resp)
	}

	bunker.pkMu.Lock()
	bunker.getPublicKeyResponse = resp
	bunker.pkMu.Unlock()
	return resp, nil
}

// SignEvent asks the bunker to sign evt and checks what comes back before copying it over.
func (bunker *BunkerClient) SignEvent(ctx context.Context, evt *nostr.Event) error {
	resp, err := bunker.RPC(ctx, "sign_event", []string{evt.String()})
	if err != nil {
		return err
	}

	var signed nostr.Event
	if err := signed.UnmarshalJSON([]byte(resp)); err != nil {
		return fmt.Errorf("invalid signed event: %w", err)
	}
	if !signed.CheckID() {
		return fmt.Errorf("bunker returned an event with a wrong id")
	}
	if ok, _ := signed.CheckSignature(); !ok {
		return fmt.Errorf("bunker returned an event with an invalid signature")
	}
	if signed.Kind != evt.Kind || signed.Content != evt.Content {
		return fmt.Errorf("bunker returned a different event")
	}

	*evt = signed
	return nil
}

func (bunker *BunkerClient) NIP44Encrypt(ctx context.Context, targetPublicKey string, plaintext string) (string, error) {
	return bunker.RPC(ctx, "nip44_encrypt", []string{targetPublicKey, plaintext})
}

func (bunker *BunkerClient) NIP44Decrypt(ctx context.Context, targetPublicKey string, ciphertext string) (string, error) {
	return bunker.RPC(ctx, "nip44_decrypt", []string{targetPublicKey, ciphertext})
}

// RPC sends one request to every bunker relay and waits for the matching response.
func (bunker *BunkerClient) RPC(ctx context.Context, method string, params []string) (string, error) {
	if bunker.ctx.Err() != nil {
		return "", fmt.Errorf("bunker client closed")
	}

	select {
	case <-bunker.ready:
	case <-ctx.Done():
		return "", context.Cause(ctx)
	case <-bunker.ctx.Done():
		return "", fmt.Errorf("bunker client closed")
	}

	id := bunker.idPrefix + "-" + strconv.FormatUint(bunker.serial.Add(1), 10)
	req, err := json.Marshal(Request{
		ID:     id,
		Method: method,
		Params: params,
	})
	if err != nil {
		return "", err
	}

	content, err := nip44.Encrypt(string(req), bunker.conversationKey)
	if err != nil {
		return "", fmt.Errorf("error encrypting request: %w", err)
	}

	evt := nostr.Event{
		Content:   content,
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindNostrConnect,
		Tags:      nostr.Tags{{"p", bunker.target}},
	}
	if err := evt.Sign(bunker.clientSecretKey); err != nil {
		return "", fmt.Errorf("failed to sign request event: %w", err)
	}

	respWaiter := make(chan Response, 1)
	bunker.listeners.Store(id, respWaiter)
	defer bunker.listeners.Delete(id)

	hasWorked := false
	for _, url := range bunker.relays {
		relay, err := bunker.pool.EnsureRelay(url)
		if err != nil {
			nostr.InfoLogger.Printf("nip46: failed to reach %s: %s\n", url, err)
			continue
		}
		if err := relay.Publish(ctx, evt); err != nil {
			nostr.InfoLogger.Printf("nip46: failed to publish %s request to %s: %s\n", method, url, err)
			continue
		}
		hasWorked = true
	}
	if !hasWorked {
		return "", nostr.ErrNoRelaysAvailable
	}

	select {
	case resp := <-respWaiter:
		if resp.Error != "" {
			return "", fmt.Errorf("response error: %s", resp.Error)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", method, context.Cause(ctx))
	case <-bunker.ctx.Done():
		return "", fmt.Errorf("bunker client closed")
	}
}

// Close stops listening for responses. Pending and future calls fail.
func (bunker *BunkerClient) Close() {
	bunker.cancel()
}

func (bunker *BunkerClient) String() string {
	return "bunker(" + bunker.target + ")" + fmt.Sprint(bunker.relays)
}
