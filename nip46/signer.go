package nip46

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vaultsync/go-nostr"
	"github.com/vaultsync/go-nostr/nip44"
)

// Session is the bunker-side view of one connected client.
type Session struct {
	PublicKey       string
	ConversationKey [32]byte
}

func (s Session) ParseRequest(event *nostr.Event) (Request, error) {
	var req Request

	plain, err := nip44.Decrypt(event.Content, s.ConversationKey)
	if err != nil {
		return req, fmt.Errorf("failed to decrypt event from %s: %w", event.PubKey, err)
	}

	err = json.Unmarshal([]byte(plain), &req)
	return req, err
}

func (s Session) MakeResponse(
	id string,
	requester string,
	result string,
	err error,
) (resp Response, evt nostr.Event, error error) {
	if err != nil {
		resp = Response{
			ID:    id,
			Error: err.Error(),
		}
	} else {
		resp = Response{
			ID:     id,
			Result: result,
		}
	}

	jresp, _ := json.Marshal(resp)
	ciphertext, err := nip44.Encrypt(string(jresp), s.ConversationKey)
	if err != nil {
		return resp, evt, fmt.Errorf("failed to encrypt result: %w", err)
	}
	evt.Content = ciphertext
	evt.CreatedAt = nostr.Now()
	evt.Kind = nostr.KindNostrConnect
	evt.Tags = nostr.Tags{nostr.Tag{"p", requester}}

	return resp, evt, nil
}

// StaticKeySigner is the bunker side of NIP-46 for a key held in memory.
type StaticKeySigner struct {
	secretKey string
	publicKey string

	sessions *xsync.MapOf[string, Session]

	// AuthorizeRequest, when set, is asked before answering. harmless is true for requests
	// that don't use the key (connect, ping, get_public_key).
	AuthorizeRequest func(harmless bool, from string, secret string) bool
}

func NewStaticKeySigner(secretKey string) (*StaticKeySigner, error) {
	pk, err := nostr.GetPublicKey(secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	return &StaticKeySigner{
		secretKey: secretKey,
		publicKey: pk,
		sessions:  xsync.NewMapOf[string, Session](),
	}, nil
}

func (p *StaticKeySigner) PublicKey() string { return p.publicKey }

func (p *StaticKeySigner) GetSession(clientPubkey string) (Session, bool) {
	return p.sessions.Load(clientPubkey)
}

func (p *StaticKeySigner) getOrCreateSession(clientPubkey string) (Session, error) {
	if session, ok := p.sessions.Load(clientPubkey); ok {
		return session, nil
	}

	ck, err := nip44.GenerateConversationKey(clientPubkey, p.secretKey)
	if err != nil {
		return Session{}, fmt.Errorf("failed to compute conversation key: %w", err)
	}

	session, _ := p.sessions.LoadOrStore(clientPubkey, Session{
		PublicKey:       p.publicKey,
		ConversationKey: ck,
	})
	return session, nil
}

// HandleRequest decodes a kind 24133 request and builds the signed response event.
func (p *StaticKeySigner) HandleRequest(_ context.Context, event *nostr.Event) (
	req Request,
	resp Response,
	eventResponse nostr.Event,
	err error,
) {
	if event.Kind != nostr.KindNostrConnect {
		return req, resp, eventResponse,
			fmt.Errorf("event kind is %d, but we expected %d", event.Kind, nostr.KindNostrConnect)
	}

	session, err := p.getOrCreateSession(event.PubKey)
	if err != nil {
		return req, resp, eventResponse, err
	}

	req, err = session.ParseRequest(event)
	if err != nil {
		return req, resp, eventResponse, fmt.Errorf("error parsing request: %w", err)
	}

	var secret string
	var harmless bool
	var result string
	var resultErr error

	switch req.Method {
	case "connect":
		if len(req.Params) >= 2 {
			secret = req.Params[1]
		}
		result = "ack"
		if secret != "" {
			result = secret
		}
		harmless = true
	case "get_public_key":
		result = session.PublicKey
		harmless = true
	case "sign_event":
		if len(req.Params) != 1 {
			resultErr = fmt.Errorf("wrong number of arguments to 'sign_event'")
			break
		}
		evt := nostr.Event{}
		if err := evt.UnmarshalJSON([]byte(req.Params[0])); err != nil {
			resultErr = fmt.Errorf("failed to decode event: %w", err)
			break
		}
		if err := evt.Sign(p.secretKey); err != nil {
			resultErr = fmt.Errorf("failed to sign event: %w", err)
			break
		}
		result = evt.String()
	case "nip44_encrypt", "nip44_decrypt":
		if len(req.Params) != 2 {
			resultErr = fmt.Errorf("wrong number of arguments to '%s'", req.Method)
			break
		}
		thirdPartyPubkey := req.Params[0]
		if !nostr.IsValidPublicKey(thirdPartyPubkey) {
			resultErr = fmt.Errorf("first argument to '%s' is not a pubkey string", req.Method)
			break
		}

		ck, err := nip44.GenerateConversationKey(thirdPartyPubkey, p.secretKey)
		if err != nil {
			resultErr = fmt.Errorf("failed to compute conversation key: %w", err)
			break
		}
		if req.Method == "nip44_encrypt" {
			result, resultErr = nip44.Encrypt(req.Params[1], ck)
		} else {
			result, resultErr = nip44.Decrypt(req.Params[1], ck)
		}
	case "ping":
		result = "pong"
		harmless = true
	default:
		return req, resp, eventResponse,
			fmt.Errorf("unknown method '%s'", req.Method)
	}

	if resultErr == nil && p.AuthorizeRequest != nil {
		if !p.AuthorizeRequest(harmless, event.PubKey, secret) {
			resultErr = fmt.Errorf("unauthorized")
		}
	}

	resp, eventResponse, err = session.MakeResponse(req.ID, event.PubKey, result, resultErr)
	if err != nil {
		return req, resp, eventResponse, err
	}

	err = eventResponse.Sign(p.secretKey)
	return req, resp, eventResponse, err
}

// Serve answers requests arriving on relays until ctx is canceled.
func (p *StaticKeySigner) Serve(ctx context.Context, pool *nostr.SimplePool, relays []string) {
	now := nostr.Now()
	events := pool.SubscribeMany(ctx, relays, nostr.Filter{
		Kinds: []int{nostr.KindNostrConnect},
		Tags:  nostr.TagMap{"p": []string{p.publicKey}},
		Since: &now,
	}, nostr.WithLabel("bunker"))

	var wg sync.WaitGroup
	defer wg.Wait()

	for ie := range events {
		req, _, eventResponse, err := p.HandleRequest(ctx, ie.Event)
		if err != nil {
			nostr.InfoLogger.Printf("nip46: failed to handle request %s from %s: %s\n", ie.ID, ie.PubKey, err)
			continue
		}

		for _, url := range relays {
			wg.Add(1)
			go func() {
				defer wg.Done()
				relay, err := pool.EnsureRelay(url)
				if err != nil {
					return
				}
				if err := relay.Publish(ctx, eventResponse); err != nil {
					nostr.InfoLogger.Printf("nip46: failed to publish %s response to %s: %s\n", req.Method, url, err)
				}
			}()
		}
	}
}
