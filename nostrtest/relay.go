// Package nostrtest provides an in-process relay for tests.
package nostrtest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/vaultsync/go-nostr"
	"golang.org/x/net/websocket"
)

// Relay is a minimal NIP-01 relay that keeps everything in memory.
// It answers REQs with matching stored events followed by EOSE, then streams
// new events to the subscriptions that match them.
type Relay struct {
	URL string

	// CloseReason, when set, makes the relay answer every REQ with CLOSED.
	CloseReason string

	// AcceptEvent, when set, decides if a published event is stored.
	AcceptEvent func(nostr.Event) (bool, string)

	server *httptest.Server

	mu       sync.Mutex
	events   []nostr.Event
	clients  map[*client]struct{}
	reqs     int
	closes   int
	received []nostr.Event
}

type client struct {
	conn *websocket.Conn
	wmu  sync.Mutex
	subs map[string]nostr.Filters
}

func (c *client) send(env nostr.Envelope) {
	b, err := env.MarshalJSON()
	if err != nil {
		return
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	websocket.Message.Send(c.conn, string(b))
}

// NewRelay starts a relay listening on a random local port.
func NewRelay() *Relay {
	r := &Relay{
		clients: make(map[*client]struct{}),
	}
	r.server = httptest.NewServer(&websocket.Server{
		Handshake: anyOriginHandshake,
		Handler:   r.handle,
	})
	r.URL = "ws" + strings.TrimPrefix(r.server.URL, "http")
	return r
}

// anyOriginHandshake is an alternative to default in golang.org/x/net/websocket
// which checks for origin. nostr client sends no origin and it makes no difference
// for the tests here anyway.
var anyOriginHandshake = func(conf *websocket.Config, r *http.Request) error {
	return nil
}

// Close drops every client and stops the server.
func (r *Relay) Close() {
	r.mu.Lock()
	for c := range r.clients {
		c.conn.Close()
	}
	r.mu.Unlock()
	r.server.CloseClientConnections()
	r.server.Close()
}

// Store adds events to the relay without notifying live subscriptions.
func (r *Relay) Store(events ...nostr.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

// Broadcast stores evt and sends it to every live subscription it matches.
// The event isn't validated, so tests can use it to push garbage to clients.
func (r *Relay) Broadcast(evt nostr.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	type target struct {
		c     *client
		subID string
	}
	targets := make([]target, 0, len(r.clients))
	for c := range r.clients {
		for id, filters := range c.subs {
			if filters.Match(&evt) {
				targets = append(targets, target{c, id})
			}
		}
	}
	r.mu.Unlock()

	for _, t := range targets {
		id := t.subID
		t.c.send(&nostr.EventEnvelope{SubscriptionID: &id, Event: evt})
	}
}

// Notice sends a NOTICE to every connected client.
func (r *Relay) Notice(text string) {
	r.mu.Lock()
	clients := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	notice := nostr.NoticeEnvelope(text)
	for _, c := range clients {
		c.send(&notice)
	}
}

// OpenSubscriptions is the number of subscriptions clients have open right now.
func (r *Relay) OpenSubscriptions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for c := range r.clients {
		total += len(c.subs)
	}
	return total
}

// Requests is the number of REQs received since the relay started.
func (r *Relay) Requests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reqs
}

// Closes is the number of CLOSEs received since the relay started.
func (r *Relay) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// Connections is the number of clients currently connected.
func (r *Relay) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Received returns the events clients published to this relay, in order.
func (r *Relay) Received() []nostr.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]nostr.Event(nil), r.received...)
}

func (r *Relay) handle(conn *websocket.Conn) {
	c := &client{conn: conn, subs: make(map[string]nostr.Filters)}

	r.mu.Lock()
	r.clients[c] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.clients, c)
		r.mu.Unlock()
		conn.Close()
	}()

	for {
		var message []byte
		if err := websocket.Message.Receive(conn, &message); err != nil {
			return
		}

		switch env := nostr.ParseMessage(message).(type) {
		case *nostr.ReqEnvelope:
			r.handleReq(c, env)
		case *nostr.CloseEnvelope:
			r.mu.Lock()
			if _, ok := c.subs[string(*env)]; ok {
				delete(c.subs, string(*env))
				r.closes++
			}
			r.mu.Unlock()
		case *nostr.EventEnvelope:
			r.handleEvent(c, env.Event)
		}
	}
}

func (r *Relay) handleReq(c *client, env *nostr.ReqEnvelope) {
	id := env.SubscriptionID

	r.mu.Lock()
	r.reqs++
	if r.CloseReason != "" {
		r.mu.Unlock()
		c.send(&nostr.ClosedEnvelope{SubscriptionID: id, Reason: nostr.NormalizeOKMessage(r.CloseReason, "blocked")})
		return
	}
	c.subs[id] = env.Filters
	stored := make([]nostr.Event, 0, len(r.events))
	for _, evt := range r.events {
		if env.Filters.Match(&evt) {
			stored = append(stored, evt)
		}
	}
	r.mu.Unlock()

	for _, evt := range stored {
		c.send(&nostr.EventEnvelope{SubscriptionID: &id, Event: evt})
	}
	eose := nostr.EOSEEnvelope(id)
	c.send(&eose)
}

func (r *Relay) handleEvent(c *client, evt nostr.Event) {
	if ok, _ := evt.CheckSignature(); !ok {
		c.send(&nostr.OKEnvelope{EventID: evt.ID, OK: false, Reason: "invalid: bad signature"})
		return
	}

	if r.AcceptEvent != nil {
		if ok, reason := r.AcceptEvent(evt); !ok {
			c.send(&nostr.OKEnvelope{EventID: evt.ID, OK: false, Reason: nostr.NormalizeOKMessage(reason, "blocked")})
			return
		}
	}

	r.mu.Lock()
	r.received = append(r.received, evt)
	r.mu.Unlock()

	c.send(&nostr.OKEnvelope{EventID: evt.ID, OK: true})
	r.Broadcast(evt)
}
