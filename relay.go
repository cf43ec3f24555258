package nostr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type Relay struct {
	closeMutex sync.Mutex

	URL           string
	requestHeader http.Header // e.g. for origin header

	Connection    *Connection
	Subscriptions *xsync.MapOf[int64, *Subscription]

	ConnectionError         error
	connectionContext       context.Context // will be canceled when the connection closes
	connectionContextCancel context.CancelCauseFunc
	connected               atomic.Bool

	noticeHandler func(string) // NIP-01 NOTICEs
	okCallbacks   *xsync.MapOf[string, func(bool, string)]
	writeQueue    chan writeRequest

	// custom things that aren't often used
	//
	AssumeValid bool // this will skip verifying signatures for events received from this relay

	subscriptionIDCounter atomic.Int64
}

type writeRequest struct {
	msg    []byte
	answer chan error
}

// NewRelay returns a new relay. The connection isn't opened until Connect is called.
// ctx bounds the whole life of the relay: when it is canceled the connection is closed.
func NewRelay(ctx context.Context, url string, opts ...RelayOption) *Relay {
	ctx, cancel := context.WithCancelCause(ctx)
	r := &Relay{
		URL:                     NormalizeURL(url),
		connectionContext:       ctx,
		connectionContextCancel: cancel,
		Subscriptions:           xsync.NewMapOf[int64, *Subscription](),
		okCallbacks:             xsync.NewMapOf[string, func(bool, string)](),
		writeQueue:              make(chan writeRequest),
		requestHeader:           nil,
	}

	for _, opt := range opts {
		opt.ApplyRelayOption(r)
	}

	return r
}

// RelayConnect returns a relay object connected to url.
// Once successfully connected, cancelling ctx has no effect.
// To close the connection, call r.Close().
func RelayConnect(ctx context.Context, url string, opts ...RelayOption) (*Relay, error) {
	r := NewRelay(context.Background(), url, opts...)
	err := r.Connect(ctx)
	return r, err
}

// RelayOption is the type of the argument passed when instantiating relay connections.
type RelayOption interface {
	ApplyRelayOption(*Relay)
}

var (
	_ RelayOption = (WithNoticeHandler)(nil)
	_ RelayOption = (WithRequestHeader)(nil)
)

// WithNoticeHandler just takes notices and is expected to do something with them.
// when not given, defaults to logging the notices.
type WithNoticeHandler func(notice string)

func (nh WithNoticeHandler) ApplyRelayOption(r *Relay) {
	r.noticeHandler = nh
}

// WithRequestHeader sets the HTTP request header of the websocket preflight request.
type WithRequestHeader http.Header

func (ch WithRequestHeader) ApplyRelayOption(r *Relay) {
	r.requestHeader = http.Header(ch)
}

// String just returns the relay URL.
func (r *Relay) String() string {
	return r.URL
}

// Context retrieves the context that is associated with this relay connection.
// It will be closed when the relay is disconnected.
func (r *Relay) Context() context.Context { return r.connectionContext }

// IsConnected returns true if the connection to this relay seems to be active.
func (r *Relay) IsConnected() bool { return r.connected.Load() && r.connectionContext.Err() == nil }

// Connect tries to establish a websocket connection to r.URL.
// If the context expires before the connection is complete, an error is returned.
// Once successfully connected, context expiration has no effect: call r.Close
// to close the connection.
//
// The ctx used in Connect is only used for the dial, the underlying connection
// is bound to the context given to NewRelay.
func (r *Relay) Connect(ctx context.Context) error {
	if r.connectionContext == nil || r.Subscriptions == nil {
		return fmt.Errorf("relay must be initialized with a call to NewRelay()")
	}

	if r.URL == "" {
		return fmt.Errorf("invalid relay URL '%s'", r.URL)
	}

	if _, ok := ctx.Deadline(); !ok {
		// if no timeout is set, force it to 7 seconds
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, 7*time.Second, errors.New("connection took too long"))
		defer cancel()
	}

	conn, err := NewConnection(ctx, r.URL, r.requestHeader)
	if err != nil {
		err = fmt.Errorf("error opening websocket to '%s': %w", r.URL, err)
		r.ConnectionError = err
		r.connectionContextCancel(err)
		return err
	}
	r.Connection = conn
	r.connected.Store(true)

	go r.writeLoop(conn)
	go r.readLoop(conn)

	return nil
}

func (r *Relay) writeLoop(conn *Connection) {
	// ping every 29 seconds
	ticker := time.NewTicker(29 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(r.connectionContext, 10*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err != nil && r.connectionContext.Err() == nil {
				InfoLogger.Printf("{%s} error writing ping: %v; closing websocket", r.URL, err)
				r.close(fmt.Errorf("ping failed: %w", err))
				return
			}
		case wr := <-r.writeQueue:
			debugLogf("{%s} sending %v\n", r.URL, wr.msg)
			wr.answer <- conn.WriteMessage(r.connectionContext, wr.msg)
		case <-r.connectionContext.Done():
			return
		}
	}
}

func (r *Relay) readLoop(conn *Connection) {
	buf := new(bytes.Buffer)
	for {
		buf.Reset()
		if err := conn.ReadMessage(r.connectionContext, buf); err != nil {
			r.close(err)
			return
		}

		message := buf.Bytes()
		debugLogf("{%s} received %v\n", r.URL, message)

		envelope := ParseMessage(message)
		if envelope == nil {
			continue
		}

		switch env := envelope.(type) {
		case *NoticeEnvelope:
			// see WithNoticeHandler
			if r.noticeHandler != nil {
				r.noticeHandler(string(*env))
			} else {
				InfoLogger.Printf("NOTICE from %s: '%s'\n", r.URL, string(*env))
			}
		case *EventEnvelope:
			if env.SubscriptionID == nil {
				continue
			}
			sub, ok := r.Subscriptions.Load(subIdToSerial(*env.SubscriptionID))
			if !ok {
				debugLogf("{%s} no subscription with id '%s'\n", r.URL, *env.SubscriptionID)
				continue
			}

			// check if the event matches the desired filter, ignore otherwise
			if !sub.Filters.Match(&env.Event) {
				InfoLogger.Printf("{%s} filter does not match: %v ~ %s\n", r.URL, sub.Filters, env.Event.ID)
				continue
			}

			// check signature, ignore invalid, except from trusted (AssumeValid) relays
			if !r.AssumeValid {
				if !env.Event.CheckID() {
					InfoLogger.Printf("{%s} bad id on %s\n", r.URL, env.Event.ID)
					continue
				}
				if ok, _ := env.Event.CheckSignature(); !ok {
					InfoLogger.Printf("{%s} bad signature on %s\n", r.URL, env.Event.ID)
					continue
				}
			}

			sub.dispatchEvent(&env.Event)
		case *EOSEEnvelope:
			if sub, ok := r.Subscriptions.Load(subIdToSerial(string(*env))); ok {
				sub.dispatchEose()
			}
		case *ClosedEnvelope:
			if sub, ok := r.Subscriptions.Load(subIdToSerial(env.SubscriptionID)); ok {
				sub.handleClosed(env.Reason)
			}
		case *OKEnvelope:
			if okCallback, exist := r.okCallbacks.Load(env.EventID); exist {
				okCallback(env.OK, env.Reason)
			}
		}
	}
}

// Write queues a message to be sent to the relay.
func (r *Relay) Write(msg []byte) <-chan error {
	ch := make(chan error, 1)
	select {
	case r.writeQueue <- writeRequest{msg: msg, answer: ch}:
	case <-r.connectionContext.Done():
		ch <- fmt.Errorf("connection to %s closed", r.URL)
	}
	return ch
}

// Publish sends an "EVENT" command to the relay r as in NIP-01 and waits for an OK response.
func (r *Relay) Publish(ctx context.Context, event Event) error {
	if event.ID == "" || event.Sig == "" {
		return fmt.Errorf("can't publish an unsigned event")
	}

	if _, ok := ctx.Deadline(); !ok {
		// if no timeout is set, force it to 7 seconds
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, 7*time.Second, fmt.Errorf("given up waiting for an OK"))
		defer cancel()
	}

	gotOk := make(chan error, 1)
	r.okCallbacks.Store(event.ID, func(ok bool, reason string) {
		var err error
		if !ok {
			err = fmt.Errorf("msg: %s", reason)
		}
		select {
		case gotOk <- err:
		default:
		}
	})
	defer r.okCallbacks.Delete(event.ID)

	envb, _ := EventEnvelope{Event: event}.MarshalJSON()
	if err := <-r.Write(envb); err != nil {
		return err
	}

	select {
	case err := <-gotOk:
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-r.connectionContext.Done():
		return fmt.Errorf("connection to %s closed: %w", r.URL, context.Cause(r.connectionContext))
	}
}

// Subscribe sends a "REQ" command to the relay r as in NIP-01.
// Events are returned through the channel sub.Events.
// The subscription is closed when context ctx is cancelled ("CLOSE" in NIP-01).
//
// Remember to cancel subscriptions, either by calling `.Unsub()` on them or ensuring their `context.Context` will be canceled at some point.
// Failure to do that will result in a huge number of halted goroutines being created.
func (r *Relay) Subscribe(ctx context.Context, filters Filters, opts ...SubscriptionOption) (*Subscription, error) {
	if !r.IsConnected() {
		return nil, fmt.Errorf("not connected to %s", r.URL)
	}
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}

	sub := r.PrepareSubscription(ctx, filters, opts...)
	if err := sub.Fire(); err != nil {
		return nil, fmt.Errorf("couldn't subscribe to %v at %s: %w", filters, r.URL, err)
	}

	return sub, nil
}

// PrepareSubscription creates a subscription, but doesn't fire it.
func (r *Relay) PrepareSubscription(ctx context.Context, filters Filters, opts ...SubscriptionOption) *Subscription {
	current := r.subscriptionIDCounter.Add(1)
	ctx, cancel := context.WithCancelCause(ctx)

	sub := &Subscription{
		Relay:             r,
		Context:           ctx,
		cancel:            cancel,
		counter:           current,
		Events:            make(chan *Event),
		EndOfStoredEvents: make(chan struct{}, 1),
		ClosedReason:      make(chan string, 1),
		Filters:           filters,
		unsubbed:          make(chan struct{}),
	}

	label := ""
	for _, opt := range opts {
		switch o := opt.(type) {
		case WithLabel:
			label = string(o)
		}
	}

	// subscription id computation
	sub.id = strconv.FormatInt(current, 10) + ":" + label
	r.Subscriptions.Store(current, sub)

	// start handling events, eose, unsub etc:
	go func() {
		<-sub.Context.Done()
		sub.unsub(context.Cause(sub.Context))
	}()

	return sub
}

// QuerySync subscribes and collects events until EOSE or until ctx is done.
func (r *Relay) QuerySync(ctx context.Context, filter Filter) ([]*Event, error) {
	if _, ok := ctx.Deadline(); !ok {
		// if no timeout is set, force it to 7 seconds
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, 7*time.Second, errors.New("QuerySync() took too long"))
		defer cancel()
	}

	sub, err := r.Subscribe(ctx, Filters{filter}, WithLabel("sync"))
	if err != nil {
		return nil, err
	}
	defer sub.Unsub()

	events := make([]*Event, 0, max(filter.Limit, 10))
	for {
		select {
		case evt, more := <-sub.Events:
			if !more {
				return events, nil
			}
			events = append(events, evt)
		case <-sub.EndOfStoredEvents:
			return events, nil
		case <-ctx.Done():
			return events, nil
		}
	}
}

// OpenSubscriptions returns how many subscriptions are currently open on this relay.
func (r *Relay) OpenSubscriptions() int {
	return r.Subscriptions.Size()
}

func (r *Relay) Close() error {
	return r.close(errors.New("Close() called"))
}

func (r *Relay) close(reason error) error {
	r.closeMutex.Lock()
	defer r.closeMutex.Unlock()

	r.connected.Store(false)
	if r.ConnectionError == nil {
		r.ConnectionError = reason
	}
	r.connectionContextCancel(reason)

	r.Subscriptions.Range(func(_ int64, sub *Subscription) bool {
		sub.unsub(fmt.Errorf("relay connection closed: %w", reason))
		return true
	})

	if r.Connection == nil {
		return nil
	}
	conn := r.Connection
	r.Connection = nil
	return conn.Close()
}

func subIdToSerial(subId string) int64 {
	n := strings.Index(subId, ":")
	if n < 0 {
		return -1
	}
	serialId, _ := strconv.ParseInt(subId[0:n], 10, 64)
	return serialId
}
