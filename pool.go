package nostr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

const (
	seenAlreadyDropTick = time.Minute
)

type SimplePool struct {
	Relays  *xsync.MapOf[string, *Relay]
	Context context.Context

	cancel       context.CancelCauseFunc
	relayOptions []RelayOption
}

type RelayEvent struct {
	*Event
	Relay *Relay
}

func (ie RelayEvent) String() string { return fmt.Sprintf("[%s] >> %s", ie.Relay.URL, ie.Event) }

type PoolOption interface {
	ApplyPoolOption(*SimplePool)
}

// WithRelayOptions sets options that will be used on every relay instance created by this pool.
func WithRelayOptions(ropts ...RelayOption) withRelayOptionsOpt {
	return ropts
}

type withRelayOptionsOpt []RelayOption

func (h withRelayOptionsOpt) ApplyPoolOption(pool *SimplePool) {
	pool.relayOptions = h
}

func NewSimplePool(ctx context.Context, opts ...PoolOption) *SimplePool {
	ctx, cancel := context.WithCancelCause(ctx)

	pool := &SimplePool{
		Relays: xsync.NewMapOf[string, *Relay](),

		Context: ctx,
		cancel:  cancel,
	}

	for _, opt := range opts {
		opt.ApplyPoolOption(pool)
	}

	return pool
}

// EnsureRelay returns a connected relay for url, dialing it if needed.
func (pool *SimplePool) EnsureRelay(url string) (*Relay, error) {
	return pool.ensureRelay(pool.Context, url)
}

func (pool *SimplePool) ensureRelay(ctx context.Context, url string) (*Relay, error) {
	nm := NormalizeURL(url)
	if nm == "" {
		return nil, fmt.Errorf("invalid relay url '%s'", url)
	}

	defer namedLock(nm)()

	relay, ok := pool.Relays.Load(nm)
	if ok && relay.IsConnected() {
		// already connected, unlock and return
		return relay, nil
	}

	ctx, cancel := context.WithTimeoutCause(ctx, 15*time.Second, errors.New("connecting to the relay took too long"))
	defer cancel()

	// we use the pool context here so when the pool dies everything dies
	relay = NewRelay(pool.Context, nm, pool.relayOptions...)
	if err := relay.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	pool.Relays.Store(nm, relay)
	return relay, nil
}

// SubscribeMany opens a subscription with the given filters to multiple relays
// the subscriptions only end when the context is canceled
func (pool *SimplePool) SubscribeMany(ctx context.Context, urls []string, filter Filter, opts ...SubscriptionOption) chan RelayEvent {
	return pool.subscribeMany(ctx, urls, filter, nil, opts...)
}

// SubscribeManyNotifyEOSE is like SubscribeMany, but eoseChan is closed once every relay has sent
// its first EOSE or failed its first attempt.
func (pool *SimplePool) SubscribeManyNotifyEOSE(
	ctx context.Context,
	urls []string,
	filter Filter,
	eoseChan chan struct{},
	opts ...SubscriptionOption,
) chan RelayEvent {
	return pool.subscribeMany(ctx, urls, filter, eoseChan, opts...)
}

func (pool *SimplePool) subscribeMany(
	ctx context.Context,
	urls []string,
	filter Filter,
	eoseChan chan struct{},
	opts ...SubscriptionOption,
) chan RelayEvent {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan RelayEvent)
	seenAlready := xsync.NewMapOf[string, Timestamp]()

	urls = NormalizeRelayURLs(urls)
	if len(urls) == 0 {
		cancel()
		close(events)
		if eoseChan != nil {
			close(eoseChan)
		}
		return events
	}

	var eosePending atomic.Int32
	eosePending.Store(int32(len(urls)))
	eoseDone := func() {
		if eosePending.Add(-1) == 0 && eoseChan != nil {
			close(eoseChan)
		}
	}

	go func() {
		ticker := time.NewTicker(seenAlreadyDropTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				old := Timestamp(time.Now().Add(-seenAlreadyDropTick).Unix())
				seenAlready.Range(func(id string, value Timestamp) bool {
					if value < old {
						seenAlready.Delete(id)
					}
					return true
				})
			case <-ctx.Done():
				return
			}
		}
	}()

	var pending atomic.Int32
	pending.Store(int32(len(urls)))
	for _, url := range urls {
		go func(nm string) {
			defer func() {
				if pending.Add(-1) == 0 {
					close(events)
					cancel()
				}
			}()

			var eoseOnce sync.Once
			defer eoseOnce.Do(eoseDone)

			filter := filter.Clone()
			interval := 3 * time.Second
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				var sub *Subscription

				relay, err := pool.ensureRelay(ctx, nm)
				if err != nil {
					debugLogf("{%s} subscription dial failed: %s\n", nm, err)
					eoseOnce.Do(eoseDone)
					goto reconnect
				}

				sub, err = relay.Subscribe(ctx, Filters{filter}, opts...)
				if err != nil {
					debugLogf("{%s} subscription failed: %s\n", nm, err)
					eoseOnce.Do(eoseDone)
					goto reconnect
				}

				// reset interval when we get a good subscription
				interval = 3 * time.Second

				for {
					select {
					case evt, more := <-sub.Events:
						if !more {
							// this means the connection was closed for weird reasons, like the server shut down
							// so we will update the filters here to include only events seem from now on
							// and try to reconnect until we succeed
							now := Now()
							filter.Since = &now
							goto reconnect
						}
						if _, seen := seenAlready.LoadOrStore(evt.ID, evt.CreatedAt); seen {
							continue
						}
						select {
						case events <- RelayEvent{Event: evt, Relay: relay}:
						case <-ctx.Done():
							return
						}
					case <-sub.EndOfStoredEvents:
						eoseOnce.Do(eoseDone)
					case reason := <-sub.ClosedReason:
						InfoLogger.Printf("CLOSED from %s: '%s'\n", nm, reason)
						return
					case <-ctx.Done():
						return
					}
				}

			reconnect:
				// we will go back to the beginning of the loop and try to connect again and again
				// until the context is canceled
				select {
				case <-time.After(interval):
				case <-ctx.Done():
					return
				}
				interval = interval * 17 / 10 // the next time we try we will wait longer
			}
		}(url)
	}

	return events
}

// SubManyEose is like SubscribeMany, but it stops subscriptions and closes the channel when gets a EOSE
func (pool *SimplePool) SubManyEose(ctx context.Context, urls []string, filter Filter, opts ...SubscriptionOption) chan RelayEvent {
	ctx, cancel := context.WithCancel(ctx)

	urls = NormalizeRelayURLs(urls)
	events := make(chan RelayEvent)
	seenAlready := xsync.NewMapOf[string, bool]()
	wg := sync.WaitGroup{}
	wg.Add(len(urls))

	go func() {
		// this will happen when all subscriptions get an eose (or when they die)
		wg.Wait()
		cancel()
		close(events)
	}()

	for _, url := range urls {
		go func(nm string) {
			defer wg.Done()

			relay, err := pool.ensureRelay(ctx, nm)
			if err != nil {
				InfoLogger.Printf("{%s} dropped from query: %s\n", nm, err)
				return
			}

			sub, err := relay.Subscribe(ctx, Filters{filter}, opts...)
			if err != nil {
				debugLogf("error subscribing to %s with %v: %s", relay, filter, err)
				return
			}
			defer sub.Unsub()

			for {
				select {
				case <-ctx.Done():
					return
				case <-sub.EndOfStoredEvents:
					return
				case reason := <-sub.ClosedReason:
					InfoLogger.Printf("CLOSED from %s: '%s'\n", nm, reason)
					return
				case evt, more := <-sub.Events:
					if !more {
						return
					}

					if _, seen := seenAlready.LoadOrStore(evt.ID, true); seen {
						continue
					}

					select {
					case events <- RelayEvent{Event: evt, Relay: relay}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(url)
	}

	return events
}

// QueryOption modifies how QueryFirst runs.
type QueryOption func(*queryOptions)

type queryOptions struct {
	timeout       time.Duration
	accept        func(RelayEvent) bool
	keepAfterEOSE bool
	label         string
}

// WithTimeout bounds the whole query, after which ErrRelayTimeout is returned.
func WithTimeout(d time.Duration) QueryOption {
	return func(qo *queryOptions) { qo.timeout = d }
}

// WithAccept sets a predicate that events must pass to win the race. Events that
// don't pass are dropped and the query goes on.
func WithAccept(accept func(RelayEvent) bool) QueryOption {
	return func(qo *queryOptions) { qo.accept = accept }
}

// KeepAfterEOSE keeps listening for live events after a relay sends EOSE.
func KeepAfterEOSE() QueryOption {
	return func(qo *queryOptions) { qo.keepAfterEOSE = true }
}

// WithQueryLabel sets the label used in the subscription ids.
func WithQueryLabel(label string) QueryOption {
	return func(qo *queryOptions) { qo.label = label }
}

// QueryFirst opens one subscription per relay and returns the first event accepted.
// All subscriptions are closed before it returns, whatever the outcome.
//
// Relays that can't be reached are logged and ignored. If none could be used the error
// is ErrNoRelaysAvailable. If all of them sent EOSE without a match, it returns nil, nil.
func (pool *SimplePool) QueryFirst(ctx context.Context, urls []string, filter Filter, opts ...QueryOption) (*RelayEvent, error) {
	qo := queryOptions{}
	for _, opt := range opts {
		opt(&qo)
	}

	urls = NormalizeRelayURLs(urls)
	if len(urls) == 0 {
		return nil, ErrNoRelaysAvailable
	}

	if qo.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, qo.timeout, ErrRelayTimeout)
		defer cancel()
	}

	raceCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		winner    *RelayEvent
		once      sync.Once
		failed    atomic.Int32
		exhausted atomic.Int32
	)

	g, gctx := errgroup.WithContext(raceCtx)
	for _, url := range urls {
		g.Go(func() error {
			relay, err := pool.ensureRelay(gctx, url)
			if err != nil {
				if gctx.Err() == nil {
					InfoLogger.Printf("{%s} dropped from query: %s\n", url, err)
					failed.Add(1)
				}
				return nil
			}

			sub, err := relay.Subscribe(gctx, Filters{filter}, WithLabel(qo.label))
			if err != nil {
				if gctx.Err() == nil {
					InfoLogger.Printf("{%s} dropped from query: %s\n", url, err)
					failed.Add(1)
				}
				return nil
			}
			defer sub.Unsub()

			for {
				select {
				case evt, more := <-sub.Events:
					if !more {
						if gctx.Err() == nil {
							InfoLogger.Printf("{%s} subscription ended: %s\n", url, context.Cause(sub.Context))
							failed.Add(1)
						}
						return nil
					}

					ie := RelayEvent{Event: evt, Relay: relay}
					if qo.accept != nil && !qo.accept(ie) {
						continue
					}

					once.Do(func() {
						winner = &ie
						stop()
					})
					return nil
				case <-sub.EndOfStoredEvents:
					if !qo.keepAfterEOSE {
						exhausted.Add(1)
						return nil
					}
				case reason := <-sub.ClosedReason:
					InfoLogger.Printf("CLOSED from %s: '%s'\n", url, reason)
					failed.Add(1)
					return nil
				case <-gctx.Done():
					return nil
				}
			}
		})
	}
	g.Wait()

	if winner != nil {
		return winner, nil
	}
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}
	if exhausted.Load() > 0 {
		return nil, nil
	}
	return nil, ErrNoRelaysAvailable
}

// QuerySingle returns the first event returned by the first relay, cancels everything else.
// It is best-effort: failures are logged and nil is returned.
func (pool *SimplePool) QuerySingle(ctx context.Context, urls []string, filter Filter) *RelayEvent {
	opts := []QueryOption{WithQueryLabel("single")}
	if _, ok := ctx.Deadline(); !ok {
		opts = append(opts, WithTimeout(5*time.Second))
	}

	ie, err := pool.QueryFirst(ctx, urls, filter, opts...)
	if err != nil {
		debugLogf("query %s failed: %s\n", filter, err)
		return nil
	}
	return ie
}

// OpenSubscriptions counts the subscriptions currently open across all relays of the pool.
func (pool *SimplePool) OpenSubscriptions() int {
	total := 0
	pool.Relays.Range(func(_ string, relay *Relay) bool {
		total += relay.OpenSubscriptions()
		return true
	})
	return total
}

// Close closes every relay connection of the pool.
func (pool *SimplePool) Close(reason string) {
	pool.cancel(fmt.Errorf("pool closed with reason: '%s'", reason))
	pool.Relays.Range(func(_ string, relay *Relay) bool {
		relay.Close()
		return true
	})
}
