package nostr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

type Subscription struct {
	counter int64
	id      string

	Relay   *Relay
	Filters Filters

	// the Events channel emits all EVENTs that come in a Subscription
	// will be closed when the subscription ends
	Events chan *Event
	mu     sync.Mutex

	// the EndOfStoredEvents channel gets closed when an EOSE comes for that subscription
	EndOfStoredEvents chan struct{}

	// the ClosedReason channel emits the reason when a CLOSED message is received
	ClosedReason chan string

	// Context will be .Done() when the subscription ends
	Context context.Context
	cancel  context.CancelCauseFunc

	live     atomic.Bool   // REQ was sent
	done     atomic.Bool   // Events was closed
	unsubbed chan struct{} // closed once CLOSE was sent and the relay forgot this subscription
	eosed    atomic.Bool
	closed   atomic.Bool // relay sent CLOSED

	// this keeps track of the events we've received before the EOSE that we must dispatch before
	// signaling the EOSE
	storedwg sync.WaitGroup
}

// SubscriptionOption is the type of the argument passed when instantiating relay connections.
// Some examples are WithLabel.
type SubscriptionOption interface {
	IsSubscriptionOption()
}

// WithLabel puts a label on the subscription (it is prepended to the automatic id) that is sent to relays.
type WithLabel string

func (_ WithLabel) IsSubscriptionOption() {}

var _ SubscriptionOption = (WithLabel)("")

// GetID returns the subscription ID as sent to the relay.
func (sub *Subscription) GetID() string { return sub.id }

func (sub *Subscription) dispatchEvent(evt *Event) {
	added := false
	if !sub.eosed.Load() {
		sub.storedwg.Add(1)
		added = true
	}

	go func() {
		sub.mu.Lock()
		defer sub.mu.Unlock()

		if !sub.done.Load() {
			select {
			case sub.Events <- evt:
			case <-sub.Context.Done():
			}
		}

		if added {
			sub.storedwg.Done()
		}
	}()
}

func (sub *Subscription) dispatchEose() {
	if sub.eosed.CompareAndSwap(false, true) {
		go func() {
			sub.storedwg.Wait()
			sub.EndOfStoredEvents <- struct{}{}
		}()
	}
}

func (sub *Subscription) handleClosed(reason string) {
	if sub.closed.CompareAndSwap(false, true) {
		sub.ClosedReason <- reason
	}
	sub.unsub(fmt.Errorf("CLOSED received: %s", reason))
}

// Unsub closes the subscription, sending "CLOSE" to relay as in NIP-01.
// Unsub() also closes the channel sub.Events. It returns only after the teardown is complete,
// even when another goroutine started it.
func (sub *Subscription) Unsub() {
	sub.unsub(errors.New("Unsub() called"))
}

func (sub *Subscription) unsub(err error) {
	// cancel the context (if it's not canceled already)
	sub.cancel(err)

	if !sub.done.CompareAndSwap(false, true) {
		<-sub.unsubbed
		return
	}
	defer close(sub.unsubbed)

	// only send the CLOSE if the relay hasn't already closed it on its side
	if sub.live.Swap(false) && !sub.closed.Load() {
		sub.Close()
	}

	// remove subscription from our map
	sub.Relay.Subscriptions.Delete(sub.counter)

	// do this so we don't have the possibility of closing the Events channel and then trying to send to it
	sub.mu.Lock()
	close(sub.Events)
	sub.mu.Unlock()
}

// Close just sends a CLOSE message. You probably want Unsub() instead.
func (sub *Subscription) Close() {
	if sub.Relay.IsConnected() {
		closeb, _ := CloseEnvelope(sub.id).MarshalJSON()
		<-sub.Relay.Write(closeb)
	}
}

// Fire sends the "REQ" command to the relay.
func (sub *Subscription) Fire() error {
	reqb, _ := ReqEnvelope{SubscriptionID: sub.id, Filters: sub.Filters}.MarshalJSON()

	sub.live.Store(true)
	if err := <-sub.Relay.Write(reqb); err != nil {
		err = fmt.Errorf("failed to write: %w", err)
		sub.unsub(err)
		return err
	}

	return nil
}
