// Package channel provides best-effort, at-most-once message exchange
// between the two cooperating contexts of an authorization code flow: the
// waiter that initiated the flow and the responder that received the
// redirect callback.
//
// The two sides share no memory and hold no reference to each other; they
// coordinate only through a named broadcast channel. Delivery is
// fire-and-forget: a message published while nobody is subscribed is
// dropped, and nothing is retried.
package channel

import (
	"context"
	"sync"
	"sync/atomic"
)

// Message is an opaque structured value exchanged over a channel.
type Message = any

// AckResponseReceived is the fixed acknowledgement token the waiter
// publishes once it has received the authorization response. The responder
// waits for it before taking its terminal action, so the responder context
// is never torn down before delivery is observed.
const AckResponseReceived = "response-received"

// Broker routes messages between ports opened on named channels.
type Broker struct {
	mu     sync.Mutex
	subs   map[string][]*subscription
	nextID atomic.Uint64
}

type subscription struct {
	name  string
	owner uint64
	ch    chan Message
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]*subscription)}
}

var defaultBroker = NewBroker()

// Default returns the process-wide broker shared by flows and callback
// handlers that are not wired together explicitly.
func Default() *Broker {
	return defaultBroker
}

// Open creates a port on the named channel. Messages published through a
// port are delivered to every current subscriber of the channel except
// subscriptions made through the same port, mirroring the semantics of a
// browser BroadcastChannel.
func (b *Broker) Open(name string) *Port {
	return &Port{broker: b, name: name, id: b.nextID.Add(1)}
}

// Port is one context's handle on a named channel.
type Port struct {
	broker *Broker
	name   string
	id     uint64
}

// Publish delivers msg to all current subscribers of the port's channel,
// best-effort. Subscribers that are not ready to receive are skipped; if no
// subscriber is listening the message is dropped.
func (p *Port) Publish(msg Message) {
	p.broker.mu.Lock()
	subs := make([]*subscription, 0, len(p.broker.subs[p.name]))
	for _, sub := range p.broker.subs[p.name] {
		if sub.owner != p.id {
			subs = append(subs, sub)
		}
	}
	p.broker.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- msg:
		default:
			// Subscriber already has a pending message; at-most-once
			// delivery drops the rest.
		}
	}
}

// Subscribe registers for the next message on the port's channel. It
// registers synchronously, so a message published after Subscribe returns
// is never missed even if Wait has not been called yet.
func (p *Port) Subscribe() *Subscription {
	sub := &subscription{name: p.name, owner: p.id, ch: make(chan Message, 1)}
	p.broker.mu.Lock()
	p.broker.subs[p.name] = append(p.broker.subs[p.name], sub)
	p.broker.mu.Unlock()
	return &Subscription{broker: p.broker, sub: sub}
}

// SubscribeOnce resolves with the next message published on the channel,
// then unsubscribes. The context supplies the timeout or cancellation; the
// channel itself imposes none.
func (p *Port) SubscribeOnce(ctx context.Context) (Message, error) {
	return p.Subscribe().Wait(ctx)
}

// Subscription is a pending one-shot receive on a channel.
type Subscription struct {
	broker *Broker
	sub    *subscription
	once   sync.Once
}

// Wait blocks until a message arrives or the context ends, then
// unsubscribes. On context expiry it returns the context error.
func (s *Subscription) Wait(ctx context.Context) (Message, error) {
	defer s.Cancel()
	select {
	case msg := <-s.sub.ch:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel removes the subscription. It is safe to call more than once and
// after Wait has returned.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		defer s.broker.mu.Unlock()
		subs := s.broker.subs[s.sub.name]
		for i, sub := range subs {
			if sub == s.sub {
				s.broker.subs[s.sub.name] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(s.broker.subs[s.sub.name]) == 0 {
			delete(s.broker.subs, s.sub.name)
		}
	})
}
