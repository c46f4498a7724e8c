package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/Kunal6688/PestDetect/internal/logger"
	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/google/uuid"
)

const DefaultBuffer = 64

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(e models.Event)
}

// Subscription is one observer's bounded queue. Done is closed when the
// subscriber unsubscribes or is dropped for falling behind; Events is never
// closed, so readers select on both.
type Subscription struct {
	id     string
	events chan models.Event
	done   chan struct{}
	once   sync.Once
	reason atomic.Value // string
}

func (s *Subscription) ID() string                  { return s.id }
func (s *Subscription) Events() <-chan models.Event { return s.events }
func (s *Subscription) Done() <-chan struct{}       { return s.done }

// Reason tells why the subscription ended ("unsubscribed" or "slow_consumer").
func (s *Subscription) Reason() string {
	if v, ok := s.reason.Load().(string); ok {
		return v
	}
	return ""
}

func (s *Subscription) close(reason string) {
	s.once.Do(func() {
		s.reason.Store(reason)
		close(s.done)
	})
}

// Broadcaster fans events out to every live subscription. Publish never
// blocks: a subscriber whose queue is full is removed.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	buffer int
	log    *logger.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

func New(buffer int, log *logger.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Broadcaster{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		log:    log,
	}
}

func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{
		id:     uuid.NewString(),
		events: make(chan models.Event, b.buffer),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()
	b.log.Debugw("subscriber_added", "subscriber", s.id)
	return s
}

// Unsubscribe removes s. Calling it more than once is harmless.
func (b *Broadcaster) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s.id)
	b.mu.Unlock()
	s.close("unsubscribed")
}

// Publish delivers e to every subscriber. Deliveries happen under the lock so
// all subscribers observe the same order.
func (b *Broadcaster) Publish(e models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published.Add(1)
	for id, s := range b.subs {
		select {
		case s.events <- e:
		default:
			delete(b.subs, id)
			s.close("slow_consumer")
			b.dropped.Add(1)
			b.log.Warnw("subscriber_dropped", "subscriber", id, "reason", "slow_consumer", "seq", e.Seq)
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Stats returns published and dropped counters.
func (b *Broadcaster) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}

// Close ends every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.subs {
		delete(b.subs, id)
		s.close("unsubscribed")
	}
}

// Tee publishes each event to several publishers in order.
type Tee []Publisher

func (t Tee) Publish(e models.Event) {
	for _, p := range t {
		if p != nil {
			p.Publish(e)
		}
	}
}
