package event

import (
	"sync"
	"time"

	"cafe/internal/metrics"

	"go.uber.org/zap"
)

// Bus はプロセス内のpub/sub。購読者ごとに Mailbox を持ち、
// Publish は誰にもブロックされない。永続化はしない。
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	size    int
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// DI
func NewBus(mailboxSize int, log *zap.Logger, m *metrics.Metrics) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		subs:    make(map[*Subscription]struct{}),
		size:    mailboxSize,
		log:     log.Named("eventbus"),
		metrics: m,
		now:     time.Now,
	}
}

type Subscription struct {
	name string
	box  *Mailbox
	bus  *Bus
	once sync.Once
}

func (s *Subscription) C() <-chan Event { return s.box.C() }

func (s *Subscription) Name() string { return s.name }

// Close で購読をやめ、チャネルを閉じる
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		s.box.Close()
	})
}

func (b *Bus) Subscribe(name string) *Subscription {
	s := &Subscription{name: name, box: NewMailbox(b.size), bus: b}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish は全購読者のMailboxに入れる。満杯なら古いものを捨てて警告する。
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = b.now()
	}

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if s.box.Put(e) {
			b.metrics.EventDropped(s.name)
			b.log.Warn("subscriber mailbox full, dropped oldest event",
				zap.String("subscriber", s.name),
				zap.String("kind", string(e.Kind)),
				zap.Int64("order_id", e.Order.ID),
			)
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
