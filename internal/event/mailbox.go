package event

import "sync"

// Mailbox は上限付きのキュー。満杯なら一番古いものを捨てる。
type Mailbox struct {
	mu      sync.Mutex
	ch      chan Event
	closed  bool
	dropped uint64
}

func NewMailbox(size int) *Mailbox {
	if size < 1 {
		size = 1
	}
	return &Mailbox{ch: make(chan Event, size)}
}

// Put はブロックしない。古いものを捨てたら true。
func (m *Mailbox) Put(e Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	select {
	case m.ch <- e:
		return false
	default:
	}

	dropped := false
	select {
	case <-m.ch:
		dropped = true
		m.dropped++
	default:
	}

	select {
	case m.ch <- e:
	default:
		// 受信側と競合しても満杯のままなら今回の分を捨てる
		m.dropped++
		return true
	}
	return dropped
}

// C は受信用。Close 後に閉じる。
func (m *Mailbox) C() <-chan Event { return m.ch }

func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.ch)
}

func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
