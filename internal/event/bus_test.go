package event

import (
	"testing"
	"time"

	"cafe/internal/domain/view"
	"cafe/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ev(kind Kind, id int64) Event {
	return Event{Kind: kind, Order: view.Order{ID: id}}
}

func TestBus_FIFOPerSubscriber(t *testing.T) {
	bus := NewBus(8, zap.NewNop(), nil)
	a := bus.Subscribe("a")
	b := bus.Subscribe("b")
	defer a.Close()
	defer b.Close()

	bus.Publish(ev(OrderCreated, 1))
	bus.Publish(ev(OrderPaid, 1))
	bus.Publish(ev(OrderUpdated, 1))

	for _, s := range []*Subscription{a, b} {
		assert.Equal(t, OrderCreated, (<-s.C()).Kind)
		assert.Equal(t, OrderPaid, (<-s.C()).Kind)
		got := <-s.C()
		assert.Equal(t, OrderUpdated, got.Kind)
		assert.False(t, got.At.IsZero())
	}
}

func TestBus_SlowSubscriberDropsOldest(t *testing.T) {
	m := metrics.New()
	bus := NewBus(2, zap.NewNop(), m)
	slow := bus.Subscribe("slow")
	fast := bus.Subscribe("fast")
	defer slow.Close()
	defer fast.Close()

	done := make(chan []int64)
	go func() {
		var ids []int64
		for e := range fast.C() {
			ids = append(ids, e.Order.ID)
			if len(ids) == 5 {
				break
			}
		}
		done <- ids
	}()

	for i := int64(1); i <= 5; i++ {
		bus.Publish(ev(OrderUpdated, i))
		// fast が追いつくのを待つ
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case ids := <-done:
		assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)
	case <-time.After(time.Second):
		t.Fatal("fast subscriber was blocked")
	}

	// slow は最新2件だけ残る
	assert.Equal(t, int64(4), (<-slow.C()).Order.ID)
	assert.Equal(t, int64(5), (<-slow.C()).Order.ID)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsDropped.WithLabelValues("slow")))
}

func TestBus_CloseUnsubscribes(t *testing.T) {
	bus := NewBus(4, zap.NewNop(), nil)
	s := bus.Subscribe("x")
	require.Equal(t, 1, bus.SubscriberCount())

	s.Close()
	s.Close()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, ok := <-s.C()
	assert.False(t, ok)

	assert.NotPanics(t, func() { bus.Publish(ev(OrderPaid, 1)) })
}

func TestMailbox_PutAfterClose(t *testing.T) {
	m := NewMailbox(1)
	m.Close()
	assert.False(t, m.Put(ev(OrderPaid, 1)))
}
