package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer a.Close()
	defer b.Close()

	ev := NewEvent(OrderCreated, map[string]any{"id": 1}, nil, "admin", time.Now())
	hub.Publish(ev)

	for _, s := range []*Subscription{a, b} {
		select {
		case got := <-s.C:
			assert.Equal(t, ev.ID, got.ID)
			assert.Equal(t, OrderCreated, got.Type)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(zap.NewNop())
	s := hub.Subscribe()
	defer s.Close()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(NewEvent(ProductStockUpdated, nil, nil, "", time.Now()))
	}
	assert.Equal(t, uint64(5), s.Dropped())
	assert.Len(t, s.C, subscriberBuffer)
}

func TestSubscriptionCloseAndShutdown(t *testing.T) {
	hub := NewHub(zap.NewNop())
	s := hub.Subscribe()
	require.Equal(t, 1, hub.Subscribers())

	s.Close()
	s.Close()
	assert.Equal(t, 0, hub.Subscribers())
	_, open := <-s.C
	assert.False(t, open)

	other := hub.Subscribe()
	hub.Shutdown()
	_, open = <-other.C
	assert.False(t, open)
	other.Close()

	late := hub.Subscribe()
	_, open = <-late.C
	assert.False(t, open)
}

func TestNewEventIDsAreOrdered(t *testing.T) {
	first := NewEvent(OrderUpdated, nil, nil, "", time.UnixMilli(1000))
	second := NewEvent(OrderUpdated, nil, nil, "", time.UnixMilli(2000))
	assert.Less(t, first.ID, second.ID)

	rec := &Recorder{}
	rec.Publish(first, second)
	assert.Equal(t, []string{OrderUpdated, OrderUpdated}, rec.Types())
}

func TestRecorderConcurrentPublish(t *testing.T) {
	rec := &Recorder{}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				rec.Publish(NewEvent(ProductStockUpdated, nil, nil, "", time.Now()))
				_ = rec.Types()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, rec.Snapshot(), 200)
	rec.Reset()
	assert.Empty(t, rec.Types())
}
