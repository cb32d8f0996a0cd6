package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"tradestein/internal/models"
)

// Property: every subscriber of a user receives every event published for
// that user while consumers keep up.
func TestProperty_AllSubscribersReceiveEvents(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("fast subscribers receive all events", prop.ForAll(
		func(subscriberCount int, eventCount int) bool {
			hub := NewHubWithConfig(HubConfig{
				BufferSize:           1000,
				SubscriberBufferSize: 100,
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			hub.Start(ctx)
			defer hub.Stop()

			var wg sync.WaitGroup
			received := make([]int64, subscriberCount)
			for i := 0; i < subscriberCount; i++ {
				ch, _ := hub.Subscribe("user-1")
				wg.Add(1)
				go func(idx int, ch <-chan models.Event) {
					defer wg.Done()
					timeout := time.After(5 * time.Second)
					for {
						select {
						case _, ok := <-ch:
							if !ok {
								return
							}
							if atomic.AddInt64(&received[idx], 1) >= int64(eventCount) {
								return
							}
						case <-timeout:
							return
						}
					}
				}(i, ch)
			}

			for i := 0; i < eventCount; i++ {
				hub.Notify("user-1", models.EventTradesChanged, "")
			}
			wg.Wait()

			for i := range received {
				if atomic.LoadInt64(&received[i]) != int64(eventCount) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 5),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

// Property: events are only delivered to subscribers of the owning user.
func TestProperty_EventsStayWithOwner(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	users := []string{"alice", "bob", "carol"}

	properties.Property("subscribers never see another user's events", prop.ForAll(
		func(subscribedIdx int, publishedIdx int) bool {
			subscribed := users[subscribedIdx]
			published := users[publishedIdx]

			hub := NewHub()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			hub.Start(ctx)
			defer hub.Stop()

			ch, unsubscribe := hub.Subscribe(subscribed)
			defer unsubscribe()

			hub.Notify(published, models.EventGoalsChanged, "g1")

			select {
			case ev := <-ch:
				return ev.UserID == subscribed && subscribed == published
			case <-time.After(200 * time.Millisecond):
				return subscribed != published
			}
		},
		gen.IntRange(0, len(users)-1),
		gen.IntRange(0, len(users)-1),
	))

	properties.TestingRun(t)
}

func TestSlowSubscriberIsEvicted(t *testing.T) {
	hub := NewHubWithConfig(HubConfig{
		BufferSize:                100,
		SubscriberBufferSize:      2,
		SlowConsumerDropThreshold: 3,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)
	defer hub.Stop()

	fast, _ := hub.Subscribe("user-1")
	slow, _ := hub.Subscribe("user-1")

	var fastCount int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range fast {
			if atomic.AddInt64(&fastCount, 1) == 10 {
				return
			}
		}
	}()

	for i := 0; i < 10; i++ {
		hub.Notify("user-1", models.EventTradesChanged, "")
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("fast subscriber received %d events", atomic.LoadInt64(&fastCount))
	}

	// The slow channel drains its buffered events and is then closed.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-slow:
			if !ok {
				if got := hub.SubscriberCount("user-1"); got != 1 {
					t.Errorf("expected only the fast subscriber to remain, got %d", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("slow subscriber was not evicted")
		}
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)

	ch, unsubscribe := hub.Subscribe("user-1")
	if hub.SubscriberCount("user-1") != 1 {
		t.Fatal("expected one subscriber")
	}

	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}
	if hub.SubscriberCount("user-1") != 0 {
		t.Error("expected no subscribers after cancel")
	}

	hub.Stop()
	if hub.IsStarted() {
		t.Error("expected hub to be stopped")
	}
}
