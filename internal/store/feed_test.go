// ABOUTME: Tests for the insert-notification feed
// ABOUTME: Covers subscribe, publish fan-out, handle close, context cleanup

package store

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedRow(id, sessionID string) *MessageRow {
	return &MessageRow{
		ID:        id,
		SessionID: sessionID,
		Message:   Message{Type: MessageTypeHuman, Content: "hello from " + id},
		CreatedAt: time.Now(),
	}
}

func TestFeed_SubscriberReceivesInsert(t *testing.T) {
	f := NewFeed(nil)
	defer f.Close()

	sub := f.Subscribe(t.Context())
	f.Publish(feedRow("msg-1", "sess-1"))

	select {
	case got := <-sub.Events():
		assert.Equal(t, "msg-1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for insert notification")
	}
}

func TestFeed_AllSubscribersReceiveEveryInsert(t *testing.T) {
	f := NewFeed(nil)
	defer f.Close()

	sub1 := f.Subscribe(t.Context())
	sub2 := f.Subscribe(t.Context())

	// The feed is unfiltered: both subscribers see rows for any session
	f.Publish(feedRow("msg-2", "sess-other"))

	for i, sub := range []*Subscription{sub1, sub2} {
		select {
		case got := <-sub.Events():
			assert.Equal(t, "msg-2", got.ID, "subscriber %d got wrong row", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestFeed_CloseHandleClosesChannel(t *testing.T) {
	f := NewFeed(nil)
	defer f.Close()

	sub := f.Subscribe(t.Context())
	sub.Close()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "channel should be closed after handle close")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after handle close")
	}

	// Publishing after close should not panic
	f.Publish(feedRow("msg-after", "sess-1"))
}

func TestFeed_DoubleCloseIsSafe(t *testing.T) {
	f := NewFeed(nil)
	defer f.Close()

	sub := f.Subscribe(t.Context())
	sub.Close()
	sub.Close()
}

func TestFeed_ContextCancellationCleansUp(t *testing.T) {
	f := NewFeed(nil)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := f.Subscribe(ctx)

	cancel()

	// Give the cleanup goroutine time to run
	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "channel should be closed after context cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestFeed_CloseReleasesSubscriptionGoroutines(t *testing.T) {
	f := NewFeed(nil)
	defer f.Close()

	baseline := runtime.NumGoroutine()

	// Non-cancellable contexts must not pin a goroutine per subscription
	// for the life of the process
	for range 100 {
		f.Subscribe(context.Background()).Close()
	}

	// Cancellable contexts spawn a watcher; closing the handle must
	// release it even though the context is never cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for range 100 {
		f.Subscribe(ctx).Close()
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline+2
	}, 2*time.Second, 10*time.Millisecond, "closed subscriptions left goroutines behind")
}

func TestFeed_SlowConsumerDoesNotBlockPublisher(t *testing.T) {
	f := NewFeed(nil)
	defer f.Close()

	// Subscribe but never read (slow consumer)
	_ = f.Subscribe(t.Context())
	fast := f.Subscribe(t.Context())

	// Publish more rows than the buffer size to overflow the slow channel
	for i := 0; i < subscriberBufferSize*2; i++ {
		f.Publish(feedRow("overflow", "sess-1"))
	}

	received := 0
	for {
		select {
		case <-fast.Events():
			received++
		case <-time.After(200 * time.Millisecond):
			assert.Greater(t, received, 0, "fast consumer should receive at least some rows")
			return
		}
	}
}

func TestFeed_CloseClosesAllSubscriptions(t *testing.T) {
	f := NewFeed(nil)

	sub1 := f.Subscribe(t.Context())
	sub2 := f.Subscribe(t.Context())

	f.Close()

	for i, sub := range []*Subscription{sub1, sub2} {
		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok, "channel %d should be closed after feed close", i)
		case <-time.After(time.Second):
			t.Fatalf("channel %d not closed after feed close", i)
		}
	}
}

func TestFeed_ConcurrentPublishSubscribe(t *testing.T) {
	f := NewFeed(nil)
	defer f.Close()

	var wg sync.WaitGroup
	ctx := t.Context()

	for range 10 {
		wg.Go(func() {
			sub := f.Subscribe(ctx)
			for range 5 {
				select {
				case <-sub.Events():
				case <-time.After(500 * time.Millisecond):
					return
				}
			}
		})
	}

	for range 10 {
		wg.Go(func() {
			for range 10 {
				f.Publish(feedRow("concurrent", "sess-1"))
			}
		})
	}

	wg.Wait()
}

func TestLiveStore_InsertPublishesToSubscribers(t *testing.T) {
	path := t.TempDir() + "/live.db"
	inner, err := NewSQLiteStore(path)
	require.NoError(t, err)

	live := NewLiveStore(inner, nil)
	defer live.Close()

	sub := live.Subscribe(t.Context())

	r := feedRow("msg-live", "sess-live")
	require.NoError(t, live.InsertMessage(t.Context(), r))

	// Notification fires after a durable insert
	select {
	case got := <-sub.Events():
		assert.Equal(t, "msg-live", got.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live insert notification")
	}

	rows, err := live.ListBySession(t.Context(), "sess-live")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
