package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesSubscriber(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.Publish(KindLeaveUpdated, 7, "HST-001", "approved")

	select {
	case ev := <-ch:
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, KindLeaveUpdated, ev.Kind)
		assert.Equal(t, uint64(7), ev.EntityID)
		assert.Equal(t, "HST-001", ev.StudentID)
		assert.Equal(t, "approved", ev.NewStatus)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

// 受信の遅い購読者がいても Publish はブロックしない
func TestPublishDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Publish(KindComplaintUpdated, uint64(i), "HST-001", "resolved")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// バッファ分は届いている
	assert.Len(t, ch, cap(ch))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	hub.Unsubscribe(ch)

	_, ok := <-ch
	require.False(t, ok)

	// 二重解除しても落ちない
	hub.Unsubscribe(ch)
}
