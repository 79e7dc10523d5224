package notify

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	ulid "github.com/oklog/ulid/v2"
)

const (
	KindLeaveUpdated     = "leave-updated"
	KindComplaintUpdated = "complaint-updated"
)

type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	EntityID  uint64    `json:"entity_id"`
	StudentID string    `json:"student_id"`
	NewStatus string    `json:"new_status"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub: プロセス内の fire-and-forget ファンアウト。
// 配信保証は無し。受信が遅い購読者へのイベントは捨てる。
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Publish(kind string, entityID uint64, studentID, newStatus string) {
	ev := Event{
		ID:        ulid.Make().String(),
		Kind:      kind,
		EntityID:  entityID,
		StudentID: studentID,
		NewStatus: newStatus,
		Timestamp: time.Now().UTC(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// 詰まった購読者は待たない
		}
	}
}

func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// SSEHandler: GET /events でサーバ送信イベントを流す
func (h *Hub) SSEHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ch := h.Subscribe()
		defer h.Unsubscribe(ch)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Status(http.StatusOK)

		c.Stream(func(w io.Writer) bool {
			select {
			case ev, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent(ev.Kind, ev)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
