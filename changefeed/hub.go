// ABOUTME: In-process change notification fanout for local store writes
// ABOUTME: Subscribers get coalesced notifications per owner and collection
package changefeed

import (
	"context"
	"sync"

	"github.com/harperreed/leadsync/models"
)

// Feed delivers store change notifications to live queries.
type Feed interface {
	Publish(ctx context.Context, change models.Change) error
	Subscribe(owner string, kind models.Kind) (<-chan models.Change, func())
	Close() error
}

type topic struct {
	owner string
	kind  models.Kind
}

// Hub is the in-process Feed. Each subscriber channel holds at most one
// pending change; publishes into a full channel are dropped, which coalesces
// bursts into a single wake-up.
type Hub struct {
	mu     sync.Mutex
	subs   map[topic]map[int]chan models.Change
	nextID int
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[topic]map[int]chan models.Change)}
}

func (h *Hub) Publish(_ context.Context, change models.Change) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[topic{change.OwnerUserID, change.Kind}] {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

// Subscribe registers for changes to one owner's collection. The cancel
// function closes the channel and is safe to call more than once.
func (h *Hub) Subscribe(owner string, kind models.Kind) (<-chan models.Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.Change, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	t := topic{owner, kind}
	if h.subs[t] == nil {
		h.subs[t] = make(map[int]chan models.Change)
	}
	id := h.nextID
	h.nextID++
	h.subs[t][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[t][id]; ok {
				delete(h.subs[t], id)
				if len(h.subs[t]) == 0 {
					delete(h.subs, t)
				}
				close(sub)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions for a topic.
func (h *Hub) Subscribers(owner string, kind models.Kind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic{owner, kind}])
}

// Close ends every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for t, subs := range h.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.subs, t)
	}
	return nil
}
