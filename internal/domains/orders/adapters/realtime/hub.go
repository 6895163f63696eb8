package realtime

import (
	"context"
	"sync"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
)

// Topic is the set of records a watcher depends on: one collection of one owner.
type Topic struct {
	Collection domain.Collection
	OwnerID    string
}

// Fetch reads the current records. The returned deliver func hands them to
// the subscriber and only runs while the watch is still attached.
type Fetch func(ctx context.Context) (deliver func(), err error)

// Hub fans change signals out to watchers. Each watcher re-reads its topic in
// its own goroutine; signals that arrive while a read is running collapse
// into a single follow-up read, so subscribers always end on the latest state.
type Hub struct {
	mu       sync.Mutex
	next     uint64
	watchers map[uint64]*watcher
}

type watcher struct {
	topic Topic
	dirty chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewHub() *Hub {
	return &Hub{watchers: map[uint64]*watcher{}}
}

// Watch delivers the topic once right away and again after every Publish on
// it. A failed fetch ends the watch and is reported to onError. The watch
// also ends when ctx is cancelled. The returned func detaches the watcher
// without waiting for an in-flight fetch.
func (h *Hub) Watch(ctx context.Context, topic Topic, fetch Fetch, onError func(error)) func() {
	w := &watcher{
		topic: topic,
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	w.dirty <- struct{}{}

	h.mu.Lock()
	h.next++
	id := h.next
	h.watchers[id] = w
	h.mu.Unlock()

	cancel := func() {
		w.once.Do(func() {
			close(w.done)
			h.mu.Lock()
			delete(h.watchers, id)
			h.mu.Unlock()
		})
	}

	go func() {
		defer cancel()
		for {
			select {
			case <-w.done:
				return
			case <-ctx.Done():
				return
			case <-w.dirty:
			}
			deliver, err := fetch(ctx)
			if w.closed() {
				return
			}
			if err != nil {
				if ctx.Err() == nil && onError != nil {
					onError(err)
				}
				return
			}
			if deliver != nil {
				deliver()
			}
		}
	}()
	return cancel
}

// Publish marks every watcher of the topic dirty.
func (h *Hub) Publish(topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		if w.topic != topic {
			continue
		}
		select {
		case w.dirty <- struct{}{}:
		default:
		}
	}
}

// PublishAll marks every watcher dirty. Used after a change feed reconnects
// and individual signals may have been missed.
func (h *Hub) PublishAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		select {
		case w.dirty <- struct{}{}:
		default:
		}
	}
}

// Watchers counts attached watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

func (w *watcher) closed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}
