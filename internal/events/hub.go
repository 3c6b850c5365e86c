package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// backlog keeps the most recent events for clients that reconnect.
type backlog struct {
	buf   []Event
	start int
	size  int
}

func (b *backlog) push(ev Event) {
	if b.size < len(b.buf) {
		b.buf[(b.start+b.size)%len(b.buf)] = ev
		b.size++
		return
	}
	b.buf[b.start] = ev
	b.start = (b.start + 1) % len(b.buf)
}

func (b *backlog) since(lastID int64, f Filter) []Event {
	out := make([]Event, 0, b.size)
	for i := range b.size {
		ev := b.buf[(b.start+i)%len(b.buf)]
		if ev.ID > lastID && f.Match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Hub fans desk activity out to the event stream, the monitor and tests.
type Hub struct {
	nextID  atomic.Int64
	dropped atomic.Int64

	mu      sync.Mutex
	recent  backlog
	subs    map[int]subscriber
	nextSub int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	return &Hub{
		recent: backlog{buf: make([]Event, capacity)},
		subs:   make(map[int]subscriber),
	}
}

// Publish records an event and offers it to every matching subscriber. A nil
// hub is a no-op so components can run without one.
func (h *Hub) Publish(eventType string, data any) Event {
	if h == nil {
		return Event{}
	}

	payload := json.RawMessage(`{}`)
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}
	ev := Event{
		ID:   h.nextID.Add(1),
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent.push(ev)
	for _, s := range h.subs {
		if !s.filter.Match(ev) {
			continue
		}
		// A full subscriber misses the event; dispatch never waits on a reader.
		select {
		case s.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
	return ev
}

// Subscribe returns a channel of every event published from now on.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	return h.SubscribeMatching(Filter{})
}

// SubscribeMatching is Subscribe restricted to events f matches. The returned
// cancel func is safe to call more than once.
func (h *Hub) SubscribeMatching(f Filter) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSub
	h.nextSub++
	ch := make(chan Event, 128)
	h.subs[id] = subscriber{ch: ch, filter: f}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// SnapshotSince returns buffered events with ID > lastID, oldest first.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	return h.Replay(lastID, Filter{})
}

// Replay is SnapshotSince restricted to events f matches.
func (h *Hub) Replay(lastID int64, f Filter) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recent.since(lastID, f)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (h *Hub) Dropped() int64 {
	if h == nil {
		return 0
	}
	return h.dropped.Load()
}
