// Package realtime provides the event envelope pushed to browsers and a
// lightweight in-process publish/subscribe hub that fans events out to the
// websocket writers of each search session.
//
// Design Goals:
//   - Best-effort fan-out: slow listeners drop events (never block a session).
//   - Events are addressed to a session id; Broadcast reaches every listener.
//   - No persistence or replay semantics (ephemeral stream).
package realtime

import (
	"sync"

	"github.com/rubiojr/storefront/pkg/categorize"
)

// Event types sent to the browser.
const (
	EventInit     = "init"
	EventState    = "state"
	EventResults  = "results"
	EventClear    = "clear"
	EventNotice   = "notice"
	EventNavigate = "navigate"
)

// Event is the envelope written to websocket clients. Only the fields
// relevant to Type are set.
//
// Fields:
//   - Session:    Session id the event belongs to.
//   - State:      Widget state after the change (idle, typing, ...).
//   - Query:      Settled query the results answer.
//   - Generation: Request generation the results came from.
//   - Sections:   Non-empty result categories in display order.
//   - Highlight:  Index of the highlighted item, -1 for none.
//   - Notice:     Inline, non-blocking message (e.g. unsupported selection).
//   - URL:        Destination for navigate events.
//   - Data:       Free-form payload (init carries the public config).
type Event struct {
	Type       string               `json:"type"`
	Session    string               `json:"session,omitempty"`
	State      string               `json:"state,omitempty"`
	Query      string               `json:"query,omitempty"`
	Generation uint64               `json:"generation,omitempty"`
	Sections   []categorize.Section `json:"sections,omitempty"`
	Highlight  int                  `json:"highlight"`
	Notice     string               `json:"notice,omitempty"`
	URL        string               `json:"url,omitempty"`
	Data       any                  `json:"data,omitempty"`
}

type listener struct {
	session string
	ch      chan Event
}

// Hub is an in-memory fan-out dispatcher. Each registered listener receives
// events via its own buffered channel. If a listener's channel buffer is full
// when an event arrives, that event is dropped for that listener only.
//
// The hub is concurrency-safe.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]listener
	nextID    uint64
	bufSize   int
}

// NewHub constructs a new hub with per-listener buffer size.
// If bufSize <= 0, a default of 32 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]listener),
		bufSize:   bufSize,
	}
}

// Register adds a listener for session and returns (listenerID, receiveOnlyChannel).
// Callers must later Unregister(id) to release resources.
func (h *Hub) Register(session string) (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = listener{session: session, ch: ch}
	return id, ch
}

// Unregister removes the listener with the given id and closes its channel.
// It is safe to call multiple times; unknown ids are ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(l.ch)
	}
}

// Publish delivers event to the listeners of event.Session (best effort).
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, l := range h.listeners {
		if l.session != event.Session {
			continue
		}
		select {
		case l.ch <- event:
		default:
			// Drop for slow listener.
		}
	}
}

// Broadcast delivers event to every listener, stamping each copy with the
// listener's session.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, l := range h.listeners {
		e := event
		e.Session = l.session
		select {
		case l.ch <- e:
		default:
		}
	}
}

// Size returns the current number of active listeners (approximate).
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Emitter returns a function publishing events for session. Sessions use it
// so they never need to know about the hub.
func (h *Hub) Emitter(session string) func(Event) {
	return func(e Event) {
		e.Session = session
		h.Publish(e)
	}
}
