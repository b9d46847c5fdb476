// Package events provides the live-reload event broadcaster.
package events

import (
	"encoding/json"
	"sync"

	"github.com/fruitsalade/docbrowser/internal/metrics"
	"github.com/fruitsalade/docbrowser/pkg/protocol"
)

const (
	EventReload      = protocol.LiveReload
	EventRefreshTree = protocol.LiveRefreshTree
)

// subscriberBuffer is the per-client queue depth before events are dropped.
const subscriberBuffer = 64

// Event is one live-reload notification. Path is set only for reload events
// and is relative to the projects root.
type Event struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// Reload returns a reload event for a root-relative document path.
func Reload(path string) Event {
	return Event{Type: EventReload, Path: path}
}

// RefreshTree returns a refresh-tree event.
func RefreshTree() Event {
	return Event{Type: EventRefreshTree}
}

// Message converts the event into its wire form.
func (e Event) Message() protocol.LiveMessage {
	return protocol.LiveMessage{Type: e.Type, Path: e.Path}
}

// Broadcaster manages live-reload subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetLiveConnectionsActive(int64(n))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Calling it more
// than once for the same channel is a no-op.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetLiveConnectionsActive(int64(n))
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
	metrics.RecordLiveEvent(event.Type)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close unsubscribes everyone, ending all live-reload connections.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
	metrics.SetLiveConnectionsActive(0)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e.Message())
}
