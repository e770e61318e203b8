// Package sse streams item change notifications to browsers as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/itemdesk/internal/itemstore"
	"github.com/starford/itemdesk/internal/models"
)

// Event types sent on the stream.
const (
	TypeItemCreated     = "item.created"
	TypeItemUpdated     = "item.updated"
	TypeItemDeleted     = "item.deleted"
	TypeItemsReloaded   = "items.reloaded"
	TypeListInvalidated = "list.invalidated"
)

// Event is one message broadcast to every subscriber.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// itemPayload is the data of item.* events.
type itemPayload struct {
	ID   int64        `json:"id"`
	Item *models.Item `json:"item,omitempty"`
}

// Broker fans events out to SSE clients.
//
// A single loop goroutine owns the client set, the event sequence and the
// list.invalidated throttle. Public methods talk to it over channels.
type Broker struct {
	invalidateMin time.Duration
	keepAlive     time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan itemstore.Change
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithKeepAlive sets the interval of comment pings sent to idle streams.
// Zero disables them.
func WithKeepAlive(d time.Duration) BrokerOption {
	return func(b *Broker) { b.keepAlive = d }
}

// NewBroker starts a broker. list.invalidated is sent at most once per
// throttle interval (2s when throttle <= 0).
func NewBroker(throttle time.Duration, opts ...BrokerOption) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		invalidateMin: throttle,
		keepAlive:     15 * time.Second,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan itemstore.Change, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq            uint64
		lastInvalidate time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	invalidate := func(force bool) {
		now := time.Now()
		if !force && now.Sub(lastInvalidate) < b.invalidateMin {
			return
		}
		lastInvalidate = now
		broadcast(Event{Type: TypeListInvalidated, Data: map[string]string{}})
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case c := <-b.changeCh:
			switch c.Kind {
			case itemstore.ChangeCreated:
				it := c.Item
				broadcast(Event{Type: TypeItemCreated, Data: itemPayload{ID: it.ID, Item: &it}})
			case itemstore.ChangeUpdated:
				it := c.Item
				broadcast(Event{Type: TypeItemUpdated, Data: itemPayload{ID: it.ID, Item: &it}})
			case itemstore.ChangeDeleted:
				broadcast(Event{Type: TypeItemDeleted, Data: itemPayload{ID: c.Item.ID}})
			case itemstore.ChangeReloaded:
				broadcast(Event{Type: TypeItemsReloaded, Data: map[string]string{}})
				// A reload replaces everything; always tell list views.
				invalidate(true)
				continue
			default:
				continue
			}
			invalidate(false)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client and returns its message channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an arbitrary event to all clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Notify translates a store change into item events plus a throttled
// list.invalidated hint. Its signature matches itemstore.WithOnChange.
func (b *Broker) Notify(c itemstore.Change) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- c:
	case <-b.stopped:
	}
}

// ServeHTTP is the GET /events handler.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var ping <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		ping = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
