// Package sse streams document and grading events to browsers over
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types broadcast by the broker.
const (
	EventDocumentIngested = "document.ingested"
	EventDocumentRemoved  = "document.removed"
	EventDocumentFailed   = "document.failed"
	EventCatalogUpdated   = "catalog.updated"
	EventSubmissionGraded = "submission.graded"
)

// documentEvents maps the change kinds reported by the inbox watcher and
// the document service to event types.
var documentEvents = map[string]string{
	"ingested": EventDocumentIngested,
	"removed":  EventDocumentRemoved,
	"failed":   EventDocumentFailed,
}

// DefaultKeepAlive is how often an idle stream receives a comment line.
const DefaultKeepAlive = 25 * time.Second

const clientBuffer = 64

type subscriber struct {
	ch    chan []byte
	types map[string]struct{} // nil receives every event
}

func (s *subscriber) wants(eventType string) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

type documentChange struct {
	kind string
	path string
	at   time.Time
}

// Broker fans events out to connected clients.
//
// One goroutine owns the subscriber set, the event sequence and the
// catalog throttle; every public method talks to it over channels.
type Broker struct {
	catalogEvery time.Duration
	keepAlive    time.Duration

	join    chan *subscriber
	leave   chan chan []byte
	events  chan Event
	changes chan documentChange
	count   chan chan int

	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// NewBroker starts a broker. catalogThrottle is the minimum gap between two
// catalog.updated events while documents churn.
func NewBroker(catalogThrottle time.Duration) *Broker {
	if catalogThrottle <= 0 {
		catalogThrottle = 2 * time.Second
	}
	b := &Broker{
		catalogEvery: catalogThrottle,
		keepAlive:    DefaultKeepAlive,
		join:         make(chan *subscriber),
		leave:        make(chan chan []byte),
		events:       make(chan Event, 256),
		changes:      make(chan documentChange, 256),
		count:        make(chan chan int),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.done)

	subs := make(map[chan []byte]*subscriber)
	var seq uint64
	var lastCatalog time.Time

	send := func(e Event) {
		payload, err := json.Marshal(e.Data)
		if err != nil {
			return
		}
		seq++
		frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, e.Type, payload))
		for _, s := range subs {
			if !s.wants(e.Type) {
				continue
			}
			select {
			case s.ch <- frame:
			default:
				// Slow client: the frame is dropped, the loop never blocks.
			}
		}
	}

	for {
		select {
		case <-b.quit:
			for ch := range subs {
				close(ch)
			}
			return

		case s := <-b.join:
			subs[s.ch] = s

		case ch := <-b.leave:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case e := <-b.events:
			send(e)

		case c := <-b.changes:
			typ, ok := documentEvents[c.kind]
			if !ok {
				continue
			}
			send(Event{Type: typ, Data: map[string]string{
				"path": c.path,
				"at":   c.at.UTC().Format(time.RFC3339),
			}})
			// A failed ingest leaves the catalog unchanged.
			if typ == EventDocumentFailed {
				continue
			}
			if c.at.Sub(lastCatalog) >= b.catalogEvery {
				lastCatalog = c.at
				send(Event{Type: EventCatalogUpdated, Data: map[string]string{}})
			}

		case resp := <-b.count:
			resp <- len(subs)
		}
	}
}

// Close stops the broker and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a client. With no types the client receives every
// event; otherwise only the listed event types. The returned channel is
// closed by Unsubscribe or Close.
func (b *Broker) Subscribe(types ...string) chan []byte {
	s := &subscriber{ch: make(chan []byte, clientBuffer)}
	if len(types) > 0 {
		s.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
	if b.closed.Load() {
		close(s.ch)
		return s.ch
	}
	select {
	case b.join <- s:
	case <-b.done:
		close(s.ch)
	}
	return s.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
	case <-b.done:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.done:
		return 0
	}
}

// Publish sends an event to all interested clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// PublishDocumentEvent announces a document change and, at most once per
// throttle window, catalog.updated. kind is "ingested", "removed" or
// "failed"; other kinds are ignored.
func (b *Broker) PublishDocumentEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changes <- documentChange{kind: kind, path: path, at: time.Now()}:
	case <-b.done:
	}
}

// ServeHTTP streams events to one client (GET /api/events). The optional
// types query parameter is a comma-separated list of event types to receive.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "retry: 3000\n\n")
	flusher.Flush()

	ch := b.Subscribe(parseTypes(r.URL.Query().Get("types"))...)
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}

func parseTypes(v string) []string {
	var out []string
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
