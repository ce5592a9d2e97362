// Package sse implements a Server-Sent Events broker for placeholder, note
// and settings updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types broadcast by the broker.
const (
	PlaceholderCreated = "placeholder.created"
	PlaceholderUpdated = "placeholder.updated"
	PlaceholderRemoved = "placeholder.removed"
	NoteCreated        = "note.created"
	NoteUpdated        = "note.updated"
	NoteDeleted        = "note.deleted"
	EmbedsUpdated      = "embeds.updated"
	SettingsUpdated    = "settings.updated"
)

// noteEvents maps watcher and service change kinds to event types.
var noteEvents = map[string]string{
	"created": NoteCreated,
	"updated": NoteUpdated,
	"deleted": NoteDeleted,
}

const (
	clientBuffer = 64
	historySize  = 64
	keepAlive    = 30 * time.Second
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type noteEventReq struct {
	kind string
	path string
}

type subscription struct {
	ch     chan []byte
	after  uint64
	replay bool
}

type frame struct {
	id  uint64
	raw []byte
}

// hub is the state owned by the broker loop.
type hub struct {
	clients    map[chan []byte]struct{}
	history    []frame
	seq        uint64
	lastEmbeds time.Time
	embedsMin  time.Duration
}

func (h *hub) add(sub subscription) {
	if sub.replay {
		for _, f := range h.history {
			if f.id > sub.after {
				deliver(sub.ch, f.raw)
			}
		}
	}
	h.clients[sub.ch] = struct{}{}
}

func (h *hub) remove(ch chan []byte) {
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *hub) send(event Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	h.seq++
	f := frame{id: h.seq, raw: []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", h.seq, event.Type, payload))}

	h.history = append(h.history, f)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}
	for ch := range h.clients {
		deliver(ch, f.raw)
	}
}

// note broadcasts a note change and, at most once per embedsMin, an
// embeds.updated event.
func (h *hub) note(req noteEventReq, now time.Time) {
	typ, ok := noteEvents[req.kind]
	if !ok {
		return
	}
	h.send(Event{Type: typ, Data: map[string]string{"path": req.path}})

	if now.Sub(h.lastEmbeds) >= h.embedsMin {
		h.lastEmbeds = now
		h.send(Event{Type: EmbedsUpdated, Data: map[string]string{}})
	}
}

func (h *hub) closeAll() {
	for ch := range h.clients {
		close(ch)
	}
}

// deliver drops the frame when the client is not keeping up.
func deliver(ch chan []byte, raw []byte) {
	select {
	case ch <- raw:
	default:
	}
}

// Broker manages SSE client connections and broadcasts events.
//
// A single loop goroutine owns the hub; public methods talk to it over
// channels.
type Broker struct {
	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	noteEventCh   chan noteEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. embedsThrottle bounds how often
// embeds.updated follows a burst of note events.
func NewBroker(embedsThrottle time.Duration) *Broker {
	if embedsThrottle <= 0 {
		embedsThrottle = 2 * time.Second
	}

	b := &Broker{
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		noteEventCh:   make(chan noteEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	h := &hub{clients: make(map[chan []byte]struct{}), embedsMin: embedsThrottle}
	go b.run(h)
	return b
}

func (b *Broker) run(h *hub) {
	defer close(b.stopped)

	for {
		select {
		case <-b.stopCh:
			h.closeAll()
			return
		case sub := <-b.subscribeCh:
			h.add(sub)
		case ch := <-b.unsubscribeCh:
			h.remove(ch)
		case event := <-b.publishCh:
			h.send(event)
		case req := <-b.noteEventCh:
			h.note(req, time.Now())
		case resp := <-b.countReqCh:
			resp <- len(h.clients)
		}
	}
}

// Close stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.subscribe(subscription{ch: make(chan []byte, clientBuffer)})
}

// SubscribeAfter adds a client that first receives the retained events
// numbered above lastID, for clients resuming with Last-Event-ID.
func (b *Broker) SubscribeAfter(lastID uint64) chan []byte {
	return b.subscribe(subscription{ch: make(chan []byte, clientBuffer), after: lastID, replay: true})
}

func (b *Broker) subscribe(sub subscription) chan []byte {
	if b.closed.Load() {
		close(sub.ch)
		return sub.ch
	}
	select {
	case b.subscribeCh <- sub:
	case <-b.stopped:
		close(sub.ch)
	}
	return sub.ch
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishNoteEvent publishes a note change ("created", "updated" or
// "deleted") and a throttled embeds.updated event. Other kinds are ignored.
func (b *Broker) PublishNoteEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.noteEventCh <- noteEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). A numeric
// Last-Event-ID header replays retained events the client missed.
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

	var ch chan []byte
	if lastID, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		ch = b.SubscribeAfter(lastID)
	} else {
		ch = b.Subscribe()
	}
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
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
