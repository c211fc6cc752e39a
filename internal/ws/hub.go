package ws

import (
	"sync"
	"sync/atomic"
)

// outboxSize bounds how many payloads a subscriber may lag behind before it is evicted.
const outboxSize = 64

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans payloads out to subscribers grouped by topic. Each subscriber is fed
// by its own writer goroutine, so a slow client never delays Broadcast.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[Subscriber]*outbox
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	done      chan struct{}
	stopOnce  sync.Once
}

type message struct {
	topic   string
	payload []byte
}

type subscription struct {
	topic  string
	client Subscriber
}

type outbox struct {
	client  Subscriber
	queue   chan []byte
	evicted atomic.Bool
}

// NewHub creates a Hub and starts its dispatch loop.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]*outbox),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[sub.topic]; !ok {
				h.clients[sub.topic] = make(map[Subscriber]*outbox)
			}
			if _, exists := h.clients[sub.topic][sub.client]; !exists {
				box := &outbox{client: sub.client, queue: make(chan []byte, outboxSize)}
				h.clients[sub.topic][sub.client] = box
				go h.drain(sub.topic, box)
			}
			h.mu.Unlock()
		case sub := <-h.unreg:
			h.mu.Lock()
			h.remove(sub.topic, sub.client, false)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c, box := range h.clients[msg.topic] {
				select {
				case box.queue <- msg.payload:
				default:
					h.remove(msg.topic, c, true)
				}
			}
			h.mu.Unlock()
		case <-h.done:
			h.mu.Lock()
			for topic, clients := range h.clients {
				for c := range clients {
					h.remove(topic, c, true)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// drain delivers queued payloads in order. It closes the client when the hub
// evicted it or when a send fails.
func (h *Hub) drain(topic string, box *outbox) {
	failed := false
	for payload := range box.queue {
		if failed || box.evicted.Load() {
			continue
		}
		if err := box.client.Send(payload); err != nil {
			failed = true
			box.client.Close()
			go h.Unregister(topic, box.client)
		}
	}
	if box.evicted.Load() {
		box.client.Close()
	}
}

// remove must be called with mu held. evict also closes the client once its
// writer goroutine winds down.
func (h *Hub) remove(topic string, client Subscriber, evict bool) {
	clients, ok := h.clients[topic]
	if !ok {
		return
	}
	box, ok := clients[client]
	if !ok {
		return
	}
	if evict {
		box.evicted.Store(true)
	}
	close(box.queue)
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, topic)
	}
}

// Register adds a client to a topic.
func (h *Hub) Register(topic string, client Subscriber) {
	select {
	case h.register <- subscription{topic: topic, client: client}:
	case <-h.done:
	}
}

// Unregister removes a client from a topic without closing it.
func (h *Hub) Unregister(topic string, client Subscriber) {
	select {
	case h.unreg <- subscription{topic: topic, client: client}:
	case <-h.done:
	}
}

// Broadcast queues payload for every client of topic. Clients whose queue is
// full are evicted and closed.
func (h *Hub) Broadcast(topic string, payload []byte) {
	select {
	case h.broadcast <- message{topic: topic, payload: payload}:
	case <-h.done:
	}
}

// Subscribers reports how many clients are registered on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Stop closes every client and terminates the dispatch loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
