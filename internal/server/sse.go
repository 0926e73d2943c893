package server

import (
	"fmt"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// clientBuffer is how many pending events a slow SSE client may lag behind
// before being dropped.
const clientBuffer = 16

// sseClient is one connected event-stream consumer.
type sseClient struct {
	id     string
	events chan []byte
}

// Broadcaster fans completed responses out to connected SSE clients.
// Slow clients are disconnected rather than allowed to block broadcasts.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[string]*sseClient
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[string]*sseClient)}
}

// Broadcast serializes payload once and queues it for every client.
func (b *Broadcaster) Broadcast(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("sse payload marshal failed")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, client := range b.clients {
		select {
		case client.events <- data:
		default:
			// lagging client: drop it instead of blocking everyone
			delete(b.clients, id)
			close(client.events)
			log.Debug().Str("client_id", id).Msg("slow sse client dropped")
		}
	}
}

// ClientCount reports connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) subscribe() *sseClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	client := &sseClient{
		id:     fmt.Sprintf("client-%d", b.nextID),
		events: make(chan []byte, clientBuffer),
	}
	b.clients[client.id] = client
	return client
}

func (b *Broadcaster) unsubscribe(client *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client.id]; ok {
		delete(b.clients, client.id)
		close(client.events)
	}
}

// ServeHTTP streams events until the client disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := b.subscribe()
	defer b.unsubscribe(client)

	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"client_id\":%q}\n\n", client.id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-client.events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
