package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
)

const defaultHeartbeat = 30 * time.Second

// SSEHandler streams directory changes to browsers so they can refresh their
// results and markers.
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
	clients   map[chan *entities.DirectoryEvent]bool
	mu        sync.RWMutex
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: defaultHeartbeat,
		clients:   make(map[chan *entities.DirectoryEvent]bool),
	}
}

// WithHeartbeat sets the interval between heartbeat events
func (h *SSEHandler) WithHeartbeat(interval time.Duration) *SSEHandler {
	if interval > 0 {
		h.heartbeat = interval
	}
	return h
}

// StreamDirectoryUpdates handles GET /api/stream/directory[?ids=1,2]. With
// ids, only reloads and updates touching one of them are sent.
func (h *SSEHandler) StreamDirectoryUpdates(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	eventChan, err := h.eventBus.Subscribe(ctx, providers.EventChannelDirectory)
	if err != nil {
		log.Error().Err(err).Str("channel", providers.EventChannelDirectory).Msg("failed to subscribe")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	watched := make(map[string]bool)
	for _, id := range splitIDs(r.URL.Query()["ids"]) {
		watched[id] = true
	}

	clientChan := make(chan *entities.DirectoryEvent, 10)
	h.registerClient(clientChan)
	defer h.unregisterClient(clientChan)

	h.sendEvent(w, "connected", map[string]interface{}{
		"watching":  len(watched),
		"timestamp": time.Now(),
	})
	flusher.Flush()

	go h.forwardEvents(ctx, eventChan, clientChan, watched)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("client disconnected from directory stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event := <-clientChan:
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

// forwardEvents copies matching events to the client, dropping them when the
// client falls behind.
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.DirectoryEvent, clientChan chan<- *entities.DirectoryEvent, watched map[string]bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if !matchesWatched(event, watched) {
				continue
			}
			select {
			case clientChan <- event:
			default:
			}
		}
	}
}

func matchesWatched(event *entities.DirectoryEvent, watched map[string]bool) bool {
	if event == nil {
		return false
	}
	if len(watched) == 0 || event.EventType == entities.DirectoryEventReloaded {
		return true
	}
	for _, id := range event.ProviderIDs {
		if watched[id] {
			return true
		}
	}
	return false
}

func (h *SSEHandler) registerClient(clientChan chan *entities.DirectoryEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[clientChan] = true
	log.Debug().Int("clients", len(h.clients)).Msg("directory stream client registered")
}

func (h *SSEHandler) unregisterClient(clientChan chan *entities.DirectoryEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, clientChan)
	log.Debug().Int("clients", len(h.clients)).Msg("directory stream client unregistered")
}

// sendEvent sends an SSE event to the client
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
