package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/providerdirectory/internal/adapters/events"
	"github.com/zatekoja/providerdirectory/internal/api/handlers"
	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
)

// streamFor runs the handler until publish returns and the stream has had
// time to forward, then returns everything written.
func streamFor(t *testing.T, handler *handlers.SSEHandler, target string, publish func()) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.StreamDirectoryUpdates(rec, req)
		close(done)
	}()

	assert.Eventually(t, func() bool { return handler.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)
	publish()
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after cancel")
	}
	return rec
}

func TestSSEHandler_StreamDirectoryUpdates(t *testing.T) {
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	handler := handlers.NewSSEHandler(bus)

	rec := streamFor(t, handler, "/api/stream/directory", func() {
		event := entities.NewDirectoryEvent(entities.DirectoryEventProviderUpdated, []string{"7"})
		require.NoError(t, bus.Publish(context.Background(), providers.EventChannelDirectory, event))
	})

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: connected\n")
	assert.Contains(t, body, "event: provider_updated\n")
	assert.Contains(t, body, `"provider_ids":["7"]`)
	assert.Equal(t, 0, handler.GetClientCount())
}

func TestSSEHandler_FiltersWatchedIDs(t *testing.T) {
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	handler := handlers.NewSSEHandler(bus)

	rec := streamFor(t, handler, "/api/stream/directory?ids=1,2", func() {
		ctx := context.Background()
		require.NoError(t, bus.Publish(ctx, providers.EventChannelDirectory,
			entities.NewDirectoryEvent(entities.DirectoryEventProviderUpdated, []string{"9"})))
		require.NoError(t, bus.Publish(ctx, providers.EventChannelDirectory,
			entities.NewDirectoryEvent(entities.DirectoryEventReloaded, []string{"3", "4"})))
	})

	body := rec.Body.String()
	assert.NotContains(t, body, "event: provider_updated")
	assert.Contains(t, body, "event: directory_reloaded")
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	handler := handlers.NewSSEHandler(bus).WithHeartbeat(20 * time.Millisecond)

	rec := streamFor(t, handler, "/api/stream/directory", func() {})
	assert.Contains(t, rec.Body.String(), "event: heartbeat")
}

func TestSSEHandler_ClosedBus(t *testing.T) {
	bus := events.NewMemoryEventBus()
	require.NoError(t, bus.Close())
	handler := handlers.NewSSEHandler(bus)

	rec := httptest.NewRecorder()
	handler.StreamDirectoryUpdates(rec, httptest.NewRequest(http.MethodGet, "/api/stream/directory", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
