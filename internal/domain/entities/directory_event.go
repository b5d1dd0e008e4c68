package entities

import (
	"time"

	"github.com/google/uuid"
)

// DirectoryEventType represents the type of directory change
type DirectoryEventType string

const (
	DirectoryEventReloaded        DirectoryEventType = "directory_reloaded"
	DirectoryEventProviderUpdated DirectoryEventType = "provider_updated"
)

// DirectoryEvent announces a change to the listed providers
type DirectoryEvent struct {
	ID          string             `json:"id"`
	EventType   DirectoryEventType `json:"event_type"`
	ProviderIDs []string           `json:"provider_ids,omitempty"`
	Count       int                `json:"count"`
	Timestamp   time.Time          `json:"timestamp"`
}

// NewDirectoryEvent creates a new directory event
func NewDirectoryEvent(eventType DirectoryEventType, providerIDs []string) *DirectoryEvent {
	return &DirectoryEvent{
		ID:          uuid.NewString(),
		EventType:   eventType,
		ProviderIDs: providerIDs,
		Count:       len(providerIDs),
		Timestamp:   time.Now().UTC(),
	}
}
