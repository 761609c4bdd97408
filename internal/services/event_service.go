package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-world-manager/internal/models"
	"github.com/isdelr/ender-world-manager/internal/websocket"
	"github.com/rs/zerolog/log"
)

const defaultEventCapacity = 100

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(eventType, level, message string, world *string) error
	GetRecentEvents(limit int) ([]models.Event, error)
}

// EventService keeps a bounded in-memory history of events and pushes each
// new one to websocket clients.
type EventService struct {
	hub      *websocket.Hub
	mu       sync.Mutex
	events   []models.Event
	capacity int
}

// NewEventService creates a new EventService. hub may be nil.
func NewEventService(hub *websocket.Hub) *EventService {
	return &EventService{hub: hub, capacity: defaultEventCapacity}
}

// CreateEvent records a new event.
func (s *EventService) CreateEvent(eventType, level, message string, world *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		World:     world,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	if len(s.events) > s.capacity {
		s.events = s.events[len(s.events)-s.capacity:]
	}
	s.mu.Unlock()

	msg, err := websocket.Encode("event", event)
	if err != nil {
		log.Error().Err(err).Msg("Error marshalling event for broadcast")
		return err
	}
	s.hub.Publish(msg)
	return nil
}

// GetRecentEvents returns up to limit events, newest first.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	events := make([]models.Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		events = append(events, s.events[i])
	}
	return events, nil
}
