// Package events fans room lifecycle changes out to live listeners.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	RoomCreated      = "room.created"
	AnnotationAdded  = "annotation.added"
	SummaryGenerated = "summary.generated"
	RoomDeleted      = "room.deleted"
)

type Event struct {
	Type   string          `json:"type"`
	RoomID string          `json:"room_id"`
	Data   json.RawMessage `json:"data,omitempty"`
	At     time.Time       `json:"at"`
}

func New(eventType, roomID string, data interface{}) (Event, error) {
	e := Event{Type: eventType, RoomID: roomID, At: time.Now().UTC()}
	if data == nil {
		return e, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encoding %s event data: %w", eventType, err)
	}
	e.Data = raw
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Broker delivers published events to subscribers of the same room. The
// channel returned by Subscribe is closed once ctx is done.
type Broker interface {
	Publisher
	Subscribe(ctx context.Context, roomID string) (<-chan Event, error)
}

func channelName(roomID string) string {
	return fmt.Sprintf("channel-room-%s", roomID)
}
