package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/melsimpson1023/project-2-gemstone/internal/domain"
)

// TopicGemstones carries every gemstone mutation.
const TopicGemstones = "gemstones"

// Feed publishes gemstone events to hub subscribers as JSON.
type Feed struct {
	hub *Hub
	log *slog.Logger
}

// NewFeed returns a Feed broadcasting on hub.
func NewFeed(hub *Hub, logger *slog.Logger) *Feed {
	return &Feed{hub: hub, log: logger}
}

type eventPayload struct {
	Type       string          `json:"type"`
	Gemstone   gemstonePayload `json:"gemstone"`
	ActorID    string          `json:"actor"`
	OccurredAt string          `json:"occurredAt"`
}

type gemstonePayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Owner     string `json:"owner"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Publish implements gemstone.Publisher.
func (f *Feed) Publish(event domain.GemstoneEvent) {
	if f == nil || f.hub == nil {
		return
	}
	payload, err := EncodeEvent(event)
	if err != nil {
		f.log.Error("encode gemstone event", "error", err, "type", event.Type)
		return
	}
	f.hub.Broadcast(TopicGemstones, payload)
}

// EncodeEvent renders an event in its wire form.
func EncodeEvent(event domain.GemstoneEvent) ([]byte, error) {
	gem := event.Gemstone
	return json.Marshal(eventPayload{
		Type: event.Type,
		Gemstone: gemstonePayload{
			ID:        gem.ID,
			Title:     gem.Title,
			Text:      gem.Text,
			Owner:     gem.Owner,
			CreatedAt: gem.CreatedAt.UTC().Format(time.RFC3339Nano),
			UpdatedAt: gem.UpdatedAt.UTC().Format(time.RFC3339Nano),
		},
		ActorID:    event.ActorID,
		OccurredAt: event.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
}
