package domain

import "time"

// Gemstone is the single resource served by the API.
type Gemstone struct {
	ID        string
	Title     string
	Text      string
	Owner     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnedBy reports whether userID recorded the gemstone.
func (g Gemstone) OwnedBy(userID string) bool {
	return userID != "" && g.Owner == userID
}

// Gemstone event types published on the change feed.
const (
	GemstoneCreated = "created"
	GemstoneUpdated = "updated"
	GemstoneDeleted = "deleted"
)

// GemstoneEvent records a mutation for streaming subscribers.
type GemstoneEvent struct {
	Type       string
	Gemstone   Gemstone
	ActorID    string
	OccurredAt time.Time
}
