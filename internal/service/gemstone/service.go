package gemstone

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/melsimpson1023/project-2-gemstone/internal/domain"
	"github.com/melsimpson1023/project-2-gemstone/internal/repository"
)

// ErrForbidden is returned when the requester does not own the gemstone.
var ErrForbidden = errors.New("gemstone is owned by another user")

// Input carries gemstone fields from a create or patch request.
type Input struct {
	Title string
	Text  string
}

// Publisher receives gemstone mutations.
type Publisher interface {
	Publish(event domain.GemstoneEvent)
}

// Service implements the gemstone resource.
type Service struct {
	gems      repository.GemstoneRepository
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a gemstone service. publisher may be nil.
func New(gems repository.GemstoneRepository, publisher Publisher, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{gems: gems, publisher: publisher, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns every gemstone.
func (s Service) List(ctx context.Context) ([]domain.Gemstone, error) {
	return s.gems.ListGemstones(ctx)
}

// Get returns one gemstone or repository.ErrNotFound.
func (s Service) Get(ctx context.Context, id string) (*domain.Gemstone, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, repository.ErrNotFound
	}
	return s.gems.GetGemstoneByID(ctx, id)
}

// Create validates input and stores a gemstone owned by ownerID.
func (s Service) Create(ctx context.Context, ownerID string, input Input) (*domain.Gemstone, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.Invalid("title", "is required")
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, domain.Invalid("text", "is required")
	}
	now := s.now()
	gem := &domain.Gemstone{
		ID:        uuid.NewString(),
		Title:     input.Title,
		Text:      input.Text,
		Owner:     ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.gems.CreateGemstone(ctx, gem); err != nil {
		return nil, err
	}
	s.logger.Info("gemstone created", "gemstone_id", gem.ID, "owner_id", ownerID)
	s.publish(domain.GemstoneCreated, *gem, ownerID)
	return gem, nil
}

// Update applies the non-blank fields of patch to a gemstone owned by requesterID.
// Blank fields leave the stored value untouched.
func (s Service) Update(ctx context.Context, requesterID, id string, patch Input) (*domain.Gemstone, error) {
	gem, err := s.owned(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	changed := false
	if strings.TrimSpace(patch.Title) != "" && patch.Title != gem.Title {
		gem.Title = patch.Title
		changed = true
	}
	if strings.TrimSpace(patch.Text) != "" && patch.Text != gem.Text {
		gem.Text = patch.Text
		changed = true
	}
	if !changed {
		return gem, nil
	}
	gem.UpdatedAt = s.now()
	if err := s.gems.UpdateGemstone(ctx, gem); err != nil {
		return nil, err
	}
	s.logger.Info("gemstone updated", "gemstone_id", gem.ID, "owner_id", requesterID)
	s.publish(domain.GemstoneUpdated, *gem, requesterID)
	return gem, nil
}

// Delete removes a gemstone owned by requesterID.
func (s Service) Delete(ctx context.Context, requesterID, id string) error {
	gem, err := s.owned(ctx, requesterID, id)
	if err != nil {
		return err
	}
	if err := s.gems.DeleteGemstone(ctx, gem.ID); err != nil {
		return err
	}
	s.logger.Info("gemstone deleted", "gemstone_id", gem.ID, "owner_id", requesterID)
	s.publish(domain.GemstoneDeleted, *gem, requesterID)
	return nil
}

// owned loads the gemstone and checks ownership; a missing record wins over a foreign owner.
func (s Service) owned(ctx context.Context, requesterID, id string) (*domain.Gemstone, error) {
	gem, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !gem.OwnedBy(requesterID) {
		s.logger.Warn("gemstone ownership check failed", "gemstone_id", gem.ID, "requester_id", requesterID)
		return nil, ErrForbidden
	}
	return gem, nil
}

func (s Service) publish(eventType string, gem domain.Gemstone, actorID string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(domain.GemstoneEvent{
		Type:       eventType,
		Gemstone:   gem,
		ActorID:    actorID,
		OccurredAt: s.now(),
	})
}
