package relationship

import (
	"context"
	"errors"
	"fmt"

	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
)

// Service manages directed relationship edges. Edges are created on first
// adjustment and never auto-deleted; a missing edge reads as the stranger
// default, which is not the same thing as zero trust.
type Service struct {
	store interfaces.RelationshipStore
}

// NewService creates a relationship service.
func NewService(store interfaces.RelationshipStore) *Service {
	return &Service{store: store}
}

// Get returns the stored edge, or interfaces.ErrNotFound when none exists.
// Callers wanting implied defaults use Summary instead.
func (s *Service) Get(ctx context.Context, gameID, sourceID, targetID string) (*models.Relationship, error) {
	return s.store.Get(ctx, gameID, sourceID, targetID)
}

// Summary returns the edge as the source perceives it, substituting the
// stranger defaults when no row exists. The default is not persisted.
func (s *Service) Summary(ctx context.Context, gameID, sourceID, targetID string) (*models.Relationship, error) {
	rel, err := s.store.Get(ctx, gameID, sourceID, targetID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.DefaultRelationship(gameID, sourceID, targetID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load relationship: %w", err)
	}
	return rel, nil
}

// Delta is a signed adjustment to an edge. Zero fields leave the dimension
// untouched; Type, when set, relabels the edge.
type Delta struct {
	Trust   float64                 `json:"trust,omitempty"`
	Fear    float64                 `json:"fear,omitempty"`
	Respect float64                 `json:"respect,omitempty"`
	Type    models.RelationshipType `json:"type,omitempty"`
}

// Adjust applies a signed delta, creating the edge from stranger defaults on
// first write. Dimensions are clamped to [0, 1].
func (s *Service) Adjust(ctx context.Context, gameID, sourceID, targetID string, delta Delta, turn int) (*models.Relationship, error) {
	if sourceID == "" || targetID == "" {
		return nil, &models.ValidationError{Field: "character_id", Reason: "source and target must not be empty"}
	}
	if sourceID == targetID {
		return nil, &models.ValidationError{Field: "target_character_id", Reason: "a character has no relationship edge to itself"}
	}

	rel, err := s.store.Get(ctx, gameID, sourceID, targetID)
	if errors.Is(err, interfaces.ErrNotFound) {
		rel = models.DefaultRelationship(gameID, sourceID, targetID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load relationship: %w", err)
	}

	rel.Trust = clamp01(rel.Trust + delta.Trust)
	rel.Fear = clamp01(rel.Fear + delta.Fear)
	rel.Respect = clamp01(rel.Respect + delta.Respect)
	if delta.Type != "" {
		rel.RelationshipType = delta.Type
	}
	rel.InteractionCount++
	rel.LastInteractionTurn = turn

	if err := s.store.Upsert(ctx, rel); err != nil {
		return nil, fmt.Errorf("failed to save relationship: %w", err)
	}
	return rel, nil
}

// Values is an absolute assignment for an edge.
type Values struct {
	Trust   float64                 `json:"trust"`
	Fear    float64                 `json:"fear"`
	Respect float64                 `json:"respect"`
	Type    models.RelationshipType `json:"type"`
}

// Set overwrites the edge's dimensions, creating it when absent.
func (s *Service) Set(ctx context.Context, gameID, sourceID, targetID string, values Values, turn int) (*models.Relationship, error) {
	if sourceID == "" || targetID == "" {
		return nil, &models.ValidationError{Field: "character_id", Reason: "source and target must not be empty"}
	}
	if values.Trust < 0 || values.Trust > 1 || values.Fear < 0 || values.Fear > 1 || values.Respect < 0 || values.Respect > 1 {
		return nil, &models.ValidationError{Field: "values", Reason: "trust, fear and respect must be within [0.0, 1.0]"}
	}

	rel, err := s.store.Get(ctx, gameID, sourceID, targetID)
	if errors.Is(err, interfaces.ErrNotFound) {
		rel = models.DefaultRelationship(gameID, sourceID, targetID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load relationship: %w", err)
	}

	rel.Trust = values.Trust
	rel.Fear = values.Fear
	rel.Respect = values.Respect
	if values.Type != "" {
		rel.RelationshipType = values.Type
	}
	rel.InteractionCount++
	rel.LastInteractionTurn = turn

	if err := s.store.Upsert(ctx, rel); err != nil {
		return nil, fmt.Errorf("failed to save relationship: %w", err)
	}
	return rel, nil
}

// Perceived lists every stored edge from the source, for prompt assembly.
func (s *Service) Perceived(ctx context.Context, gameID, sourceID string) ([]models.Relationship, error) {
	return s.store.ListBySource(ctx, gameID, sourceID)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
