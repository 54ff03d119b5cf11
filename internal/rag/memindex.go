package rag

import (
	"context"
	"strconv"

	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
)

// EmbeddingVersion tags vectors with the pipeline revision that produced
// them, so a model change can re-embed selectively.
const EmbeddingVersion = 1

// DefaultCollection is the Qdrant collection holding summary vectors.
const DefaultCollection = "narrative_memory"

// RenderingSource selects which summary rendering gets embedded.
type RenderingSource string

const (
	EmbedCondensed   RenderingSource = "condensed"
	EmbedDescriptive RenderingSource = "descriptive"
)

// RecalledMemory is one semantic search hit.
type RecalledMemory struct {
	SummaryID     string            `json:"summary_id"`
	Score         float64           `json:"score"`
	Text          string            `json:"text"`
	GameID        string            `json:"game_id"`
	CharacterID   string            `json:"character_id"`
	CharacterName string            `json:"character_name"`
	WindowType    models.WindowType `json:"window_type"`
	StartTurn     int               `json:"start_turn"`
	EndTurn       int               `json:"end_turn"`
	TurnSpan      int               `json:"turn_span"`
}

// RecallOptions filters a semantic search. Zero values leave a dimension
// unfiltered; EndTurn of 0 means no upper bound.
type RecallOptions struct {
	GameID         string
	CharacterID    string
	StartTurn      int
	EndTurn        int
	Limit          int
	ScoreThreshold float64
}

// SemanticIndex embeds memory summaries into vector space and retrieves
// them by similarity. Indexing is decoupled from summary creation: the
// backfill worker feeds it, so an embedding-provider outage never blocks
// gameplay.
type SemanticIndex struct {
	vectors    interfaces.VectorStore
	embedder   interfaces.EmbeddingProvider
	collection string
	source     RenderingSource
}

// NewSemanticIndex creates the index. source defaults to the condensed
// rendering.
func NewSemanticIndex(vectors interfaces.VectorStore, embedder interfaces.EmbeddingProvider, collection string, source RenderingSource) *SemanticIndex {
	if collection == "" {
		collection = DefaultCollection
	}
	if source == "" {
		source = EmbedCondensed
	}
	return &SemanticIndex{
		vectors:    vectors,
		embedder:   embedder,
		collection: collection,
		source:     source,
	}
}

// Init ensures the backing collection exists at the embedder's dimension.
func (x *SemanticIndex) Init(ctx context.Context) error {
	return x.vectors.EnsureCollection(ctx, x.collection, x.embedder.Dimension())
}

// IndexSummary embeds one summary and upserts its vector with the window
// metadata. It returns the embedding ID; provider failures propagate so the
// caller can leave the summary marked unembedded.
func (x *SemanticIndex) IndexSummary(ctx context.Context, summary *models.MemorySummary, characterName string) (string, error) {
	text := summary.CondensedSummary
	if x.source == EmbedDescriptive {
		text = summary.DescriptiveSummary
	}
	if text == "" {
		return "", &models.ValidationError{Field: "summary", Reason: "has no text to embed"}
	}

	vector, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return "", err
	}

	id := strconv.FormatUint(uint64(summary.ID), 10)
	point := &interfaces.VectorPoint{
		ID:     id,
		Vector: vector,
		Payload: map[string]interface{}{
			"game_id":        summary.GameID,
			"character_id":   summary.CharacterID,
			"character_name": characterName,
			"window_type":    string(summary.WindowType),
			"start_turn":     summary.StartTurn,
			"end_turn":       summary.EndTurn,
			"turn_span":      summary.TurnSpan(),
			"text":           text,
		},
	}
	if err := x.vectors.Upsert(ctx, x.collection, []*interfaces.VectorPoint{point}); err != nil {
		return "", err
	}
	return id, nil
}

// Recall searches for summaries semantically close to the query, optionally
// filtered by character and turn range (summaries overlapping the range
// match).
func (x *SemanticIndex) Recall(ctx context.Context, query string, opts RecallOptions) ([]RecalledMemory, error) {
	vector, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	filter := &interfaces.SearchFilter{Match: map[string]interface{}{}}
	if opts.GameID != "" {
		filter.Match["game_id"] = opts.GameID
	}
	if opts.CharacterID != "" {
		filter.Match["character_id"] = opts.CharacterID
	}
	if opts.StartTurn > 0 || opts.EndTurn > 0 {
		filter.Ranges = map[string]interfaces.RangeCondition{}
		if opts.EndTurn > 0 {
			upper := float64(opts.EndTurn)
			filter.Ranges["start_turn"] = interfaces.RangeCondition{Lte: &upper}
		}
		if opts.StartTurn > 0 {
			lower := float64(opts.StartTurn)
			filter.Ranges["end_turn"] = interfaces.RangeCondition{Gte: &lower}
		}
	}
	if len(filter.Match) == 0 && filter.Ranges == nil {
		filter = nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	hits, err := x.vectors.Search(ctx, x.collection, vector, &interfaces.SearchOptions{
		Limit:          limit,
		ScoreThreshold: opts.ScoreThreshold,
		Filter:         filter,
	})
	if err != nil {
		return nil, err
	}

	memories := make([]RecalledMemory, 0, len(hits))
	for _, hit := range hits {
		memories = append(memories, RecalledMemory{
			SummaryID:     hit.ID,
			Score:         hit.Score,
			Text:          payloadString(hit.Payload, "text"),
			GameID:        payloadString(hit.Payload, "game_id"),
			CharacterID:   payloadString(hit.Payload, "character_id"),
			CharacterName: payloadString(hit.Payload, "character_name"),
			WindowType:    models.WindowType(payloadString(hit.Payload, "window_type")),
			StartTurn:     payloadInt(hit.Payload, "start_turn"),
			EndTurn:       payloadInt(hit.Payload, "end_turn"),
			TurnSpan:      payloadInt(hit.Payload, "turn_span"),
		})
	}
	return memories, nil
}

// RemoveSummary deletes a summary's vector, e.g. when its game is deleted.
func (x *SemanticIndex) RemoveSummary(ctx context.Context, embeddingID string) error {
	return x.vectors.Delete(ctx, x.collection, []string{embeddingID})
}

// Count returns the number of indexed summaries.
func (x *SemanticIndex) Count(ctx context.Context) (uint64, error) {
	return x.vectors.Count(ctx, x.collection)
}

func payloadString(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}

func payloadInt(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
