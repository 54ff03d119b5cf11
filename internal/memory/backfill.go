package memory

import (
	"context"
	"log"
	"time"

	"go.uber.org/atomic"

	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
)

// SummaryIndexer embeds a summary into the vector index and returns the
// embedding ID.
type SummaryIndexer interface {
	IndexSummary(ctx context.Context, summary *models.MemorySummary, characterName string) (string, error)
}

const (
	defaultBackfillInterval = 30 * time.Second
	defaultBackfillBatch    = 32
)

// Backfiller moves unembedded summaries into the semantic index in the
// background. Summary creation never waits on the embedding provider: rows
// are written with is_embedded=false and this worker picks them up, so a
// provider outage only delays recall of the newest windows.
type Backfiller struct {
	summaries  interfaces.SummaryStore
	characters interfaces.CharacterStore
	indexer    SummaryIndexer
	version    int
	interval   time.Duration
	batchSize  int

	indexed *atomic.Int64
	failed  *atomic.Int64
}

// NewBackfiller creates the worker. version tags embeddings with the
// pipeline revision that produced them.
func NewBackfiller(summaries interfaces.SummaryStore, characters interfaces.CharacterStore, indexer SummaryIndexer, version int) *Backfiller {
	return &Backfiller{
		summaries:  summaries,
		characters: characters,
		indexer:    indexer,
		version:    version,
		interval:   defaultBackfillInterval,
		batchSize:  defaultBackfillBatch,
		indexed:    atomic.NewInt64(0),
		failed:     atomic.NewInt64(0),
	}
}

// SetInterval overrides the tick interval. Call before Run.
func (b *Backfiller) SetInterval(interval time.Duration) {
	if interval > 0 {
		b.interval = interval
	}
}

// Stats reports how many summaries this worker has indexed and how many
// attempts failed since startup.
func (b *Backfiller) Stats() (indexed, failed int64) {
	return b.indexed.Load(), b.failed.Load()
}

// Run processes batches on a ticker until the context is cancelled.
func (b *Backfiller) Run(ctx context.Context) {
	log.Printf("[Backfill] worker started, interval %s", b.interval)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Backfill] worker stopped: indexed=%d failed=%d", b.indexed.Load(), b.failed.Load())
			return
		case <-ticker.C:
			if n, err := b.RunOnce(ctx); err != nil {
				log.Printf("[Backfill] batch failed after %d summaries: %v", n, err)
			}
		}
	}
}

// RunOnce indexes one batch of unembedded summaries and returns how many it
// embedded. Per-summary provider failures are logged and the row stays
// unembedded for the next pass; only listing errors abort the batch.
func (b *Backfiller) RunOnce(ctx context.Context) (int, error) {
	pending, err := b.summaries.ListUnembedded(ctx, b.batchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	names := make(map[string]string)
	for i := range pending {
		summary := &pending[i]

		name, ok := names[summary.CharacterID]
		if !ok {
			name = b.characterName(ctx, summary.CharacterID)
			names[summary.CharacterID] = name
		}

		embeddingID, err := b.indexer.IndexSummary(ctx, summary, name)
		if err != nil {
			b.failed.Inc()
			log.Printf("[Backfill] summary %d not indexed: %v", summary.ID, err)
			continue
		}
		if err := b.summaries.MarkEmbedded(ctx, summary.ID, embeddingID, b.version); err != nil {
			b.failed.Inc()
			log.Printf("[Backfill] summary %d indexed but not marked: %v", summary.ID, err)
			continue
		}
		b.indexed.Inc()
		count++
	}
	return count, nil
}

func (b *Backfiller) characterName(ctx context.Context, characterID string) string {
	character, err := b.characters.Get(ctx, characterID)
	if err != nil {
		return characterID
	}
	return character.Name
}
