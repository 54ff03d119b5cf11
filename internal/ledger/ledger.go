package ledger

import (
	"context"
	"errors"
	"fmt"

	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/models"
)

// ErrDuplicateSequence reports an append into an already-taken
// (game, turn, character, sequence) slot. The caller must not retry with
// the same sequence number.
var ErrDuplicateSequence = fmt.Errorf("duplicate turn sequence: %w", interfaces.ErrConflict)

// lookbackRowsPerTurn is how many rows are fetched per requested turn when
// reading a viewer's window. One turn can hold several sequenced entries,
// so reading exactly `limit` rows could return fewer actual turns than
// asked for.
const lookbackRowsPerTurn = 8

// Service is the append-only turn ledger plus the witness filter over it.
// Visibility is evaluated at read time from the immutable stored witness
// sets: a character's knowledge is a deterministic function of the ledger,
// so two simultaneous reads for different viewers never disagree.
type Service struct {
	store interfaces.LedgerStore
}

// NewService creates a ledger service.
func NewService(store interfaces.LedgerStore) *Service {
	return &Service{store: store}
}

// Record appends one action to the ledger.
func (s *Service) Record(ctx context.Context, entry *models.TurnEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.RemainingDuration == 0 && entry.TurnDuration > 1 {
		entry.RemainingDuration = entry.TurnDuration - 1
	}

	err := s.store.AppendEntry(ctx, entry)
	if errors.Is(err, interfaces.ErrConflict) {
		return fmt.Errorf("turn %d seq %d for character %s: %w",
			entry.TurnNumber, entry.SequenceNumber, entry.CharacterID, ErrDuplicateSequence)
	}
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// Witnessed returns the entries the viewer can recall, newest first,
// spanning at most turnLimit turns: the viewer's own actions (private
// thoughts included) plus public actions they witnessed. Atmospheric
// scene-setting carries no actor knowledge and is excluded. Private always
// wins over the witness list, even when that list is non-empty.
func (s *Service) Witnessed(ctx context.Context, gameID, viewerID string, turnLimit int) ([]models.TurnEntry, error) {
	if turnLimit <= 0 {
		turnLimit = 10
	}

	rows, err := s.store.RecentEntries(ctx, gameID, turnLimit*lookbackRowsPerTurn)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	visible := make([]models.TurnEntry, 0, len(rows))
	turnsSeen := 0
	lastTurn := -1
	for _, entry := range rows {
		if entry.ActionType == models.ActionAtmospheric {
			continue
		}
		if !entry.VisibleTo(viewerID) {
			continue
		}
		if entry.TurnNumber != lastTurn {
			turnsSeen++
			lastTurn = entry.TurnNumber
			if turnsSeen > turnLimit {
				break
			}
		}
		visible = append(visible, entry)
	}
	return visible, nil
}

// Window returns the raw entries of a turn range in ascending order, for
// the summarizer.
func (s *Service) Window(ctx context.Context, gameID string, startTurn, endTurn int) ([]models.TurnEntry, error) {
	if startTurn > endTurn {
		return nil, &models.ValidationError{Field: "start_turn", Reason: "must not exceed end_turn"}
	}
	return s.store.EntriesInRange(ctx, gameID, startTurn, endTurn)
}

// TickDurations advances every unresolved multi-turn action by one turn.
// Called once per turn advance.
func (s *Service) TickDurations(ctx context.Context, gameID string) (int64, error) {
	ticked, err := s.store.TickDurations(ctx, gameID)
	if err != nil {
		return 0, fmt.Errorf("failed to tick action durations: %w", err)
	}
	return ticked, nil
}
