package persistence

import (
	"context"

	"github.com/donkhouse/donktrk/internal/parser"
	"github.com/donkhouse/donktrk/internal/stats"
)

type UpsertResult struct {
	Inserted int
	Updated  int
}

// RunBatch is the complete output of one pipeline run: merged player
// aggregates, newly closed sessions and the advanced checkpoint map.
type RunBatch struct {
	Players  map[string]*stats.Player
	Sessions []*stats.Session
	Marks    parser.Checkpoints
}

type PlayerRepository interface {
	// UpsertPlayers folds player deltas into storage: existing players
	// get net and counters added, new players are inserted.
	UpsertPlayers(ctx context.Context, players map[string]*stats.Player) (UpsertResult, error)
	GetPlayer(ctx context.Context, username string) (*stats.Player, error)
	ListPlayers(ctx context.Context) ([]*stats.Player, error)
}

type SessionRepository interface {
	// InsertSessions stores closed sessions and links each to every
	// player appearing in its net map. A session already present
	// (same table and end date) is left untouched.
	InsertSessions(ctx context.Context, sessions []*stats.Session) (int, error)
	ListSessions(ctx context.Context, table string) ([]*stats.Session, error)
}

type CheckpointRepository interface {
	// LoadCheckpoints returns the persisted checkpoint map; an empty
	// store yields an empty map, never an error.
	LoadCheckpoints(ctx context.Context) (parser.Checkpoints, error)
	// SaveCheckpoints overwrites the persisted map wholesale.
	SaveCheckpoints(ctx context.Context, marks parser.Checkpoints) error
}

// RunRepository is what the application layer drives. SaveRunBatch must
// commit aggregates and the checkpoint overwrite atomically: a crash
// mid-flush leaves both untouched, so a retry re-parses exactly the
// unapplied window and additive upserts never double count.
type RunRepository interface {
	PlayerRepository
	SessionRepository
	CheckpointRepository
	SaveRunBatch(ctx context.Context, batch RunBatch) (UpsertResult, error)
}
