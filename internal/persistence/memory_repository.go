package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/donkhouse/donktrk/internal/parser"
	"github.com/donkhouse/donktrk/internal/stats"
)

// MemoryRepository is an in-memory RunRepository used by tests and as a
// fallback when the database cannot be opened.
type MemoryRepository struct {
	mu       sync.RWMutex
	players  map[string]*stats.Player
	sessions map[sessionKey]*stats.Session
	marks    parser.Checkpoints
}

type sessionKey struct {
	name    string
	endDate time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		players:  make(map[string]*stats.Player),
		sessions: make(map[sessionKey]*stats.Session),
		marks:    make(parser.Checkpoints),
	}
}

func (r *MemoryRepository) UpsertPlayers(_ context.Context, players map[string]*stats.Player) (UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertPlayersLocked(players), nil
}

func (r *MemoryRepository) upsertPlayersLocked(players map[string]*stats.Player) UpsertResult {
	res := UpsertResult{}
	for name, p := range players {
		if existing, ok := r.players[name]; ok {
			existing.Merge(p)
			res.Updated++
		} else {
			r.players[name] = p.Clone()
			res.Inserted++
		}
	}
	return res
}

func (r *MemoryRepository) GetPlayer(_ context.Context, username string) (*stats.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players[username].Clone(), nil
}

func (r *MemoryRepository) ListPlayers(_ context.Context) ([]*stats.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*stats.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *MemoryRepository) InsertSessions(_ context.Context, sessions []*stats.Session) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertSessionsLocked(sessions), nil
}

func (r *MemoryRepository) insertSessionsLocked(sessions []*stats.Session) int {
	inserted := 0
	for _, s := range sessions {
		key := sessionKey{name: s.Name, endDate: s.EndDate}
		if _, ok := r.sessions[key]; ok {
			continue
		}
		r.sessions[key] = cloneSession(s)
		inserted++
	}
	return inserted
}

func (r *MemoryRepository) ListSessions(_ context.Context, table string) ([]*stats.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*stats.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if table != "" && s.Name != table {
			continue
		}
		out = append(out, cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *MemoryRepository) LoadCheckpoints(_ context.Context) (parser.Checkpoints, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.marks.Clone(), nil
}

func (r *MemoryRepository) SaveCheckpoints(_ context.Context, marks parser.Checkpoints) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks = marks.Clone()
	return nil
}

func (r *MemoryRepository) SaveRunBatch(_ context.Context, batch RunBatch) (UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.upsertPlayersLocked(batch.Players)
	r.insertSessionsLocked(batch.Sessions)
	if batch.Marks != nil {
		r.marks = batch.Marks.Clone()
	}
	return res, nil
}

func cloneSession(s *stats.Session) *stats.Session {
	if s == nil {
		return nil
	}
	c := &stats.Session{Name: s.Name, EndDate: s.EndDate, Nets: make(map[string]float64, len(s.Nets))}
	for k, v := range s.Nets {
		c.Nets[k] = v
	}
	return c
}
