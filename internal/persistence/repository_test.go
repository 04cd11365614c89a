package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/donkhouse/donktrk/internal/parser"
	"github.com/donkhouse/donktrk/internal/stats"
)

// repoUnderTest pairs each RunRepository implementation with a fresh
// constructor so every subtest runs against both backends.
type repoUnderTest struct {
	name string
	open func(t *testing.T) RunRepository
}

func repoImplementations() []repoUnderTest {
	return []repoUnderTest{
		{
			name: "memory",
			open: func(t *testing.T) RunRepository {
				t.Helper()
				return NewMemoryRepository()
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) RunRepository {
				t.Helper()
				repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
				if err != nil {
					t.Fatalf("open sqlite repository: %v", err)
				}
				t.Cleanup(func() { _ = repo.Close() })
				return repo
			},
		},
	}
}

func samplePlayer(username string, net float64) *stats.Player {
	p := stats.NewPlayer(username)
	p.Net = net
	p.VPIP = stats.Ratio{Hit: 2, Seen: 5}
	p.PFR = stats.Ratio{Hit: 1, Seen: 5}
	p.CBet = stats.Ratio{Hit: 1, Seen: 1}
	return p
}

func sampleBatch(t *testing.T) RunBatch {
	t.Helper()
	end := time.Date(2022, 10, 7, 0, 0, 0, 0, time.UTC)
	sess := stats.NewSession("highstakes")
	sess.EndDate = end
	sess.AddNet("alice", 150.50)
	sess.AddNet("bob", -150.50)
	return RunBatch{
		Players: map[string]*stats.Player{
			"alice": samplePlayer("alice", 150.50),
			"bob":   samplePlayer("bob", -150.50),
		},
		Sessions: []*stats.Session{sess},
		Marks: parser.Checkpoints{
			parser.TableKey("highstakes"): time.Date(2022, 10, 7, 23, 10, 0, 0, time.UTC),
		},
	}
}

func TestSaveRunBatch(t *testing.T) {
	t.Parallel()
	for _, impl := range repoImplementations() {
		t.Run(impl.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			repo := impl.open(t)

			res, err := repo.SaveRunBatch(ctx, sampleBatch(t))
			if err != nil {
				t.Fatalf("SaveRunBatch: %v", err)
			}
			if res.Inserted != 2 || res.Updated != 0 {
				t.Fatalf("result = %+v, want 2 inserted 0 updated", res)
			}

			alice, err := repo.GetPlayer(ctx, "alice")
			if err != nil {
				t.Fatalf("GetPlayer: %v", err)
			}
			if alice == nil || alice.Net != 150.50 {
				t.Fatalf("alice = %+v, want net 150.50", alice)
			}
			if alice.VPIP != (stats.Ratio{Hit: 2, Seen: 5}) {
				t.Fatalf("alice vpip = %+v", alice.VPIP)
			}

			sessions, err := repo.ListSessions(ctx, "highstakes")
			if err != nil {
				t.Fatalf("ListSessions: %v", err)
			}
			if len(sessions) != 1 {
				t.Fatalf("sessions = %d, want 1", len(sessions))
			}
			if got := sessions[0].Nets["bob"]; got != -150.50 {
				t.Fatalf("bob session net = %v, want -150.50", got)
			}

			marks, err := repo.LoadCheckpoints(ctx)
			if err != nil {
				t.Fatalf("LoadCheckpoints: %v", err)
			}
			want := time.Date(2022, 10, 7, 23, 10, 0, 0, time.UTC)
			if got := marks.At(parser.TableKey("highstakes")); !got.Equal(want) {
				t.Fatalf("checkpoint = %v, want %v", got, want)
			}
		})
	}
}

func TestSaveRunBatchAdditiveAcrossRuns(t *testing.T) {
	t.Parallel()
	for _, impl := range repoImplementations() {
		t.Run(impl.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			repo := impl.open(t)

			if _, err := repo.SaveRunBatch(ctx, sampleBatch(t)); err != nil {
				t.Fatalf("first SaveRunBatch: %v", err)
			}

			second := RunBatch{
				Players: map[string]*stats.Player{
					"alice": samplePlayer("alice", -50.25),
					"carol": samplePlayer("carol", 50.25),
				},
				Marks: parser.Checkpoints{
					parser.TableKey("highstakes"): time.Date(2022, 10, 8, 22, 40, 0, 0, time.UTC),
				},
			}
			res, err := repo.SaveRunBatch(ctx, second)
			if err != nil {
				t.Fatalf("second SaveRunBatch: %v", err)
			}
			if res.Inserted != 1 || res.Updated != 1 {
				t.Fatalf("result = %+v, want 1 inserted 1 updated", res)
			}

			alice, err := repo.GetPlayer(ctx, "alice")
			if err != nil {
				t.Fatalf("GetPlayer: %v", err)
			}
			if alice.Net != 100.25 {
				t.Fatalf("alice net = %v, want 100.25", alice.Net)
			}
			if alice.VPIP != (stats.Ratio{Hit: 4, Seen: 10}) {
				t.Fatalf("alice vpip = %+v, want {4 10}", alice.VPIP)
			}

			marks, err := repo.LoadCheckpoints(ctx)
			if err != nil {
				t.Fatalf("LoadCheckpoints: %v", err)
			}
			want := time.Date(2022, 10, 8, 22, 40, 0, 0, time.UTC)
			if got := marks.At(parser.TableKey("highstakes")); !got.Equal(want) {
				t.Fatalf("checkpoint = %v, want %v", got, want)
			}
		})
	}
}

func TestInsertSessionsIgnoresDuplicates(t *testing.T) {
	t.Parallel()
	for _, impl := range repoImplementations() {
		t.Run(impl.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			repo := impl.open(t)

			batch := sampleBatch(t)
			n, err := repo.InsertSessions(ctx, batch.Sessions)
			if err != nil {
				t.Fatalf("InsertSessions: %v", err)
			}
			if n != 1 {
				t.Fatalf("inserted = %d, want 1", n)
			}

			n, err = repo.InsertSessions(ctx, batch.Sessions)
			if err != nil {
				t.Fatalf("re-insert: %v", err)
			}
			if n != 0 {
				t.Fatalf("re-inserted = %d, want 0", n)
			}

			sessions, err := repo.ListSessions(ctx, "")
			if err != nil {
				t.Fatalf("ListSessions: %v", err)
			}
			if len(sessions) != 1 {
				t.Fatalf("sessions = %d, want 1", len(sessions))
			}
		})
	}
}

func TestSaveCheckpointsOverwrites(t *testing.T) {
	t.Parallel()
	for _, impl := range repoImplementations() {
		t.Run(impl.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			repo := impl.open(t)

			first := parser.Checkpoints{
				parser.TableKey("highstakes"): time.Date(2022, 10, 7, 23, 10, 0, 0, time.UTC),
				parser.TableKey("microgrind"): time.Date(2022, 10, 6, 20, 0, 0, 0, time.UTC),
			}
			if err := repo.SaveCheckpoints(ctx, first); err != nil {
				t.Fatalf("SaveCheckpoints: %v", err)
			}

			next := parser.Checkpoints{
				parser.TableKey("highstakes"): time.Date(2022, 10, 8, 22, 40, 0, 0, time.UTC),
			}
			if err := repo.SaveCheckpoints(ctx, next); err != nil {
				t.Fatalf("overwrite: %v", err)
			}

			marks, err := repo.LoadCheckpoints(ctx)
			if err != nil {
				t.Fatalf("LoadCheckpoints: %v", err)
			}
			if len(marks) != 1 {
				t.Fatalf("checkpoints = %d, want 1 after overwrite", len(marks))
			}
			want := time.Date(2022, 10, 8, 22, 40, 0, 0, time.UTC)
			if got := marks.At(parser.TableKey("highstakes")); !got.Equal(want) {
				t.Fatalf("checkpoint = %v, want %v", got, want)
			}
		})
	}
}

func TestLoadCheckpointsEmptyStore(t *testing.T) {
	t.Parallel()
	for _, impl := range repoImplementations() {
		t.Run(impl.name, func(t *testing.T) {
			t.Parallel()
			repo := impl.open(t)

			marks, err := repo.LoadCheckpoints(context.Background())
			if err != nil {
				t.Fatalf("LoadCheckpoints: %v", err)
			}
			if marks == nil || len(marks) != 0 {
				t.Fatalf("marks = %v, want empty map", marks)
			}
		})
	}
}

func TestGetPlayerMissing(t *testing.T) {
	t.Parallel()
	for _, impl := range repoImplementations() {
		t.Run(impl.name, func(t *testing.T) {
			t.Parallel()
			repo := impl.open(t)

			p, err := repo.GetPlayer(context.Background(), "nobody")
			if err != nil {
				t.Fatalf("GetPlayer: %v", err)
			}
			if p != nil {
				t.Fatalf("player = %+v, want nil", p)
			}
		})
	}
}

func TestListPlayersSorted(t *testing.T) {
	t.Parallel()
	for _, impl := range repoImplementations() {
		t.Run(impl.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			repo := impl.open(t)

			if _, err := repo.UpsertPlayers(ctx, map[string]*stats.Player{
				"carol": samplePlayer("carol", 1),
				"alice": samplePlayer("alice", 2),
				"bob":   samplePlayer("bob", 3),
			}); err != nil {
				t.Fatalf("UpsertPlayers: %v", err)
			}

			players, err := repo.ListPlayers(ctx)
			if err != nil {
				t.Fatalf("ListPlayers: %v", err)
			}
			want := []string{"alice", "bob", "carol"}
			if len(players) != len(want) {
				t.Fatalf("players = %d, want %d", len(players), len(want))
			}
			for i, name := range want {
				if players[i].Username != name {
					t.Fatalf("players[%d] = %q, want %q", i, players[i].Username, name)
				}
			}
		})
	}
}
