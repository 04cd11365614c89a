package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/donkhouse/donktrk/internal/parser"
	"github.com/donkhouse/donktrk/internal/persistence"
	"github.com/donkhouse/donktrk/internal/stats"
)

// ExportPair is one table's pair of export files. HistoryPath may be
// empty when only the ledger has been downloaded; the stats pass is
// skipped for that table.
type ExportPair struct {
	Table       string
	LedgerPath  string
	HistoryPath string
}

type ExportLocator func() ([]ExportPair, error)

// Service runs the ingest pipeline: ledger pass, hand-history pass,
// merge, transactional flush. It holds no accumulators between runs;
// everything durable lives behind the repository.
type Service struct {
	repo          persistence.RunRepository
	locateExports ExportLocator
}

func NewService(repo persistence.RunRepository, locator ExportLocator) *Service {
	if locator == nil {
		locator = func() ([]ExportPair, error) {
			return nil, fmt.Errorf("export locator is not configured")
		}
	}
	return &Service{repo: repo, locateExports: locator}
}

type RunSummary struct {
	Tables          int
	Sessions        int
	PlayersInserted int
	PlayersUpdated  int
}

// Run executes one full pipeline pass. The ledger pass advances a
// working copy of the checkpoint map; the hand-history pass is bounded
// below by the pre-run checkpoint and above by the advanced copy, so one
// run's statistics and net results cover the same time window. Nothing
// is persisted unless every file parses: a failed run changes no state.
func (s *Service) Run(ctx context.Context) (RunSummary, error) {
	pairs, err := s.locateExports()
	if err != nil {
		return RunSummary{}, err
	}
	if len(pairs) == 0 {
		return RunSummary{}, fmt.Errorf("no ledger exports found")
	}

	prev, err := s.repo.LoadCheckpoints(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	curr := prev.Clone()

	players := make(map[string]*stats.Player)
	var sessions []*stats.Session

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return RunSummary{}, err
		}

		ledgerPlayers, ledgerSessions, err := parser.ParseLedger(pair.LedgerPath, curr)
		if err != nil {
			return RunSummary{}, fmt.Errorf("ledger pass for table %q: %w", pair.Table, err)
		}
		stats.MergePlayers(players, ledgerPlayers)
		sessions = append(sessions, ledgerSessions...)

		if pair.HistoryPath != "" {
			handPlayers, err := parser.ParseHandHistories(pair.HistoryPath, prev, curr)
			if err != nil {
				return RunSummary{}, fmt.Errorf("stats pass for table %q: %w", pair.Table, err)
			}
			stats.MergePlayers(players, handPlayers)
		}

		slog.Debug("table parsed", "table", pair.Table,
			"sessions", len(ledgerSessions), "checkpoint", curr.At(parser.TableKey(pair.Table)))
	}

	res, err := s.repo.SaveRunBatch(ctx, persistence.RunBatch{
		Players:  players,
		Sessions: sessions,
		Marks:    curr,
	})
	if err != nil {
		return RunSummary{}, fmt.Errorf("save run batch: %w", err)
	}

	summary := RunSummary{
		Tables:          len(pairs),
		Sessions:        len(sessions),
		PlayersInserted: res.Inserted,
		PlayersUpdated:  res.Updated,
	}
	slog.Info("run complete", "tables", summary.Tables, "sessions", summary.Sessions,
		"playersInserted", summary.PlayersInserted, "playersUpdated", summary.PlayersUpdated)
	return summary, nil
}

func (s *Service) Close() error {
	if c, ok := s.repo.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// DetectExportPairs scans a download directory for ledger exports and
// their matching hand-history files. Tables with only a hand-history
// file are ignored: without the ledger pass there is no checkpoint
// window to finalize hands against.
func DetectExportPairs(dir string) ([]ExportPair, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*_ledger.csv"))
	if err != nil {
		return nil, err
	}

	pairs := make([]ExportPair, 0, len(matches))
	for _, ledger := range matches {
		table := strings.TrimSuffix(filepath.Base(ledger), "_ledger.csv")
		pair := ExportPair{Table: table, LedgerPath: ledger}
		history := filepath.Join(dir, table+"_hand_histories.txt")
		if _, err := os.Stat(history); err == nil {
			pair.HistoryPath = history
		}
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Table < pairs[j].Table })
	return pairs, nil
}

// FilterPairs restricts pairs to the named tables. An empty table list
// keeps everything.
func FilterPairs(pairs []ExportPair, tables []string) []ExportPair {
	if len(tables) == 0 {
		return pairs
	}
	keep := make(map[string]bool, len(tables))
	for _, t := range tables {
		keep[t] = true
	}
	out := pairs[:0]
	for _, p := range pairs {
		if keep[p.Table] {
			out = append(out, p)
		}
	}
	return out
}
