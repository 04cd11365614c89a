package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/donkhouse/donktrk/internal/parser"
	"github.com/donkhouse/donktrk/internal/stats"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// WAL mode reduces write latency by avoiding full fsync on every commit.
	// synchronous=NORMAL is safe with WAL and significantly faster than the default FULL.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set sqlite pragmas: %w", err)
	}
	repo := &SQLiteRepository{db: db}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) UpsertPlayers(ctx context.Context, players map[string]*stats.Player) (UpsertResult, error) {
	var res UpsertResult
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = upsertPlayersTx(ctx, tx, players)
		return err
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return res, nil
}

func upsertPlayersTx(ctx context.Context, tx *sql.Tx, players map[string]*stats.Player) (UpsertResult, error) {
	res := UpsertResult{}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	for _, p := range players {
		exists, err := rowExists(ctx, tx, `SELECT 1 FROM players WHERE username = ? LIMIT 1`, p.Username)
		if err != nil {
			return UpsertResult{}, err
		}

		// Counters are deltas: the conflict branch adds, never replaces.
		if _, err := tx.ExecContext(ctx, `INSERT INTO players(
			username, net,
			vpip_num, vpip_denom, pfr_num, pfr_denom, uopfr_num, uopfr_denom,
			limp_num, limp_denom, threebet_num, threebet_denom,
			fourbet_num, fourbet_denom, fold_to_three_num, fold_to_three_denom,
			cbet_num, cbet_denom, donk_num, donk_denom, updated_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			net=net+excluded.net,
			vpip_num=vpip_num+excluded.vpip_num,
			vpip_denom=vpip_denom+excluded.vpip_denom,
			pfr_num=pfr_num+excluded.pfr_num,
			pfr_denom=pfr_denom+excluded.pfr_denom,
			uopfr_num=uopfr_num+excluded.uopfr_num,
			uopfr_denom=uopfr_denom+excluded.uopfr_denom,
			limp_num=limp_num+excluded.limp_num,
			limp_denom=limp_denom+excluded.limp_denom,
			threebet_num=threebet_num+excluded.threebet_num,
			threebet_denom=threebet_denom+excluded.threebet_denom,
			fourbet_num=fourbet_num+excluded.fourbet_num,
			fourbet_denom=fourbet_denom+excluded.fourbet_denom,
			fold_to_three_num=fold_to_three_num+excluded.fold_to_three_num,
			fold_to_three_denom=fold_to_three_denom+excluded.fold_to_three_denom,
			cbet_num=cbet_num+excluded.cbet_num,
			cbet_denom=cbet_denom+excluded.cbet_denom,
			donk_num=donk_num+excluded.donk_num,
			donk_denom=donk_denom+excluded.donk_denom,
			updated_at=excluded.updated_at`,
			p.Username, p.Net,
			p.VPIP.Hit, p.VPIP.Seen, p.PFR.Hit, p.PFR.Seen, p.UOPFR.Hit, p.UOPFR.Seen,
			p.Limp.Hit, p.Limp.Seen, p.ThreeBet.Hit, p.ThreeBet.Seen,
			p.FourBet.Hit, p.FourBet.Seen, p.FoldToThreeBet.Hit, p.FoldToThreeBet.Seen,
			p.CBet.Hit, p.CBet.Seen, p.Donk.Hit, p.Donk.Seen, now,
		); err != nil {
			return UpsertResult{}, fmt.Errorf("upsert player %q: %w", p.Username, err)
		}

		if exists {
			res.Updated++
		} else {
			res.Inserted++
		}
	}
	return res, nil
}

func (r *SQLiteRepository) GetPlayer(ctx context.Context, username string) (*stats.Player, error) {
	row := r.db.QueryRowContext(ctx, playerSelect+` WHERE username = ?`, username)
	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *SQLiteRepository) ListPlayers(ctx context.Context) ([]*stats.Player, error) {
	rows, err := r.db.QueryContext(ctx, playerSelect+` ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*stats.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const playerSelect = `SELECT username, net,
	vpip_num, vpip_denom, pfr_num, pfr_denom, uopfr_num, uopfr_denom,
	limp_num, limp_denom, threebet_num, threebet_denom,
	fourbet_num, fourbet_denom, fold_to_three_num, fold_to_three_denom,
	cbet_num, cbet_denom, donk_num, donk_denom
FROM players`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*stats.Player, error) {
	p := &stats.Player{}
	err := row.Scan(&p.Username, &p.Net,
		&p.VPIP.Hit, &p.VPIP.Seen, &p.PFR.Hit, &p.PFR.Seen, &p.UOPFR.Hit, &p.UOPFR.Seen,
		&p.Limp.Hit, &p.Limp.Seen, &p.ThreeBet.Hit, &p.ThreeBet.Seen,
		&p.FourBet.Hit, &p.FourBet.Seen, &p.FoldToThreeBet.Hit, &p.FoldToThreeBet.Seen,
		&p.CBet.Hit, &p.CBet.Seen, &p.Donk.Hit, &p.Donk.Seen,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *SQLiteRepository) InsertSessions(ctx context.Context, sessions []*stats.Session) (int, error) {
	inserted := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		inserted, err = insertSessionsTx(ctx, tx, sessions)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func insertSessionsTx(ctx context.Context, tx *sql.Tx, sessions []*stats.Session) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	inserted := 0

	for _, s := range sessions {
		nets, err := json.Marshal(s.Nets)
		if err != nil {
			return 0, fmt.Errorf("encode session nets: %w", err)
		}
		endDate := s.EndDate.UTC().Format(time.RFC3339Nano)
		result, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sessions(name, end_date, nets, updated_at)
			VALUES(?, ?, ?, ?)`,
			s.Name, endDate, string(nets), now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert session %q: %w", s.Name, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue // session already recorded
		}
		inserted++

		var sessionID int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM sessions WHERE name = ? AND end_date = ?`,
			s.Name, endDate).Scan(&sessionID); err != nil {
			return 0, err
		}
		for user, net := range s.Nets {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO session_players(session_id, username, net)
				VALUES(?, ?, ?)`, sessionID, user, net); err != nil {
				return 0, err
			}
		}
	}
	return inserted, nil
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, table string) ([]*stats.Session, error) {
	query := `SELECT name, end_date, nets FROM sessions`
	args := []any{}
	if table != "" {
		query += ` WHERE name = ?`
		args = append(args, table)
	}
	query += ` ORDER BY end_date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*stats.Session
	for rows.Next() {
		var name, endDate, nets string
		if err := rows.Scan(&name, &endDate, &nets); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, endDate)
		if err != nil {
			return nil, fmt.Errorf("session %q has bad end date: %w", name, err)
		}
		s := &stats.Session{Name: name, EndDate: ts, Nets: make(map[string]float64)}
		if err := json.Unmarshal([]byte(nets), &s.Nets); err != nil {
			return nil, fmt.Errorf("decode session nets: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) LoadCheckpoints(ctx context.Context) (parser.Checkpoints, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT source_key, latest_time FROM checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()

	marks := make(parser.Checkpoints)
	for rows.Next() {
		var key, latest string
		if err := rows.Scan(&key, &latest); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		ts, terr := time.Parse(time.RFC3339Nano, latest)
		if terr != nil {
			// Fail closed: a half-readable checkpoint must not make the
			// run restart from zero against additive upserts.
			return nil, fmt.Errorf("checkpoint %q holds %q: %w", key, latest, parser.ErrCheckpointCorrupt)
		}
		marks[key] = ts
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return marks, nil
}

func (r *SQLiteRepository) SaveCheckpoints(ctx context.Context, marks parser.Checkpoints) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return saveCheckpointsTx(ctx, tx, marks)
	})
}

func saveCheckpointsTx(ctx context.Context, tx *sql.Tx, marks parser.Checkpoints) error {
	// Full overwrite: callers hand over the complete next-state map.
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints`); err != nil {
		return fmt.Errorf("clear checkpoints: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for key, ts := range marks {
		if _, err := tx.ExecContext(ctx, `INSERT INTO checkpoints(source_key, latest_time, updated_at)
			VALUES(?, ?, ?)`,
			key, ts.UTC().Format(time.RFC3339Nano), now); err != nil {
			return fmt.Errorf("save checkpoint %q: %w", key, err)
		}
	}
	return nil
}

// SaveRunBatch commits player deltas, new sessions and the checkpoint
// overwrite in a single transaction. This is the write-after-success
// discipline: a failed run changes nothing, so re-running is safe.
func (r *SQLiteRepository) SaveRunBatch(ctx context.Context, batch RunBatch) (UpsertResult, error) {
	var res UpsertResult
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if res, err = upsertPlayersTx(ctx, tx, batch.Players); err != nil {
			return err
		}
		if _, err = insertSessionsTx(ctx, tx, batch.Sessions); err != nil {
			return err
		}
		if batch.Marks != nil {
			return saveCheckpointsTx(ctx, tx, batch.Marks)
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return res, nil
}

func rowExists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
