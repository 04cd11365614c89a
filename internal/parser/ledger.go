package parser

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/donkhouse/donktrk/internal/stats"
)

const ledgerTimeLayout = "2006-01-02 15:04:05"

const ledgerSuffix = "_ledger.csv"

// terminator sentinel in the identity column of a session-closing row
const endTimeSentinel = "End time:"

// TableFromLedgerPath extracts the owning table name from a ledger export
// filename such as "highstakes_ledger.csv".
func TableFromLedgerPath(path string) (string, error) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ledgerSuffix) {
		return "", fmt.Errorf("%q is not a ledger export: %w", base, ErrMalformedInput)
	}
	return strings.TrimSuffix(base, ledgerSuffix), nil
}

// ParseLedger walks a session-ledger export and reconstructs each
// player's net result per session, bounded by the table's checkpoint in
// marks. Sessions already covered by the checkpoint stop the scan: the
// export lists sessions most-recent-first, so the first stale terminator
// means everything after it has been counted too.
//
// On success the table's checkpoint in marks is advanced to the latest
// session end time observed. On error nothing accumulated is returned.
func ParseLedger(path string, marks Checkpoints) (map[string]*stats.Player, []*stats.Session, error) {
	table, err := TableFromLedgerPath(path)
	if err != nil {
		return nil, nil, err
	}
	key := TableKey(table)
	prevLatest := marks.At(key)
	newLatest := prevLatest

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("ledger %q: %w", path, ErrMissingSource)
		}
		return nil, nil, fmt.Errorf("open ledger %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0

	// The export starts with a one-line preamble, then the column header.
	if !scanner.Scan() {
		return nil, nil, malformed(path, 1, "missing preamble line")
	}
	lineNo++
	if !scanner.Scan() {
		return nil, nil, malformed(path, 2, "missing header line")
	}
	lineNo++
	userIdx, netIdx, timeIdx, err := ledgerColumns(path, lineNo, scanner.Text())
	if err != nil {
		return nil, nil, err
	}

	players := make(map[string]*stats.Player)
	var sessions []*stats.Session
	curr := stats.NewSession(table)

scan:
	for scanner.Scan() {
		lineNo++
		fields := splitLedgerRow(scanner.Text())

		user := fieldAt(fields, userIdx)
		netField := fieldAt(fields, netIdx)

		switch {
		case user == "":
			// Separator row: the rows that follow belong to a new
			// session. Anything unflushed is discarded.
			curr = stats.NewSession(table)

		case user == endTimeSentinel && netField == "":
			ts, terr := time.Parse(ledgerTimeLayout, fieldAt(fields, timeIdx))
			if terr != nil {
				return nil, nil, malformed(path, lineNo, "terminator row has no parsable end time")
			}
			if !ts.After(prevLatest) {
				// This session and every older one below it are
				// already folded in.
				break scan
			}
			curr.EndDate = ts.Truncate(24 * time.Hour)
			sessions = append(sessions, curr)
			if ts.After(newLatest) {
				newLatest = ts
			}
			mergeSessionNets(players, curr)
			curr = stats.NewSession(table)

		default:
			net, perr := strconv.ParseFloat(netField, 64)
			if perr != nil {
				continue // informational row, no net amount
			}
			curr.AddNet(user, net)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read ledger %q: %w", path, err)
	}

	marks.Advance(key, newLatest)
	return players, sessions, nil
}

func ledgerColumns(path string, lineNo int, header string) (userIdx, netIdx, timeIdx int, err error) {
	userIdx, netIdx, timeIdx = -1, -1, -1
	for i, name := range splitLedgerRow(header) {
		switch name {
		case "User":
			userIdx = i
		case "Net":
			netIdx = i
		case "In":
			timeIdx = i
		}
	}
	if userIdx < 0 || netIdx < 0 || timeIdx < 0 {
		return 0, 0, 0, malformed(path, lineNo, "header lacks User/Net/In columns")
	}
	return userIdx, netIdx, timeIdx, nil
}

func splitLedgerRow(line string) []string {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func fieldAt(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}

// mergeSessionNets folds a closed session's per-player nets into the
// accumulating player map. Only net moves here; behavioral counters come
// from the hand-history pass.
func mergeSessionNets(players map[string]*stats.Player, s *stats.Session) {
	for user, net := range s.Nets {
		p, ok := players[user]
		if !ok {
			p = stats.NewPlayer(user)
			players[user] = p
		}
		p.Net += net
	}
}
