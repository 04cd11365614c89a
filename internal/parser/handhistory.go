package parser

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/donkhouse/donktrk/internal/stats"
)

const handTimeLayout = "2006-01-02 15:04:05"

const historySuffix = "_hand_histories.txt"

const cardPattern = `([2-9]|10|J|Q|K|A)(\\uc0)?(♠|♦|♥|♣)`

var (
	reHandHeader = regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}): New hand \(ID [a-zA-Z0-9]+\) of NL Texas Holdem`)

	reSeated   = regexp.MustCompile(`^([a-zA-Z0-9_.-]+) \(\d+(\.\d{1,2})?, [A-Z0-9+]+\)`)
	reBigBlind = regexp.MustCompile(`^([a-zA-Z0-9_.-]+) \(\d+(\.\d{1,2})?, BB\)`)
	reBlindPost = regexp.MustCompile(`^[a-zA-Z0-9_.-]+ posted \d+(\.\d{1,2})?`)

	reFlopBoard = regexp.MustCompile(`board: ` + cardPattern + `\s+` + cardPattern + `\s+` + cardPattern)
	reTurnBoard = regexp.MustCompile(`board: ` + cardPattern + `\s+` + cardPattern + `\s+` + cardPattern + `\s+` + cardPattern)

	reRaise = regexp.MustCompile(`^([a-zA-Z0-9_.-]+) raised to \d+(\.\d{1,2})?`)
	reCall  = regexp.MustCompile(`^([a-zA-Z0-9_.-]+) called \d+(\.\d{1,2})?`)
	reBet   = regexp.MustCompile(`^([a-zA-Z0-9_.-]+) bet \d+(\.\d{1,2})?`)
	reCheck = regexp.MustCompile(`^([a-zA-Z0-9_.-]+) checked`)
	reFold  = regexp.MustCompile(`^([a-zA-Z0-9_.-]+) folded`)
	reWon   = regexp.MustCompile(`^([a-zA-Z0-9_.-]+) won \d+(\.\d{1,2})? chips`)
)

// TableFromHistoryPath extracts the owning table name from a hand-history
// export filename such as "highstakes_hand_histories.txt".
func TableFromHistoryPath(path string) (string, error) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, historySuffix) {
		return "", fmt.Errorf("%q is not a hand-history export: %w", base, ErrMalformedInput)
	}
	return strings.TrimSuffix(base, historySuffix), nil
}

// handState is the transient per-hand role bookkeeping. Every pointer
// refers into players and is discarded at the hand boundary.
type handState struct {
	players  map[string]*stats.Player
	bigBlind *stats.Player

	firstRaiser    *stats.Player // first preflop raiser (the open)
	reRaiser       *stats.Player // first re-raiser (the 3-bet)
	fourBettor     *stats.Player // first 4-bettor
	lastRaiser     *stats.Player // most recent raiser entering the flop
	flopFirstActor *stats.Player // locked at the first flop bet

	walk bool // no voluntary money entered the pot preflop
}

func newHandState() *handState {
	return &handState{players: make(map[string]*stats.Player), walk: true}
}

func (h *handState) player(path string, lineNo int, name string) (*stats.Player, error) {
	p, ok := h.players[name]
	if !ok {
		return nil, malformed(path, lineNo, "action by unseated player %q", name)
	}
	return p, nil
}

// historyScanner walks one hand-history file line by line.
type historyScanner struct {
	path    string
	scanner *bufio.Scanner
	lineNo  int
	line    string
	eof     bool
}

func (s *historyScanner) next() bool {
	if s.eof {
		return false
	}
	if !s.scanner.Scan() {
		s.eof = true
		return false
	}
	s.lineNo++
	s.line = s.scanner.Text()
	return true
}

// ParseHandHistories walks a hand-history log and derives per-player
// behavioral counters for every hand inside the checkpoint window:
// strictly after prev's entry for the table and no later than curr's.
// Hands at or before the lower bound were counted by an earlier run and
// are skipped; the first hand beyond the upper bound stops the file so
// hand statistics never run ahead of the ledger-derived net results.
func ParseHandHistories(path string, prev, curr Checkpoints) (map[string]*stats.Player, error) {
	table, err := TableFromHistoryPath(path)
	if err != nil {
		return nil, err
	}
	key := TableKey(table)
	prevLatest := prev.At(key)
	currLatest := curr.At(key)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("hand histories %q: %w", path, ErrMissingSource)
		}
		return nil, fmt.Errorf("open hand histories %q: %w", path, err)
	}
	defer f.Close()

	s := &historyScanner{path: path, scanner: bufio.NewScanner(f)}
	s.scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	fileAcc := make(map[string]*stats.Player)
	for s.next() {
		m := reHandHeader.FindStringSubmatch(s.line)
		if m == nil {
			continue
		}
		ts, terr := time.Parse(handTimeLayout, m[1])
		if terr != nil {
			return nil, malformed(path, s.lineNo, "hand header has no parsable time")
		}
		if !ts.After(prevLatest) {
			continue // already counted by a previous run
		}
		if ts.After(currLatest) {
			// Beyond the window this run may finalize; keep what we
			// have so stats stay aligned with the ledger checkpoint.
			break
		}

		hand, herr := parseHand(s)
		if herr != nil {
			return nil, herr
		}
		if hand.walk && hand.bigBlind != nil {
			// A walk gives the big blind a free hand; it carries no
			// observation and is excluded from the hand's stats.
			delete(hand.players, hand.bigBlind.Username)
		}
		for _, p := range hand.players {
			p.Raised = false
		}
		stats.MergePlayers(fileAcc, hand.players)
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read hand histories %q: %w", path, err)
	}
	return fileAcc, nil
}

// parseHand consumes one hand: the seating phase up to the first forced
// bet, preflop action up to the flop board, and flop action up to the
// turn board. A pot-award line ends the hand from any phase.
func parseHand(s *historyScanner) (*handState, error) {
	h := newHandState()

	// Seating: everything before the first blind post.
	for s.next() {
		if reBlindPost.MatchString(s.line) {
			break
		}
		if m := reSeated.FindStringSubmatch(s.line); m != nil {
			p := stats.NewPlayer(m[1])
			h.players[p.Username] = p
			if reBigBlind.MatchString(s.line) {
				h.bigBlind = p
			}
		}
	}

	awarded, err := parsePreflop(s, h)
	if err != nil || awarded {
		return h, err
	}
	return h, parseFlop(s, h)
}

// parsePreflop classifies preflop actions until the flop board is dealt.
// Returns true if the pot was awarded preflop, in which case flop
// classification is skipped.
func parsePreflop(s *historyScanner, h *handState) (bool, error) {
	for s.next() {
		switch {
		case reWon.MatchString(s.line):
			return true, nil
		case reFlopBoard.MatchString(s.line):
			return false, nil

		case reRaise.MatchString(s.line):
			p, err := h.player(s.path, s.lineNo, reRaise.FindStringSubmatch(s.line)[1])
			if err != nil {
				return false, err
			}
			p.PFR = stats.Ratio{Hit: 1, Seen: 1}
			p.VPIP = stats.Ratio{Hit: 1, Seen: 1}
			switch {
			case h.firstRaiser == nil:
				h.firstRaiser = p
				p.UOPFR = stats.Ratio{Hit: 1, Seen: 1}
				p.Limp = stats.Ratio{Seen: 1}
			case h.reRaiser == nil:
				h.reRaiser = p
				p.ThreeBet = stats.Ratio{Hit: 1, Seen: 1}
			case p.Raised:
				h.fourBettor = p
				p.FourBet = stats.Ratio{Hit: 1, Seen: 1}
			}
			h.lastRaiser = p
			p.Raised = true
			h.walk = false

		case reCall.MatchString(s.line):
			p, err := h.player(s.path, s.lineNo, reCall.FindStringSubmatch(s.line)[1])
			if err != nil {
				return false, err
			}
			p.VPIP = stats.Ratio{Hit: 1, Seen: 1}
			if (p.PFR != stats.Ratio{Hit: 1, Seen: 1}) {
				p.PFR = stats.Ratio{Seen: 1}
			}
			h.walk = false
			switch {
			case h.firstRaiser == nil:
				p.UOPFR = stats.Ratio{Seen: 1}
				p.Limp = stats.Ratio{Hit: 1, Seen: 1}
			case h.reRaiser == nil:
				p.ThreeBet = stats.Ratio{Seen: 1}
			case h.fourBettor == nil:
				if p == h.firstRaiser {
					p.FoldToThreeBet = stats.Ratio{Seen: 1} // continued vs the 3-bet
				}
				p.FourBet = stats.Ratio{Seen: 1}
			}

		case reFold.MatchString(s.line):
			p, err := h.player(s.path, s.lineNo, reFold.FindStringSubmatch(s.line)[1])
			if err != nil {
				return false, err
			}
			if (p.VPIP != stats.Ratio{Hit: 1, Seen: 1}) {
				p.VPIP = stats.Ratio{Seen: 1}
			}
			if (p.PFR != stats.Ratio{Hit: 1, Seen: 1}) {
				p.PFR = stats.Ratio{Seen: 1}
			}
			switch {
			case h.firstRaiser == nil:
				p.UOPFR = stats.Ratio{Seen: 1}
				p.Limp = stats.Ratio{Seen: 1}
			case h.reRaiser == nil:
				p.ThreeBet = stats.Ratio{Seen: 1}
			case h.fourBettor == nil:
				if p == h.firstRaiser {
					p.FoldToThreeBet = stats.Ratio{Hit: 1, Seen: 1}
				}
				p.FourBet = stats.Ratio{Seen: 1}
			}
		}
	}
	return false, nil
}

// parseFlop classifies the first betting event on the flop street and
// consumes lines until the turn board or a pot award. Only the first bet
// is classified; the first-actor pointer is locked once set.
func parseFlop(s *historyScanner, h *handState) error {
	for s.next() {
		switch {
		case reWon.MatchString(s.line):
			return nil
		case reTurnBoard.MatchString(s.line):
			return nil

		case reBet.MatchString(s.line):
			p, err := h.player(s.path, s.lineNo, reBet.FindStringSubmatch(s.line)[1])
			if err != nil {
				return err
			}
			if h.flopFirstActor == nil {
				if p == h.lastRaiser {
					p.CBet = stats.Ratio{Hit: 1, Seen: 1}
				} else if h.lastRaiser != nil && !h.lastRaiser.CBet.Observed() {
					// A bet into the preflop raiser before they have
					// acted on this street.
					p.Donk = stats.Ratio{Hit: 1, Seen: 1}
				}
				h.flopFirstActor = p
			}

		case reCheck.MatchString(s.line):
			p, err := h.player(s.path, s.lineNo, reCheck.FindStringSubmatch(s.line)[1])
			if err != nil {
				return err
			}
			if h.flopFirstActor == nil {
				p.Donk = stats.Ratio{Seen: 1}
				if p == h.lastRaiser {
					p.CBet = stats.Ratio{Seen: 1}
				}
			}
		}
	}
	return nil
}
