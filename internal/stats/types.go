package stats

import "time"

// Ratio is a Bernoulli-trial counter: Hit observations of a behavior out
// of Seen opportunities. The zero value means "no opportunity observed
// yet", which is distinct from an observed miss (Seen=1, Hit=0).
type Ratio struct {
	Hit  int
	Seen int
}

// Add folds another counter into this one elementwise. Numerator and
// denominator accumulate independently so merges stay exact; a running
// float percentage would not.
func (r *Ratio) Add(o Ratio) {
	r.Hit += o.Hit
	r.Seen += o.Seen
}

// Observed reports whether any opportunity has been counted.
func (r Ratio) Observed() bool {
	return r.Seen > 0
}

// Percent returns the hit rate in percent, 0 when nothing was observed.
func (r Ratio) Percent() float64 {
	if r.Seen == 0 {
		return 0
	}
	return float64(r.Hit) / float64(r.Seen) * 100
}

// Player holds a player's cumulative state: session winnings and the
// behavioral ratio counters derived from hand histories.
type Player struct {
	Username string
	Net      float64

	VPIP           Ratio // voluntarily put money in pot preflop
	PFR            Ratio // preflop raise
	UOPFR          Ratio // unopened preflop raise (raise first in)
	Limp           Ratio // preflop call before any raise
	ThreeBet       Ratio // first re-raise after an initial raise
	FourBet        Ratio // re-raise by a player who already raised this hand
	FoldToThreeBet Ratio // original raiser's fold decision facing a 3-bet
	CBet           Ratio // flop bet by the most recent preflop raiser
	Donk           Ratio // flop bet into the preflop raiser before they act

	// Raised marks that the player raised earlier in the current hand.
	// Hand-scoped bookkeeping only; never merged or persisted.
	Raised bool
}

// NewPlayer returns a player with zeroed counters.
func NewPlayer(username string) *Player {
	return &Player{Username: username}
}

// Merge adds another player's net and counters into this one.
func (p *Player) Merge(o *Player) {
	if o == nil {
		return
	}
	p.Net += o.Net
	dst := p.ratios()
	src := o.ratios()
	for i := range dst {
		dst[i].Add(*src[i])
	}
}

func (p *Player) ratios() []*Ratio {
	return []*Ratio{
		&p.VPIP, &p.PFR, &p.UOPFR, &p.Limp, &p.ThreeBet,
		&p.FourBet, &p.FoldToThreeBet, &p.CBet, &p.Donk,
	}
}

// Ratios returns the counters keyed by their short stat name, in a stable
// order. Used by the persistence layer and invariant checks.
func (p *Player) Ratios() []NamedRatio {
	return []NamedRatio{
		{"vpip", &p.VPIP},
		{"pfr", &p.PFR},
		{"uopfr", &p.UOPFR},
		{"limp", &p.Limp},
		{"threebet", &p.ThreeBet},
		{"fourbet", &p.FourBet},
		{"fold_to_threebet", &p.FoldToThreeBet},
		{"cbet", &p.CBet},
		{"donk", &p.Donk},
	}
}

type NamedRatio struct {
	Name  string
	Ratio *Ratio
}

// Clone returns a deep copy of the player.
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// MergePlayers folds every player in src into dst, inserting players that
// dst has not seen. The operation is commutative and associative over the
// counters, which both parsers rely on when feeding the same map.
func MergePlayers(dst, src map[string]*Player) {
	for name, sp := range src {
		if dp, ok := dst[name]; ok {
			dp.Merge(sp)
		} else {
			dst[name] = sp
		}
	}
}

// Session is one completed cash session at a table: every participating
// player's net result, stamped with the session's end date. Immutable
// once the ledger parser appends it.
type Session struct {
	Name    string
	EndDate time.Time
	Nets    map[string]float64
}

// NewSession returns an empty session accumulator for a table.
func NewSession(name string) *Session {
	return &Session{Name: name, Nets: make(map[string]float64)}
}

// AddNet records a player's net contribution. Additive, so a player
// appearing in more than one row of the same session merges cleanly.
func (s *Session) AddNet(username string, net float64) {
	s.Nets[username] += net
}
