package parser

import "time"

// Checkpoints maps a source-table key to the latest event time already
// folded into cumulative statistics. A missing key reads as the zero
// time, i.e. "parse from the beginning". Keys only move forward: Advance
// refuses to set an earlier time, so a run can never rewind a table.
type Checkpoints map[string]time.Time

// TableKey builds the checkpoint key for a table. One key covers both the
// ledger and the hand-history export of the same table, which is what
// keeps net results and hand statistics time-synchronized across a run.
func TableKey(table string) string {
	return table + " latest parsed time"
}

// At returns the checkpoint for key, or the zero time if absent.
func (c Checkpoints) At(key string) time.Time {
	return c[key]
}

// Advance raises the checkpoint for key to t if t is strictly later.
// Reports whether the key moved.
func (c Checkpoints) Advance(key string, t time.Time) bool {
	if !t.After(c[key]) {
		return false
	}
	c[key] = t
	return true
}

// Clone returns an independent copy. The ledger pass advances a working
// copy while the hand-history pass still needs the pre-run values as its
// lower bound.
func (c Checkpoints) Clone() Checkpoints {
	out := make(Checkpoints, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
