package stats

import "testing"

func TestRatioAddAndPercent(t *testing.T) {
	t.Parallel()

	r := Ratio{}
	if r.Observed() {
		t.Fatal("zero ratio must not count as observed")
	}
	if got := r.Percent(); got != 0 {
		t.Fatalf("percent of zero ratio = %v, want 0", got)
	}

	r.Add(Ratio{Hit: 1, Seen: 1})
	r.Add(Ratio{Seen: 1})
	r.Add(Ratio{Hit: 1, Seen: 2})

	if r.Hit != 2 || r.Seen != 4 {
		t.Fatalf("ratio = %+v, want Hit=2 Seen=4", r)
	}
	if got := r.Percent(); got != 50 {
		t.Fatalf("percent = %v, want 50", got)
	}
	if !r.Observed() {
		t.Fatal("ratio with opportunities must be observed")
	}
}

func TestObservedMissDistinctFromUnobserved(t *testing.T) {
	t.Parallel()

	miss := Ratio{Seen: 1}
	if !miss.Observed() {
		t.Fatal("observed miss must count as observed")
	}
	if miss == (Ratio{}) {
		t.Fatal("observed miss must differ from the zero ratio")
	}
}

func TestPlayerMergeAddsNetAndCounters(t *testing.T) {
	t.Parallel()

	a := NewPlayer("alice")
	a.Net = 120.5
	a.VPIP = Ratio{Hit: 3, Seen: 10}
	a.CBet = Ratio{Hit: 1, Seen: 2}

	b := NewPlayer("alice")
	b.Net = -20.5
	b.VPIP = Ratio{Hit: 1, Seen: 1}
	b.Donk = Ratio{Seen: 1}

	a.Merge(b)

	if a.Net != 100 {
		t.Fatalf("net = %v, want 100", a.Net)
	}
	if a.VPIP != (Ratio{Hit: 4, Seen: 11}) {
		t.Fatalf("vpip = %+v, want {4 11}", a.VPIP)
	}
	if a.CBet != (Ratio{Hit: 1, Seen: 2}) {
		t.Fatalf("cbet = %+v, want unchanged {1 2}", a.CBet)
	}
	if a.Donk != (Ratio{Seen: 1}) {
		t.Fatalf("donk = %+v, want {0 1}", a.Donk)
	}
}

func TestMergePlayersCommutative(t *testing.T) {
	t.Parallel()

	build := func() (map[string]*Player, map[string]*Player) {
		a := map[string]*Player{
			"alice": {Username: "alice", Net: 50, PFR: Ratio{Hit: 1, Seen: 1}},
			"bob":   {Username: "bob", Net: -50, Limp: Ratio{Hit: 1, Seen: 2}},
		}
		b := map[string]*Player{
			"alice": {Username: "alice", Net: 10, PFR: Ratio{Seen: 1}},
			"carol": {Username: "carol", Net: -10, ThreeBet: Ratio{Hit: 1, Seen: 1}},
		}
		return a, b
	}

	ab := make(map[string]*Player)
	a1, b1 := build()
	MergePlayers(ab, a1)
	MergePlayers(ab, b1)

	ba := make(map[string]*Player)
	a2, b2 := build()
	MergePlayers(ba, b2)
	MergePlayers(ba, a2)

	if len(ab) != len(ba) {
		t.Fatalf("merged sizes differ: %d vs %d", len(ab), len(ba))
	}
	for name, p := range ab {
		q, ok := ba[name]
		if !ok {
			t.Fatalf("player %q missing from reversed merge", name)
		}
		if *p != *q {
			t.Fatalf("player %q differs by merge order: %+v vs %+v", name, *p, *q)
		}
	}
}

func TestMergeUpholdsRatioInvariant(t *testing.T) {
	t.Parallel()

	target := make(map[string]*Player)
	sources := []map[string]*Player{
		{"alice": {Username: "alice", VPIP: Ratio{Hit: 1, Seen: 1}, PFR: Ratio{Seen: 1}}},
		{"alice": {Username: "alice", VPIP: Ratio{Seen: 1}, PFR: Ratio{Hit: 1, Seen: 1}}},
		{"alice": {Username: "alice", VPIP: Ratio{Hit: 1, Seen: 1}}},
	}
	for _, src := range sources {
		MergePlayers(target, src)
	}

	for _, nr := range target["alice"].Ratios() {
		if nr.Ratio.Hit > nr.Ratio.Seen {
			t.Fatalf("counter %s violates hit <= seen: %+v", nr.Name, *nr.Ratio)
		}
	}
}
