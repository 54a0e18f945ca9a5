package obscuro

import "fmt"

// stubTrace is a test observation: a seat plus a path string ordered
// by prefix.
type stubTrace struct {
	seat Player
	path string
}

func (t stubTrace) Key() string {
	return fmt.Sprintf("stub:%v:%s", t.seat, t.path)
}

func (t stubTrace) Compare(other Trace) (Ordering, bool) {
	o, ok := other.(stubTrace)
	if !ok || o.seat != t.seat {
		return 0, false
	}

	switch {
	case t.path == o.path:
		return Same, true
	case len(t.path) < len(o.path) && o.path[:len(t.path)] == t.path:
		return Before, true
	case len(o.path) < len(t.path) && t.path[:len(o.path)] == o.path:
		return After, true
	}

	return 0, false
}

// stubGame is a perfect-information two-ply game over moves "a" and
// "b": P1 moves, P2 moves, done. Both seats observe the full path.
type stubGame struct {
	path string
}

var stubPayoffs = map[string]Reward{
	"aa": 1.0,
	"ab": -0.5,
	"ba": 0.25,
	"bb": -1.0,
}

func (g stubGame) Player() Player {
	switch len(g.path) {
	case 0:
		return P1
	case 1:
		return P2
	}

	return Terminated
}

func (g stubGame) Actions() []Action {
	if g.IsOver() {
		panic("stub: no actions in finished game")
	}

	return []Action{"a", "b"}
}

func (g stubGame) Play(a Action) Game {
	return stubGame{path: g.path + a.(string)}
}

func (g stubGame) IsOver() bool { return len(g.path) == 2 }

func (g stubGame) Evaluate() Reward {
	if g.IsOver() {
		return stubPayoffs[g.path]
	}

	return 0
}

func (g stubGame) Trace(p Player) Trace {
	return stubTrace{seat: p, path: g.path}
}

// stubRules enumerates every state with the observed path prefix.
type stubRules struct{}

func (stubRules) SamplePositions(t Trace) PositionIter {
	tr, ok := t.(stubTrace)
	if !ok {
		return NewPositionSlice()
	}

	return NewPositionSlice(stubGame{path: tr.path})
}
