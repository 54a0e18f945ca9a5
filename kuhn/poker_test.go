package kuhn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	obscuro "github.com/obscuro-ai/go-obscuro"
)

func countStates(g obscuro.Game) (nodes, terminals int) {
	if g.IsOver() {
		return 1, 1
	}

	nodes = 1
	for _, a := range g.Actions() {
		n, t := countStates(g.Play(a))
		nodes += n
		terminals += t
	}

	return nodes, terminals
}

func TestGameTree(t *testing.T) {
	nodes, terminals := countStates(New())
	if nodes != 55 {
		t.Errorf("expected 55 nodes, got %d", nodes)
	}
	if terminals != 30 {
		t.Errorf("expected 30 terminal nodes, got %d", terminals)
	}
}

func TestInfoSets(t *testing.T) {
	seen := make(map[string]struct{})
	var walk func(g obscuro.Game)
	walk = func(g obscuro.Game) {
		if g.IsOver() {
			return
		}
		if p := g.Player(); p == obscuro.P1 || p == obscuro.P2 {
			seen[g.Trace(p).Key()] = struct{}{}
		}
		for _, a := range g.Actions() {
			walk(g.Play(a))
		}
	}
	walk(New())

	if len(seen) != 12 {
		t.Errorf("expected 12 infosets, got %d", len(seen))
	}
}

func TestTraceOrdering(t *testing.T) {
	root := NewTrace(obscuro.P1, King, "")
	later := NewTrace(obscuro.P1, King, "cb")

	ord, ok := root.Compare(later)
	require.True(t, ok)
	assert.Equal(t, obscuro.Before, ord)

	ord, ok = later.Compare(root)
	require.True(t, ok)
	assert.Equal(t, obscuro.After, ord)

	// Different private cards are different worlds for one seat.
	_, ok = root.Compare(NewTrace(obscuro.P1, Queen, ""))
	assert.False(t, ok)

	// Diverging public histories are incomparable.
	_, ok = NewTrace(obscuro.P2, King, "b").Compare(NewTrace(obscuro.P2, King, "cb"))
	assert.False(t, ok)
}

func TestPayoffs(t *testing.T) {
	g := NewDealt(King, Queen)
	showdown := g.Play(Check).Play(Check)
	require.True(t, showdown.IsOver())
	assert.Equal(t, obscuro.Reward(0.5), showdown.Evaluate())

	betCall := g.Play(Bet).Play(Call)
	require.True(t, betCall.IsOver())
	assert.Equal(t, obscuro.Reward(1.0), betCall.Evaluate())

	fold := NewDealt(Jack, King).Play(Bet).Play(Fold)
	require.True(t, fold.IsOver())
	assert.Equal(t, obscuro.Reward(0.5), fold.Evaluate(), "P2 folding concedes the ante")
}

func TestValueConvergence(t *testing.T) {
	if testing.Short() {
		t.Skip("convergence test in -short mode")
	}

	// The Nash value of Kuhn poker for the first player is -1/18 of a
	// bet: -1/36 in normalized units.
	ob := obscuro.New(Rules{},
		obscuro.WithSolveTime(3*time.Second),
		obscuro.WithSeed(17))

	ob.StudyPosition(New().Trace(obscuro.P1), obscuro.P1)
	assert.InDelta(t, -1.0/36.0, ob.Expectation(), 0.05)
}

func TestDominantResponses(t *testing.T) {
	if testing.Short() {
		t.Skip("convergence test in -short mode")
	}

	// Facing a bet, calling with the King and folding the Jack are
	// dominant whatever the opponent's strategy, so the purified
	// actions are fully determined.
	ob := obscuro.New(Rules{},
		obscuro.WithSolveTime(2*time.Second),
		obscuro.WithSeed(23))
	action := ob.MakeMove(NewTrace(obscuro.P2, King, "b"), obscuro.P2)
	assert.Equal(t, Call, action)

	ob = obscuro.New(Rules{},
		obscuro.WithSolveTime(2*time.Second),
		obscuro.WithSeed(29))
	action = ob.MakeMove(NewTrace(obscuro.P2, Jack, "b"), obscuro.P2)
	assert.Equal(t, Fold, action)
}
