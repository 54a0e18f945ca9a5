package obscuro_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	obscuro "github.com/obscuro-ai/go-obscuro"
	"github.com/obscuro-ai/go-obscuro/rps"
)

func studyMatrix(t *testing.T, m *rps.Matrix, budget time.Duration, opts ...obscuro.Option) *obscuro.Obscuro {
	t.Helper()

	opts = append([]obscuro.Option{
		obscuro.WithSolveTime(budget),
		obscuro.WithSeed(7),
	}, opts...)
	ob := obscuro.New(rps.NewRules(m), opts...)

	root := rps.New(m)
	ob.StudyPosition(root.Trace(obscuro.P1), obscuro.P1)
	return ob
}

func requireAvgNear(t *testing.T, ob *obscuro.Obscuro, trace obscuro.Trace, want []float64, tol float64) {
	t.Helper()

	in, ok := ob.InfoSet(trace)
	require.True(t, ok, "infoset %v was never created", trace)

	avg := in.AvgStrategy()
	require.Len(t, avg, len(want))
	for i, w := range want {
		assert.InDelta(t, w, avg[i], tol, "action %d of %v", i, trace)
	}
}

func TestMatchingPennies_Converges(t *testing.T) {
	m := rps.MatchingPennies()
	ob := studyMatrix(t, m, time.Second)

	root := rps.New(m)
	requireAvgNear(t, ob, root.Trace(obscuro.P1), []float64{0.5, 0.5}, 0.05)
	requireAvgNear(t, ob, root.Play(rps.Move(0)).Trace(obscuro.P2), []float64{0.5, 0.5}, 0.05)
}

func TestRockPaperScissors_Converges(t *testing.T) {
	m := rps.RockPaperScissors()
	ob := studyMatrix(t, m, time.Second)

	third := 1.0 / 3.0
	root := rps.New(m)
	requireAvgNear(t, ob, root.Trace(obscuro.P1), []float64{third, third, third}, 0.05)
	requireAvgNear(t, ob, root.Play(rps.Move(0)).Trace(obscuro.P2), []float64{third, third, third}, 0.05)
}

func TestMatchingPennies_ParallelConverges(t *testing.T) {
	if testing.Short() {
		t.Skip("parallel convergence test in -short mode")
	}

	m := rps.MatchingPennies()
	ob := studyMatrix(t, m, time.Second, obscuro.WithThreads(4))

	root := rps.New(m)
	requireAvgNear(t, ob, root.Trace(obscuro.P1), []float64{0.5, 0.5}, 0.07)
	requireAvgNear(t, ob, root.Play(rps.Move(0)).Trace(obscuro.P2), []float64{0.5, 0.5}, 0.07)
}

func TestDominantAction_StableAcrossRepeatedMoves(t *testing.T) {
	// Move 0 strictly dominates, so the purified action is determined
	// and a cached-subgame repeat must agree with the first answer.
	m := &rps.Matrix{
		Name:  "dominated",
		Moves: []string{"Good", "Bad"},
		Payoffs: [][]obscuro.Reward{
			{0.5, 0.5},
			{-0.5, -0.5},
		},
	}

	ob := obscuro.New(rps.NewRules(m),
		obscuro.WithSolveTime(200*time.Millisecond),
		obscuro.WithSeed(11))

	root := rps.New(m)
	obs := root.Trace(obscuro.P1)
	ob.StudyPosition(obs, obscuro.P1)

	first := ob.MakeMove(obs, obscuro.P1)
	assert.Equal(t, rps.Move(0), first)
	assert.Equal(t, first, ob.MakeMove(obs, obscuro.P1))
}

// oneShot is a game that ends on P1's only move.
type oneShot struct {
	done bool
}

type oneShotTrace struct {
	seat obscuro.Player
	done bool
}

func (t oneShotTrace) Key() string {
	return fmt.Sprintf("oneshot:%v:%v", t.seat, t.done)
}

func (t oneShotTrace) Compare(other obscuro.Trace) (obscuro.Ordering, bool) {
	o, ok := other.(oneShotTrace)
	if !ok || o.seat != t.seat {
		return 0, false
	}

	switch {
	case t.done == o.done:
		return obscuro.Same, true
	case !t.done:
		return obscuro.Before, true
	}

	return obscuro.After, true
}

func (g oneShot) Player() obscuro.Player {
	if g.done {
		return obscuro.Terminated
	}

	return obscuro.P1
}

func (g oneShot) Actions() []obscuro.Action { return []obscuro.Action{"finish"} }

func (g oneShot) Play(obscuro.Action) obscuro.Game { return oneShot{done: true} }

func (g oneShot) IsOver() bool { return g.done }

func (g oneShot) Evaluate() obscuro.Reward {
	if g.done {
		return 0.25
	}

	return 0
}

func (g oneShot) Trace(p obscuro.Player) obscuro.Trace {
	return oneShotTrace{seat: p, done: g.done}
}

type oneShotRules struct{}

func (oneShotRules) SamplePositions(t obscuro.Trace) obscuro.PositionIter {
	tr, ok := t.(oneShotTrace)
	if !ok || tr.done {
		return obscuro.NewPositionSlice()
	}

	return obscuro.NewPositionSlice(oneShot{})
}

func TestOneShotGame_ReturnsOnlyLegalAction(t *testing.T) {
	ob := obscuro.New(oneShotRules{},
		obscuro.WithSolveTime(100*time.Millisecond),
		obscuro.WithSeed(3))

	obs := oneShot{}.Trace(obscuro.P1)
	action := ob.MakeMove(obs, obscuro.P1)
	assert.Equal(t, "finish", action)

	in, ok := ob.InfoSet(obs)
	require.True(t, ok)
	avg := in.AvgStrategy()
	require.Len(t, avg, 1)
	assert.InDelta(t, 1.0, avg[0], 1e-9)
}

func TestEngine_SizeGrowsWithStudy(t *testing.T) {
	m := rps.RockPaperScissors()
	ob := studyMatrix(t, m, 300*time.Millisecond)
	assert.GreaterOrEqual(t, ob.Size(), 2, "study should touch both players' infosets")
	ev := ob.Expectation()
	assert.True(t, ev >= -1 && ev <= 1, "expectation %v outside payoff bounds", ev)
}
