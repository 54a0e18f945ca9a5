// Package rps implements two-player zero-sum matrix games played as
// one hidden move per side: Rock-Paper-Scissors, Matching Pennies, and
// any square payoff matrix. The second mover cannot observe the first
// move, which makes these the smallest imperfect-information tests for
// the solver.
package rps

import (
	"fmt"

	obscuro "github.com/obscuro-ai/go-obscuro"
)

// Move is a row/column index into the payoff matrix.
type Move int

// Matrix defines a game: named moves and a P1-perspective payoff for
// every (p1, p2) move pair, each in [-1, +1].
type Matrix struct {
	Name    string
	Moves   []string
	Payoffs [][]obscuro.Reward
}

// RockPaperScissors returns the standard 3x3 game. Its unique
// equilibrium is uniform for both players.
func RockPaperScissors() *Matrix {
	return &Matrix{
		Name:  "rps",
		Moves: []string{"Rock", "Paper", "Scissors"},
		Payoffs: [][]obscuro.Reward{
			{0, -1, +1},
			{+1, 0, -1},
			{-1, +1, 0},
		},
	}
}

// MatchingPennies returns the 2x2 game where P1 wins on a match. Its
// unique equilibrium is (0.5, 0.5) for both players.
func MatchingPennies() *Matrix {
	return &Matrix{
		Name:  "pennies",
		Moves: []string{"Heads", "Tails"},
		Payoffs: [][]obscuro.Reward{
			{+1, -1},
			{-1, +1},
		},
	}
}

// stage encodes everything publicly observable: how many moves have
// been committed.
type stage int

const (
	stageRoot stage = iota
	stageP2
	stageOver
)

// Trace implements obscuro.Trace. A player observes the public stage
// and their own committed move, never the opponent's.
type Trace struct {
	game  string
	stage stage
	mine  Move // -1 until the observing player has moved
}

// Key implements obscuro.Trace.
func (t Trace) Key() string {
	return fmt.Sprintf("%s:%d:%d", t.game, t.stage, t.mine)
}

// Compare implements obscuro.Trace. Views that disagree on the
// observer's own move are incomparable; otherwise stages order the
// observation sequence.
func (t Trace) Compare(other obscuro.Trace) (obscuro.Ordering, bool) {
	o, ok := other.(Trace)
	if !ok || o.game != t.game {
		return 0, false
	}

	if t.mine >= 0 && o.mine >= 0 && t.mine != o.mine {
		return 0, false
	}

	switch {
	case t.stage < o.stage:
		return obscuro.Before, true
	case t.stage > o.stage:
		return obscuro.After, true
	}

	return obscuro.Same, true
}

// Game is one play-through of a matrix game. The zero value is not
// usable; start from New.
type Game struct {
	m      *Matrix
	p1, p2 Move
	placed stage
}

// New returns the game before any move has been made.
func New(m *Matrix) Game {
	return Game{m: m}
}

// Player implements obscuro.Game.
func (g Game) Player() obscuro.Player {
	switch g.placed {
	case stageRoot:
		return obscuro.P1
	case stageP2:
		return obscuro.P2
	}

	return obscuro.Terminated
}

// Actions implements obscuro.Game.
func (g Game) Actions() []obscuro.Action {
	actions := make([]obscuro.Action, len(g.m.Moves))
	for i := range g.m.Moves {
		actions[i] = Move(i)
	}

	return actions
}

// Play implements obscuro.Game.
func (g Game) Play(a obscuro.Action) obscuro.Game {
	m := a.(Move)
	next := g
	switch g.placed {
	case stageRoot:
		next.p1 = m
	case stageP2:
		next.p2 = m
	default:
		panic(fmt.Errorf("rps: move in finished game"))
	}

	next.placed++
	return next
}

// IsOver implements obscuro.Game.
func (g Game) IsOver() bool { return g.placed == stageOver }

// Evaluate implements obscuro.Game. Unfinished games are neutral.
func (g Game) Evaluate() obscuro.Reward {
	if !g.IsOver() {
		return 0
	}

	return g.m.Payoffs[g.p1][g.p2]
}

// Trace implements obscuro.Game.
func (g Game) Trace(p obscuro.Player) obscuro.Trace {
	mine := Move(-1)
	if p == obscuro.P1 && g.placed > stageRoot {
		mine = g.p1
	} else if p == obscuro.P2 && g.placed > stageP2 {
		mine = g.p2
	}

	return Trace{game: g.m.Name, stage: g.placed, mine: mine}
}

// Rules samples positions for a matrix game.
type Rules struct {
	m *Matrix
}

// NewRules returns the sampler for the given matrix.
func NewRules(m *Matrix) Rules {
	return Rules{m: m}
}

// SamplePositions implements obscuro.Rules by enumerating the states
// consistent with the observed stage.
func (r Rules) SamplePositions(t obscuro.Trace) obscuro.PositionIter {
	tr, ok := t.(Trace)
	if !ok || tr.game != r.m.Name {
		return obscuro.NewPositionSlice()
	}

	root := New(r.m)
	switch tr.stage {
	case stageRoot:
		return obscuro.NewPositionSlice(root)
	case stageP2:
		games := make([]obscuro.Game, len(r.m.Moves))
		for i := range r.m.Moves {
			games[i] = root.Play(Move(i))
		}
		return obscuro.NewPositionSlice(games...)
	}

	return obscuro.NewPositionSlice()
}
