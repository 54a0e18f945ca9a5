// Package kuhn implements Kuhn poker (the A-K-Q game): a three-card
// deck, one private card per player, one betting round. The single
// chance node and tiny infoset structure make it the standard
// closed-form benchmark for imperfect-information solvers; the game
// value for the first player is -1/18 of a bet, -1/36 after
// normalizing payoffs into [-1, +1].
package kuhn

import (
	"fmt"
	"strings"

	obscuro "github.com/obscuro-ai/go-obscuro"
)

// Card is a private holding. Higher wins showdowns.
type Card uint8

const (
	Jack Card = iota
	Queen
	King
)

var cardStr = [...]string{"J", "Q", "K"}

func (c Card) String() string { return cardStr[c] }

// PlayerAction is a betting-round action. The public history encodes
// them as one character each.
type PlayerAction uint8

const (
	Check PlayerAction = iota
	Bet
	Call
	Fold
)

var actionChar = [...]string{"c", "b", "C", "F"}

func (a PlayerAction) String() string { return actionChar[a] }

// Deal is the chance action fixing both private cards.
type Deal struct {
	P1, P2 Card
}

func (d Deal) String() string { return fmt.Sprintf("Deal(%v,%v)", d.P1, d.P2) }

// Public betting codes. The empty code is the post-deal root; predeal
// is the state before the chance node resolves.
const (
	predeal = "~"
)

var terminalCodes = map[string]bool{
	"cc":  true, // check-check showdown, 1 unit
	"bC":  true, // bet-call showdown, 2 units
	"bF":  true, // P2 folds
	"cbC": true, // check-bet-call showdown, 2 units
	"cbF": true, // P1 folds
}

// Game is one Kuhn poker hand. The zero value is the predeal state.
type Game struct {
	p1, p2 Card
	dealt  bool
	code   string
}

// New returns the hand before the deal.
func New() Game { return Game{} }

// NewDealt returns the post-deal root with the given private cards.
func NewDealt(p1, p2 Card) Game {
	if p1 == p2 {
		panic(fmt.Errorf("kuhn: both players dealt %v", p1))
	}

	return Game{p1: p1, p2: p2, dealt: true}
}

// Player implements obscuro.Game.
func (g Game) Player() obscuro.Player {
	switch {
	case !g.dealt:
		return obscuro.Chance
	case g.IsOver():
		return obscuro.Terminated
	case len(g.code)%2 == 0:
		return obscuro.P1
	}

	return obscuro.P2
}

// Actions implements obscuro.Game.
func (g Game) Actions() []obscuro.Action {
	if !g.dealt {
		var deals []obscuro.Action
		for _, p1 := range []Card{Jack, Queen, King} {
			for _, p2 := range []Card{Jack, Queen, King} {
				if p1 != p2 {
					deals = append(deals, Deal{P1: p1, P2: p2})
				}
			}
		}
		return deals
	}

	switch g.code {
	case "", "c":
		return []obscuro.Action{Check, Bet}
	case "b", "cb":
		return []obscuro.Action{Call, Fold}
	}

	panic(fmt.Errorf("kuhn: no actions at %q", g.code))
}

// Play implements obscuro.Game.
func (g Game) Play(a obscuro.Action) obscuro.Game {
	if !g.dealt {
		d := a.(Deal)
		return NewDealt(d.P1, d.P2)
	}

	pa := a.(PlayerAction)
	next := g
	next.code += actionChar[pa]
	return next
}

// IsOver implements obscuro.Game.
func (g Game) IsOver() bool { return terminalCodes[g.code] }

// Evaluate implements obscuro.Game. Terminal payoffs are exact, scaled
// by one half so they stay within [-1, +1]; unfinished hands score the
// card gap.
func (g Game) Evaluate() obscuro.Reward {
	if !g.dealt {
		return 0
	}

	showdown := obscuro.Reward(-0.5)
	if g.p1 > g.p2 {
		showdown = 0.5
	}

	switch g.code {
	case "cc":
		return showdown
	case "bC", "cbC":
		return 2 * showdown
	case "bF":
		return 0.5
	case "cbF":
		return -0.5
	}

	// Card-gap heuristic for unfinished hands.
	return (obscuro.Reward(g.p1) - obscuro.Reward(g.p2)) / 4
}

// Trace implements obscuro.Game.
func (g Game) Trace(p obscuro.Player) obscuro.Trace {
	if !g.dealt {
		return Trace{seat: p, code: predeal}
	}

	card := g.p1
	if p == obscuro.P2 {
		card = g.p2
	}

	return Trace{seat: p, card: card, hasCard: true, code: g.code}
}

// Trace implements obscuro.Trace: the observing seat, its private
// card, and the public betting code.
type Trace struct {
	seat    obscuro.Player
	card    Card
	hasCard bool
	code    string
}

// NewTrace returns the observation of the given seat holding card with
// the public betting code.
func NewTrace(seat obscuro.Player, card Card, code string) Trace {
	return Trace{seat: seat, card: card, hasCard: true, code: code}
}

// Key implements obscuro.Trace.
func (t Trace) Key() string {
	if !t.hasCard {
		return fmt.Sprintf("kuhn:%v:?:%s", t.seat, t.code)
	}

	return fmt.Sprintf("kuhn:%v:%v:%s", t.seat, t.card, t.code)
}

// Compare implements obscuro.Trace. The betting code orders
// observations by prefix; views disagreeing on the seat or the private
// card are incomparable. Predeal precedes everything.
func (t Trace) Compare(other obscuro.Trace) (obscuro.Ordering, bool) {
	o, ok := other.(Trace)
	if !ok || o.seat != t.seat {
		return 0, false
	}

	if t.code == predeal || o.code == predeal {
		switch {
		case t.code == o.code:
			return obscuro.Same, true
		case t.code == predeal:
			return obscuro.Before, true
		}
		return obscuro.After, true
	}

	if t.hasCard && o.hasCard && t.card != o.card {
		return 0, false
	}

	switch {
	case t.code == o.code:
		return obscuro.Same, true
	case strings.HasPrefix(o.code, t.code):
		return obscuro.Before, true
	case strings.HasPrefix(t.code, o.code):
		return obscuro.After, true
	}

	return 0, false
}

// Rules samples positions consistent with an observation.
type Rules struct{}

// SamplePositions implements obscuro.Rules: the observer's card is
// fixed, the opponent holds either of the two remaining cards.
func (Rules) SamplePositions(t obscuro.Trace) obscuro.PositionIter {
	tr, ok := t.(Trace)
	if !ok {
		return obscuro.NewPositionSlice()
	}

	if tr.code == predeal {
		return obscuro.NewPositionSlice(New())
	}

	var games []obscuro.Game
	for _, opp := range []Card{Jack, Queen, King} {
		if opp == tr.card {
			continue
		}

		g := Game{dealt: true, code: tr.code}
		if tr.seat == obscuro.P1 {
			g.p1, g.p2 = tr.card, opp
		} else {
			g.p1, g.p2 = opp, tr.card
		}
		games = append(games, g)
	}

	return obscuro.NewPositionSlice(games...)
}
