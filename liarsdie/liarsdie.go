// Package liarsdie implements 1v1 single-die Liar's Dice, joker
// variant: ones are wild and the one is the highest face to bid.
// Players alternate raising a (count, face) claim about the two hidden
// dice until one calls the bluff.
package liarsdie

import (
	"fmt"

	obscuro "github.com/obscuro-ai/go-obscuro"
)

// Face is a die face, 1 through 6. Ones count for every face and
// outrank sixes in the bidding order.
type Face uint8

// AllFaces lists the faces in bidding order, lowest first.
var AllFaces = [...]Face{2, 3, 4, 5, 6, 1}

// rank is the bidding strength of a face.
func (f Face) rank() int {
	if f == 1 {
		return 5
	}

	return int(f) - 2
}

// Bid claims that at least Count dice show Face (or a wild one).
type Bid struct {
	Count uint8
	Face  Face
}

func (b Bid) String() string { return fmt.Sprintf("%dx%d", b.Count, b.Face) }

// beats reports whether b outranks other in the bidding order: more
// dice, or the same count of a stronger face.
func (b Bid) beats(other Bid) bool {
	if b.Count != other.Count {
		return b.Count > other.Count
	}

	return b.Face.rank() > other.Face.rank()
}

// Challenge calls the previous bid a lie and ends the game.
type Challenge struct{}

func (Challenge) String() string { return "Liar!" }

// Deal is the chance action fixing both dice.
type Deal struct {
	P1, P2 Face
}

// Game is one round. The zero value is the predeal state.
type Game struct {
	p1, p2     Face
	dealt      bool
	bids       []Bid
	challenged bool
}

// New returns the game before the dice are rolled.
func New() Game { return Game{} }

// NewDealt returns the post-roll root with the given dice.
func NewDealt(p1, p2 Face) Game {
	return Game{p1: p1, p2: p2, dealt: true}
}

// Player implements obscuro.Game.
func (g Game) Player() obscuro.Player {
	switch {
	case !g.dealt:
		return obscuro.Chance
	case g.challenged:
		return obscuro.Terminated
	case len(g.bids)%2 == 0:
		return obscuro.P1
	}

	return obscuro.P2
}

// Actions implements obscuro.Game. Bids are ordered ascending; the
// challenge, when legal, comes first.
func (g Game) Actions() []obscuro.Action {
	if !g.dealt {
		var deals []obscuro.Action
		for _, p1 := range AllFaces {
			for _, p2 := range AllFaces {
				deals = append(deals, Deal{P1: p1, P2: p2})
			}
		}
		return deals
	}

	var actions []obscuro.Action
	if len(g.bids) > 0 {
		actions = append(actions, Challenge{})
	}

	var last *Bid
	if len(g.bids) > 0 {
		last = &g.bids[len(g.bids)-1]
	}
	for count := uint8(1); count <= 2; count++ {
		for _, f := range AllFaces {
			b := Bid{Count: count, Face: f}
			if last == nil || b.beats(*last) {
				actions = append(actions, b)
			}
		}
	}

	return actions
}

// Play implements obscuro.Game.
func (g Game) Play(a obscuro.Action) obscuro.Game {
	if !g.dealt {
		d := a.(Deal)
		return NewDealt(d.P1, d.P2)
	}

	next := g
	next.bids = append([]Bid(nil), g.bids...)
	switch a := a.(type) {
	case Challenge:
		next.challenged = true
	case Bid:
		next.bids = append(next.bids, a)
	default:
		panic(fmt.Errorf("liarsdie: bad action %v", a))
	}

	return next
}

// IsOver implements obscuro.Game.
func (g Game) IsOver() bool { return g.challenged }

// countShowing returns how many of the two dice satisfy the bid face,
// ones counting wild except when ones themselves are bid.
func (g Game) countShowing(f Face) uint8 {
	var n uint8
	for _, d := range [...]Face{g.p1, g.p2} {
		if d == f || (d == 1 && f != 1) {
			n++
		}
	}

	return n
}

// Evaluate implements obscuro.Game. The challenger wins if the final
// bid overstated the dice; unfinished games are neutral.
func (g Game) Evaluate() obscuro.Reward {
	if !g.challenged {
		return 0
	}

	last := g.bids[len(g.bids)-1]
	bidTrue := g.countShowing(last.Face) >= last.Count

	// The challenger is the player who moved after the final bid.
	challenger := obscuro.P1
	if len(g.bids)%2 == 1 {
		challenger = obscuro.P2
	}

	win := obscuro.Reward(1)
	if bidTrue {
		win = -1
	}

	return obscuro.Align(win, challenger)
}

// Trace implements obscuro.Game.
func (g Game) Trace(p obscuro.Player) obscuro.Trace {
	t := Trace{seat: p, history: bidKey(g.bids, g.challenged)}
	if g.dealt {
		if p == obscuro.P1 {
			t.die = g.p1
		} else {
			t.die = g.p2
		}
	}

	return t
}

func bidKey(bids []Bid, challenged bool) string {
	key := ""
	for _, b := range bids {
		key += fmt.Sprintf("%d%d.", b.Count, b.Face)
	}
	if challenged {
		key += "!"
	}

	return key
}

// Trace implements obscuro.Trace: the observing seat, its die (zero
// before the roll), and the public bid history.
type Trace struct {
	seat    obscuro.Player
	die     Face
	history string
}

// NewTrace returns the observation of seat holding die after the given
// public bids.
func NewTrace(seat obscuro.Player, die Face, bids ...Bid) Trace {
	return Trace{seat: seat, die: die, history: bidKey(bids, false)}
}

// Key implements obscuro.Trace.
func (t Trace) Key() string {
	return fmt.Sprintf("liarsdie:%v:%d:%s", t.seat, t.die, t.history)
}

// Compare implements obscuro.Trace. Bid histories order by prefix;
// views disagreeing on the seat or die are incomparable, except that
// the predeal view precedes everything.
func (t Trace) Compare(other obscuro.Trace) (obscuro.Ordering, bool) {
	o, ok := other.(Trace)
	if !ok || o.seat != t.seat {
		return 0, false
	}

	if t.die == 0 || o.die == 0 {
		switch {
		case t.die == o.die && t.history == o.history:
			return obscuro.Same, true
		case t.die == 0:
			return obscuro.Before, true
		}
		return obscuro.After, true
	}

	if t.die != o.die {
		return 0, false
	}

	switch {
	case t.history == o.history:
		return obscuro.Same, true
	case len(t.history) < len(o.history) && o.history[:len(t.history)] == t.history:
		return obscuro.Before, true
	case len(o.history) < len(t.history) && t.history[:len(o.history)] == o.history:
		return obscuro.After, true
	}

	return 0, false
}

// Rules samples positions consistent with an observation: the
// observer's die is fixed, the opponent's ranges over all six faces.
type Rules struct{}

// SamplePositions implements obscuro.Rules.
func (Rules) SamplePositions(t obscuro.Trace) obscuro.PositionIter {
	tr, ok := t.(Trace)
	if !ok {
		return obscuro.NewPositionSlice()
	}

	if tr.die == 0 {
		return obscuro.NewPositionSlice(New())
	}

	var games []obscuro.Game
	for _, opp := range AllFaces {
		g := Game{dealt: true}
		if tr.seat == obscuro.P1 {
			g.p1, g.p2 = tr.die, opp
		} else {
			g.p1, g.p2 = opp, tr.die
		}
		g.bids, g.challenged = parseBids(tr.history)
		games = append(games, g)
	}

	return obscuro.NewPositionSlice(games...)
}

func parseBids(history string) (bids []Bid, challenged bool) {
	for i := 0; i+3 <= len(history) && history[i] != '!'; i += 3 {
		bids = append(bids, Bid{
			Count: history[i] - '0',
			Face:  Face(history[i+1] - '0'),
		})
	}

	challenged = len(history) > 0 && history[len(history)-1] == '!'
	return bids, challenged
}
