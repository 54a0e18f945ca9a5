package obscuro

import "fmt"

type historyKind uint8

const (
	terminalNode historyKind = iota
	visitedNode
	expandedNode
)

// child pairs an action with the subtree it leads to. Children are
// ordered the way the game orders its actions.
type child struct {
	action Action
	node   *History
}

// History is one node of the growing game tree. It is a closed tagged
// variant:
//
//   - Terminal: a leaf with a settled payoff.
//   - Visited: an unexpanded leaf holding the game state, a heuristic
//     payoff, and a per-player reach map.
//   - Expanded: an interior node holding a shared Info, ordered
//     children, the mover, and the opponent's cached trace.
//
// The tree grows monotonically: Visited nodes become Expanded in place
// and nothing is ever removed or reordered.
type History struct {
	kind historyKind

	payoff Reward               // Terminal, Visited
	game   Game                 // Visited
	reach  map[Player]Probability // Visited, Expanded

	info        *Info   // Expanded
	children    []child // Expanded
	mover       Player  // Expanded
	villanTrace Trace   // Expanded
}

// NewHistory creates a leaf for the given state: Terminal if the game
// is over, otherwise a Visited node scored by the evaluator.
func NewHistory(game Game, reach map[Player]Probability, ev Evaluator) *History {
	if game.IsOver() {
		return &History{kind: terminalNode, payoff: game.Evaluate()}
	}

	return &History{
		kind:   visitedNode,
		game:   game,
		payoff: ev.Evaluate(game),
		reach:  reach,
	}
}

// IsTerminal reports whether this node is a settled leaf.
func (h *History) IsTerminal() bool { return h.kind == terminalNode }

// IsExpanded reports whether this node has children.
func (h *History) IsExpanded() bool { return h.kind == expandedNode }

// Player returns the mover at this node, or Terminated for settled
// leaves.
func (h *History) Player() Player {
	switch h.kind {
	case terminalNode:
		return Terminated
	case visitedNode:
		return h.game.Player()
	default:
		return h.mover
	}
}

// heroView maps a node's mover to the player whose trace identifies its
// infoset. Chance nodes are keyed by P1's trace; the chance policy is
// uniform either way, so the grouping only needs to be consistent.
func heroView(mover Player) Player {
	if mover == Chance {
		return P1
	}

	return mover
}

// Trace returns the acting player's trace. Not defined on Terminal
// nodes.
func (h *History) Trace() Trace {
	switch h.kind {
	case visitedNode:
		return h.game.Trace(heroView(h.game.Player()))
	case expandedNode:
		return h.info.Trace()
	}

	panic(fmt.Errorf("obscuro: terminal history has no trace"))
}

// PlayersView returns the trace as seen by the given player.
func (h *History) PlayersView(p Player) Trace {
	switch h.kind {
	case visitedNode:
		return h.game.Trace(p)
	case expandedNode:
		if p == heroView(h.mover) {
			return h.info.Trace()
		}
		return h.villanTrace
	}

	panic(fmt.Errorf("obscuro: terminal history has no trace"))
}

// Payoff returns the value of this node from P1's perspective: the
// settled or heuristic payoff for leaves, the infoset policy's current
// expectation for interior nodes.
func (h *History) Payoff() Reward {
	if h.kind == expandedNode {
		return h.info.Expectation()
	}

	return h.payoff
}

// ReachProb returns the given player's entry of the reach map,
// defaulting to 1 when absent.
func (h *History) ReachProb(p Player) Probability {
	if pr, ok := h.reach[p]; ok {
		return pr
	}

	return 1.0
}

// NetReachProb returns the product of every player's reach entry: the
// probability that all parties play to this node.
func (h *History) NetReachProb() Probability {
	net := 1.0
	for _, pr := range h.reach {
		net *= pr
	}

	return net
}

// renormalizeReach scales the mover's reach entry by 1/total so that
// the net reach of a set of sibling histories sums to 1.
func (h *History) renormalizeReach(total Probability) {
	if h.kind == terminalNode {
		return
	}

	mover := h.Player()
	if h.reach == nil {
		h.reach = make(map[Player]Probability)
	}
	if pr, ok := h.reach[mover]; ok {
		h.reach[mover] = pr / total
	} else {
		h.reach[mover] = 1.0 / total
	}
}

// setReach replaces the node's reach map with a copy of the given map.
func (h *History) setReach(reach map[Player]Probability) {
	if h.kind == terminalNode {
		return
	}

	h.reach = cloneReach(reach)
}

// Expand grows a Visited leaf into an Expanded interior node: one child
// per legal action, each scored by the evaluator, with the infoset
// policy looked up or created in the table. Expanding any other node
// kind is a programming error.
func (h *History) Expand(tbl *infosetTable, ev Evaluator) {
	if h.kind != visitedNode {
		panic(fmt.Errorf("obscuro: can only expand a visited node"))
	}

	game := h.game
	mover := game.Player()
	hero := heroView(mover)
	heroTrace := game.Trace(hero)
	villanTrace := game.Trace(hero.Other())
	actions := game.Actions()
	if len(actions) == 0 {
		panic(fmt.Errorf("obscuro: unfinished game %v has no legal actions", game))
	}

	kids := make([]child, 0, len(actions))
	rewards := make([]Reward, 0, len(actions))
	for _, a := range actions {
		next := game.Play(a)
		// Placeholder reach, corrected on the first CFR sweep.
		nextReach := cloneReach(h.reach)
		nextReach[mover] = h.ReachProb(mover) / float64(len(actions))
		node := NewHistory(next, nextReach, ev)
		kids = append(kids, child{action: a, node: node})
		rewards = append(rewards, node.Payoff())
	}

	info := tbl.getOrCreate(heroTrace, func() *Info {
		return NewInfo(NewPolicy(actions, rewards, mover), heroTrace, mover)
	})
	if n := info.NumActions(); n != len(actions) {
		panic(fmt.Errorf("obscuro: infoset %v has %d actions but node has %d children",
			heroTrace, n, len(actions)))
	}

	h.kind = expandedNode
	h.game = nil
	h.info = info
	h.children = kids
	h.mover = mover
	h.villanTrace = villanTrace
	h.reach = make(map[Player]Probability)
}

// fullExpand grows the entire subtree. Debugging tool; do not use on
// nontrivial games.
func (h *History) fullExpand(tbl *infosetTable, ev Evaluator) {
	if h.kind == visitedNode {
		h.Expand(tbl, ev)
	}
	if h.kind == expandedNode {
		for _, c := range h.children {
			c.node.fullExpand(tbl, ev)
		}
	}
}

// Size returns the number of nodes in this subtree.
func (h *History) Size() int {
	if h.kind != expandedNode {
		return 1
	}

	total := 1
	for _, c := range h.children {
		total += c.node.Size()
	}

	return total
}

func (h *History) String() string {
	switch h.kind {
	case terminalNode:
		return fmt.Sprintf("Terminal(%.3f)", h.payoff)
	case visitedNode:
		return fmt.Sprintf("Visited(%v, %.3f)", h.Trace(), h.payoff)
	default:
		return fmt.Sprintf("Expanded(%v, %v, %d children)", h.info.Trace(), h.mover, len(h.children))
	}
}

func cloneReach(reach map[Player]Probability) map[Player]Probability {
	next := make(map[Player]Probability, len(reach)+1)
	for p, pr := range reach {
		next[p] = pr
	}

	return next
}
