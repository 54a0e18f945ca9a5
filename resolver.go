package obscuro

import (
	"fmt"
	"sync"
)

// ResolveAction is the opponent's choice at a resolver gadget: play
// into the solved subgame, or opt out for the alternate value.
type ResolveAction uint8

const (
	// Enter commits the opponent to the subgame rooted at this gadget.
	Enter ResolveAction = iota
	// Skip takes the alternate value instead of entering. If the solved
	// strategy were exploitable below the alternate, the opponent would
	// skip, so the solve is pushed to be at least as good.
	Skip
)

func (a ResolveAction) String() string {
	if a == Enter {
		return "ENTER"
	}

	return "SKIP"
}

// ResolverGadget is the safe-resolving container for one opponent
// information set J: the histories consistent with J, a Chance-owned
// sampling policy over them, the two-action ENTER/SKIP policy owned by
// the opponent, the alternate value v_alt(J), and the prior α(J).
type ResolverGadget struct {
	// mu serializes traversal and mutation of the gadget's member
	// trees: a CFR sweep of the gadget, or a PUCT descent plus leaf
	// expansion below it. Gadget-local policies (sampling, resolver)
	// and member reach maps are only touched under it.
	mu sync.Mutex

	trace    Trace
	children []*History
	info     *Info   // sampling distribution over children
	resolver *Policy // {Enter, Skip}, owned by the opponent
	alt      Reward
	prior    Probability
}

// newResolverGadget builds the gadget for opponent infoset J. The
// sampling policy is initialized from the members' heuristic payoffs;
// ENTER and SKIP both start at v_alt(J).
func newResolverGadget(trace Trace, members []*History, alt Reward, prior Probability, acting Player) *ResolverGadget {
	if len(members) == 0 {
		panic(fmt.Errorf("obscuro: resolver gadget %v with no histories", trace))
	}

	idxs := make([]Action, len(members))
	payoffs := make([]Reward, len(members))
	for i, h := range members {
		idxs[i] = i
		payoffs[i] = h.Payoff()
	}

	return &ResolverGadget{
		trace:    trace,
		children: members,
		info:     NewInfo(NewPolicy(idxs, payoffs, Chance), trace, Chance),
		resolver: NewPolicy([]Action{Enter, Skip}, []Reward{alt, alt}, acting.Other()),
		alt:      alt,
		prior:    prior,
	}
}

// Alt returns the alternate value v_alt(J).
func (g *ResolverGadget) Alt() Reward { return g.alt }

// Prior returns the prior weight α(J).
func (g *ResolverGadget) Prior() Probability { return g.prior }

// pEnter returns the opponent's current probability of entering.
func (g *ResolverGadget) pEnter() Probability {
	return g.resolver.PExploit(Enter)
}

// drain removes and returns the member histories, leaving the gadget
// empty. Used when the next subgame cannibalizes the previous tree.
func (g *ResolverGadget) drain() []*History {
	members := g.children
	g.children = nil
	return members
}

// SubgameRoot anchors a constructed subgame: one resolver gadget per
// opponent information set, and the acting player's maxmargin policy
// choosing among them.
//
// The root lock guards the gadget list (NumGadgets, drain, Size). Leaf
// expansion and gadget-policy updates are serialized by each gadget's
// own lock, and the maxmargin policy by the engine's root lock.
type SubgameRoot struct {
	mu        sync.RWMutex
	children  []*ResolverGadget
	maxmargin *Policy // over gadget indices, owned by the acting player
	acting    Player
}

// newSubgameRoot builds the root over the given gadgets. The maxmargin
// policy is initialized with each gadget's alternate value.
func newSubgameRoot(gadgets []*ResolverGadget, acting Player) *SubgameRoot {
	if len(gadgets) == 0 {
		panic(fmt.Errorf("obscuro: subgame with no opponent infosets"))
	}

	idxs := make([]Action, len(gadgets))
	alts := make([]Reward, len(gadgets))
	for i, g := range gadgets {
		idxs[i] = i
		alts[i] = g.alt
	}

	return &SubgameRoot{
		children:  gadgets,
		maxmargin: NewPolicy(idxs, alts, acting),
		acting:    acting,
	}
}

// NumGadgets returns the number of opponent infosets at the root.
func (r *SubgameRoot) NumGadgets() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.children)
}

// drain removes and returns every history from every gadget.
func (r *SubgameRoot) drain() []*History {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*History
	for _, g := range r.children {
		all = append(all, g.drain()...)
	}
	r.children = nil
	return all
}

// Size returns the total node count of the subgame tree.
func (r *SubgameRoot) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, g := range r.children {
		g.mu.Lock()
		for _, h := range g.children {
			total += h.Size()
		}
		g.mu.Unlock()
	}

	return total
}
