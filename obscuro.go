package obscuro

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"golang.org/x/exp/rand"

	"github.com/obscuro-ai/go-obscuro/internal/sampling"
)

// Obscuro is the solver: it owns the persistent infoset registry, the
// current subgame, and the search loop. Construct with New; a single
// Obscuro serves one side of one match at a time.
//
// With ParallelThreads == 1 all methods run on the caller's goroutine.
// Above that, StudyPosition fans out solver and expansion goroutines;
// see parallel.go for the lock discipline.
type Obscuro struct {
	params Params
	rules  Rules
	eval   Evaluator
	rng    *rand.Rand

	infoSets *infosetTable
	subgame  *SubgameRoot

	// rootMu guards the maxmargin policy and the running expectation.
	rootMu       sync.Mutex
	totalUpdates atomic.Int64
	expectation  Reward
	startTime    time.Time

	studiedKey    string
	studiedPlayer Player
}

// Option configures an engine at construction time.
type Option func(*Obscuro)

// WithParams replaces the full parameter set.
func WithParams(p Params) Option {
	return func(ob *Obscuro) { ob.params = p }
}

// WithEvaluator supplies an external heuristic evaluator. The default
// delegates to the game's own Evaluate.
func WithEvaluator(ev Evaluator) Option {
	return func(ob *Obscuro) {
		if ev != nil {
			ob.eval = ev
		}
	}
}

// WithSolveTime sets the wall-clock budget per StudyPosition call.
func WithSolveTime(d time.Duration) Option {
	return func(ob *Obscuro) {
		if d > 0 {
			ob.params.SolveTime = d
		}
	}
}

// WithThreads sets the number of solver goroutines. Values above one
// activate parallel mode, which adds two expansion goroutines.
func WithThreads(n int) Option {
	return func(ob *Obscuro) {
		if n > 0 {
			ob.params.ParallelThreads = n
		}
	}
}

// WithSeed makes the engine's sampling deterministic.
func WithSeed(seed uint64) Option {
	return func(ob *Obscuro) { ob.params.Seed = seed }
}

// New creates an engine bound to the given game rules.
func New(rules Rules, opts ...Option) *Obscuro {
	ob := &Obscuro{
		params:   DefaultParams(),
		rules:    rules,
		eval:     gameEvaluator{},
		infoSets: newInfosetTable(),
	}

	for _, opt := range opts {
		opt(ob)
	}

	seed := ob.params.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	ob.rng = rand.New(rand.NewSource(seed))

	return ob
}

// Size returns the number of information sets the engine has touched.
func (ob *Obscuro) Size() int {
	return ob.infoSets.size()
}

// InfoSet returns the information set for a trace, if the search has
// touched it.
func (ob *Obscuro) InfoSet(t Trace) (*Info, bool) {
	in := ob.infoSets.get(t)
	return in, in != nil
}

// Expectation returns the engine's running estimate of the game value
// from P1's perspective.
func (ob *Obscuro) Expectation() Reward {
	ob.rootMu.Lock()
	defer ob.rootMu.Unlock()
	return ob.expectation
}

// MakeMove studies the position reachable under the observation and
// returns the purified action for it. If StudyPosition already ran for
// the same observation, the cached subgame is reused and refined.
func (ob *Obscuro) MakeMove(observation Trace, player Player) Action {
	ob.StudyPosition(observation, player)

	if in := ob.infoSets.get(observation); in != nil && in.Player() == player {
		return in.Purified()
	}

	// The search never reached the hero's own infoset. Fall back to a
	// sampled consistent position.
	glog.Warningf("no infoset for %v after solve, falling back to sampled position", observation)
	it := ob.rules.SamplePositions(observation)
	if g, ok := it.Next(); ok && !g.IsOver() {
		return g.Actions()[0]
	}

	panic(fmt.Errorf("obscuro: no action available for %v", observation))
}

// StudyPosition constructs (or reuses) the subgame for the observation
// and searches it until the solve budget expires. It is idempotent: a
// repeat call for the same observation resumes the cached subgame.
func (ob *Obscuro) StudyPosition(observation Trace, player Player) {
	ob.startTime = time.Now()

	if ob.subgame == nil || ob.studiedKey != observation.Key() || ob.studiedPlayer != player {
		ob.ConstructSubgame(observation, player)
		ob.studiedKey = observation.Key()
		ob.studiedPlayer = player
	}

	if ob.params.ParallelThreads > 1 {
		ob.solveParallel()
		return
	}

	deadline := ob.startTime.Add(ob.params.SolveTime)
	for time.Now().Before(deadline) {
		ob.ExpansionStep()
		for i := 0; i < ob.params.CFRSweepsPerExpansion; i++ {
			ob.SolveStep()
		}
	}

	glog.V(1).Infof("studied %v: %d infosets, %d updates, %d gadgets, ev=%.3f",
		observation, ob.Size(), ob.totalUpdates.Load(), ob.subgame.NumGadgets(), ob.Expectation())
}

// preGadget accumulates one opponent infoset group during subgame
// construction.
type preGadget struct {
	trace   Trace
	members []*History
	y       Probability // surviving net reach, 0 for sampled groups
	alt     Reward
}

// ConstructSubgame rebuilds the subgame root for the observation:
// drain the previous tree, keep the knowledge cover, group by opponent
// infoset, deflate alternate values by gift values, top up coverage
// from the position sampler, and assemble the resolver gadgets.
func (ob *Obscuro) ConstructSubgame(observation Trace, player Player) {
	other := player.Other()

	var roots []*History
	if ob.subgame != nil {
		roots = ob.subgame.drain()
	}

	covered := ob.kCover(roots, observation, player)

	total := 0.0
	for _, h := range covered {
		total += h.NetReachProb()
	}
	if total > 0 {
		for _, h := range covered {
			h.renormalizeReach(total)
		}
	}

	groups := make(map[string]*preGadget)
	var order []string
	for _, h := range covered {
		jt := h.PlayersView(other)
		key := jt.Key()
		g, ok := groups[key]
		if !ok {
			g = &preGadget{trace: jt}
			groups[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, h)
		g.y += h.NetReachProb()
	}

	// Alternate values for retained groups: the group's expectation
	// deflated by the opponent's gift value, so mistakes the opponent
	// already made are not re-credited by the resolver.
	for _, key := range order {
		g := groups[key]
		exp := groupExpectation(g.members)
		var gift Reward
		for _, h := range g.members {
			gift += giftValue(h, other)
		}
		g.alt = exp - gift
	}

	retained := len(order)
	sumY := 0.0
	for _, key := range order {
		sumY += groups[key].y
	}

	// Top up coverage from the sampler until enough distinct opponent
	// infosets exist. Sampler exhaustion is not an error.
	it := ob.rules.SamplePositions(observation)
	for len(order) < ob.params.MinInfosetSize {
		g, ok := it.Next()
		if !ok {
			break
		}

		jt := g.Trace(other)
		key := jt.Key()
		h := NewHistory(g, make(map[Player]Probability), ob.eval)
		if grp, ok := groups[key]; ok {
			grp.members = append(grp.members, h)
			continue
		}

		groups[key] = &preGadget{
			trace:   jt,
			members: []*History{h},
			alt:     math.Min(ob.eval.Evaluate(g), ob.expectation),
		}
		order = append(order, key)
	}

	if len(order) == 0 {
		panic(fmt.Errorf("obscuro: no positions consistent with %v", observation))
	}

	// α(J) blends the uniform prior with the surviving-reach belief.
	m := float64(len(order))
	gadgets := make([]*ResolverGadget, 0, len(order))
	for _, key := range order {
		g := groups[key]
		alpha := 1.0 / m
		if sumY > 0 {
			alpha = 0.5 * (1.0/m + g.y/sumY)
		}
		gadgets = append(gadgets, newResolverGadget(g.trace, g.members, g.alt, alpha, player))
	}

	ob.subgame = newSubgameRoot(gadgets, player)
	glog.V(1).Infof("constructed subgame for %v: %d retained + %d sampled infosets",
		observation, retained, len(order)-retained)
}

// groupExpectation is the reach-weighted mean payoff of the members,
// falling back to the plain mean when no reach survives.
func groupExpectation(members []*History) Reward {
	var num, den Reward
	for _, h := range members {
		w := h.NetReachProb()
		num += w * h.Payoff()
		den += w
	}
	if den > 0 {
		return num / den
	}

	var sum Reward
	for _, h := range members {
		sum += h.Payoff()
	}
	return sum / float64(len(members))
}

// giftValue is the opponent's accumulated positive advantage on the
// path below h: at each opponent-turn node, the sum of positive
// child-minus-current value jumps. A pure walker; it never touches
// policy accumulators.
func giftValue(h *History, opponent Player) Reward {
	if h.kind != expandedNode {
		return 0
	}

	var gift Reward
	current := h.Payoff()
	for _, c := range h.children {
		if h.mover == opponent {
			if d := c.node.Payoff() - current; d > 0 {
				gift += d
			}
		}
		gift += giftValue(c.node, opponent)
	}

	return gift
}

// kCover prunes the previous tree down to the histories within KCover
// rounds of alternating knowledge of the observation. Round r keeps the
// subtrees whose round-player trace matches a search trace; the
// opponent traces discovered become the next round's search set.
func (ob *Obscuro) kCover(roots []*History, observation Trace, me Player) []*History {
	searchTraces := map[string]Trace{observation.Key(): observation}
	cur := me
	survivors := roots

	for round := 0; round < ob.params.KCover; round++ {
		if len(searchTraces) == 0 || len(survivors) == 0 {
			break
		}

		next := make(map[string]Trace)
		var kept []*History
		for _, h := range survivors {
			kept = append(kept, coverWalk(h, cur, searchTraces, next)...)
		}

		survivors = kept
		searchTraces = next
		cur = cur.Other()
	}

	return survivors
}

// coverWalk returns the disjoint subtrees of h surviving one cover
// round. A node whose trace for cur equals a search trace is recorded
// (and its opponent trace feeds the next round); an incomparable node
// is pruned; otherwise the walk recurses. Terminal leaves carry no
// observation state and cannot seed a gadget, so they are dropped.
func coverWalk(h *History, cur Player, search map[string]Trace, next map[string]Trace) []*History {
	if h.kind == terminalNode {
		return nil
	}

	t := h.PlayersView(cur)
	comparable := false
	for _, s := range search {
		ord, ok := t.Compare(s)
		if !ok {
			continue
		}
		comparable = true
		if ord == Same {
			opp := h.PlayersView(cur.Other())
			next[opp.Key()] = opp
			return []*History{h}
		}
	}

	if !comparable || h.kind != expandedNode {
		if comparable {
			// A comparable unexpanded leaf is kept as-is.
			return []*History{h}
		}
		return nil
	}

	var out []*History
	for _, c := range h.children {
		out = append(out, coverWalk(c.node, cur, search, next)...)
	}

	return out
}

// ExpansionStep grows the subgame by one leaf per exploring player:
// sample a starting history through the maxmargin and sampling
// policies, descend by PUCT for the exploring player and by exploit
// for the other, and expand the reached leaf.
func (ob *Obscuro) ExpansionStep() {
	ob.expansionStepFor(ob.rng, P1)
	ob.expansionStepFor(ob.rng, P2)
}

func (ob *Obscuro) expansionStepFor(rng *rand.Rand, exploring Player) {
	g, h := ob.sampleHistory(rng)
	if h == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for h.kind == expandedNode {
		var a Action
		switch {
		case h.mover == Chance:
			// Chance outcomes are explored uniformly at random.
			dist := h.info.InstPolicy()
			i := sampling.SampleOne(dist, rng.Float64())
			a = h.children[i].action
		case h.mover == exploring:
			h.info.read(func(p *Policy) { a = p.Explore(ob.params.ExploreConstant) })
		default:
			h.info.read(func(p *Policy) { a = p.Exploit() })
		}

		h.info.AddExpansion(a)
		h = findChild(h, a)
	}

	if h.kind == visitedNode {
		h.Expand(ob.infoSets, ob.eval)
	}
}

func findChild(h *History, a Action) *History {
	for _, c := range h.children {
		if c.action == a {
			return c.node
		}
	}

	panic(fmt.Errorf("obscuro: no child for action %v", a))
}

// sampleHistory draws a starting history for one expansion walk: a
// gadget from the maxmargin strategy, then a member history from that
// gadget's sampling policy.
func (ob *Obscuro) sampleHistory(rng *rand.Rand) (*ResolverGadget, *History) {
	root := ob.subgame
	ob.rootMu.Lock()
	dist := root.maxmargin.InstPolicy()
	ob.rootMu.Unlock()

	j := sampling.SampleOne(dist, rng.Float64())
	g := root.children[j]
	if len(g.children) == 0 {
		return nil, nil
	}

	i := sampling.SampleOne(g.info.InstPolicy(), rng.Float64())
	return g, g.children[i]
}

// SolveStep runs one full CFR+ iteration: a sweep optimizing each
// player in turn, then the blend pass that mixes resolve and maxmargin
// reach into the gadget distribution.
func (ob *Obscuro) SolveStep() {
	v := ob.cfrIterations(P1)
	ob.cfrIterations(P2)

	ob.rootMu.Lock()
	ob.expectation = v
	ob.rootMu.Unlock()

	root := ob.subgame
	pMax := 0.0
	enters := make([]Probability, len(root.children))
	for j, g := range root.children {
		g.mu.Lock()
		enters[j] = g.pEnter()
		g.mu.Unlock()
		if p := enters[j] * g.prior; p > pMax {
			pMax = p
		}
	}

	ob.rootMu.Lock()
	dist := root.maxmargin.InstPolicy()
	for j, g := range root.children {
		blended := pMax*g.prior*enters[j] + (1-pMax)*dist[j]
		root.maxmargin.AddCounterfactual(j, blended, 1)
	}
	ob.rootMu.Unlock()
}

// cfrIterations performs one sweep for the optimizing player over every
// gadget and member history, then updates the touched policies. The
// returned value is the root expectation under the maxmargin mix.
func (ob *Obscuro) cfrIterations(optimizing Player) Reward {
	t := int(ob.totalUpdates.Add(1))
	root := ob.subgame

	ob.rootMu.Lock()
	dist := root.maxmargin.InstPolicy()
	ob.rootMu.Unlock()

	pool := &strategyPool{}
	var rootValue Reward
	for j, g := range root.children {
		rj := dist[j]

		g.mu.Lock()
		pEnter := g.pEnter()
		samplingDist := g.info.InstPolicy()

		var enterValue Reward
		for i, h := range g.children {
			sh := samplingDist[i]
			reach := map[Player]Probability{
				Chance:             sh,
				optimizing.Other(): rj * pEnter,
			}
			u := ob.utilities(h, optimizing, reach, pool)
			applyUpdates(h, t)
			enterValue += sh * u
		}

		g.resolver.AddCounterfactual(Enter, enterValue, rj)
		g.resolver.AddCounterfactual(Skip, g.alt, rj)
		g.resolver.Update(t)
		g.mu.Unlock()

		ob.rootMu.Lock()
		resolverValue := (1-pEnter)*g.alt + pEnter*enterValue
		root.maxmargin.AddCounterfactual(j, resolverValue, 1)
		ob.rootMu.Unlock()
		rootValue += rj * resolverValue
	}

	ob.rootMu.Lock()
	root.maxmargin.Update(t)
	ob.rootMu.Unlock()
	return rootValue
}

// utilities recursively computes the expected value of h from P1's
// perspective, publishing reach maps on the way down and accumulating
// counterfactuals on the optimizing player's policies on the way up.
func (ob *Obscuro) utilities(h *History, optimizing Player, reach map[Player]Probability, pool *strategyPool) Reward {
	switch h.kind {
	case terminalNode:
		return h.payoff
	case visitedNode:
		h.setReach(reach)
		return h.payoff
	}

	h.setReach(reach)
	mover := h.mover
	dist := pool.strategy(len(h.children))
	defer pool.release(dist)
	h.info.InstPolicyInto(dist)

	// Counterfactual reach: every contribution except the optimizing
	// player's own.
	cfReach := 1.0
	for p, pr := range reach {
		if p != optimizing {
			cfReach *= pr
		}
	}

	var value Reward
	for i, c := range h.children {
		childReach := cloneReach(reach)
		if pr, ok := childReach[mover]; ok {
			childReach[mover] = pr * dist[i]
		} else {
			childReach[mover] = dist[i]
		}

		v := ob.utilities(c.node, optimizing, childReach, pool)
		value += dist[i] * v
		if mover == optimizing {
			h.info.AddCounterfactual(c.action, v, cfReach)
		}
	}

	return value
}

// applyUpdates walks the subtree post-order and applies the pending
// counterfactuals at iteration t. Update is idempotent per t, so
// shared infosets touched from several histories update once.
func applyUpdates(h *History, t int) {
	if h.kind != expandedNode {
		return
	}

	for _, c := range h.children {
		applyUpdates(c.node, t)
	}
	h.info.Update(t)
}
