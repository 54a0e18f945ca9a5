package obscuro

import "sync"

// Info is one information set: the policy shared by every history node
// a player cannot tell apart, keyed by that player's trace. Multiple
// Expanded histories point at the same Info; the engine's infoset table
// is the canonical registry.
//
// The embedded lock guards the Policy. Single-threaded search takes it
// uncontended; parallel mode relies on it to serialize counterfactual
// accumulation against strategy reads.
type Info struct {
	mu     sync.RWMutex
	policy *Policy
	trace  Trace
	player Player
}

// NewInfo creates an information set owning the given policy.
func NewInfo(policy *Policy, trace Trace, player Player) *Info {
	return &Info{policy: policy, trace: trace, player: player}
}

// Trace returns the identifying trace. Immutable after construction.
func (in *Info) Trace() Trace { return in.trace }

// Player returns the acting player at this information set.
func (in *Info) Player() Player { return in.player }

// read runs f with shared access to the policy.
func (in *Info) read(f func(*Policy)) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	f(in.policy)
}

// write runs f with exclusive access to the policy.
func (in *Info) write(f func(*Policy)) {
	in.mu.Lock()
	defer in.mu.Unlock()
	f(in.policy)
}

// InstPolicy returns the current instantaneous strategy.
func (in *Info) InstPolicy() []float64 {
	var dist []float64
	in.read(func(p *Policy) { dist = p.InstPolicy() })
	return dist
}

// InstPolicyInto fills dst with the current instantaneous strategy,
// avoiding an allocation on the traversal hot path.
func (in *Info) InstPolicyInto(dst []float64) {
	in.read(func(p *Policy) { p.instPolicyInto(dst) })
}

// NumActions returns the size of the policy's action set.
func (in *Info) NumActions() int {
	var n int
	in.read(func(p *Policy) { n = p.NumActions() })
	return n
}

// AvgStrategy returns the normalized time-averaged strategy.
func (in *Info) AvgStrategy() []float64 {
	var dist []float64
	in.read(func(p *Policy) { dist = p.AvgStrategy() })
	return dist
}

// Expectation returns the policy's current expected value.
func (in *Info) Expectation() Reward {
	var ev Reward
	in.read(func(p *Policy) { ev = p.Expectation() })
	return ev
}

// Purified returns the purified (argmax-of-average) action.
func (in *Info) Purified() Action {
	var a Action
	in.read(func(p *Policy) { a = p.Purified() })
	return a
}

// AddCounterfactual accumulates a counterfactual value on the policy.
func (in *Info) AddCounterfactual(a Action, value Reward, reach Probability) {
	in.write(func(p *Policy) { p.AddCounterfactual(a, value, reach) })
}

// AddExpansion records a PUCT descent through a.
func (in *Info) AddExpansion(a Action) {
	in.write(func(p *Policy) { p.AddExpansion(a) })
}

// Update applies the pending counterfactuals at iteration t.
func (in *Info) Update(t int) {
	in.write(func(p *Policy) { p.Update(t) })
}

// infosetTable is the engine's registry of information sets, keyed by
// trace. The zero value is not usable; the engine constructs it.
//
// The table's lock covers only the map: reads during traversal take the
// read side, insertion of a new infoset at expansion time takes the
// write side. Individual Info locking is separate.
type infosetTable struct {
	mu    sync.RWMutex
	infos map[string]*Info
}

func newInfosetTable() *infosetTable {
	return &infosetTable{infos: make(map[string]*Info)}
}

// get returns the Info for the given trace, or nil.
func (tbl *infosetTable) get(t Trace) *Info {
	tbl.mu.RLock()
	defer tbl.mu.RUnlock()
	return tbl.infos[t.Key()]
}

// getOrCreate returns the Info for the given trace, calling build to
// construct it on first use. build runs under the write lock; at most
// one Info is ever registered per trace.
func (tbl *infosetTable) getOrCreate(t Trace, build func() *Info) *Info {
	key := t.Key()

	tbl.mu.RLock()
	in, ok := tbl.infos[key]
	tbl.mu.RUnlock()
	if ok {
		return in
	}

	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	if in, ok := tbl.infos[key]; ok {
		return in
	}

	in = build()
	tbl.infos[key] = in
	return in
}

// size returns the number of registered information sets.
func (tbl *infosetTable) size() int {
	tbl.mu.RLock()
	defer tbl.mu.RUnlock()
	return len(tbl.infos)
}

// each calls f for every registered Info. Insertion order is not
// preserved.
func (tbl *infosetTable) each(f func(*Info)) {
	tbl.mu.RLock()
	defer tbl.mu.RUnlock()
	for _, in := range tbl.infos {
		f(in)
	}
}
