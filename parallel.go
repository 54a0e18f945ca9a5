package obscuro

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"golang.org/x/exp/rand"
)

// Parallel mode: ParallelThreads solver goroutines free-run CFR+
// sweeps while two expansion goroutines (one exploring per player)
// grow the same subgame, all until the deadline.
//
// Lock discipline, coarsest to finest:
//
//   - infoset table: RWMutex over the registry map; insertion only at
//     expansion time.
//   - per-gadget mutex: a sweep of one gadget's member trees, or a
//     descent-plus-expand below it, holds the gadget lock. Member
//     trees of different gadgets never share History nodes, so
//     gadget-local traversal state (reach maps, node kind flips) is
//     fully serialized while solvers work distinct gadgets in
//     parallel.
//   - per-Info RWMutex: policy reads during traversal take the read
//     side; AddCounterfactual, AddExpansion, and Update take the
//     write side. Infos shared across gadget trees are safe without
//     holding both gadget locks.
//   - rootMu: maxmargin policy and the running expectation.
//
// Expansion is monotone (children are only added, never removed), so a
// solver observing a leaf the instant before it expands just scores it
// as a leaf; the next sweep sees the children.
//
// Cancellation: every worker polls a shared atomic deadline flag set
// by a timer; each finishes its current critical section and exits,
// and the driver joins them. An individual sweep is bounded by the
// tree size, so deadline overshoot is bounded by one sweep's cost.
func (ob *Obscuro) solveParallel() {
	deadline := ob.startTime.Add(ob.params.SolveTime)
	var done atomic.Bool
	timer := time.AfterFunc(time.Until(deadline), func() { done.Store(true) })
	defer timer.Stop()

	var wg sync.WaitGroup
	var sweeps, expansions atomic.Int64

	for i := 0; i < ob.params.ParallelThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !done.Load() {
				ob.SolveStep()
				sweeps.Add(1)
			}
		}()
	}

	for _, exploring := range []Player{P1, P2} {
		wg.Add(1)
		go func(exploring Player) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(ob.rng.Uint64()))
			for !done.Load() {
				ob.expansionStepFor(rng, exploring)
				expansions.Add(1)
			}
		}(exploring)
	}

	wg.Wait()
	glog.V(1).Infof("parallel solve: %d threads, %d sweeps, %d expansions, %d infosets",
		ob.params.ParallelThreads, sweeps.Load(), expansions.Load(), ob.Size())
}
