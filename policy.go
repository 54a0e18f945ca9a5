package obscuro

import (
	"fmt"
	"math"

	"github.com/obscuro-ai/go-obscuro/internal/f64"
)

// linearFloor bounds the linear-CFR momentum coefficient away from the
// small-t regime: n = max(t - firstUpdate, linearFloor) keeps early
// iterations from being discounted too aggressively.
const linearFloor = 200

// Policy is the strategy state of one information set: accumulated
// CFR+ regrets, the time-averaged strategy, and PUCT visit counts.
//
// A Policy is not safe for concurrent use; its owning Info serializes
// access. A gadget's resolver policy is guarded by that gadget's lock,
// and the maxmargin policy by the engine's root lock.
type Policy struct {
	player  Player
	actions []Action

	accRegrets      []float64 // non-negative, regret-matching+ state
	counterfactuals []float64 // reach-weighted values, reset each update
	avgStrategy     []float64 // accumulated instantaneous strategies
	expansions      []int     // PUCT visit counts
	stable          []bool

	firstUpdate int
	lastSet     int
}

// NewPolicy creates a Policy over the given actions with regrets
// initialized from the heuristic rewards of each action's successor:
// max(reward - min(rewards), 0), or uniform when all rewards are equal.
// It panics on an empty action set.
func NewPolicy(actions []Action, rewards []Reward, player Player) *Policy {
	if len(actions) == 0 {
		panic(fmt.Errorf("obscuro: policy over empty action set"))
	}
	if len(actions) != len(rewards) {
		panic(fmt.Errorf("obscuro: %d actions but %d rewards", len(actions), len(rewards)))
	}

	minReward := rewards[0]
	allEqual := true
	for _, r := range rewards[1:] {
		if r != rewards[0] {
			allEqual = false
		}
		if r < minReward {
			minReward = r
		}
	}

	n := len(actions)
	accRegrets := make([]float64, n)
	if allEqual {
		f64.AddConst(1.0/float64(n), accRegrets)
	} else {
		for i, r := range rewards {
			accRegrets[i] = math.Max(r-minReward, 0)
		}
	}

	return &Policy{
		player:          player,
		actions:         append([]Action(nil), actions...),
		accRegrets:      accRegrets,
		counterfactuals: make([]float64, n),
		avgStrategy:     make([]float64, n),
		expansions:      make([]int, n),
		stable:          make([]bool, n),
		firstUpdate:     -1,
	}
}

// NewUniformPolicy creates a Policy with no heuristic preference among
// the actions.
func NewUniformPolicy(actions []Action, player Player) *Policy {
	return NewPolicy(actions, make([]Reward, len(actions)), player)
}

// Player returns the policy's owner.
func (p *Policy) Player() Player { return p.player }

// Actions returns the ordered action set. Callers must not mutate it.
func (p *Policy) Actions() []Action { return p.actions }

// NumActions returns the size of the action set.
func (p *Policy) NumActions() int { return len(p.actions) }

func (p *Policy) actionIndex(a Action) int {
	for i, x := range p.actions {
		if x == a {
			return i
		}
	}

	panic(fmt.Errorf("obscuro: action %v not in policy %v", a, p.actions))
}

// InstPolicy returns the instantaneous strategy: the positive part of
// the accumulated regrets renormalized to 1, uniform if no regret is
// positive. Chance policies are always uniform.
func (p *Policy) InstPolicy() []float64 {
	dst := make([]float64, len(p.actions))
	p.instPolicyInto(dst)
	return dst
}

func (p *Policy) instPolicyInto(dst []float64) {
	if p.player == Chance {
		for i := range dst {
			dst[i] = 1.0 / float64(len(dst))
		}
		return
	}

	copy(dst, p.accRegrets)
	f64.PositivePart(dst)
	total := f64.Sum(dst)
	if total > 0 {
		f64.ScalUnitary(1.0/total, dst)
	} else {
		for i := range dst {
			dst[i] = 1.0 / float64(len(dst))
		}
	}
}

// PExploit returns the probability of playing a under the instantaneous
// strategy.
func (p *Policy) PExploit(a Action) Probability {
	dist := p.InstPolicy()
	return dist[p.actionIndex(a)]
}

// AddCounterfactual accumulates value*reach as the counterfactual of
// playing a, to be folded into the regrets at the next Update.
func (p *Policy) AddCounterfactual(a Action, value Reward, reach Probability) {
	p.counterfactuals[p.actionIndex(a)] += value * reach
}

// AddExpansion records one PUCT descent through a.
func (p *Policy) AddExpansion(a Action) {
	p.expansions[p.actionIndex(a)]++
}

// Expectation returns the expected accumulated counterfactual under the
// instantaneous strategy. Between updates it reflects only the sweeps
// accumulated so far.
func (p *Policy) Expectation() Reward {
	return f64.Dot(p.InstPolicy(), p.counterfactuals)
}

// Update folds the accumulated counterfactuals into the regrets
// (CFR+ positive projection under linear weighting), adds the current
// strategy into the average, and resets the accumulators. Calling it
// again with the same t is a no-op, as is any call on a Chance policy.
func (p *Policy) Update(t int) {
	if p.player == Chance || t == p.lastSet {
		return
	}

	p.lastSet = t
	if p.firstUpdate < 0 {
		p.firstUpdate = t - 1
	}

	// Linear CFR: weight the existing regrets by n/(n+1) so early
	// iterations keep proportionally larger residual influence.
	n := float64(max(t-p.firstUpdate, linearFloor))
	momentum := n / (n + 1)

	baseline := p.Expectation()
	mult := sign(p.player)
	for i, cfv := range p.counterfactuals {
		r := momentum*p.accRegrets[i] + mult*(cfv-baseline)
		p.accRegrets[i] = math.Max(r, 0)
	}

	inst := p.InstPolicy()
	f64.Add(p.avgStrategy, inst)

	best := 0
	for i := range p.accRegrets {
		if p.accRegrets[i] > p.accRegrets[best] {
			best = i
		}
	}
	p.stable[best] = true

	for i := range p.counterfactuals {
		p.counterfactuals[i] = 0
	}
}

// puctScores fills dst with the PUCT selection score of each action:
// the instantaneous probability plus an exploration bonus decaying with
// that action's visit count.
func (p *Policy) puctScores(dst []float64, c float64) {
	p.instPolicyInto(dst)

	total := 0
	for _, n := range p.expansions {
		total += n
	}

	logN := math.Log(1 + float64(total))
	for i := range dst {
		dst[i] += c * math.Sqrt(logN/(1+float64(p.expansions[i])))
	}
}

// Explore returns the PUCT action: the argmax of the instantaneous
// probability plus the visit-count exploration bonus.
func (p *Policy) Explore(c float64) Action {
	scores := make([]float64, len(p.actions))
	p.puctScores(scores, c)
	return p.actions[argmax(scores)]
}

// Exploit returns the argmax of the instantaneous strategy.
func (p *Policy) Exploit() Action {
	return p.actions[argmax(p.InstPolicy())]
}

// Purified returns the argmax of the average strategy, the accepted
// purification rule for two-player zero-sum play. Ties break by index.
func (p *Policy) Purified() Action {
	return p.actions[argmax(p.avgStrategy)]
}

// AvgStrategy returns the time-averaged strategy normalized to a
// distribution, uniform if no updates have occurred.
func (p *Policy) AvgStrategy() []float64 {
	dst := make([]float64, len(p.avgStrategy))
	total := f64.Sum(p.avgStrategy)
	if total > 0 {
		f64.ScalUnitaryTo(dst, 1.0/total, p.avgStrategy)
	} else {
		for i := range dst {
			dst[i] = 1.0 / float64(len(dst))
		}
	}

	return dst
}

// VisitCounts returns a copy of the per-action PUCT visit counts.
func (p *Policy) VisitCounts() []int {
	return append([]int(nil), p.expansions...)
}

func (p *Policy) String() string {
	return fmt.Sprintf("Policy(%v, ev=%.3f, %v)", p.player, p.Expectation(), p.actions)
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}

	return best
}
