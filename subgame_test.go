package obscuro

import (
	"math"
	"testing"
)

// ambiguousRules samples two worlds for any observation, so the
// opponent holds two distinguishable infosets and construction builds
// two gadgets.
type ambiguousRules struct{}

func (ambiguousRules) SamplePositions(Trace) PositionIter {
	return NewPositionSlice(stubGame{path: "a"}, stubGame{path: "b"})
}

func TestConstructSubgame_GadgetInvariants(t *testing.T) {
	ob := New(ambiguousRules{}, WithSeed(5))
	ob.ConstructSubgame(stubTrace{seat: P2, path: "a"}, P2)

	root := ob.subgame
	if got := root.NumGadgets(); got != 2 {
		t.Fatalf("got %d gadgets, expected one per opponent infoset", got)
	}

	checkDistribution(t, root.maxmargin.InstPolicy())
	for _, g := range root.children {
		pEnter := g.resolver.PExploit(Enter)
		pSkip := g.resolver.PExploit(Skip)
		if math.Abs(pEnter+pSkip-1.0) > 1e-6 {
			t.Errorf("resolver probabilities sum to %v", pEnter+pSkip)
		}
		if g.prior <= 0 || g.prior > 1 {
			t.Errorf("prior α = %v outside (0, 1]", g.prior)
		}
		if len(g.children) == 0 {
			t.Error("gadget with no member histories")
		}
	}
}

func TestConstructSubgame_PriorsBlendUniformAndBelief(t *testing.T) {
	ob := New(ambiguousRules{}, WithSeed(5))
	ob.ConstructSubgame(stubTrace{seat: P2, path: "a"}, P2)

	// Fresh construction has no surviving reach: priors fall back to
	// the uniform share.
	for _, g := range ob.subgame.children {
		if math.Abs(g.prior-0.5) > 1e-9 {
			t.Errorf("fresh prior = %v, expected uniform 1/m", g.prior)
		}
	}
}

func TestSolveStep_PreservesDistributionInvariants(t *testing.T) {
	ob := New(ambiguousRules{}, WithSeed(5))
	ob.ConstructSubgame(stubTrace{seat: P2, path: "a"}, P2)

	for i := 0; i < 5; i++ {
		ob.ExpansionStep()
		for j := 0; j < 3; j++ {
			ob.SolveStep()
		}
	}

	checkDistribution(t, ob.subgame.maxmargin.InstPolicy())
	for _, g := range ob.subgame.children {
		checkDistribution(t, g.resolver.InstPolicy())
		checkDistribution(t, g.info.InstPolicy())
	}

	ob.infoSets.each(func(in *Info) {
		in.read(func(p *Policy) {
			checkDistribution(t, p.InstPolicy())
			for i, r := range p.accRegrets {
				if r < 0 {
					t.Errorf("negative regret %v at %v action %d", r, in.Trace(), i)
				}
			}
		})
	})
}

func TestConstructSubgame_ReusesPreviousTree(t *testing.T) {
	ob := New(ambiguousRules{}, WithSeed(5))
	obs := stubTrace{seat: P2, path: "a"}
	ob.ConstructSubgame(obs, P2)

	for i := 0; i < 4; i++ {
		ob.ExpansionStep()
		ob.SolveStep()
	}
	grown := ob.subgame.Size()
	prev := ob.subgame.children[0].children[0]

	// Reconstructing for the same observation drains the old gadgets
	// and re-covers their histories instead of starting cold.
	ob.ConstructSubgame(obs, P2)
	if got := ob.subgame.NumGadgets(); got < 1 {
		t.Fatalf("reconstruction lost all gadgets (%d)", got)
	}
	if ob.subgame.children[0].children[0] != prev {
		t.Error("reconstruction did not reuse the history matching the observation")
	}
	if grown < 2 {
		t.Fatalf("expansion never grew the tree (size %d)", grown)
	}
}
