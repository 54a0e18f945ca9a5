package obscuro

import "testing"

// makeExpanded hand-builds an interior node with the given views and
// the given children (a single terminal child when none are given), for
// exercising the knowledge cover directly.
func makeExpanded(mover Player, heroPath, villanPath string, kids ...*History) *History {
	hero := stubTrace{seat: mover, path: heroPath}
	villan := stubTrace{seat: mover.Other(), path: villanPath}

	children := []child{}
	if len(kids) == 0 {
		kids = []*History{{kind: terminalNode}}
	}
	for _, k := range kids {
		children = append(children, child{action: "a", node: k})
	}

	return &History{
		kind:        expandedNode,
		info:        NewInfo(NewUniformPolicy([]Action{"a"}, mover), hero, mover),
		villanTrace: villan,
		mover:       mover,
		children:    children,
		reach:       map[Player]Probability{P1: 1, P2: 1},
	}
}

func TestKCover_RetainsExactlyKnowledgeConsistentHistories(t *testing.T) {
	ob := New(stubRules{}, WithSeed(1))

	// Three previous-tree roots with known relations to the
	// observation "x":
	//   - equal: the P1 view matches the observation exactly.
	//   - ancestor: the P1 view precedes it; its subtree holds a
	//     matching node that must be found by recursion.
	//   - unrelated: incomparable with everything reachable from "x".
	equal := makeExpanded(P1, "x", "xo")
	inner := makeExpanded(P1, "x", "xp")
	ancestor := makeExpanded(P1, "", "", inner)
	unrelated := makeExpanded(P1, "z", "zo")

	observation := stubTrace{seat: P1, path: "x"}
	covered := ob.kCover([]*History{equal, ancestor, unrelated}, observation, P1)

	if len(covered) != 2 {
		t.Fatalf("k-cover kept %d histories, expected 2: %v", len(covered), covered)
	}

	kept := map[*History]bool{covered[0]: true, covered[1]: true}
	if !kept[equal] {
		t.Error("history with matching trace was not retained")
	}
	if !kept[inner] {
		t.Error("matching descendant of an ancestor-trace history was not retained")
	}
	if kept[unrelated] || kept[ancestor] {
		t.Error("k-cover retained a pruned history")
	}
}

func TestKCover_ClosureProperty(t *testing.T) {
	ob := New(stubRules{}, WithSeed(1))

	equal := makeExpanded(P1, "x", "xo")
	other := makeExpanded(P1, "xq", "xqo")

	observation := stubTrace{seat: P1, path: "x"}
	covered := ob.kCover([]*History{equal, other}, observation, P1)

	// Every survivor's view for the observing seat must be comparable
	// with the observation it was covered from.
	for _, h := range covered {
		view := h.PlayersView(P1)
		if _, ok := view.Compare(observation); !ok {
			t.Errorf("survivor %v incomparable with the observation", view)
		}
	}
}

func TestKCover_EmptyPreviousTree(t *testing.T) {
	ob := New(stubRules{}, WithSeed(1))
	covered := ob.kCover(nil, stubTrace{seat: P1, path: "x"}, P1)
	if len(covered) != 0 {
		t.Errorf("cover of empty tree = %v", covered)
	}
}
