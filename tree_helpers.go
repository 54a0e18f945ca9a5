package obscuro

// IsLeaf returns true if this node has not been expanded.
func IsLeaf(h *History) bool {
	return !h.IsExpanded()
}

// CountNodes returns the number of nodes in the subtree rooted at h.
func CountNodes(h *History) int {
	return h.Size()
}

// CountTerminalNodes returns the number of settled leaves in the
// subtree rooted at h.
func CountTerminalNodes(h *History) int {
	if h.IsTerminal() {
		return 1
	}
	if !h.IsExpanded() {
		return 0
	}

	total := 0
	for _, c := range h.children {
		total += CountTerminalNodes(c.node)
	}

	return total
}

// CountInfoSets returns the number of distinct acting-player
// information sets among the expanded nodes of the subtree.
func CountInfoSets(h *History) int {
	seen := make(map[string]struct{})
	walkInfoSets(h, seen)
	return len(seen)
}

func walkInfoSets(h *History, seen map[string]struct{}) {
	if !h.IsExpanded() {
		return
	}

	seen[h.info.Trace().Key()] = struct{}{}
	for _, c := range h.children {
		walkInfoSets(c.node, seen)
	}
}
