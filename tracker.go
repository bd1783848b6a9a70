package sevnup

// computeOwnedVNodes returns the sorted set of vnode ids this process
// currently owns, per the unwrapped ring lookup. It must never go through
// the lookup interceptor: reconciliation has to be free of side effects on
// the key index.
func computeOwnedVNodes(ring Ring, totalVNodes int) ([]int, error) {
	self := ring.Whoami()
	owned := make([]int, 0)
	for v := 0; v < totalVNodes; v++ {
		node, err := ring.Lookup(v)
		if err != nil {
			return nil, err
		}
		if node == self {
			owned = append(owned, v)
		}
	}
	return owned, nil
}
