package dag

import "slices"

// TopologicalOrder returns node IDs so that every node precedes the nodes it
// depends on. Among nodes that are ready at the same time, the one inserted
// first comes first, so the order is deterministic for a given build
// sequence. Returns ErrGraphHasCycle if no such order exists.
func (d *DAG) TopologicalOrder() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rank := make(map[string]int, len(d.order))
	indeg := make(map[string]int, len(d.order))
	for i, id := range d.order {
		rank[id] = i
		indeg[id] = len(d.incoming[id])
	}

	var ready []string
	for _, id := range d.order {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]string, 0, len(d.order))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)

		var freed []string
		for _, child := range d.outgoing[id] {
			indeg[child]--
			if indeg[child] == 0 {
				freed = append(freed, child)
			}
		}
		ready = append(ready, freed...)
		slices.SortStableFunc(ready, func(a, b string) int { return rank[a] - rank[b] })
	}

	if len(out) != len(d.order) {
		return nil, ErrGraphHasCycle
	}
	return out, nil
}

// ReverseTopologicalOrder returns node IDs so that every node follows the
// nodes it depends on: the order in which packages can be loaded.
func (d *DAG) ReverseTopologicalOrder() ([]string, error) {
	order, err := d.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	slices.Reverse(order)
	return order, nil
}
