package dag

import (
	"errors"
	"maps"
	"slices"
	"sync"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists. Use [DAG.EnsureNode] for idempotent inserts.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrGraphHasCycle is returned by [DAG.Validate] and
	// [DAG.TopologicalOrder] when a cycle is detected.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes or the graph,
// such as the resolved version or the artifact path of a package.
type Metadata map[string]any

// Node is a vertex of the graph. The ID is also the display label.
type Node struct {
	ID   string
	Meta Metadata // never nil after AddNode
}

// Edge is a directed dependency: From depends on To.
type Edge struct {
	From string
	To   string
}

// DAG is a directed graph of package dependencies.
//
// Unlike a plain adjacency map, a DAG is safe for concurrent use: the
// resolver records nodes and edges from many goroutines at once. Readers
// receive copies, never views into internal state.
type DAG struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	order    []string // insertion order of node IDs
	edges    []Edge
	outgoing map[string][]string
	incoming map[string][]string
	meta     Metadata
}

// New creates an empty DAG with optional graph-level metadata.
func New(meta Metadata) *DAG {
	if meta == nil {
		meta = Metadata{}
	}
	return &DAG{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		meta:     meta,
	}
}

// Meta returns a copy of the graph-level metadata.
func (d *DAG) Meta() Metadata {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.meta)
}

// AddNode adds a node. Returns ErrInvalidNodeID for an empty ID and
// ErrDuplicateNodeID if the ID is taken.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	d.insert(n)
	return nil
}

// EnsureNode adds the node if it is missing and otherwise merges n.Meta into
// the existing node's metadata. It reports whether the node was added.
func (d *DAG) EnsureNode(n Node) (bool, error) {
	if n.ID == "" {
		return false, ErrInvalidNodeID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.nodes[n.ID]; ok {
		maps.Copy(existing.Meta, n.Meta)
		return false, nil
	}
	d.insert(n)
	return true, nil
}

func (d *DAG) insert(n Node) {
	meta := Metadata{}
	maps.Copy(meta, n.Meta)
	d.nodes[n.ID] = &Node{ID: n.ID, Meta: meta}
	d.order = append(d.order, n.ID)
}

// AddEdge adds a directed edge between two existing nodes. Adding an edge
// that already exists is a no-op.
func (d *DAG) AddEdge(e Edge) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if slices.Contains(d.outgoing[e.From], e.To) {
		return nil
	}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// AddEdgeAcyclic adds the edge unless doing so would close a cycle, in
// which case it returns ErrGraphHasCycle and leaves the graph unchanged. The
// check and the insert happen under one lock, so concurrent callers cannot
// together build a cycle that neither of them sees.
func (d *DAG) AddEdgeAcyclic(e Edge) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if slices.Contains(d.outgoing[e.From], e.To) {
		return nil
	}
	if e.From == e.To || d.reachable(e.To, e.From) {
		return ErrGraphHasCycle
	}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// reachable reports whether to can be reached from from. Callers hold mu.
func (d *DAG) reachable(from, to string) bool {
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == to {
			return true
		}
		for _, child := range d.outgoing[id] {
			if !seen[child] {
				seen[child] = true
				queue = append(queue, child)
			}
		}
	}
	return false
}

// Node returns a copy of the node with the given ID.
func (d *DAG) Node(id string) (Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[id]
	if !ok {
		return Node{}, false
	}
	return Node{ID: n.ID, Meta: maps.Clone(n.Meta)}, true
}

// Nodes returns copies of all nodes in insertion order.
func (d *DAG) Nodes() []Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Node, 0, len(d.order))
	for _, id := range d.order {
		n := d.nodes[id]
		out = append(out, Node{ID: n.ID, Meta: maps.Clone(n.Meta)})
	}
	return out
}

// Edges returns a copy of all edges in insertion order.
func (d *DAG) Edges() []Edge {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.edges)
}

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (d *DAG) EdgeCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.edges)
}

// Children returns the IDs this node depends on, in insertion order.
func (d *DAG) Children(id string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.outgoing[id])
}

// Parents returns the IDs that depend on this node, in insertion order.
func (d *DAG) Parents(id string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.incoming[id])
}

// Sources returns the IDs of nodes nothing depends on (the requested roots),
// in insertion order.
func (d *DAG) Sources() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for _, id := range d.order {
		if len(d.incoming[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Sinks returns the IDs of nodes without dependencies, in insertion order.
func (d *DAG) Sinks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for _, id := range d.order {
		if len(d.outgoing[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Validate returns ErrGraphHasCycle if the graph contains a directed cycle.
func (d *DAG) Validate() error {
	if len(d.FindCycle()) > 0 {
		return ErrGraphHasCycle
	}
	return nil
}

// FindCycle returns one directed cycle as a path whose first and last
// elements are equal, or nil if the graph is acyclic.
func (d *DAG) FindCycle() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(d.nodes))
	var stack, cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				if dfs(child) {
					return true
				}
			case gray:
				start := slices.Index(stack, child)
				cycle = append(slices.Clone(stack[start:]), child)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range d.order {
		if color[id] == white && dfs(id) {
			return cycle
		}
	}
	return nil
}
