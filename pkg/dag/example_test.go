package dag_test

import (
	"fmt"

	"github.com/matzehuels/setupdb/pkg/dag"
)

func ExampleDAG_basic() {
	// app → lib → core
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "app"})
	_ = g.AddNode(dag.Node{ID: "lib"})
	_ = g.AddNode(dag.Node{ID: "core"})
	_ = g.AddEdge(dag.Edge{From: "app", To: "lib"})
	_ = g.AddEdge(dag.Edge{From: "lib", To: "core"})

	fmt.Println("Nodes:", g.NodeCount())
	fmt.Println("Edges:", g.EdgeCount())
	// Output:
	// Nodes: 3
	// Edges: 2
}

func ExampleDAG_ReverseTopologicalOrder() {
	// A diamond: app depends on auth and cache, both depend on core.
	g := dag.New(nil)
	for _, id := range []string{"app", "auth", "cache", "core"} {
		_ = g.AddNode(dag.Node{ID: id})
	}
	_ = g.AddEdge(dag.Edge{From: "app", To: "auth"})
	_ = g.AddEdge(dag.Edge{From: "app", To: "cache"})
	_ = g.AddEdge(dag.Edge{From: "auth", To: "core"})
	_ = g.AddEdge(dag.Edge{From: "cache", To: "core"})

	order, _ := g.ReverseTopologicalOrder()
	fmt.Println(order)
	// Output:
	// [core cache auth app]
}

func ExampleDAG_FindCycle() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "a"})
	_ = g.AddNode(dag.Node{ID: "b"})
	_ = g.AddEdge(dag.Edge{From: "a", To: "b"})
	_ = g.AddEdge(dag.Edge{From: "b", To: "a"})

	fmt.Println(g.FindCycle())
	// Output:
	// [a b a]
}
