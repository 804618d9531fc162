// Package dag provides the dependency graph recorded while resolving packages.
//
// Nodes are package identities ("Npgsql@4.1.3"); an edge From→To means From
// depends on To. The graph is filled concurrently by the resolver, so every
// method takes an internal lock and returns copies.
//
//	g := dag.New(nil)
//	_, _ = g.EnsureNode(dag.Node{ID: "app@1.0.0"})
//	_, _ = g.EnsureNode(dag.Node{ID: "lib@2.0.0"})
//	_ = g.AddEdge(dag.Edge{From: "app@1.0.0", To: "lib@2.0.0"})
//
//	order, err := g.ReverseTopologicalOrder() // lib@2.0.0, app@1.0.0
//
// Package feeds forbid dependency cycles, but a malformed manifest can still
// declare one. [DAG.FindCycle] and [DAG.Validate] detect them, and
// [DAG.TopologicalOrder] refuses to order a cyclic graph.
package dag
