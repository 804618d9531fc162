// Package io exports a resolved dependency graph as JSON.
//
// The format has two top-level arrays and is meant for tools that want the
// graph without parsing DOT:
//
//	{
//	  "nodes": [
//	    {"id": "Npgsql@4.1.3", "meta": {"version": "4.1.3", "artifact": ".pkg/Npgsql.dll"}},
//	    {"id": "System.Memory@4.5.3", "meta": {"version": "4.5.3", "artifact": ".pkg/System.Memory.dll"}}
//	  ],
//	  "edges": [
//	    {"from": "Npgsql@4.1.3", "to": "System.Memory@4.5.3"}
//	  ]
//	}
//
// Node IDs are "name@version" as first spelled during resolution. Nodes keep
// insertion order; edges are listed in the order they were recorded, which is
// not deterministic across runs because dependencies resolve concurrently.
//
// Use [WriteJSON] for any io.Writer or [ExportJSON] for a file path. Both
// read the graph through its copying accessors, so they are safe to call
// while nothing else is resolving into it.
package io
