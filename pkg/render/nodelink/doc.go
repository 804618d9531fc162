// Package nodelink renders the resolved dependency graph as a node-link
// diagram.
//
// Convert a graph to DOT, then optionally render it to SVG with the embedded
// Graphviz (no system install needed):
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// [Render] picks the output by format name and backs the CLI's --graph flag.
package nodelink
