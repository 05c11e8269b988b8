// Package classgraph renders reconstructed classes as a lattice graph.
package classgraph

import (
	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"libsurgeon/internal/vtable"
)

// Build constructs a graph with one node per class, an edge from each class
// to each of its methods, and an edge from each class to every function its
// vtable points at.
func Build(classes map[string]*vtable.ClassInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, ci := range vtable.SortedClasses(classes) {
		g.Nodes = append(g.Nodes, ci.Name)
		for _, m := range ci.Methods {
			callee := ci.Name + "::" + m.Name
			g.Nodes = append(g.Nodes, callee)
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: ci.Name,
				Callee: callee,
			})
		}
		for _, e := range ci.VTableEntries {
			if e.TargetName == "" {
				continue
			}
			g.Nodes = append(g.Nodes, e.TargetName)
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: ci.Name,
				Callee: e.TargetName,
			})
		}
	}
	g.Dedup()
	return g
}

// DOT renders classes as Graphviz source.
func DOT(classes map[string]*vtable.ClassInfo, title string) string {
	return render.DOT(Build(classes), title)
}
