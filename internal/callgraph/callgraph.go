// Package callgraph recovers caller/callee edges from decompiled bodies and
// renders them with lattice.
package callgraph

import (
	"regexp"
	"strings"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"
)

// FuncInfo is one decompiled function. Name labels the node; Aliases are
// the other spellings the decompiler may use at call sites (raw symbol,
// qualified demangled name).
type FuncInfo struct {
	Name    string
	Aliases []string
	Code    string
}

// callRe matches a possibly qualified identifier followed by '('.
var callRe = regexp.MustCompile(`([A-Za-z_~][\w~]*(?:::[A-Za-z_~][\w~]*)*)\s*\(`)

// body returns code after the signature, or "" when there is no body.
func body(code string) string {
	i := strings.IndexByte(code, '{')
	if i < 0 {
		return ""
	}
	return code[i+1:]
}

// BuildCallGraph constructs a lattice.Graph from decompiled functions.
// Each function becomes a node. Each call to another known function becomes
// an edge; calls to unknown names are skipped.
func BuildCallGraph(funcs []FuncInfo) *lattice.Graph {
	known := make(map[string]string, len(funcs)*2)
	for _, f := range funcs {
		known[f.Name] = f.Name
		for _, a := range f.Aliases {
			if a != "" {
				if _, dup := known[a]; !dup {
					known[a] = f.Name
				}
			}
		}
	}

	g := &lattice.Graph{}
	type pair struct{ caller, callee string }
	seen := make(map[pair]bool)
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, m := range callRe.FindAllStringSubmatch(body(f.Code), -1) {
			callee, ok := known[m[1]]
			if !ok || seen[pair{f.Name, callee}] {
				continue
			}
			seen[pair{f.Name, callee}] = true
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: f.Name,
				Callee: callee,
			})
		}
	}
	g.Dedup()
	return g
}

// DOT renders g as Graphviz source.
func DOT(g *lattice.Graph, title string) string {
	return render.DOT(g, title)
}
