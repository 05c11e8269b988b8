package classgraph

import (
	"testing"

	"libsurgeon/internal/vtable"
)

func TestBuild(t *testing.T) {
	classes := map[string]*vtable.ClassInfo{
		"Foo": {
			Name: "Foo",
			Methods: []vtable.Method{
				{Mangled: "_ZN3Foo1aEv", Name: "a", Address: 0x1000, Virtual: true, VTableIndex: 0},
				{Mangled: "_ZN3Foo1bEv", Name: "b", Address: 0x1100, VTableIndex: -1},
			},
			HasVTable:     true,
			VTableAddr:    0x5000,
			VTableEntries: []vtable.Entry{{Index: 0, Target: 0x1000, TargetName: "_ZN3Foo1aEv"}},
		},
		"Bar": {Name: "Bar", Methods: []vtable.Method{{Name: "run", VTableIndex: -1}}},
	}
	g := Build(classes)
	if len(g.Edges) != 4 {
		t.Errorf("got %d edges, want 4: %+v", len(g.Edges), g.Edges)
	}
	found := false
	for _, e := range g.Edges {
		if e.Caller == "Foo" && e.Callee == "_ZN3Foo1aEv" {
			found = true
		}
	}
	if !found {
		t.Error("missing vtable edge Foo -> _ZN3Foo1aEv")
	}

	if dot := DOT(classes, "classes"); dot == "" {
		t.Error("expected non-empty DOT output")
	}
}

func TestBuildEmpty(t *testing.T) {
	g := Build(nil)
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("empty input produced %+v", g)
	}
}
