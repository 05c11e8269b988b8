package quality

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

const cleanSource = `namespace app {
// Class: Widget
// Function: Draw
void Widget::Draw(Widget *this)
{
  Widget::Paint(this);
  assert("src/ui/widget.cpp");
}
}
`

const dirtySource = `// Function: FUN_00401000
void FUN_00401000(void)
{
  undefined4 a;
  undefined8 b;
  halt_baddata();
  halt_baddata ();
  goto LAB_1;
LAB_1:
  __asm { nop }
}
`

func TestEvaluate(t *testing.T) {
	m := Evaluate("w.cpp", cleanSource)
	if m.Lines != 10 || m.Functions != 1 || m.Classes != 1 {
		t.Errorf("lines=%d functions=%d classes=%d", m.Lines, m.Functions, m.Classes)
	}
	if len(m.Namespaces) != 1 || m.Namespaces[0] != "app" {
		t.Errorf("namespaces = %v", m.Namespaces)
	}
	if len(m.SourceRefs) != 1 || m.SourceRefs[0] != "src/ui/widget.cpp" {
		t.Errorf("source refs = %v", m.SourceRefs)
	}
	if m.DemangledNames != 2 {
		t.Errorf("demangled = %d", m.DemangledNames)
	}
	if m.Score != 100 {
		t.Errorf("clean score = %v, want 100 (clamped)", m.Score)
	}

	d := Evaluate("d.cpp", dirtySource)
	if d.HaltBaddata != 2 || d.UndefinedTypes != 2 || d.Gotos != 1 || d.InlineAsm != 1 {
		t.Errorf("dirty counts = %+v", d)
	}
	// 100 - 20 (halt) - 1 (undefined) - 1 (goto) - 5 (asm)
	if d.Score != 73 {
		t.Errorf("dirty score = %v, want 73", d.Score)
	}
	if len(d.Issues) != 2 {
		t.Errorf("issues = %q", d.Issues)
	}
}

func TestScoreBounds(t *testing.T) {
	if got := score(FileMetrics{HaltBaddata: 100, UndefinedTypes: 1000, Casts: 1000, Gotos: 100, InlineAsm: 100}); got != 15 {
		t.Errorf("capped penalties = %v, want 15", got)
	}
	if got := score(FileMetrics{DemangledNames: 1000, Namespaces: []string{"a"}}); got != 100 {
		t.Errorf("bonus not clamped: %v", got)
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		avg  float64
		want string
		pass bool
	}{
		{95, "A", true},
		{90, "A", true},
		{85, "B", true},
		{70, "C", true},
		{69.9, "D", false},
		{50, "D", false},
		{10, "F", false},
	}
	for _, tt := range tests {
		g := Grade(tt.avg)
		if g != tt.want || Passing(g) != tt.pass {
			t.Errorf("Grade(%v) = %s pass=%v, want %s %v", tt.avg, g, Passing(g), tt.want, tt.pass)
		}
	}
}

func TestEvaluateDir(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.cpp"), []byte(cleanSource), 0644)
	os.WriteFile(filepath.Join(dir, "b.cpp"), []byte(dirtySource), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("halt_baddata()"), 0644)

	r, err := EvaluateDir(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if r.TotalFiles != 2 || r.Files[0].Filename != "a.cpp" {
		t.Fatalf("files = %+v", r.Files)
	}
	if r.FilesWithHaltBaddata != 1 || r.TotalHaltBaddata != 2 {
		t.Errorf("halt totals = %d/%d", r.FilesWithHaltBaddata, r.TotalHaltBaddata)
	}
	if r.AvgScore != 86.5 || r.Grade != "B" || r.MinScore != 73 || r.MaxScore != 100 {
		t.Errorf("avg=%v grade=%s min=%v max=%v", r.AvgScore, r.Grade, r.MinScore, r.MaxScore)
	}
	if w := r.Worst(1); len(w) != 1 || w[0].Filename != "b.cpp" {
		t.Errorf("Worst = %+v", w)
	}

	path := filepath.Join(dir, ReportFile)
	if err := r.WriteJSON(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["total_files"] != float64(2) || doc["grade"] != "B" {
		t.Errorf("json = %s", data)
	}
}

func TestEvaluateDirEmpty(t *testing.T) {
	r, err := EvaluateDir(t.TempDir(), "*.cpp")
	if err != nil {
		t.Fatal(err)
	}
	if r.TotalFiles != 0 || r.Grade != "F" {
		t.Errorf("empty report = %+v", r)
	}
}

func TestPrint(t *testing.T) {
	color.NoColor = true
	r := Aggregate("out", []FileMetrics{Evaluate("a.cpp", cleanSource), Evaluate("b.cpp", dirtySource)})
	var buf bytes.Buffer
	r.Print(&buf, true)
	out := buf.String()
	for _, want := range []string{"Average score:    86.5", "73.0  b.cpp", "Contains 2 halt_baddata calls", "Grade: B"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
