package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), ".libsurgeon"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndGet(t *testing.T) {
	l := openTemp(t)
	if _, ok, err := l.Get("libfoo.a(a.o)"); err != nil || ok {
		t.Fatalf("Get on empty ledger = %v, %v", ok, err)
	}
	e := Entry{Unit: "libfoo.a(a.o)", SHA256: "abc", Output: "out/libfoo/src/a.cpp", Success: true, Lines: 120}
	if err := l.Record(e); err != nil {
		t.Fatal(err)
	}
	got, ok, err := l.Get(e.Unit)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.SHA256 != "abc" || !got.Success || got.Lines != 120 || got.FinishedAt.IsZero() {
		t.Errorf("Get = %+v", got)
	}
}

func TestDone(t *testing.T) {
	l := openTemp(t)
	l.Record(Entry{Unit: "ok", SHA256: "h1", Success: true})
	l.Record(Entry{Unit: "bad", SHA256: "h2", Error: "Timeout (300s)"})

	tests := []struct {
		unit, sum string
		want      bool
	}{
		{"ok", "h1", true},
		{"ok", "h9", false},
		{"bad", "h2", false},
		{"missing", "h1", false},
	}
	for _, tt := range tests {
		if _, done, err := l.Done(tt.unit, tt.sum); err != nil || done != tt.want {
			t.Errorf("Done(%s, %s) = %v, %v; want %v", tt.unit, tt.sum, done, err, tt.want)
		}
	}
	if e, _, _ := l.Done("missing", "h1"); e.Unit != "" {
		t.Errorf("missing unit returned entry %+v", e)
	}
	if e, _, _ := l.Done("bad", "h2"); e.Unit != "bad" {
		t.Errorf("recorded unit returned entry %+v", e)
	}
}

func TestRecordReplaces(t *testing.T) {
	l := openTemp(t)
	l.Record(Entry{Unit: "u", SHA256: "h", Error: "boom"})
	l.Record(Entry{Unit: "u", SHA256: "h", Success: true})
	failed, err := l.Failed()
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 0 {
		t.Errorf("Failed = %+v, want none", failed)
	}
}

func TestFailed(t *testing.T) {
	l := openTemp(t)
	l.Record(Entry{Unit: "b.o", SHA256: "1", Error: "x"})
	l.Record(Entry{Unit: "a.o", SHA256: "2", Error: "y"})
	l.Record(Entry{Unit: "c.o", SHA256: "3", Success: true})
	failed, err := l.Failed()
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 2 || failed[0].Unit != "a.o" || failed[1].Error != "x" {
		t.Errorf("Failed = %+v", failed)
	}
}

func TestReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	l, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	l.Record(Entry{Unit: "u", SHA256: "h", Success: true})
	l.Close()

	l, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if l.Path() != filepath.Join(dir, FileName) {
		t.Errorf("Path = %q", l.Path())
	}
	if _, err := os.Stat(l.Path()); err != nil {
		t.Error(err)
	}
	if _, done, _ := l.Done("u", "h"); !done {
		t.Error("entry lost across reopen")
	}
}

func TestHashFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	os.WriteFile(p, []byte("abc"), 0644)
	got, err := HashFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"; got != want {
		t.Errorf("HashFile = %s", got)
	}
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
