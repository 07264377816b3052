package insertstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tallowoak/taskline/internal/pattern"
	"github.com/tallowoak/taskline/internal/value"
)

func TestGetLocalWinsOverFileFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "greeting"), []byte("from file"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(dir, nil)
	s.Set("greeting", value.String("from local"))

	v, ok := s.Get("greeting")
	if !ok {
		t.Fatal("expected greeting to resolve")
	}
	if v.Str != "from local" {
		t.Errorf("Get(greeting) = %q, want local value to win", v.Str)
	}
}

func TestGetFallsBackToFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "greeting"), []byte("from file"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(dir, nil)
	v, ok := s.Get("greeting")
	if !ok || v.Str != "from file" {
		t.Errorf("Get(greeting) = %+v, %v, want %q, true", v, ok, "from file")
	}
}

func TestGetComputedClockKeys(t *testing.T) {
	s := New("", nil)
	fixed := time.Date(2024, 7, 29, 9, 5, 0, 0, time.Local)
	s.SetClock(func() time.Time { return fixed })

	v, ok := s.Get("HH:MM")
	if !ok || v.Str != "09:05" {
		t.Errorf("Get(HH:MM) = %+v, %v, want %q, true", v, ok, "09:05")
	}
	v, ok = s.Get("HH:MM:SS")
	if !ok || v.Str != "09:05:00" {
		t.Errorf("Get(HH:MM:SS) = %+v, %v, want %q, true", v, ok, "09:05:00")
	}
}

func TestGetPositionalArgs(t *testing.T) {
	s := New("", []string{"alice", "bob"})
	v, ok := s.Get("ARG1")
	if !ok || v.Str != "alice" {
		t.Errorf("Get(ARG1) = %+v, %v, want %q, true", v, ok, "alice")
	}
	v, ok = s.Get("ARG2")
	if !ok || v.Str != "bob" {
		t.Errorf("Get(ARG2) = %+v, %v, want %q, true", v, ok, "bob")
	}
	if _, ok := s.Get("ARG3"); ok {
		t.Error("Get(ARG3) should fail: only two args provided")
	}
}

func TestGetUnknownKeyFails(t *testing.T) {
	s := New("", nil)
	if _, ok := s.Get("nope"); ok {
		t.Error("Get of an unset key should fail")
	}
}

func TestDeleteRemovesLocalOnly(t *testing.T) {
	s := New("", nil)
	s.Set("a", value.Int(1))
	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Error("deleted key should no longer resolve")
	}
}

func TestDeleteMatchingRemovesOnlyMatchingKeys(t *testing.T) {
	s := New("", nil)
	s.Set("score_1", value.Int(1))
	s.Set("score_2", value.Int(2))
	s.Set("name", value.String("Ada"))

	s.DeleteMatching(pattern.CompileAll([]string{"score_*"}))

	snap := s.Snapshot()
	if _, ok := snap.Get("score_1"); ok {
		t.Error("score_1 should have been deleted")
	}
	if _, ok := snap.Get("score_2"); ok {
		t.Error("score_2 should have been deleted")
	}
	if _, ok := snap.Get("name"); !ok {
		t.Error("name should remain: it matches no pattern")
	}
}

func TestDeleteExceptMatchingKeepsOnlyMatchingKeys(t *testing.T) {
	s := New("", nil)
	s.Set("score_1", value.Int(1))
	s.Set("score_2", value.Int(2))
	s.Set("name", value.String("Ada"))

	s.DeleteExceptMatching(pattern.CompileAll([]string{"score_*"}))

	snap := s.Snapshot()
	if _, ok := snap.Get("score_1"); !ok {
		t.Error("score_1 should remain: it matches the pattern")
	}
	if _, ok := snap.Get("score_2"); !ok {
		t.Error("score_2 should remain: it matches the pattern")
	}
	if _, ok := snap.Get("name"); ok {
		t.Error("name should have been deleted: it matches no pattern")
	}
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	s := New("", nil)
	s.Set("z", value.Int(1))
	s.Set("a", value.Int(2))
	snap := s.Snapshot()
	want := []string{"z", "a"}
	got := snap.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New("", nil)
	s.Set("a", value.Int(1))
	clone := s.Clone()
	clone.Set("a", value.Int(2))
	clone.Set("b", value.Int(3))

	v, _ := s.Get("a")
	if v.Int != 1 {
		t.Errorf("original store was mutated by clone: Get(a) = %d, want 1", v.Int)
	}
	if _, ok := s.Get("b"); ok {
		t.Error("original store should not see keys set only on the clone")
	}
}
