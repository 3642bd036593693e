package rulestore

import (
	"path/filepath"
	"testing"
)

func TestPutAllRoundTripsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Put("high_rpm", "s010C > 4000"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("overheat", "s0105 > 110"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	all, err := reopened.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(all))
	}
	if all["high_rpm"] != "s010C > 4000" {
		t.Errorf("high_rpm source mismatch: %q", all["high_rpm"])
	}
	if all["overheat"] != "s0105 > 110" {
		t.Errorf("overheat source mismatch: %q", all["overheat"])
	}
}

func TestDeleteRemovesRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Put("high_rpm", "s010C > 4000"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete("high_rpm"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty store after delete, got %v", all)
	}
}
