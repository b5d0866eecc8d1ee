package persistence

import (
	"testing"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestSaveLoadRoundTripUncompressed(t *testing.T) {
	s := newTestStore(t)
	id := ids.New()
	want := []byte(`{"status":"Running"}`)

	if err := s.Save(id, want, false); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("round trip mismatch: got %s want %s", got, want)
	}
}

func TestSaveLoadRoundTripCompressed(t *testing.T) {
	s := newTestStore(t)
	id := ids.New()
	want := []byte(`{"status":"Paused","big":"` + string(make([]byte, 2048)) + `"}`)

	if err := s.Save(id, want, true); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("round trip mismatch after compression")
	}
}

func TestSaveSwitchingCompressionRemovesStaleVariant(t *testing.T) {
	s := newTestStore(t)
	id := ids.New()
	if err := s.Save(id, []byte("v1"), false); err != nil {
		t.Fatalf("Save uncompressed: %v", err)
	}
	if err := s.Save(id, []byte("v2"), true); err != nil {
		t.Fatalf("Save compressed: %v", err)
	}
	got, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("expected v2, got %s", got)
	}
}

func TestLoadMissingSessionReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(ids.New())
	if !coreerr.Is(err, coreerr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestSnapshotsSortedByRecencyDescending(t *testing.T) {
	s := newTestStore(t)
	id := ids.New()

	first, err := s.Snapshot(id, []byte("first"))
	if err != nil {
		t.Fatalf("Snapshot 1: %v", err)
	}
	second, err := s.Snapshot(id, []byte("second"))
	if err != nil {
		t.Fatalf("Snapshot 2: %v", err)
	}

	list, err := s.ListSnapshots(id)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(list))
	}
	_ = first
	_ = second

	body, err := s.LoadSnapshot(id, list[len(list)-1].ID)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if string(body) != "first" {
		t.Fatalf("expected oldest snapshot last, got %s", body)
	}
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t)
	id := ids.New()
	if err := s.Save(id, []byte("x"), false); err != nil {
		t.Fatalf("Save: %v", err)
	}
	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, sid := range list {
		if sid == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in list %v", id, list)
	}
	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(id); !coreerr.Is(err, coreerr.KindNotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}
