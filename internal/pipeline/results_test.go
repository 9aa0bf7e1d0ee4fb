package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

func sessionResult(id, date string, scores ...int) *domain.SessionResult {
	var assessments []domain.Assessment
	for i, score := range scores {
		assessments = append(assessments, domain.Assessment{
			Ministry:   domain.MinistryOrder[i],
			DecisionID: id,
			Verdict:    domain.VerdictNeutral,
			Score:      score,
		})
	}
	return &domain.SessionResult{
		Decision: domain.Decision{
			ID:       id,
			Title:    "Decision " + id,
			Date:     date,
			Category: domain.CategoryFiscal,
		},
		Assessments: assessments,
		AnalyzedAt:  time.Now().UTC(),
	}
}

func TestResultStore_SaveLoadRoundTrip(t *testing.T) {
	s := NewResultStore(t.TempDir())
	want := sessionResult("news-2026-03-14-0a1b2c3d", "2026-03-14", 6, 8)

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(want.Decision.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestResultStore_LoadAbsent(t *testing.T) {
	s := NewResultStore(t.TempDir())
	got, err := s.Load("news-2026-03-14-deadbeef")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Errorf("Load absent = %v, want nil", got)
	}
}

func TestResultStore_IndexOrderAndScores(t *testing.T) {
	dir := t.TempDir()
	s := NewResultStore(dir)

	for _, r := range []*domain.SessionResult{
		sessionResult("news-2026-03-12-aaaaaaaa", "2026-03-12", 4),
		sessionResult("news-2026-03-14-bbbbbbbb", "2026-03-14", 6, 8),
		sessionResult("news-2026-03-14-aaaaaaaa", "2026-03-14", 10),
	} {
		if err := s.Save(r); err != nil {
			t.Fatalf("Save %s: %v", r.Decision.ID, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "analyses-index.json"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	var index []IndexEntry
	if err := json.Unmarshal(data, &index); err != nil {
		t.Fatalf("parse index: %v", err)
	}

	wantOrder := []string{
		"news-2026-03-14-aaaaaaaa",
		"news-2026-03-14-bbbbbbbb",
		"news-2026-03-12-aaaaaaaa",
	}
	var gotOrder []string
	for _, e := range index {
		gotOrder = append(gotOrder, e.ID)
	}
	if diff := cmp.Diff(wantOrder, gotOrder); diff != "" {
		t.Errorf("index order (-want +got):\n%s", diff)
	}

	if index[1].AverageScore != 7.0 {
		t.Errorf("average score = %f, want 7.0", index[1].AverageScore)
	}
}

func TestResultStore_PendingLifecycle(t *testing.T) {
	s := NewResultStore(t.TempDir())
	d := domain.Decision{ID: "news-2026-03-14-0a1b2c3d", Title: "Pending decision", Date: "2026-03-14"}

	if err := s.SavePending(d); err != nil {
		t.Fatalf("SavePending: %v", err)
	}
	got, err := s.LoadPending(d.ID)
	if err != nil {
		t.Fatalf("LoadPending: %v", err)
	}
	if diff := cmp.Diff(&d, got); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}

	if err := s.RemovePending(d.ID); err != nil {
		t.Fatalf("RemovePending: %v", err)
	}
	got, err = s.LoadPending(d.ID)
	if err != nil || got != nil {
		t.Errorf("after remove: got %v, err %v", got, err)
	}

	// Removing twice is fine.
	if err := s.RemovePending(d.ID); err != nil {
		t.Errorf("second RemovePending: %v", err)
	}
}
