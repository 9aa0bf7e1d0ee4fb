package scout

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestShouldRunNews(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state NewsState
		want  bool
	}{
		{"never run", NewsState{}, true},
		{"ran yesterday", NewsState{LastDate: "2026-03-13"}, true},
		{"ran today", NewsState{LastDate: "2026-03-14"}, false},
	}
	for _, tt := range tests {
		if got := ShouldRunNews(tt.state, now); got != tt.want {
			t.Errorf("%s: ShouldRunNews = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestShouldRunResearch(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	week := 168 * time.Hour

	tests := []struct {
		name  string
		state ResearchState
		want  bool
	}{
		{"never run", ResearchState{}, true},
		{"interval elapsed", ResearchState{LastTS: now.Add(-week - time.Hour)}, true},
		{"exactly at interval", ResearchState{LastTS: now.Add(-week)}, true},
		{"too recent", ResearchState{LastTS: now.Add(-time.Hour)}, false},
	}
	for _, tt := range tests {
		if got := ShouldRunResearch(tt.state, week, now); got != tt.want {
			t.Errorf("%s: ShouldRunResearch = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "news_state.json")

	if err := SaveNewsState(path, NewsState{LastDate: "2026-03-14"}); err != nil {
		t.Fatalf("SaveNewsState: %v", err)
	}
	state, err := LoadNewsState(path)
	if err != nil {
		t.Fatalf("LoadNewsState: %v", err)
	}
	if state.LastDate != "2026-03-14" {
		t.Errorf("LastDate = %q", state.LastDate)
	}
}

func TestNewsScout_RunEnforcesDailyGate(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "news_scout_state.json")
	if err := SaveNewsState(path, NewsState{LastDate: "2026-03-14"}); err != nil {
		t.Fatalf("SaveNewsState: %v", err)
	}

	// No runner, no tracker: a closed gate must return before either is
	// touched, even when the planner schedules the action anyway.
	n := &NewsScout{StatePath: path, MaxPerDay: 3}
	created, err := n.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("gated Run: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("gated Run filed %d decision(s), want 0", len(created))
	}
}

func TestResearchScout_RunEnforcesInterval(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "research_scout_state.json")
	if err := SaveResearchState(path, ResearchState{LastTS: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("SaveResearchState: %v", err)
	}

	r := &ResearchScout{StatePath: path, Interval: 168 * time.Hour}
	filed, err := r.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("gated Run: %v", err)
	}
	if len(filed) != 0 {
		t.Errorf("gated Run filed %d issue(s), want 0", len(filed))
	}
}

func TestLoadState_Missing(t *testing.T) {
	state, err := LoadNewsState(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing state file: %v", err)
	}
	if state.LastDate != "" {
		t.Errorf("missing file produced state %v", state)
	}
}
