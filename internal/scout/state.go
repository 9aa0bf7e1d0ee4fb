// Package scout runs the rate-limited external collaborators: news
// intake, the research scout, and the two directors. Each is a periodic
// action gated by a small local state file.
package scout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// NewsState gates news intake to one run per day.
type NewsState struct {
	LastDate string `json:"last_date"`
}

// ResearchState gates the research scout to one run per interval.
type ResearchState struct {
	LastTS time.Time `json:"last_ts"`
}

// LoadNewsState reads the news state file; a missing file means never run.
func LoadNewsState(path string) (NewsState, error) {
	var s NewsState
	err := loadState(path, &s)
	return s, err
}

// SaveNewsState writes the news state file.
func SaveNewsState(path string, s NewsState) error {
	return saveState(path, s)
}

// LoadResearchState reads the research state file.
func LoadResearchState(path string) (ResearchState, error) {
	var s ResearchState
	err := loadState(path, &s)
	return s, err
}

// SaveResearchState writes the research state file.
func SaveResearchState(path string, s ResearchState) error {
	return saveState(path, s)
}

// ShouldRunNews reports whether news intake may run at now.
func ShouldRunNews(s NewsState, now time.Time) bool {
	return s.LastDate != now.Format("2006-01-02")
}

// ShouldRunResearch reports whether the research scout may run at now.
func ShouldRunResearch(s ResearchState, interval time.Duration, now time.Time) bool {
	if s.LastTS.IsZero() {
		return true
	}
	return now.Sub(s.LastTS) >= interval
}

func loadState(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read state %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse state %s: %w", path, err)
	}
	return nil
}

func saveState(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write state %s: %w", path, err)
	}
	return nil
}
