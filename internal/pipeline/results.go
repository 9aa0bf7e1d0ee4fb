package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// ResultStore persists SessionResults under the contractual layout:
// analyses/{decision_id}.json plus a flat analyses-index.json summary.
type ResultStore struct {
	DataDir string
}

// NewResultStore creates a store rooted at the data directory.
func NewResultStore(dataDir string) *ResultStore {
	return &ResultStore{DataDir: dataDir}
}

// IndexEntry is one row of analyses-index.json.
type IndexEntry struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Date            string          `json:"date"`
	Category        domain.Category `json:"category"`
	AverageScore    float64         `json:"average_score"`
	CriticScore     int             `json:"critic_score,omitempty"`
	Verdict         domain.Verdict  `json:"verdict,omitempty"`
	HasCounter      bool            `json:"has_counter_proposal"`
	TranslatedTitle string          `json:"translated_title,omitempty"`
}

func (s *ResultStore) analysesDir() string {
	return filepath.Join(s.DataDir, "analyses")
}

func (s *ResultStore) path(decisionID string) string {
	return filepath.Join(s.analysesDir(), decisionID+".json")
}

// Save writes one SessionResult and rebuilds the index.
func (s *ResultStore) Save(result *domain.SessionResult) error {
	if err := os.MkdirAll(s.analysesDir(), 0o755); err != nil {
		return fmt.Errorf("create analyses dir: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session result: %w", err)
	}
	if err := os.WriteFile(s.path(result.Decision.ID), data, 0o644); err != nil {
		return fmt.Errorf("write session result: %w", err)
	}
	return s.rebuildIndex()
}

// Load reads one SessionResult back, or nil when absent.
func (s *ResultStore) Load(decisionID string) (*domain.SessionResult, error) {
	data, err := os.ReadFile(s.path(decisionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session result: %w", err)
	}
	var result domain.SessionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse session result %s: %w", decisionID, err)
	}
	return &result, nil
}

func (s *ResultStore) pendingPath(decisionID string) string {
	return filepath.Join(s.DataDir, "pending", decisionID+".json")
}

// SavePending parks a discovered decision until its analysis issue is
// executed.
func (s *ResultStore) SavePending(d domain.Decision) error {
	if err := os.MkdirAll(filepath.Join(s.DataDir, "pending"), 0o755); err != nil {
		return fmt.Errorf("create pending dir: %w", err)
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pending decision: %w", err)
	}
	if err := os.WriteFile(s.pendingPath(d.ID), data, 0o644); err != nil {
		return fmt.Errorf("write pending decision: %w", err)
	}
	return nil
}

// LoadPending reads a parked decision, or nil when absent.
func (s *ResultStore) LoadPending(decisionID string) (*domain.Decision, error) {
	data, err := os.ReadFile(s.pendingPath(decisionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pending decision: %w", err)
	}
	var d domain.Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse pending decision %s: %w", decisionID, err)
	}
	return &d, nil
}

// RemovePending deletes a parked decision after its analysis is published.
func (s *ResultStore) RemovePending(decisionID string) error {
	err := os.Remove(s.pendingPath(decisionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pending decision: %w", err)
	}
	return nil
}

// rebuildIndex regenerates analyses-index.json from every stored result.
func (s *ResultStore) rebuildIndex() error {
	entries, err := os.ReadDir(s.analysesDir())
	if err != nil {
		return fmt.Errorf("read analyses dir: %w", err)
	}

	var index []IndexEntry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		result, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil || result == nil {
			continue
		}
		index = append(index, summarize(result))
	}
	sort.Slice(index, func(i, j int) bool {
		if index[i].Date != index[j].Date {
			return index[i].Date > index[j].Date
		}
		return index[i].ID < index[j].ID
	})

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return os.WriteFile(filepath.Join(s.DataDir, "analyses-index.json"), data, 0o644)
}

func summarize(result *domain.SessionResult) IndexEntry {
	entry := IndexEntry{
		ID:              result.Decision.ID,
		Title:           result.Decision.Title,
		Date:            result.Decision.Date,
		Category:        result.Decision.Category,
		HasCounter:      result.CounterProposal != nil,
		TranslatedTitle: result.Decision.TranslatedTitle,
	}
	if len(result.Assessments) > 0 {
		total := 0
		for _, a := range result.Assessments {
			total += a.Score
		}
		entry.AverageScore = float64(total) / float64(len(result.Assessments))
	}
	if result.Critic != nil {
		entry.CriticScore = result.Critic.DecisionScore
	}
	if result.Parliament != nil {
		entry.Verdict = result.Parliament.OverallVerdict
	}
	return entry
}
