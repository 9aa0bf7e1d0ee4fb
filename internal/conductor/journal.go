// Package conductor plans each cycle. A planner agent turns the current
// engine state into a bounded action list; when it fails, a recovery
// agent tries once more, and a hardcoded plan covers the rest.
package conductor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// journalKeep is how many entries survive each append. The journal is
// working memory for the planner, not an audit log.
const journalKeep = 10

// Journal persists the conductor's cycle-to-cycle notes.
type Journal struct {
	Path string
}

// NewJournal creates a journal rooted at the data directory.
func NewJournal(dataDir string) *Journal {
	return &Journal{Path: filepath.Join(dataDir, "conductor_journal.jsonl")}
}

// Append adds one entry and trims the journal to its retention bound.
func (j *Journal) Append(entry domain.JournalEntry) error {
	entries, err := j.Load()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if len(entries) > journalKeep {
		entries = entries[len(entries)-journalKeep:]
	}

	if err := os.MkdirAll(filepath.Dir(j.Path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	tmp := j.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			f.Close()
			return fmt.Errorf("marshal journal entry: %w", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			f.Close()
			return fmt.Errorf("write journal: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return os.Rename(tmp, j.Path)
}

// Load returns the retained entries, oldest first. A missing file is an
// empty journal. Invalid lines are skipped.
func (j *Journal) Load() ([]domain.JournalEntry, error) {
	f, err := os.Open(j.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var out []domain.JournalEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e domain.JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	if len(out) > journalKeep {
		out = out[len(out)-journalKeep:]
	}
	return out, nil
}
