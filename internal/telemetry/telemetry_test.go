package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

func TestAppendAndLoadCycles(t *testing.T) {
	w := NewWriter(t.TempDir())

	for i := 1; i <= 3; i++ {
		err := w.AppendCycle(domain.CycleTelemetry{
			CycleNumber: i,
			StartedAt:   time.Now().UTC(),
			YieldKind:   domain.YieldNone,
		})
		if err != nil {
			t.Fatalf("AppendCycle(%d): %v", i, err)
		}
	}

	all, err := w.LoadCycles(0)
	if err != nil {
		t.Fatalf("LoadCycles: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("loaded %d records, want 3", len(all))
	}
	if all[0].CycleNumber != 1 || all[2].CycleNumber != 3 {
		t.Errorf("records out of order: %v", all)
	}

	last, err := w.LoadCycles(2)
	if err != nil {
		t.Fatalf("LoadCycles(2): %v", err)
	}
	if len(last) != 2 || last[0].CycleNumber != 2 {
		t.Errorf("trailing records = %v, want cycles 2 and 3", last)
	}
}

func TestLoadCycles_MissingFile(t *testing.T) {
	w := NewWriter(t.TempDir())
	records, err := w.LoadCycles(10)
	if err != nil {
		t.Fatalf("LoadCycles on missing file: %v", err)
	}
	if records != nil {
		t.Errorf("records = %v, want nil", records)
	}
}

func TestLoadCycles_SkipsPartialTrailingLine(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	if err := w.AppendCycle(domain.CycleTelemetry{CycleNumber: 1}); err != nil {
		t.Fatalf("AppendCycle: %v", err)
	}
	// Simulate a crash mid-write.
	f, err := os.OpenFile(filepath.Join(dir, "telemetry.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"cycle_number": 2, "trunc`); err != nil {
		t.Fatal(err)
	}
	f.Close()

	records, err := w.LoadCycles(0)
	if err != nil {
		t.Fatalf("LoadCycles: %v", err)
	}
	if len(records) != 1 || records[0].CycleNumber != 1 {
		t.Errorf("records = %v, want only cycle 1", records)
	}
}

func TestAppendAndLoadErrors(t *testing.T) {
	w := NewWriter(t.TempDir())

	err := w.AppendError(domain.StructuredError{
		Timestamp:   time.Now().UTC(),
		CycleNumber: 4,
		Phase:       "fetch_news",
		Kind:        domain.KindAgentTimeout,
		Message:     "agent subprocess exceeded wall-clock timeout",
	})
	if err != nil {
		t.Fatalf("AppendError: %v", err)
	}

	records, err := w.LoadErrors(10)
	if err != nil {
		t.Fatalf("LoadErrors: %v", err)
	}
	if len(records) != 1 || records[0].Kind != domain.KindAgentTimeout {
		t.Errorf("records = %v", records)
	}
}
