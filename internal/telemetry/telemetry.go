// Package telemetry persists cycle records and structured errors as
// append-only JSONL, and drives the mechanical circuit breaker.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

// Writer appends telemetry and error records. All writes are single
// whole-line writes so a crash can leave at most one partial trailing
// line, which readers skip.
type Writer struct {
	TelemetryPath string
	ErrorsPath    string
}

// NewWriter creates a writer rooted at the data directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{
		TelemetryPath: filepath.Join(dataDir, "telemetry.jsonl"),
		ErrorsPath:    filepath.Join(dataDir, "errors.jsonl"),
	}
}

// AppendCycle writes one cycle record as a single JSON line.
func (w *Writer) AppendCycle(rec domain.CycleTelemetry) error {
	return appendLine(w.TelemetryPath, rec)
}

// AppendError writes one structured error record.
func (w *Writer) AppendError(rec domain.StructuredError) error {
	return appendLine(w.ErrorsPath, rec)
}

// LoadCycles returns telemetry records, most recent last. With lastN > 0
// only the trailing records are returned. Invalid lines are skipped.
func (w *Writer) LoadCycles(lastN int) ([]domain.CycleTelemetry, error) {
	return loadLines[domain.CycleTelemetry](w.TelemetryPath, lastN)
}

// LoadErrors returns structured error records, most recent last.
func (w *Writer) LoadErrors(lastN int) ([]domain.StructuredError, error) {
	return loadLines[domain.StructuredError](w.ErrorsPath, lastN)
}

func appendLine(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	// Build the full line in memory so the append is a single write.
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append to %s: %w", path, err)
	}
	return nil
}

func loadLines[T any](path string, lastN int) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec T
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			// Tolerate a partial trailing line from a crash.
			continue
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	if lastN > 0 && len(out) > lastN {
		out = out[len(out)-lastN:]
	}
	return out, nil
}
