package usecase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/emery-Xu/news-aggregator/internal/domain"
)

// maxExecutionRecords bounds the on-disk run log.
const maxExecutionRecords = 100

// ExecutionLog persists pipeline run results as a JSON array, newest last.
type ExecutionLog struct {
	path string
}

// NewExecutionLog wires the log to a file path.
func NewExecutionLog(path string) *ExecutionLog {
	return &ExecutionLog{path: path}
}

// Append adds one run result, trimming the oldest records beyond the cap.
func (l *ExecutionLog) Append(result domain.ExecutionResult) error {
	results, err := l.Load()
	if err != nil {
		return err
	}

	results = append(results, result)
	if len(results) > maxExecutionRecords {
		results = results[len(results)-maxExecutionRecords:]
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create execution log dir: %w", err)
	}
	raw, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal execution log: %w", err)
	}
	if err := os.WriteFile(l.path, raw, 0o644); err != nil {
		return fmt.Errorf("write execution log %s: %w", l.path, err)
	}
	return nil
}

// Load reads all recorded runs; a missing file means no runs yet.
func (l *ExecutionLog) Load() ([]domain.ExecutionResult, error) {
	raw, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read execution log %s: %w", l.path, err)
	}

	var results []domain.ExecutionResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("parse execution log %s: %w", l.path, err)
	}
	return results, nil
}
