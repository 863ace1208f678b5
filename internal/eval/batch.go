package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Suite is the outcome of evaluating a directory of test cases.
type Suite struct {
	Results []*Result `json:"results"`
	Summary Summary   `json:"summary"`
}

// Summary aggregates a suite run.
type Summary struct {
	Total int `json:"total"`
	// Passed counts cases where every dimension met its target.
	Passed       int       `json:"passed"`
	FailRate     float64   `json:"fail_rate"`
	AverageScore float64   `json:"average_score"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// Summarize builds suite statistics from individual results.
func Summarize(results []*Result) Suite {
	suite := Suite{Results: results}
	suite.Summary.Total = len(results)
	suite.Summary.EvaluatedAt = time.Now()

	var scoreSum float64
	for _, r := range results {
		if r.Passed {
			suite.Summary.Passed++
		}
		scoreSum += r.OverallScore
	}
	if len(results) > 0 {
		suite.Summary.FailRate = float64(suite.Summary.Total-suite.Summary.Passed) / float64(suite.Summary.Total)
		suite.Summary.AverageScore = scoreSum / float64(len(results))
	}
	return suite
}

// SaveReport persists a suite as indented JSON, creating parent directories
// as needed.
func SaveReport(suite Suite, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	raw, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
