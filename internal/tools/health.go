package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openrounds/rounds/internal/api"
)

// QueryHealthDataTool is the name of the health-data query tool.
const QueryHealthDataTool = "query_health_data"

// maxResultRows caps how many records a single query feeds back to the model.
const maxResultRows = 50

// DataSource answers health-data queries. The production implementation is a
// warehouse client provided by the host application; StaticSource below
// serves tests and local demos.
type DataSource interface {
	// Query returns records for a metric over a time window.
	Query(ctx context.Context, metric, window string) ([]map[string]any, error)
}

// HealthQueryParams is the tool's input payload.
type HealthQueryParams struct {
	// Metric names the health measurement to retrieve (e.g. "resting_heart_rate").
	Metric string `json:"metric"`
	// Window is a relative time window (e.g. "90d", "6m").
	Window string `json:"window,omitempty"`
	// Label tags this query so the specialist can group its data points.
	Label string `json:"label,omitempty"`
}

// HealthQueryDef returns the schema for the health-data query tool.
func HealthQueryDef() api.ToolDef {
	return api.ToolDef{
		Name:        QueryHealthDataTool,
		Description: "Query the user's health data warehouse for a metric over a time window. Returns matching records as JSON rows.",
		Properties: map[string]any{
			"metric": map[string]any{
				"type":        "string",
				"description": "Health metric to retrieve (e.g., resting_heart_rate, sleep_stages, hba1c)",
			},
			"window": map[string]any{
				"type":        "string",
				"description": "Relative time window such as 30d, 90d, or 1y (default 90d)",
			},
			"label": map[string]any{
				"type":        "string",
				"description": "Short label describing what this query is for",
			},
		},
		Required: []string{"metric"},
	}
}

// RegisterHealthQuery wires the health-data query tool against a data source.
func RegisterHealthQuery(r *Registry, source DataSource) {
	r.Register(HealthQueryDef(), func(ctx context.Context, input json.RawMessage) (Result, error) {
		var params HealthQueryParams
		if err := json.Unmarshal(input, &params); err != nil {
			return Result{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}, nil
		}
		if params.Metric == "" {
			return Result{Content: "Missing required parameter: metric", IsError: true}, nil
		}
		window := params.Window
		if window == "" {
			window = "90d"
		}

		rows, err := source.Query(ctx, params.Metric, window)
		if err != nil {
			return Result{Content: fmt.Sprintf("Query failed: %v", err), IsError: true}, nil
		}
		if len(rows) > maxResultRows {
			rows = rows[:maxResultRows]
		}

		payload, err := json.Marshal(rows)
		if err != nil {
			return Result{Content: fmt.Sprintf("Encode results: %v", err), IsError: true}, nil
		}
		return Result{
			Content: fmt.Sprintf("%d records for %s over %s:\n%s", len(rows), params.Metric, window, payload),
			Rows:    rows,
		}, nil
	})
}

// StaticSource is an in-memory DataSource keyed by metric name.
type StaticSource struct {
	// Data maps metric name to its records.
	Data map[string][]map[string]any
}

// Query returns the stored records for a metric. Unknown metrics return an
// empty result, matching warehouse behavior for tables with no rows.
func (s *StaticSource) Query(_ context.Context, metric, _ string) ([]map[string]any, error) {
	rows := s.Data[strings.ToLower(strings.TrimSpace(metric))]
	return rows, nil
}
