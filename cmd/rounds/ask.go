package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/openrounds/rounds/internal/api"
	"github.com/openrounds/rounds/internal/config"
	"github.com/openrounds/rounds/internal/orchestrator"
	"github.com/openrounds/rounds/internal/retry"
	"github.com/openrounds/rounds/internal/tools"
	"github.com/openrounds/rounds/internal/trace"
	"github.com/openrounds/rounds/internal/tui"
	"github.com/openrounds/rounds/pkg/models"
)

var (
	askDataFile string
	askPlain    bool
	askNoTrace  bool
	askModel    string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a health-data question",
	Long: `Ask runs one question through the full specialist pipeline.

The lead agent classifies the question, creates specialist tasks sized to
its complexity, runs the specialists concurrently, and streams back a
synthesized answer. Unless --no-trace is set, the run is recorded and can
be inspected with 'rounds traces' or scored with 'rounds eval'.

Health data is read from the warehouse configured for your account; for
local experiments, --data accepts a JSON file mapping metric names to
record lists.

Examples:
  rounds ask "how has my sleep been this month?"
  rounds ask --data ./metrics.json "is my resting heart rate trending up?"
  rounds ask --plain "summarize my bloodwork"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askDataFile, "data", "", "JSON file of metric data for local runs")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "Print progress as plain text instead of the TUI")
	askCmd.Flags().BoolVar(&askNoTrace, "no-trace", false, "Skip trace recording")
	askCmd.Flags().StringVar(&askModel, "model", "", "Override the configured Claude model")
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := newAPIClient(cfg, askModel)
	if err != nil {
		return err
	}

	source, err := loadDataSource(askDataFile)
	if err != nil {
		return err
	}
	registry := tools.NewRegistry()
	tools.RegisterHealthQuery(registry, source)

	var recorder *trace.Recorder
	if !askNoTrace {
		recorder = trace.Start(query)
	}

	orch := orchestrator.New(orchestrator.RequiredConfig{
		Completer: client,
		Tools:     registry,
		ToolDefs:  registry.Definitions(),
	},
		orchestrator.WithRecorder(recorder),
		orchestrator.WithRetryPolicy(retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
		}),
	)

	ctx := context.Background()
	var data *models.OrchestrationData
	var runErr error
	if askPlain {
		data, runErr = runPlain(ctx, orch, query)
	} else {
		data, runErr = runWithTUI(ctx, orch, query)
	}

	if recorder != nil {
		persistTrace(cfg, recorder.End())
	}

	if runErr != nil {
		return runErr
	}

	if askPlain {
		fmt.Println()
	}
	printRunStats(data, client)
	return nil
}

// runPlain drives the pipeline with line-based progress output.
func runPlain(ctx context.Context, orch *orchestrator.Orchestrator, query string) (*models.OrchestrationData, error) {
	type outcome struct {
		data *models.OrchestrationData
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		data, err := orch.Run(ctx, query)
		done <- outcome{data, err}
	}()

	for event := range orch.Events() {
		switch event.Type {
		case orchestrator.EventStageStarted:
			fmt.Printf("%s %s\n", color.BlueString("▸"), event.Stage)
		case orchestrator.EventStageCompleted:
			if event.Message != "" {
				fmt.Printf("%s %s: %s\n", color.GreenString("✓"), event.Stage, event.Message)
			}
		case orchestrator.EventSpecialistStarted:
			fmt.Printf("  %s %s\n", color.YellowString("…"), event.Specialist)
		case orchestrator.EventSpecialistCompleted:
			fmt.Printf("  %s %s\n", color.GreenString("✓"), event.Specialist)
		case orchestrator.EventSpecialistFailed:
			fmt.Printf("  %s %s: %s\n", color.RedString("✗"), event.Specialist, event.Message)
		case orchestrator.EventNarrativeChunk:
			fmt.Print(event.Chunk)
		}
	}

	result := <-done
	return result.data, result.err
}

// runWithTUI drives the pipeline behind the bubbletea progress view.
func runWithTUI(ctx context.Context, orch *orchestrator.Orchestrator, query string) (*models.OrchestrationData, error) {
	// Log output corrupts the alternate screen.
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	program, _ := tui.NewProgram(query)

	type outcome struct {
		data *models.OrchestrationData
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		data, err := orch.Run(ctx, query)
		if err != nil {
			program.Send(tui.ErrMsg{Err: err})
		}
		done <- outcome{data, err}
	}()
	go tui.Forward(program, orch.Events())

	if _, err := program.Run(); err != nil {
		return nil, fmt.Errorf("run TUI: %w", err)
	}

	result := <-done
	if result.err != nil {
		return nil, result.err
	}

	// The TUI streamed the answer; reprint it so it survives the
	// alternate-screen teardown.
	fmt.Println(result.data.Narrative)
	return result.data, nil
}

// loadDataSource builds the tool data source: a JSON metrics file for local
// runs, or an empty source when none is given.
func loadDataSource(path string) (*tools.StaticSource, error) {
	if path == "" {
		return &tools.StaticSource{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	var data map[string][]map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse data file %s: %w", path, err)
	}
	return &tools.StaticSource{Data: data}, nil
}

// persistTrace writes the trace to the JSON directory and the SQLite index.
// Persistence failures are reported but never fail the query.
func persistTrace(cfg *config.Config, tr *trace.Trace) {
	if tr == nil {
		return
	}

	path := filepath.Join(cfg.Traces.Dir, tr.ID+".json")
	if err := trace.SaveFile(tr, path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: save trace file: %v\n", err)
	}

	dbPath := cfg.Traces.DBPath
	if dbPath == "" {
		dbPath = trace.DefaultDBPath()
	}
	db, err := trace.OpenDB(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: open trace db: %v\n", err)
		return
	}
	defer db.Close()
	if err := db.Save(tr); err != nil {
		fmt.Fprintf(os.Stderr, "warning: index trace: %v\n", err)
		return
	}
	fmt.Printf("%s trace %s\n", color.New(color.Faint).Sprint("recorded"), tr.ID)
}

// printRunStats reports specialist coverage and token usage.
func printRunStats(data *models.OrchestrationData, client *api.Client) {
	if data == nil {
		return
	}
	input, output := client.Tracker().Total()
	fmt.Printf("%s %s complexity, %d/%d specialists, %d tool calls, %d in / %d out tokens ($%.4f)\n",
		color.New(color.Faint).Sprint("stats:"),
		data.Complexity, len(data.Results), len(data.Tasks),
		data.TotalToolCalls(), input, output, client.Tracker().Cost())
}
