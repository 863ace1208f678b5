package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/openrounds/rounds/internal/config"
	"github.com/openrounds/rounds/internal/eval"
	"github.com/openrounds/rounds/internal/replay"
	"github.com/openrounds/rounds/internal/trace"
)

var (
	evalTraceFile string
	evalTracesDir string
	evalUseJudge  bool
	evalReport    string
	evalWatch     bool
	evalModel     string
)

var evalCmd = &cobra.Command{
	Use:   "eval <case.yaml | cases-dir>",
	Short: "Score recorded runs against expected outcomes",
	Long: `Eval replays recorded traces and scores them against test cases.

Given a single case file and --trace, it scores that one run. Given a
directory of case files and --traces, it scores each case against the
trace named <case-id>.json in the trace directory.

Scoring is deterministic by default. With --judge, the quality dimensions
are split between deterministic checks and an LLM judge; judge failures
degrade those dimensions back to deterministic scoring rather than
failing the evaluation.

The exit code is non-zero when any case fails, where failing means at
least one scored dimension landed below its target.

Examples:
  rounds eval cases/sleep_trend.yaml --trace traces/abc123.json
  rounds eval cases/ --traces traces/ --judge --report report.json
  rounds eval cases/ --traces traces/ --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalTraceFile, "trace", "", "Trace file for a single-case evaluation")
	evalCmd.Flags().StringVar(&evalTracesDir, "traces", "", "Directory of trace files for batch evaluation")
	evalCmd.Flags().BoolVar(&evalUseJudge, "judge", false, "Use an LLM judge for quality dimensions")
	evalCmd.Flags().StringVar(&evalReport, "report", "", "Write a JSON report to this path")
	evalCmd.Flags().BoolVar(&evalWatch, "watch", false, "Re-evaluate when case or trace files change")
	evalCmd.Flags().StringVar(&evalModel, "model", "", "Override the configured Claude model for the judge")
}

func runEval(cmd *cobra.Command, args []string) error {
	target := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	engine, err := newEvalEngine(cfg)
	if err != nil {
		return err
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("stat %s: %w", target, err)
	}

	run := func() (bool, error) {
		if info.IsDir() {
			return evalBatch(cmd.Context(), engine, target)
		}
		return evalSingle(cmd.Context(), engine, target)
	}

	if evalWatch {
		return watchEval(target, run)
	}

	passed, err := run()
	if err != nil {
		return err
	}
	if !passed {
		os.Exit(1)
	}
	return nil
}

func newEvalEngine(cfg *config.Config) (*eval.Engine, error) {
	scoring := cfg.ScoringConfig()
	if !evalUseJudge {
		return eval.NewEngine(scoring), nil
	}
	client, err := newAPIClient(cfg, evalModel)
	if err != nil {
		return nil, err
	}
	return eval.NewEngine(scoring, eval.WithJudge(eval.NewCompleterJudge(client))), nil
}

func evalSingle(ctx context.Context, engine *eval.Engine, casePath string) (bool, error) {
	if evalTraceFile == "" {
		return false, fmt.Errorf("--trace is required when evaluating a single case")
	}

	tc, err := eval.LoadCase(casePath)
	if err != nil {
		return false, err
	}
	result, err := evalOne(ctx, engine, tc, evalTraceFile)
	if err != nil {
		return false, err
	}

	fmt.Print(eval.RenderResult(result))

	if evalReport != "" {
		suite := eval.Summarize([]*eval.Result{result})
		if err := eval.SaveReport(suite, evalReport); err != nil {
			return false, fmt.Errorf("write report: %w", err)
		}
	}
	return result.Passed, nil
}

func evalBatch(ctx context.Context, engine *eval.Engine, casesDir string) (bool, error) {
	if evalTracesDir == "" {
		return false, fmt.Errorf("--traces is required when evaluating a case directory")
	}

	cases, err := eval.LoadDir(casesDir)
	if err != nil {
		return false, err
	}

	var results []*eval.Result
	for _, tc := range cases {
		tracePath := filepath.Join(evalTracesDir, tc.ID+".json")
		if _, err := os.Stat(tracePath); err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: no trace at %s\n", tc.ID, tracePath)
			continue
		}
		result, err := evalOne(ctx, engine, tc, tracePath)
		if err != nil {
			return false, fmt.Errorf("case %s: %w", tc.ID, err)
		}
		results = append(results, result)
	}
	if len(results) == 0 {
		return false, fmt.Errorf("no cases in %s had a matching trace in %s", casesDir, evalTracesDir)
	}

	suite := eval.Summarize(results)
	fmt.Print(eval.RenderSuite(suite))

	if evalReport != "" {
		if err := eval.SaveReport(suite, evalReport); err != nil {
			return false, fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("report written to %s\n", evalReport)
	}
	return suite.Summary.Passed == suite.Summary.Total, nil
}

func evalOne(ctx context.Context, engine *eval.Engine, tc *eval.TestCase, tracePath string) (*eval.Result, error) {
	tr, err := trace.LoadFile(tracePath)
	if err != nil {
		return nil, fmt.Errorf("load trace: %w", err)
	}
	actual, err := replay.Extract(tr)
	if err != nil {
		return nil, fmt.Errorf("replay trace %s: %w", tr.ID, err)
	}
	return engine.Evaluate(ctx, tc, actual), nil
}

// watchEval re-runs the evaluation whenever a case file changes. Events are
// debounced because editors fire several per save.
func watchEval(target string, run func() (bool, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	watchDir := target
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		watchDir = filepath.Dir(target)
	}
	if err := watcher.Add(watchDir); err != nil {
		return fmt.Errorf("watch %s: %w", watchDir, err)
	}
	// New traces should re-score too.
	if evalTracesDir != "" && evalTracesDir != watchDir {
		if err := watcher.Add(evalTracesDir); err != nil {
			return fmt.Errorf("watch %s: %w", evalTracesDir, err)
		}
	}

	runAndReport := func() {
		if _, err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "eval error: %v\n", err)
		}
		fmt.Println(color.New(color.Faint).Sprint("watching for changes (ctrl+c to stop)"))
	}
	runAndReport()

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isWatchedFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			runAndReport()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}

func isWatchedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
