package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/openrounds/rounds/internal/config"
	"github.com/openrounds/rounds/internal/replay"
	"github.com/openrounds/rounds/internal/trace"
)

var (
	tracesLimit    int
	tracesShowData bool
)

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Inspect recorded runs",
}

var tracesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded traces, newest first",
	RunE:  runTracesList,
}

var tracesShowCmd = &cobra.Command{
	Use:   "show <trace-id>",
	Short: "Print the event log of one trace",
	Args:  cobra.ExactArgs(1),
	RunE:  runTracesShow,
}

var tracesReplayCmd = &cobra.Command{
	Use:   "replay <trace-id>",
	Short: "Reconstruct the run outcome from a trace",
	Long: `Replay rebuilds the orchestration outcome from a stored trace without
any model calls: complexity, specialist tasks, per-specialist results, and
the final narrative, exactly as recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: runTracesReplay,
}

func init() {
	tracesListCmd.Flags().IntVar(&tracesLimit, "limit", 20, "Maximum traces to list")
	tracesShowCmd.Flags().BoolVar(&tracesShowData, "data", false, "Include event data payloads")
	tracesCmd.AddCommand(tracesListCmd)
	tracesCmd.AddCommand(tracesShowCmd)
	tracesCmd.AddCommand(tracesReplayCmd)
}

func openTraceDB() (*trace.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	path := cfg.Traces.DBPath
	if path == "" {
		path = trace.DefaultDBPath()
	}
	return trace.OpenDB(path)
}

func runTracesList(cmd *cobra.Command, args []string) error {
	db, err := openTraceDB()
	if err != nil {
		return err
	}
	defer db.Close()

	summaries, err := db.List(tracesLimit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no traces recorded yet; run 'rounds ask' first")
		return nil
	}

	header := color.New(color.Bold)
	header.Printf("%-16s  %-19s  %8s  %6s  %s\n", "ID", "STARTED", "DURATION", "EVENTS", "QUERY")
	for _, s := range summaries {
		fmt.Printf("%-16s  %-19s  %8s  %6d  %s\n",
			shortID(s.ID),
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			(time.Duration(s.DurationMS) * time.Millisecond).Round(time.Millisecond),
			s.EventCount,
			truncate(s.Query, 60))
	}
	return nil
}

func runTracesShow(cmd *cobra.Command, args []string) error {
	db, err := openTraceDB()
	if err != nil {
		return err
	}
	defer db.Close()

	tr, err := db.Get(args[0])
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Printf("trace %s\n", tr.ID)
	fmt.Printf("query:   %s\n", tr.Query)
	fmt.Printf("started: %s\n", tr.StartedAt.Local().Format(time.RFC3339))
	fmt.Printf("took:    %s\n\n", tr.Duration().Round(time.Millisecond))

	for _, e := range tr.Events {
		offset := e.Timestamp.Sub(tr.StartedAt).Round(time.Millisecond)
		line := fmt.Sprintf("%9s  %-15s  %-22s  %s", offset, e.Type, e.Agent, e.Stage)
		switch e.Type {
		case trace.EventError:
			color.Red(line)
		case trace.EventStageStart, trace.EventStageEnd:
			color.Blue(line)
		default:
			fmt.Println(line)
		}
		if tracesShowData && len(e.Data) > 0 {
			payload, err := json.MarshalIndent(e.Data, "           ", "  ")
			if err == nil {
				fmt.Printf("           %s\n", payload)
			}
		}
	}
	return nil
}

func runTracesReplay(cmd *cobra.Command, args []string) error {
	db, err := openTraceDB()
	if err != nil {
		return err
	}
	defer db.Close()

	tr, err := db.Get(args[0])
	if err != nil {
		return err
	}
	data, err := replay.Extract(tr)
	if err != nil {
		return fmt.Errorf("replay trace %s: %w", tr.ID, err)
	}

	bold := color.New(color.Bold)
	bold.Printf("replay of %s\n", tr.ID)
	fmt.Printf("query:      %s\n", data.Query)
	fmt.Printf("complexity: %s\n", data.Complexity)
	fmt.Printf("approach:   %s\n", truncate(data.Approach, 80))
	fmt.Printf("duration:   %s\n\n", data.ExecutionTime.Round(time.Millisecond))

	if len(data.Tasks) > 0 {
		bold.Println("tasks")
		for _, t := range data.Tasks {
			fmt.Printf("  P%d %-22s %s\n", t.Priority, t.Specialist, truncate(t.Objective, 60))
		}
		fmt.Println()
	}
	if len(data.Results) > 0 {
		bold.Println("specialists")
		for _, st := range data.Specialists() {
			r, ok := data.Results[st]
			if !ok || r == nil {
				color.Red("  %-22s no result recorded", st)
				continue
			}
			fmt.Printf("  %-22s %d tool calls, confidence %.2f\n",
				st, r.ToolCallsMade, r.ConfidenceLevel)
		}
		fmt.Println()
	}
	if data.Narrative != "" {
		bold.Println("narrative")
		fmt.Println(data.Narrative)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
