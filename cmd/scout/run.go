package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/scout/internal/orchestrator"
	"github.com/livinlefevreloca/scout/internal/report"
	"github.com/livinlefevreloca/scout/internal/scout"
)

var (
	runScoutID string
	runRunID   string
	runJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scout once",
	Long: `Execute the full pipeline for one scout and print the run summary.
Exits with status 1 when the run fails or cannot start.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, err := newOrchestrator(cfg, st, logger)
		if err != nil {
			return err
		}

		out, err := orch.Execute(cmd.Context(), orchestrator.Request{ScoutID: runScoutID, RunID: runRunID})
		if out == nil {
			return err
		}

		if runJSON {
			if err := writeOutcomeJSON(os.Stdout, out); err != nil {
				return err
			}
		} else {
			printOutcome(os.Stdout, out)
		}

		if err != nil {
			return err
		}
		if out.Status != scout.RunCompleted {
			return fmt.Errorf("run %s failed: %s", out.RunID, out.Error)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runScoutID, "scout-id", "s", "", "ID of the scout to run")
	runCmd.Flags().StringVar(&runRunID, "run-id", "", "Run ID to use (generated when empty)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the outcome and report as JSON")
	runCmd.MarkFlagRequired("scout-id")
	rootCmd.AddCommand(runCmd)
}

func writeOutcomeJSON(w io.Writer, out *orchestrator.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*orchestrator.Outcome
		Report *report.Report `json:"report,omitempty"`
	}{out, out.Report})
}

func printOutcome(w io.Writer, out *orchestrator.Outcome) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	status := green(string(out.Status))
	if out.Status != scout.RunCompleted {
		status = red(string(out.Status))
	}

	fmt.Fprintf(w, "run_id:               %s\n", out.RunID)
	fmt.Fprintf(w, "status:               %s\n", status)
	fmt.Fprintf(w, "results_count:        %d\n", out.ResultsCount)
	fmt.Fprintf(w, "high_relevance_count: %d\n", out.HighRelevanceCount)
	if out.Error != "" {
		fmt.Fprintf(w, "error:                %s\n", red(out.Error))
	}

	r := out.Report
	if r == nil {
		return
	}

	s := r.Stats
	fmt.Fprintf(w, "\n%s\n", bold("Pipeline"))
	fmt.Fprintf(w, "  queries:    %d planned, %d failed\n", s.QueriesPlanned, s.QueriesFailed)
	fmt.Fprintf(w, "  candidates: %d discovered, %d analyzed, %d failed\n", s.Discovered, s.Analyzed, s.AnalysisFailures)
	fmt.Fprintf(w, "  results:    %d inserted, %d updated\n", s.Inserted, s.Updated)

	printTier(w, color.New(color.FgRed, color.Bold).Sprint("Immediate action"), r.ImmediateAction)
	printTier(w, color.New(color.FgYellow, color.Bold).Sprint("High priority"), r.HighPriority)
	printTier(w, gray("Watch list"), r.WatchList)

	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Failures"))
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  %s %s\n", red("✗"), f)
		}
	}
}

func printTier(w io.Writer, title string, entries []report.Entry) {
	fmt.Fprintf(w, "\n%s (%d)\n", title, len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "  %.2f  %s\n        %s\n", e.RelevanceScore, e.Title, e.URL)
	}
}
