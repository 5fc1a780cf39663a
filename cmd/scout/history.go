package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/scout/internal/scout"
)

var historyLimit int

var resultsCmd = &cobra.Command{
	Use:   "results <scout-id>",
	Short: "Show persisted results of a scout, best first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := st.ListResults(cmd.Context(), args[0], historyLimit)
		if err != nil {
			return err
		}
		printResults(os.Stdout, results)
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs <scout-id>",
	Short: "Show recent runs of a scout, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := st.ListRuns(cmd.Context(), args[0], historyLimit)
		if err != nil {
			return err
		}
		printRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	resultsCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of rows to show")
	runsCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of rows to show")
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(runsCmd)
}

func printResults(w io.Writer, results []scout.Result) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	if len(results) == 0 {
		fmt.Fprintln(w, gray("No results"))
		return
	}

	red := color.New(color.FgRed, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	for _, r := range results {
		tier := yellow(string(r.Category))
		if r.Category == scout.CategoryImmediateAction {
			tier = red(string(r.Category))
		}
		fmt.Fprintf(w, "%.2f  %s  %s\n", r.RelevanceScore, tier, r.Title)
		fmt.Fprintf(w, "      %s\n", r.URL)
		if r.Rationale != "" {
			fmt.Fprintf(w, "      %s\n", gray(r.Rationale))
		}
	}
}

func printRuns(w io.Writer, runs []scout.Run) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	if len(runs) == 0 {
		fmt.Fprintln(w, gray("No runs"))
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	for _, run := range runs {
		status := yellow(string(run.Status))
		switch run.Status {
		case scout.RunCompleted:
			status = green(string(run.Status))
		case scout.RunFailed:
			status = red(string(run.Status))
		}

		duration := "-"
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}

		fmt.Fprintf(w, "%s  %s  %s  results=%d high=%d  %s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.ID, status, run.ResultsCount, run.HighRelevanceCount, gray(duration))
		if run.Error != nil {
			fmt.Fprintf(w, "    %s\n", red(*run.Error))
		}
	}
}
