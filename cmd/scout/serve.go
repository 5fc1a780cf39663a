package main

import (
	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/scout/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scouts on their schedule until interrupted",
	Long: `Start the scheduler. Every loop interval, scouts whose frequency says
they are due are run in the background. On interrupt the loop stops and runs
already in flight are allowed to finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, err := newOrchestrator(cfg, st, logger)
		if err != nil {
			return err
		}

		s, err := scheduler.NewScheduler(cfg.Scheduler, st, orch, logger)
		if err != nil {
			return err
		}

		s.Start(cmd.Context())

		logger.Info("waiting for runs in flight")
		s.Wait()
		logger.Info("scheduler shut down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
