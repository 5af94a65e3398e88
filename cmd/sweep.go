package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sightline-labs/visibility-cli/internal/schedule"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the pipeline once for every due automated entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sched := schedule.New(env.Store, runTrigger(env), cfg.Schedule.SweepSpec)
		if err := sched.Sweep(ctx); err != nil {
			return eris.Wrap(err, "sweep")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
