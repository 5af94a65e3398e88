package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var analysisHistory int

var analysisCmd = &cobra.Command{
	Use:   "analysis <entity-id>",
	Short: "Show the latest visibility analysis with trend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if analysisHistory > 0 {
			history, err := env.Orchestrator.History(ctx, args[0], analysisHistory)
			if err != nil {
				return eris.Wrap(err, "load history")
			}
			return enc.Encode(history)
		}

		view, err := env.Orchestrator.AnalysisView(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "compute analysis view")
		}
		return enc.Encode(view)
	},
}

func init() {
	analysisCmd.Flags().IntVar(&analysisHistory, "history", 0, "list the last N analyses instead of the shaped view")
	rootCmd.AddCommand(analysisCmd)
}
