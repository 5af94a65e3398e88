package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var untrackCmd = &cobra.Command{
	Use:   "untrack <entity-id>",
	Short: "Stop tracking an entity (history is retained)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.SoftDeleteEntity(ctx, args[0]); err != nil {
			return eris.Wrap(err, "delete entity")
		}

		zap.L().Info("entity untracked", zap.String("entity", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(untrackCmd)
}
