package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var publishSandbox bool

var publishCmd = &cobra.Command{
	Use:   "publish <entity-id>",
	Short: "Assess eligibility and publish to the public knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if publishSandbox {
			cfg.Publish.SandboxMode = true
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.Publish(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "publish")
		}

		if result.Assessment.CanPublish {
			zap.L().Info("publish complete",
				zap.String("entity", args[0]),
				zap.String("record", result.RecordID),
			)
		} else {
			zap.L().Info("publish withheld",
				zap.String("entity", args[0]),
				zap.String("recommendation", result.Assessment.Recommendation),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	publishCmd.Flags().BoolVar(&publishSandbox, "sandbox", false, "bypass the eligibility gate (sandbox targets only)")
	rootCmd.AddCommand(publishCmd)
}
