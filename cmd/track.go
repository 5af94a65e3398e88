package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sightline-labs/visibility-cli/internal/model"
)

var (
	trackName     string
	trackURL      string
	trackCategory string
	trackLocation string
	trackTier     string
	trackAuto     bool
	trackRun      bool
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Register a business for visibility tracking",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tier := model.Tier(trackTier)
		if !tier.Valid() {
			return eris.Errorf("invalid tier %q (expected basic, standard, or premium)", trackTier)
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entity, err := env.Store.CreateEntity(ctx, model.TrackedEntity{
			Name:        trackName,
			SourceURL:   trackURL,
			Category:    trackCategory,
			Location:    trackLocation,
			Status:      model.EntityStatusPending,
			Tier:        tier,
			AutoRefresh: trackAuto,
		})
		if err != nil {
			return eris.Wrap(err, "create entity")
		}

		zap.L().Info("entity tracked",
			zap.String("entity", entity.ID),
			zap.String("name", entity.Name),
			zap.String("tier", string(entity.Tier)),
			zap.Bool("auto_refresh", entity.AutoRefresh),
		)

		if trackRun {
			if _, err := env.Orchestrator.Run(ctx, entity.ID); err != nil {
				return eris.Wrap(err, "pipeline run")
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entity)
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackName, "name", "", "business name (required)")
	trackCmd.Flags().StringVar(&trackURL, "url", "", "business website URL (required)")
	trackCmd.Flags().StringVar(&trackCategory, "category", "", "business category")
	trackCmd.Flags().StringVar(&trackLocation, "location", "", "business location")
	trackCmd.Flags().StringVar(&trackTier, "tier", "basic", "publication tier (basic, standard, premium)")
	trackCmd.Flags().BoolVar(&trackAuto, "auto", false, "re-run the pipeline automatically on the recurrence interval")
	trackCmd.Flags().BoolVar(&trackRun, "run", false, "run the pipeline immediately after registering")
	_ = trackCmd.MarkFlagRequired("name")
	_ = trackCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(trackCmd)
}
