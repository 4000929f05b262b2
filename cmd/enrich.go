package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/model"
)

var (
	enrichSubjectID    string
	enrichName         string
	enrichStreet       string
	enrichCity         string
	enrichState        string
	enrichZip          string
	enrichJurisdiction string
	enrichFirmID       string
	enrichUserID       string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Build a dossier for a single property owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		subjectID := enrichSubjectID
		if subjectID == "" {
			subjectID = uuid.NewString()
		}

		subject := model.Subject{
			ID:           subjectID,
			Type:         model.SubjectOwner,
			Name:         enrichName,
			Street:       enrichStreet,
			City:         enrichCity,
			State:        enrichState,
			Zip:          enrichZip,
			Jurisdiction: enrichJurisdiction,
			FirmID:       enrichFirmID,
			UserID:       enrichUserID,
		}

		result := env.Pipeline.Run(ctx, subject)
		env.Journal.Flush()

		zap.L().Info("enrichment finished",
			zap.String("run_id", result.RunID),
			zap.String("subject", subject.Name),
			zap.String("status", string(result.Status)),
			zap.Float64("score", result.Dossier.Score),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichSubjectID, "subject-id", "", "stable subject ID (default: random)")
	enrichCmd.Flags().StringVar(&enrichName, "name", "", "owner or entity name (required)")
	enrichCmd.Flags().StringVar(&enrichStreet, "street", "", "property street address")
	enrichCmd.Flags().StringVar(&enrichCity, "city", "", "property city")
	enrichCmd.Flags().StringVar(&enrichState, "state", "", "property state code")
	enrichCmd.Flags().StringVar(&enrichZip, "zip", "", "property ZIP code")
	enrichCmd.Flags().StringVar(&enrichJurisdiction, "jurisdiction", "", "registry jurisdiction hint, e.g. us_fl")
	enrichCmd.Flags().StringVar(&enrichFirmID, "firm-id", "", "billing firm ID for tier quotas")
	enrichCmd.Flags().StringVar(&enrichUserID, "user-id", "", "requesting user ID for tier quotas")
	_ = enrichCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(enrichCmd)
}
