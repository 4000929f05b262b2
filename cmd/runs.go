package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/store"
)

var (
	runsStatus  string
	runsSubject string
	runsLimit   int
	runsOffset  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded enrichment runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		records, err := st.ListRuns(ctx, store.RunFilter{
			Status:    model.RunStatus(runsStatus),
			SubjectID: runsSubject,
			Limit:     runsLimit,
			Offset:    runsOffset,
		})
		if err != nil {
			return err
		}

		type row struct {
			RunID     string `json:"run_id"`
			SubjectID string `json:"subject_id"`
			Status    string `json:"status"`
			CreatedAt string `json:"created_at"`
		}
		rows := make([]row, 0, len(records))
		for _, r := range records {
			rows = append(rows, row{
				RunID:     r.RunID,
				SubjectID: r.SubjectID,
				Status:    string(r.Status),
				CreatedAt: r.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full state of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rec, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by run status (complete, partial, failed)")
	runsCmd.Flags().StringVar(&runsSubject, "subject", "", "filter by subject ID")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum rows to return")
	runsCmd.Flags().IntVar(&runsOffset, "offset", 0, "rows to skip")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
