package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradereach/outreach-cli/internal/model"
)

var runNoSend bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full pipeline pass for the current session",
	Long:  "Claims the next queued task, discovers and classifies leads, and sends outreach within the daily budget. Exits 0 on target met, 2 on a partial result, 1 on failure.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if runNoSend {
			cfg.Sending.Enabled = false
		}

		p, err := buildPipeline(st)
		if err != nil {
			return err
		}

		result, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", result.RunID),
			zap.Int("leads_found", result.LeadsFound),
			zap.Int("leads_with_email", result.LeadsWithEmail),
			zap.Int("leads_eligible", result.LeadsEligible),
			zap.Int("emails_sent", result.EmailsSent),
			zap.String("stopped_reason", string(result.StoppedReason)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}

		if result.Partial() && result.StoppedReason != model.StopNoTasks {
			exitCode = 2
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runNoSend, "no-send", false, "run discovery and classification without sending")
	rootCmd.AddCommand(runCmd)
}
