package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/sdr-enrich/internal/config"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <lead-id>",
	Short: "Enrich a single lead now, bypassing the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnrich(ctx, config.ModeEnrich)
		if err != nil {
			return err
		}
		defer env.Close()

		runErr := env.Orchestrator.Enrich(ctx, args[0])

		lead, err := env.Store.GetLead(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(lead); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
