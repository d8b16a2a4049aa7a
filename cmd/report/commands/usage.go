package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sproutlog/sproutlog/internal/config"
	"github.com/sproutlog/sproutlog/internal/database"
)

// NewUsageCmd creates the usage report command
func NewUsageCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarize model usage and cost per profile",
		Long:  "Aggregate model invocations, token counts and estimated cost per profile over a time window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
			}()

			usageRepo := database.NewUsageRepository(db)
			since := time.Now().UTC().AddDate(0, 0, -days)

			summaries, err := usageRepo.SummarizeByProfile(context.Background(), since)
			if err != nil {
				return fmt.Errorf("failed to summarize usage: %w", err)
			}

			if len(summaries) == 0 {
				fmt.Printf("No model usage recorded since %s\n", since.Format("2006-01-02"))
				return nil
			}

			fmt.Printf("Model usage since %s:\n\n", since.Format("2006-01-02"))
			fmt.Printf("%-12s %10s %8s %14s %14s %14s %12s\n",
				"PROFILE", "CALLS", "FAILED", "INPUT TOK", "OUTPUT TOK", "CACHED TOK", "COST (USD)")
			var totalCost float64
			for _, s := range summaries {
				fmt.Printf("%-12d %10d %8d %14d %14d %14d %12.4f\n",
					s.ProfileID, s.Invocations, s.Failures,
					s.InputTokens, s.OutputTokens, s.CachedTokens, s.TotalCost)
				totalCost += s.TotalCost
			}
			fmt.Printf("\nTotal estimated cost: $%.4f\n", totalCost)

			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Number of days to include in the report")

	return cmd
}
