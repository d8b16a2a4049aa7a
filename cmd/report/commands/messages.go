package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sproutlog/sproutlog/internal/config"
	"github.com/sproutlog/sproutlog/internal/database"
	"github.com/sproutlog/sproutlog/internal/models"
)

// NewMessagesCmd creates the messages inspection command
func NewMessagesCmd() *cobra.Command {
	var profileID int64
	var limit int

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show recent conversation turns for a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if profileID <= 0 {
				return fmt.Errorf("--profile is required and must be positive")
			}

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

			chatRepo := database.NewChatMessageRepository(db)

			messages, err := chatRepo.ListByProfile(context.Background(), profileID, limit)
			if err != nil {
				return fmt.Errorf("failed to list messages: %w", err)
			}

			if len(messages) == 0 {
				fmt.Printf("No messages for profile %d\n", profileID)
				return nil
			}

			for _, msg := range messages {
				marker := "parent"
				if msg.Role == models.RoleAssistant {
					marker = "assistant"
					if msg.InteractionType != nil {
						marker = fmt.Sprintf("assistant/%s", *msg.InteractionType)
					}
				}
				fmt.Printf("[%s] %-28s %s\n",
					msg.CreatedAt.Format("2006-01-02 15:04:05"), marker, msg.Content)
			}

			return nil
		},
	}

	cmd.Flags().Int64Var(&profileID, "profile", 0, "Profile ID to inspect")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of messages to show")

	return cmd
}
