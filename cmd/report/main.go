package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sproutlog/sproutlog/cmd/report/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "sproutlog-report",
		Short: "Reporting tool for the sproutlog API",
		Long:  "CLI tool for inspecting model usage, costs and conversation history",
	}

	rootCmd.AddCommand(commands.NewUsageCmd())
	rootCmd.AddCommand(commands.NewMessagesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
