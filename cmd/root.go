package cmd

import (
	"fmt"
	"log"
	"os"

	"TgFM/telegram"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tgfm",
	Short: "TgFM is a personal Telegram music bot.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting TgFM bot...")
		if err := telegram.Start(); err != nil {
			log.Fatalf("Bot exited: %v", err)
		}
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
