package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "doorman",
	Short: "Doorman - Telegram group membership watchdog",
	Long: `Doorman watches Telegram group chats, tracks when members join and
expels members who overstay a configurable time limit. Expelled members
may rejoin immediately; the ban is lifted right after the kick.`,
	Version: Version,
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}
