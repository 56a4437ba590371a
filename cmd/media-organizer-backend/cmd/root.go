package cmd

import (
	"github.com/spf13/cobra"

	"media-organizer/internal/config"
)

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:           "media-organizer-backend",
	Short:         "Media catalog backend for the Media Organizer desktop app",
	Long:          `media-organizer-backend serves the local HTTP API the desktop shell talks to: library scanning, metadata lookup, and rename plan execution.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ~/.media-organizer/config.yaml)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}
