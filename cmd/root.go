package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "chronofix",
	Short: "Normalize capture dates and names of a photo library",
	Long: `chronofix gives every photo and video under a folder its true capture time:
taken from a sidecar JSON file, the embedded EXIF data or the file name, in that
order. Files are renamed to IMG_YYYYMMDD_HHMMSS and JPEG metadata is updated.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default $XDG_CONFIG_HOME/chronofix/chronofix.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}
