// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/kwhart/pulsemon/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "pulsemon",
	Short: "Heart pulse detector for per-frame intensity samples",
	Long: `A pulse monitor that extracts a beats-per-minute estimate from a
stream of per-frame color-intensity samples and emits beat events.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("rate", "r", 30, "frame rate in frames per second")
	rootCmd.PersistentFlags().Float64P("bpm-min", "l", 40, "lower bound of the valid BPM range")
	rootCmd.PersistentFlags().Float64P("bpm-max", "u", 200, "upper bound of the valid BPM range")
	rootCmd.PersistentFlags().StringP("nats", "n", "", "NATS server URL (empty disables streaming)")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	// Bind flags to viper
	viper.BindPFlag("frame_rate", rootCmd.PersistentFlags().Lookup("rate"))
	viper.BindPFlag("bpm_min", rootCmd.PersistentFlags().Lookup("bpm-min"))
	viper.BindPFlag("bpm_max", rootCmd.PersistentFlags().Lookup("bpm-max"))
	viper.BindPFlag("nats_url", rootCmd.PersistentFlags().Lookup("nats"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}
