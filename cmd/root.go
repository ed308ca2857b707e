package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/onyx-tools/onyx/internal/utils"
)

var (
	connections int
	timeout     time.Duration
	kaTimeout   time.Duration
	userAgent   string
	headers     []string
	debug       bool
	quiet       bool
)

var OnyxVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "onyx",
	Short:   "Onyx is a fast, resumable CLI download manager",
	Version: OnyxVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		if userAgent == "randomize" {
			userAgent = utils.GetRandomUserAgent()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func clientConfig() utils.HTTPClientConfig {
	return utils.HTTPClientConfig{
		Timeout:   timeout,
		KATimeout: kaTimeout,
		UserAgent: userAgent,
		Headers:   utils.ParseHeaderArgs(headers),
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&connections, "connections", "c", 8, "Number of connections per download")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 3*time.Minute, "Connection timeout (eg. 5s, 10m)")
	rootCmd.PersistentFlags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent ('randomize' picks a common browser UA)")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newSingleCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newAcceleratedCmd())
	rootCmd.AddCommand(newCleanCmd())
}
