package cmd

import (
	u "net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/onyx-tools/onyx/internal/download"
)

func newAcceleratedCmd() *cobra.Command {
	var outputPath string
	var parts int

	cmd := &cobra.Command{
		Use:   "accelerated [URL]",
		Short: "Download a file using multiple connections for acceleration",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			url := args[0]
			if parsed, err := u.Parse(url); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				printError("Invalid URL (http/https only)")
				os.Exit(1)
			}
			if parts < 1 {
				parts = 1
			}
			task := download.NewTask(url, outputPath)
			task.Connections = parts
			task.ClientConfig = clientConfig()
			res := runTask(cmd.Context(), task)
			printResult(res)
			if res.Status != download.ResultSuccess {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	cmd.Flags().IntVarP(&parts, "parts", "p", 4, "Number of parts to download simultaneously")
	return cmd
}
