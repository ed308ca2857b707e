package cmd

import (
	u "net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/onyx-tools/onyx/internal/download"
	"github.com/onyx-tools/onyx/internal/utils"
)

func newSingleCmd() *cobra.Command {
	var outputPath string
	var checksum string
	var maxSize string
	var resume bool
	var deleteOnMismatch bool

	cmd := &cobra.Command{
		Use:   "single [URL]",
		Short: "Download a single file via HTTP/HTTPS",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			url := args[0]
			if parsed, err := u.Parse(url); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				printError("Invalid URL (http/https only)")
				os.Exit(1)
			}
			task := download.NewTask(url, outputPath)
			task.Connections = connections
			task.Resume = resume
			task.DeleteOnMismatch = deleteOnMismatch
			task.ClientConfig = clientConfig()
			if checksum != "" {
				cs, err := download.ParseChecksum(checksum)
				if err != nil {
					printError(err.Error())
					os.Exit(1)
				}
				task.Checksum = cs
			}
			if maxSize != "" {
				limit, err := utils.ParseSize(maxSize)
				if err != nil {
					printError(err.Error())
					os.Exit(1)
				}
				task.MaxSize = limit
			}
			res := runTask(cmd.Context(), task)
			printResult(res)
			if res.Status != download.ResultSuccess {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path or directory (Onyx infers file name if not provided)")
	cmd.Flags().BoolVarP(&resume, "resume", "r", false, "Resume a previously interrupted download")
	cmd.Flags().StringVar(&checksum, "checksum", "", "Expected checksum (MD5, SHA1 or SHA256 hex digest)")
	cmd.Flags().StringVar(&maxSize, "max-size", "", "Maximum file size to download (e.g. 100MB)")
	cmd.Flags().BoolVar(&deleteOnMismatch, "delete-on-mismatch", false, "Delete the output file when checksum verification fails")
	return cmd
}
