package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/onyx-tools/onyx/internal/download"
)

func newCleanCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover resume records and temp files",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			dir := "."
			if outputPath != "" {
				dir = filepath.Dir(outputPath)
			}
			tempDir := filepath.Join(dir, download.TempDirName)
			if _, err := os.Stat(tempDir); os.IsNotExist(err) {
				printSuccess("Nothing to clean")
				return
			}
			if err := os.RemoveAll(tempDir); err != nil {
				printError("Error cleaning up temporary files")
				os.Exit(1)
			}
			printSuccess("Temporary files cleaned up")
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path whose temp directory should be cleaned")
	return cmd
}
