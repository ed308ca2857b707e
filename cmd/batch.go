package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/onyx-tools/onyx/internal/download"
	"github.com/onyx-tools/onyx/internal/scheduler"
	"github.com/onyx-tools/onyx/internal/utils"
)

type BatchEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	Link       string `yaml:"link"`
	Checksum   string `yaml:"checksum,omitempty"`
}

func newBatchCmd() *cobra.Command {
	var outputDir string
	var workers int
	var continueOnError bool
	var resume bool

	cmd := &cobra.Command{
		Use:   "batch [FILE]",
		Short: "Download multiple files from a URL list (plain text or YAML)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := readBatchFile(args[0])
			if err != nil {
				printError(err.Error())
				os.Exit(1)
			}
			if len(entries) == 0 {
				printError("No URLs found in file")
				os.Exit(1)
			}
			if outputDir != "" {
				if err := os.MkdirAll(outputDir, 0755); err != nil {
					printError(fmt.Sprintf("Cannot create output directory: %v", err))
					os.Exit(1)
				}
			}
			tasks := make([]*download.Task, 0, len(entries))
			for _, entry := range entries {
				outPath := outputDir
				if entry.OutputPath != "" {
					outPath = filepath.Join(outputDir, entry.OutputPath)
				}
				task := download.NewTask(entry.Link, outPath)
				task.Connections = connections
				task.Resume = resume
				task.ClientConfig = clientConfig()
				if entry.Checksum != "" {
					cs, err := download.ParseChecksum(entry.Checksum)
					if err != nil {
						printError(fmt.Sprintf("Invalid checksum for %s: %v", entry.Link, err))
						os.Exit(1)
					}
					task.Checksum = cs
				}
				tasks = append(tasks, task)
			}

			var bar *progressbar.ProgressBar
			if !quiet {
				fmt.Printf("Batch download: %d files, %d workers\n", len(tasks), workers)
				bar = progressbar.NewOptions(len(tasks),
					progressbar.OptionSetDescription("Downloading"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionClearOnFinish(),
				)
			}
			start := time.Now()
			summary := scheduler.Run(cmd.Context(), scheduler.Batch{
				Tasks:           tasks,
				Concurrency:     workers,
				ContinueOnError: continueOnError,
				OnResult: func(index int, res download.Result) {
					if bar != nil {
						bar.Add(1)
					}
				},
			})
			if bar != nil {
				bar.Finish()
			}
			printBatchSummary(summary, time.Since(start))
			if summary.Failed > 0 || summary.Aborted {
				printError(fmt.Sprintf("%d download(s) failed", summary.Failed))
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Output directory")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of files to download in parallel")
	cmd.Flags().BoolVarP(&resume, "resume", "r", false, "Resume previously interrupted downloads")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Keep downloading remaining files when one fails")
	return cmd
}

// readBatchFile accepts either a YAML list of {op, link, checksum} entries or
// a plain text file with one URL per line ('#' starts a comment).
func readBatchFile(path string) ([]BatchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var entries []BatchEntry
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse YAML list: %w", err)
		}
		valid := entries[:0]
		for _, e := range entries {
			if e.Link != "" {
				valid = append(valid, e)
			}
		}
		return valid, nil
	}
	var entries []BatchEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, BatchEntry{Link: line})
	}
	return entries, nil
}

func printBatchSummary(summary scheduler.Summary, elapsed time.Duration) {
	var totalBytes int64
	for _, res := range summary.Results {
		if res.Status == download.ResultSuccess {
			totalBytes += res.Bytes
		}
	}
	fmt.Println()
	fmt.Println(headerStyle.Render("Download Summary"))
	fmt.Printf("  Succeeded: %d\n", summary.Succeeded)
	fmt.Printf("  Failed:    %d\n", summary.Failed)
	if summary.Aborted {
		fmt.Println("  Batch aborted after first failure")
	}
	fmt.Printf("  Total size: %s in %s (%s)\n",
		utils.FormatBytes(uint64(totalBytes)), elapsed.Round(time.Millisecond),
		utils.FormatSpeed(totalBytes, elapsed.Seconds()))
	for _, res := range summary.Results {
		switch res.Status {
		case download.ResultFailed:
			fmt.Println(errorStyle.Render(fmt.Sprintf("  ✗ %s — %v", res.URL, res.Err)))
		case download.ResultAborted:
			fmt.Println(errorStyle.Render(fmt.Sprintf("  - %s — aborted", res.URL)))
		}
	}
}
