package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/onyx-tools/onyx/internal/download"
	"github.com/onyx-tools/onyx/internal/utils"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

func printSuccess(msg string) {
	fmt.Println(successStyle.Render("✓ " + msg))
}

func printError(msg string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+msg))
}

// runTask executes one task, rendering its progress events as a terminal bar
// unless --quiet is set. The renderer only consumes snapshots; it never
// feeds back into the transfer.
func runTask(ctx context.Context, task *download.Task) download.Result {
	if quiet {
		return download.Run(ctx, task)
	}
	agg := download.NewProgressAggregator(task.ID)
	task.Progress = agg

	description := "downloading"
	if task.OutputPath != "" {
		description = filepath.Base(task.OutputPath)
	}
	rendererDone := make(chan struct{})
	go func() {
		defer close(rendererDone)
		bar := progressbar.NewOptions64(-1,
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
		knownMax := int64(-1)
		for snap := range agg.Events() {
			if snap.Total != knownMax {
				knownMax = snap.Total
				bar.ChangeMax64(snap.Total)
			}
			bar.Set64(snap.Downloaded)
			if snap.Done {
				bar.Finish()
			}
		}
	}()

	res := download.Run(ctx, task) // closes the aggregator
	<-rendererDone
	return res
}

func printResult(res download.Result) {
	switch res.Status {
	case download.ResultSuccess:
		msg := fmt.Sprintf("Download completed: %s (%s in %s, %s)",
			res.OutputPath,
			utils.FormatBytes(uint64(res.Bytes)),
			res.Duration.Round(time.Millisecond),
			utils.FormatSpeed(res.Bytes, res.Duration.Seconds()))
		printSuccess(msg)
		if res.ChecksumVerified != nil && *res.ChecksumVerified {
			printSuccess("Checksum verification passed")
		}
	case download.ResultAborted:
		printError(fmt.Sprintf("Download aborted: %s", res.URL))
	default:
		printError(fmt.Sprintf("Download failed (%s): %v", res.Kind, res.Err))
	}
}
