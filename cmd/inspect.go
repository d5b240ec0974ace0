package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ml-under-the-hood/traceplay/playback/adapter"
	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

var (
	chartHistory  string // History series to plot; the family objective when empty
	chartPosition int    // Position marked on the chart
	chartOut      string // PNG output path
	headerOut     string // YAML header output path
	dataOut       string // CSV data output path
)

// printSummary writes the trace summary as indented JSON under a header line.
func printSummary(w io.Writer, s *trace.TraceSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	_, err = fmt.Fprintf(w, "=== Trace Summary ===\n%s\n", data)
	return err
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Validate a saved trace and print its summary",
	Run: func(cmd *cobra.Command, args []string) {
		tr, fam, err := loadTraceFile(tracePath, familyName)
		if err != nil {
			logrus.Fatalf("Failed to load trace: %v", err)
		}
		if err := printSummary(cmd.OutOrStdout(), trace.Summarize(tr, fam)); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render a history series of a saved trace as PNG",
	Run: func(cmd *cobra.Command, args []string) {
		tr, fam, err := loadTraceFile(tracePath, familyName)
		if err != nil {
			logrus.Fatalf("Failed to load trace: %v", err)
		}
		if chartOut == "" {
			logrus.Fatalf("--out is required")
		}
		f, err := os.Create(chartOut)
		if err != nil {
			logrus.Fatalf("Failed to create %s: %v", chartOut, err)
		}
		defer func() { _ = f.Close() }()

		if chartHistory == "" {
			err = adapter.RenderObjectivePNG(f, tr, fam, chartPosition)
		} else {
			err = adapter.RenderHistoryPNG(f, tr, chartHistory, chartPosition)
		}
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Wrote chart to %s", chartOut)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a saved trace as a YAML header plus a per-step CSV table",
	Run: func(cmd *cobra.Command, args []string) {
		tr, fam, err := loadTraceFile(tracePath, familyName)
		if err != nil {
			logrus.Fatalf("Failed to load trace: %v", err)
		}
		if headerOut == "" || dataOut == "" {
			logrus.Fatalf("--header and --data are required")
		}
		if err := trace.ExportHistory(tr, fam, headerOut, dataOut); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Exported %d steps to %s and %s", tr.Len(), headerOut, dataOut)
	},
}

func addTraceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&tracePath, "trace", "", "Saved trace file")
	cmd.Flags().StringVar(&familyName, "family", "", "Trace family (inferred from the trace's algo when empty)")
	_ = cmd.MarkFlagRequired("trace")
}

func init() {
	addTraceFlags(inspectCmd)

	addTraceFlags(chartCmd)
	chartCmd.Flags().StringVar(&chartHistory, "history", "", "History series to plot (the objective when empty)")
	chartCmd.Flags().IntVar(&chartPosition, "position", 0, "Position to mark on the chart")
	chartCmd.Flags().StringVar(&chartOut, "out", "", "PNG output path")

	addTraceFlags(exportCmd)
	exportCmd.Flags().StringVar(&headerOut, "header", "", "YAML header output path")
	exportCmd.Flags().StringVar(&dataOut, "data", "", "CSV data output path")
}
