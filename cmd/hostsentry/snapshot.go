package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/akorchagin/hostsentry/internal/analysis"
	"github.com/akorchagin/hostsentry/internal/collector"
	"github.com/akorchagin/hostsentry/internal/config"
	"github.com/akorchagin/hostsentry/internal/model"
)

// snapshotReport is the one-shot collection output.
type snapshotReport struct {
	Timestamp time.Time            `json:"timestamp"`
	Processes []model.UnifiedEvent `json:"processes"`
	Services  []model.UnifiedEvent `json:"services"`
	Hardware  []model.UnifiedEvent `json:"hardware"`
	Malware   []model.UnifiedEvent `json:"malware"`
	Analysis  *snapshotAnalysis    `json:"analysis,omitempty"`
	Errors    []string             `json:"errors,omitempty"`
}

type snapshotAnalysis struct {
	Processes []analysis.ProcessFinding `json:"processes"`
	Malware   []analysis.MalwareFinding `json:"malware"`
}

func newSnapshotCmd() *cobra.Command {
	var (
		outputPath   string
		serviceLimit int
		analyze      bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Collect one round of events and print them as JSON",
		Long:  "Run the process, service, hardware and malware collectors once, without the daemon or the event store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(outputPath, serviceLimit, analyze)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output file path (- for stdout)")
	cmd.Flags().IntVar(&serviceLimit, "service-limit", 50, "Max service records to fetch")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Include risk scores in the report")
	return cmd
}

func runSnapshot(outputPath string, serviceLimit int, analyze bool) error {
	log := newLogger(false, false)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	col, err := collector.New(collector.Options{Logger: log})
	if err != nil {
		return fmt.Errorf("init collector: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	report := snapshotReport{Timestamp: time.Now().UTC()}
	record := func(name string, err error) {
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", name, err))
		}
	}

	report.Processes, err = col.CollectProcessEvents(ctx)
	record("processes", err)
	report.Services, err = col.CollectServiceEvents(ctx, serviceLimit)
	record("services", err)
	report.Hardware, err = col.CollectHardwareEvents(ctx, cfg.CPUThreshold, cfg.MemThreshold)
	record("hardware", err)
	report.Malware, err = col.CollectMalwareEvents(ctx)
	record("malware", err)

	if analyze {
		report.Analysis = analyzeSnapshot(&report)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if outputPath == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}

func analyzeSnapshot(report *snapshotReport) *snapshotAnalysis {
	out := &snapshotAnalysis{
		Processes: make([]analysis.ProcessFinding, 0, len(report.Processes)),
		Malware:   make([]analysis.MalwareFinding, 0, len(report.Malware)),
	}
	for _, ev := range report.Processes {
		out.Processes = append(out.Processes, analysis.AnalyzeProcess(flatten(ev)))
	}
	for _, ev := range report.Malware {
		out.Malware = append(out.Malware, analysis.AnalyzeMalware(flatten(ev)))
	}
	return out
}

// flatten merges an event's details and metadata into the shape the
// store hands to the analyzers.
func flatten(ev model.UnifiedEvent) map[string]any {
	out := make(map[string]any, len(ev.Details)+len(ev.Metadata)+1)
	for k, v := range ev.Details {
		out[k] = v
	}
	for k, v := range ev.Metadata {
		out[k] = v
	}
	out["timestamp"] = ev.Timestamp.UTC().Format(time.RFC3339Nano)
	return out
}
