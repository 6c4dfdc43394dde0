package main

import (
	"context"
	"testing"
	"time"

	"github.com/akorchagin/hostsentry/internal/model"
)

func TestFlattenMergesDetailsAndMetadata(t *testing.T) {
	ev := model.NewEvent(model.EventProcess,
		model.ProcessEvent{PID: 42, Name: "sshd", Exe: "/usr/sbin/sshd"},
		map[string]string{"collector": "gopsutil", "os": "linux"},
	)
	ev.Timestamp = time.Date(2026, 8, 20, 12, 30, 0, 0, time.UTC)

	flat := flatten(ev)

	if flat["name"] != "sshd" {
		t.Errorf("name = %v", flat["name"])
	}
	if flat["collector"] != "gopsutil" {
		t.Errorf("collector = %v", flat["collector"])
	}
	if flat["timestamp"] != "2026-08-20T12:30:00Z" {
		t.Errorf("timestamp = %v", flat["timestamp"])
	}
}

func TestAnalyzeSnapshotScoresProcesses(t *testing.T) {
	report := &snapshotReport{
		Processes: []model.UnifiedEvent{
			model.NewEvent(model.EventProcess,
				model.ProcessEvent{PID: 9, Name: "x", Exe: "/tmp/x", CPUPercent: 85}, nil),
		},
	}

	out := analyzeSnapshot(report)
	if len(out.Processes) != 1 {
		t.Fatalf("process findings = %d", len(out.Processes))
	}
	if out.Processes[0].RiskScore < 4 {
		t.Errorf("risk score = %d, want at least 4", out.Processes[0].RiskScore)
	}
	if len(out.Malware) != 0 {
		t.Errorf("malware findings = %v", out.Malware)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	serve := newServeCmd()
	if serve.Use != "serve" {
		t.Errorf("serve.Use = %q", serve.Use)
	}
	snapshot := newSnapshotCmd()
	if snapshot.Use != "snapshot" {
		t.Errorf("snapshot.Use = %q", snapshot.Use)
	}
	if snapshot.Flags().Lookup("output") == nil {
		t.Error("snapshot should have an --output flag")
	}
}

func TestRunAsyncClosesOnlyAfterReturn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := runAsync(ctx, func(ctx context.Context) {
		<-ctx.Done()
	})

	select {
	case <-done:
		t.Fatal("done closed while the task was still running")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("done never closed after the task returned")
	}
}
