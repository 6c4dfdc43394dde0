// Package collector samples operating-system state into unified events.
// Each supported platform provides one Collector implementation; the
// scheduling of collection rounds lives in the monitor package.
package collector

import (
	"context"
	"errors"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/akorchagin/hostsentry/internal/model"
)

// ErrUnsupportedPlatform is returned by New on operating systems that
// have no collector implementation.
var ErrUnsupportedPlatform = errors.New("collector: unsupported platform")

// CommandRunner abstracts external command execution for testability.
type CommandRunner interface {
	// Run executes a command and returns its standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommandRunner is the default CommandRunner using os/exec.
type ExecCommandRunner struct{}

func (r *ExecCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Collector gathers events from one host. Snapshot methods return a
// complete batch per call and never fail the whole batch on a single
// unreadable process; the network method streams until the context is
// cancelled.
type Collector interface {
	CollectProcessEvents(ctx context.Context) ([]model.UnifiedEvent, error)

	// CollectServiceEvents returns at most limit service records.
	CollectServiceEvents(ctx context.Context, limit int) ([]model.UnifiedEvent, error)

	// CollectNetworkEvents opens the capture device and streams one
	// event per IP packet. The returned channel closes when the
	// context is cancelled or the capture handle dies.
	CollectNetworkEvents(ctx context.Context) (<-chan model.UnifiedEvent, error)

	// CollectHardwareEvents reports processes exceeding either
	// utilization threshold (percent).
	CollectHardwareEvents(ctx context.Context, cpuThreshold, memThreshold float64) ([]model.UnifiedEvent, error)

	CollectMalwareEvents(ctx context.Context) ([]model.UnifiedEvent, error)
}

// Options configures the platform collector.
type Options struct {
	// CaptureInterface is the pcap device name; empty auto-picks the
	// first up, non-loopback device with an address.
	CaptureInterface string

	// Runner executes helper binaries (systemctl, launchctl, wevtutil,
	// nvidia-smi). Nil means the real exec runner.
	Runner CommandRunner

	Logger zerolog.Logger
}

// New returns the collector for the current platform, or
// ErrUnsupportedPlatform.
func New(opts Options) (Collector, error) {
	if opts.Runner == nil {
		opts.Runner = &ExecCommandRunner{}
	}
	return newPlatformCollector(opts)
}
