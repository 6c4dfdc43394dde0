//go:build darwin

package collector

import (
	"context"
	"encoding/json"

	"github.com/akorchagin/hostsentry/internal/model"
)

type darwinCollector struct {
	baseCollector
}

func newPlatformCollector(opts Options) (Collector, error) {
	return &darwinCollector{baseCollector{opts: opts, osName: "macos"}}, nil
}

// CollectServiceEvents snapshots launchd jobs. launchctl has no
// structured output mode, so the tab-separated table is parsed by hand.
func (c *darwinCollector) CollectServiceEvents(ctx context.Context, limit int) ([]model.UnifiedEvent, error) {
	out, err := c.opts.Runner.Run(ctx, "launchctl", "list")
	if err != nil {
		return nil, err
	}

	jobs := parseLaunchctlList(out, limit)
	events := make([]model.UnifiedEvent, 0, len(jobs))
	for _, sev := range jobs {
		events = append(events, model.NewEvent(model.EventServiceEvent, sev, map[string]string{
			"os":        "macos",
			"collector": "launchctl",
		}))
	}
	return events, nil
}

// CollectHardwareEvents runs the shared spike detection and appends a
// static GPU status record from system_profiler. On Apple-silicon hosts
// nvidia-smi never answers, so this is the only GPU signal.
func (c *darwinCollector) CollectHardwareEvents(ctx context.Context, cpuThreshold, memThreshold float64) ([]model.UnifiedEvent, error) {
	events, err := c.baseCollector.CollectHardwareEvents(ctx, cpuThreshold, memThreshold)
	if err != nil {
		return nil, err
	}
	events = append(events, c.gpuStatusEvents(ctx)...)
	return events, nil
}

type displaysProfile struct {
	Displays []struct {
		Name   string `json:"_name"`
		VRAM   string `json:"spdisplays_vram"`
		Vendor string `json:"spdisplays_vendor"`
	} `json:"SPDisplaysDataType"`
}

func (c *darwinCollector) gpuStatusEvents(ctx context.Context) []model.UnifiedEvent {
	out, err := c.opts.Runner.Run(ctx, "system_profiler", "SPDisplaysDataType", "-json")
	if err != nil {
		return nil
	}
	var profile displaysProfile
	if err := json.Unmarshal(out, &profile); err != nil {
		return nil
	}

	var events []model.UnifiedEvent
	for _, gpu := range profile.Displays {
		details := map[string]any{
			"sub_type": "GPU_STATUS",
			"gpu_name": gpu.Name,
			"vram":     gpu.VRAM,
			"vendor":   gpu.Vendor,
		}
		if details["gpu_name"] == "" {
			details["gpu_name"] = "Unknown GPU"
		}
		events = append(events, model.NewEvent(model.EventHardwareSpike, details, map[string]string{
			"os":        "macos",
			"collector": "system_profiler",
		}))
	}
	return events
}
