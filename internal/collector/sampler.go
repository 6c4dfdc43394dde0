package collector

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/akorchagin/hostsentry/internal/analysis"
	"github.com/akorchagin/hostsentry/internal/model"
)

// baseCollector holds the platform-independent sampling paths. Platform
// collectors embed it and add their service-event source.
type baseCollector struct {
	opts   Options
	osName string
}

// CollectProcessEvents snapshots every visible process. Unreadable
// processes (died mid-read, access denied) are skipped, never fatal.
func (c *baseCollector) CollectProcessEvents(ctx context.Context) ([]model.UnifiedEvent, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	events := make([]model.UnifiedEvent, 0, len(procs))
	for _, p := range procs {
		ev, ok := sampleProcess(ctx, p)
		if !ok {
			continue
		}
		events = append(events, model.NewEvent(model.EventProcess, ev, map[string]string{
			"os":        c.osName,
			"collector": "gopsutil",
		}))
	}
	return events, nil
}

// sampleProcess reads one process. The name is mandatory; everything
// else degrades to zero values on permission errors.
func sampleProcess(ctx context.Context, p *process.Process) (model.ProcessEvent, bool) {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return model.ProcessEvent{}, false
	}
	if name == "" {
		name = "unknown"
	}

	username, err := p.UsernameWithContext(ctx)
	if err != nil || username == "" {
		username = "unknown"
	}
	cpu, _ := p.CPUPercentWithContext(ctx)
	mem, _ := p.MemoryPercentWithContext(ctx)
	exe, _ := p.ExeWithContext(ctx)
	cmdline, _ := p.CmdlineSliceWithContext(ctx)

	conns := []model.ProcessConnection{}
	if raw, err := p.ConnectionsWithContext(ctx); err == nil {
		for _, cs := range raw {
			conns = append(conns, model.ProcessConnection{
				LocalAddress:  cs.Laddr.IP,
				LocalPort:     int64(cs.Laddr.Port),
				RemoteAddress: cs.Raddr.IP,
				RemotePort:    int64(cs.Raddr.Port),
				Status:        cs.Status,
			})
		}
	}

	return model.ProcessEvent{
		PID:           int64(p.Pid),
		Name:          name,
		Username:      username,
		CPUPercent:    cpu,
		MemoryPercent: float64(mem),
		Exe:           exe,
		Cmdline:       cmdline,
		Connections:   conns,
	}, true
}

// CollectHardwareEvents reports processes exceeding either threshold,
// cross-referencing GPU memory for the offenders.
func (c *baseCollector) CollectHardwareEvents(ctx context.Context, cpuThreshold, memThreshold float64) ([]model.UnifiedEvent, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	gpu := queryGPUUsage(ctx, c.opts.Runner)

	var events []model.UnifiedEvent
	for _, p := range procs {
		cpu, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		mem32, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			continue
		}
		mem := float64(mem32)
		if cpu <= cpuThreshold && mem <= memThreshold {
			continue
		}

		name, _ := p.NameWithContext(ctx)
		username, _ := p.UsernameWithContext(ctx)
		exe, _ := p.ExeWithContext(ctx)

		metrics := model.HardwareMetrics{CPUPercent: cpu, MemoryPercent: mem}
		if mb, ok := gpu[int64(p.Pid)]; ok {
			metrics.GPUMemoryMB = &mb
		}

		ev := model.HardwareEvent{
			SubType:  "RESOURCE_HOG",
			PID:      int64(p.Pid),
			Name:     name,
			Username: username,
			Exe:      exe,
			Metrics:  metrics,
		}
		events = append(events, model.NewEvent(model.EventHardwareSpike, ev, map[string]string{
			"os":        c.osName,
			"collector": "gopsutil_hardware",
		}))
	}
	return events, nil
}

// CollectMalwareEvents runs the behavioral scan over the process table
// and emits an alert for every process scoring at or above the alert
// floor.
func (c *baseCollector) CollectMalwareEvents(ctx context.Context) ([]model.UnifiedEvent, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var events []model.UnifiedEvent
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		exe, _ := p.ExeWithContext(ctx)
		cpu, _ := p.CPUPercentWithContext(ctx)

		verdict, alert := scoreBehavior(name, exe, cpu)
		if !alert {
			continue
		}
		verdict.PID = int64(p.Pid)
		events = append(events, model.NewEvent(model.EventMalwareAlert, verdict, map[string]string{
			"os":        c.osName,
			"collector": "behavioral_scanner",
		}))
	}
	return events, nil
}

// alertFloor is the minimum behavioral score that becomes an alert.
const alertFloor = 5

// scoreBehavior applies the behavioral heuristics to one process.
func scoreBehavior(name, exe string, cpu float64) (model.MalwareEvent, bool) {
	score := int64(0)
	reasons := []string{}

	if exe == "" {
		score += 2
		reasons = append(reasons, "no resolvable executable path")
	} else {
		if analysis.HasSuspiciousPath(exe) {
			score += 3
			reasons = append(reasons, "executable resides in a temp-like directory: "+exe)
		}
		if strings.HasSuffix(exe, "(deleted)") {
			score += 3
			reasons = append(reasons, "executable was deleted from disk while still running")
		}
	}
	if cpu > 70 {
		score += 2
		reasons = append(reasons, "sustained high CPU usage")
	}
	if strings.HasPrefix(name, ".") {
		score++
		reasons = append(reasons, "hidden process name")
	}

	return model.MalwareEvent{
		Name:      name,
		Exe:       exe,
		RiskScore: score,
		Reasons:   reasons,
	}, score >= alertFloor
}
