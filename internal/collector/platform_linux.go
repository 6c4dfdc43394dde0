//go:build linux

package collector

import (
	"context"

	"github.com/akorchagin/hostsentry/internal/model"
)

type linuxCollector struct {
	baseCollector
}

func newPlatformCollector(opts Options) (Collector, error) {
	return &linuxCollector{baseCollector{opts: opts, osName: "linux"}}, nil
}

// CollectServiceEvents snapshots systemd unit states.
func (c *linuxCollector) CollectServiceEvents(ctx context.Context, limit int) ([]model.UnifiedEvent, error) {
	out, err := c.opts.Runner.Run(ctx, "systemctl",
		"list-units", "--type=service", "--all", "--no-pager", "--output=json")
	if err != nil {
		return nil, err
	}

	units := parseSystemdUnits(out, limit)
	events := make([]model.UnifiedEvent, 0, len(units))
	for _, sev := range units {
		events = append(events, model.NewEvent(model.EventServiceEvent, sev, map[string]string{
			"os":        "linux",
			"collector": "systemd",
		}))
	}
	return events, nil
}
