//go:build windows

package collector

import (
	"context"
	"strconv"
	"sync"

	"github.com/akorchagin/hostsentry/internal/model"
)

type windowsCollector struct {
	baseCollector

	mu sync.Mutex
	// lastRecordID is the highest System-log record already emitted;
	// records at or below it are skipped on the next round.
	lastRecordID int64
}

func newPlatformCollector(opts Options) (Collector, error) {
	return &windowsCollector{baseCollector: baseCollector{opts: opts, osName: "windows"}}, nil
}

// CollectServiceEvents reads the System event log newest-first via
// wevtutil and dedupes against the record-number watermark.
func (c *windowsCollector) CollectServiceEvents(ctx context.Context, limit int) ([]model.UnifiedEvent, error) {
	out, err := c.opts.Runner.Run(ctx, "wevtutil",
		"qe", "System", "/rd:true", "/c:"+strconv.Itoa(limit), "/f:RenderedXml")
	if err != nil {
		return nil, err
	}

	records := parseEventLogXML(out)

	c.mu.Lock()
	defer c.mu.Unlock()

	var events []model.UnifiedEvent
	for _, rec := range records {
		if rec.RecordID <= c.lastRecordID {
			continue
		}
		events = append(events, model.NewEvent(model.EventServiceEvent, rec.Event, map[string]string{
			"os":        "windows",
			"collector": "event_log",
		}))
	}
	for _, rec := range records {
		if rec.RecordID > c.lastRecordID {
			c.lastRecordID = rec.RecordID
		}
	}
	return events, nil
}
