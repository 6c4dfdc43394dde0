package collector

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/akorchagin/hostsentry/internal/model"
)

// systemdUnit mirrors one entry of
// `systemctl list-units --output=json`.
type systemdUnit struct {
	Unit        string `json:"unit"`
	Load        string `json:"load"`
	Active      string `json:"active"`
	ActiveState string `json:"active_state"`
	Sub         string `json:"sub"`
	Description string `json:"description"`
}

// parseSystemdUnits converts systemctl JSON output into service events.
// A malformed document yields nil rather than a partial parse.
func parseSystemdUnits(out []byte, limit int) []model.ServiceEvent {
	var units []systemdUnit
	if err := json.Unmarshal(out, &units); err != nil {
		return nil
	}
	if limit > 0 && len(units) > limit {
		units = units[:limit]
	}

	events := make([]model.ServiceEvent, 0, len(units))
	for _, u := range units {
		status := u.Active
		if status == "" {
			status = u.ActiveState
		}
		events = append(events, model.ServiceEvent{
			ServiceName: u.Unit,
			Status:      status,
			Description: u.Description,
		})
	}
	return events
}

// parseLaunchctlList parses `launchctl list` output: a header line then
// tab-separated PID, Status, Label columns. A "-" PID means the job is
// loaded but not running.
func parseLaunchctlList(out []byte, limit int) []model.ServiceEvent {
	lines := strings.Split(string(out), "\n")
	if len(lines) > 0 {
		lines = lines[1:] // header
	}

	var events []model.ServiceEvent
	for _, line := range lines {
		if limit > 0 && len(events) >= limit {
			break
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 3 {
			continue
		}
		var pid int64
		if parts[0] != "-" {
			pid, _ = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		}
		events = append(events, model.ServiceEvent{
			ServiceName: strings.TrimSpace(parts[2]),
			Status:      strings.TrimSpace(parts[1]),
			PID:         pid,
		})
	}
	return events
}

// eventLogRecord pairs a Windows event-log record number with its
// parsed service event, so the caller can keep a dedupe watermark.
type eventLogRecord struct {
	RecordID int64
	Event    model.ServiceEvent
}

// wevtEvent mirrors the RenderedXml shape of one `wevtutil qe` event.
type wevtEvent struct {
	XMLName xml.Name `xml:"Event"`
	System  struct {
		Provider struct {
			Name string `xml:"Name,attr"`
		} `xml:"Provider"`
		EventID       int64 `xml:"EventID"`
		Level         int   `xml:"Level"`
		EventRecordID int64 `xml:"EventRecordID"`
		TimeCreated   struct {
			SystemTime string `xml:"SystemTime,attr"`
		} `xml:"TimeCreated"`
	} `xml:"System"`
	RenderingInfo struct {
		Message string `xml:"Message"`
	} `xml:"RenderingInfo"`
}

// parseEventLogXML parses wevtutil RenderedXml output. The tool emits a
// bare sequence of <Event> elements with no document root, so events
// are decoded one by one; a bad element ends the parse with whatever
// was read so far.
func parseEventLogXML(out []byte) []eventLogRecord {
	dec := xml.NewDecoder(bytes.NewReader(out))

	var records []eventLogRecord
	for {
		var ev wevtEvent
		err := dec.Decode(&ev)
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		sev := model.ServiceEvent{
			ServiceName: ev.System.Provider.Name,
			EventID:     ev.System.EventID,
			Level:       eventLogLevel(ev.System.Level),
			Message:     strings.TrimSpace(ev.RenderingInfo.Message),
		}
		if ts, err := time.Parse(time.RFC3339Nano, ev.System.TimeCreated.SystemTime); err == nil {
			utc := ts.UTC()
			sev.TimeGenerated = &utc
		}
		records = append(records, eventLogRecord{RecordID: ev.System.EventRecordID, Event: sev})
	}
	return records
}

// eventLogLevel maps the numeric event-log level to the analyzer's
// vocabulary.
func eventLogLevel(level int) string {
	switch level {
	case 1:
		return "critical"
	case 2:
		return "error"
	case 3:
		return "warning"
	default:
		return "info"
	}
}
