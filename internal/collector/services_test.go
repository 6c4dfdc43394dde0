package collector

import (
	"testing"
	"time"
)

func TestParseSystemdUnits(t *testing.T) {
	out := []byte(`[
  {"unit":"ssh.service","load":"loaded","active":"active","sub":"running","description":"OpenBSD Secure Shell server"},
  {"unit":"cron.service","load":"loaded","active":"active","sub":"running","description":"Regular background program processing daemon"},
  {"unit":"apparmor.service","load":"loaded","active":"inactive","sub":"dead","description":"Load AppArmor profiles"}
]`)

	units := parseSystemdUnits(out, 50)
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	if units[0].ServiceName != "ssh.service" || units[0].Status != "active" {
		t.Errorf("units[0] = %+v", units[0])
	}
	if units[2].Status != "inactive" {
		t.Errorf("units[2].Status = %q", units[2].Status)
	}
	if units[1].Description == "" {
		t.Error("description not carried through")
	}
}

func TestParseSystemdUnits_LimitAndGarbage(t *testing.T) {
	out := []byte(`[{"unit":"a.service"},{"unit":"b.service"},{"unit":"c.service"}]`)
	if got := parseSystemdUnits(out, 2); len(got) != 2 {
		t.Errorf("limit not applied: got %d", len(got))
	}
	if got := parseSystemdUnits([]byte("Failed to connect to bus"), 50); got != nil {
		t.Errorf("garbage input should yield nil, got %v", got)
	}
}

func TestParseLaunchctlList(t *testing.T) {
	out := []byte("PID\tStatus\tLabel\n" +
		"312\t0\tcom.apple.Spotlight\n" +
		"-\t0\tcom.apple.mdworker.shared\n" +
		"bad line without tabs\n" +
		"88\t-9\tcom.example.crashed\n")

	jobs := parseLaunchctlList(out, 50)
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}
	if jobs[0].PID != 312 || jobs[0].ServiceName != "com.apple.Spotlight" {
		t.Errorf("jobs[0] = %+v", jobs[0])
	}
	if jobs[1].PID != 0 {
		t.Errorf("dash PID should parse to 0, got %d", jobs[1].PID)
	}
	if jobs[2].Status != "-9" {
		t.Errorf("jobs[2].Status = %q", jobs[2].Status)
	}
}

const sampleEventLogXML = `<Event xmlns='http://schemas.microsoft.com/win/2004/08/events/event'><System><Provider Name='Service Control Manager' Guid='{555908d1-a6d7-4695-8e1e-26931d2012f4}'/><EventID Qualifiers='49152'>7034</EventID><Level>2</Level><TimeCreated SystemTime='2026-08-20T10:15:30.123456700Z'/><EventRecordID>5120</EventRecordID><Computer>WIN-HOST</Computer></System><RenderingInfo Culture='en-US'><Message>The DHCP Client service terminated unexpectedly.</Message></RenderingInfo></Event>
<Event xmlns='http://schemas.microsoft.com/win/2004/08/events/event'><System><Provider Name='Microsoft-Windows-Kernel-General'/><EventID>16</EventID><Level>4</Level><TimeCreated SystemTime='2026-08-20T10:14:00.000000000Z'/><EventRecordID>5119</EventRecordID></System></Event>`

func TestParseEventLogXML(t *testing.T) {
	records := parseEventLogXML([]byte(sampleEventLogXML))
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.RecordID != 5120 {
		t.Errorf("RecordID = %d", first.RecordID)
	}
	if first.Event.ServiceName != "Service Control Manager" {
		t.Errorf("ServiceName = %q", first.Event.ServiceName)
	}
	if first.Event.EventID != 7034 || first.Event.Level != "error" {
		t.Errorf("EventID/Level = %d/%q", first.Event.EventID, first.Event.Level)
	}
	if first.Event.Message != "The DHCP Client service terminated unexpectedly." {
		t.Errorf("Message = %q", first.Event.Message)
	}
	if first.Event.TimeGenerated == nil {
		t.Fatal("TimeGenerated not parsed")
	}
	want := time.Date(2026, 8, 20, 10, 15, 30, 123456700, time.UTC)
	if !first.Event.TimeGenerated.Equal(want) {
		t.Errorf("TimeGenerated = %v, want %v", first.Event.TimeGenerated, want)
	}

	if records[1].Event.Level != "info" {
		t.Errorf("records[1].Level = %q", records[1].Event.Level)
	}
}

func TestParseEventLogXML_Empty(t *testing.T) {
	if got := parseEventLogXML(nil); len(got) != 0 {
		t.Errorf("empty input should yield no records, got %v", got)
	}
}

func TestEventLogLevel(t *testing.T) {
	cases := map[int]string{1: "critical", 2: "error", 3: "warning", 4: "info", 0: "info", 5: "info"}
	for level, want := range cases {
		if got := eventLogLevel(level); got != want {
			t.Errorf("eventLogLevel(%d) = %q, want %q", level, got, want)
		}
	}
}
