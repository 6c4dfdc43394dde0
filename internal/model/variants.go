package model

import "time"

// ProcessConnection is one inet socket owned by a process.
type ProcessConnection struct {
	LocalAddress  string `json:"local_address,omitempty"`
	LocalPort     int64  `json:"local_port,omitempty"`
	RemoteAddress string `json:"remote_address,omitempty"`
	RemotePort    int64  `json:"remote_port,omitempty"`
	Status        string `json:"status,omitempty"`
}

// ProcessEvent is a snapshot of a single running process.
type ProcessEvent struct {
	PID           int64               `json:"pid"`
	Name          string              `json:"name"`
	Username      string              `json:"username,omitempty"`
	CPUPercent    float64             `json:"cpu_percent"`
	MemoryPercent float64             `json:"memory_percent"`
	Exe           string              `json:"exe,omitempty"`
	Cmdline       []string            `json:"cmdline,omitempty"`
	Connections   []ProcessConnection `json:"connections"`
}

// ServiceEvent is one system-service state change or log record.
// Windows fills event_id/level/message from the event log; Linux fills
// status/description from systemd; macOS fills pid/status from launchd.
type ServiceEvent struct {
	ServiceName   string     `json:"service_name"`
	Status        string     `json:"status,omitempty"`
	PID           int64      `json:"pid,omitempty"`
	Description   string     `json:"description,omitempty"`
	EventID       int64      `json:"event_id,omitempty"`
	Level         string     `json:"level,omitempty"`
	Message       string     `json:"message,omitempty"`
	TimeGenerated *time.Time `json:"time_generated,omitempty"`
}

// NetworkEvent is a single captured IP packet.
type NetworkEvent struct {
	Src     string `json:"src,omitempty"`
	Dst     string `json:"dst,omitempty"`
	Proto   string `json:"proto,omitempty"`
	Length  int64  `json:"length"`
	Summary string `json:"summary"`
}

// HardwareMetrics carries the utilization numbers behind a spike.
type HardwareMetrics struct {
	CPUPercent     float64  `json:"cpu_percent"`
	MemoryPercent  float64  `json:"memory_percent"`
	GPUMemoryMB    *int64   `json:"gpu_memory_mb,omitempty"`
	GPULoadPercent *float64 `json:"gpu_load_percent,omitempty"`
}

// HardwareEvent attributes a resource spike to a process.
type HardwareEvent struct {
	SubType  string          `json:"sub_type"`
	PID      int64           `json:"pid,omitempty"`
	Name     string          `json:"name,omitempty"`
	Username string          `json:"username,omitempty"`
	Exe      string          `json:"exe,omitempty"`
	Metrics  HardwareMetrics `json:"metrics"`
}

// MalwareEvent is the behavioral scanner's verdict on one process.
type MalwareEvent struct {
	Name      string   `json:"name"`
	Exe       string   `json:"exe,omitempty"`
	PID       int64    `json:"pid,omitempty"`
	RiskScore int64    `json:"risk_score"`
	Reasons   []string `json:"reasons"`
}
