// Package analysis scores stored events for security risk. Every
// analyzer is a pure function over the event's detail map: same input,
// same score, no I/O.
package analysis

import (
	"fmt"
	"strings"
)

// suspiciousRoots are temp-like path fragments that legitimate
// long-lived binaries rarely run from.
var suspiciousRoots = []string{"tmp", "private", "cache", "shm", "var/tmp", `appdata\local\temp`}

// privilegedUsers are accounts whose processes get extra scrutiny when
// they burn resources.
var privilegedUsers = []string{"root", "system", `nt authority\system`}

// ProcessFinding is the scored verdict on one process snapshot.
type ProcessFinding struct {
	Name      string   `json:"name"`
	Exe       string   `json:"exe"`
	Username  string   `json:"username"`
	RiskScore int      `json:"risk_score"`
	Reasons   []string `json:"reasons"`
}

// AnalyzeProcess evaluates a process event for suspicious executable
// paths, resource abuse, privileged-context activity and odd socket
// states. Missing numeric fields count as zero, missing strings as
// empty.
func AnalyzeProcess(details map[string]any) ProcessFinding {
	score := 0
	reasons := []string{}

	exe := getString(details, "exe")
	username := getString(details, "username")
	cpu := getFloat(details, "cpu_percent")
	mem := getFloat(details, "memory_percent")

	if exe == "" {
		score += 2
		reasons = append(reasons, "Process has no executable path (often hidden or kernel thread).")
	} else {
		if hasSuspiciousPath(exe) {
			score += 2
			reasons = append(reasons, fmt.Sprintf("Executable located in suspicious directory: %s", exe))
		}
		if len(exe) > 260 {
			score++
			reasons = append(reasons, "Executable path unusually long, may indicate obfuscation.")
		}
	}

	switch {
	case cpu > 50:
		score += 2
		reasons = append(reasons, "High CPU usage (potential mining/loop).")
	case cpu > 20:
		score++
		reasons = append(reasons, "Elevated CPU usage.")
	}
	switch {
	case mem > 20:
		score += 2
		reasons = append(reasons, "High memory usage.")
	case mem > 10:
		score++
		reasons = append(reasons, "Elevated memory usage.")
	}

	if containsFold(privilegedUsers, username) && (cpu > 10 || mem > 10) {
		score += 2
		reasons = append(reasons, "Privileged system process with unusual resource usage.")
	}

	if conns, ok := details["connections"].([]any); ok {
		for _, c := range conns {
			conn, ok := c.(map[string]any)
			if !ok {
				continue
			}
			remote := getString(conn, "remote_address")
			status := strings.ToLower(getString(conn, "status"))
			if remote != "" && status != "established" && status != "listen" && status != "none" && status != "" {
				score++
				reasons = append(reasons, fmt.Sprintf("Unexpected remote connection state: %s -> %s", status, remote))
			}
		}
	}

	return ProcessFinding{
		Name:      getString(details, "name"),
		Exe:       exe,
		Username:  username,
		RiskScore: score,
		Reasons:   reasons,
	}
}

// NetworkFinding is the scored verdict on one captured packet.
type NetworkFinding struct {
	Src       string   `json:"src"`
	Dst       string   `json:"dst"`
	Protocol  string   `json:"protocol"`
	Size      int      `json:"size"`
	Summary   string   `json:"summary"`
	RiskScore int      `json:"risk_score"`
	Reasons   []string `json:"reasons"`
}

// AnalyzeNetworkFlow flags oversized packets, tunneling-prone
// protocols and traffic toward public addresses.
func AnalyzeNetworkFlow(details map[string]any) NetworkFinding {
	score := 0
	reasons := []string{}

	dst := getString(details, "dst")
	size := int(getFloat(details, "length"))
	proto := strings.ToLower(getString(details, "proto"))

	if size > 2000 {
		score++
		reasons = append(reasons, fmt.Sprintf("Unusually large packet size: %d bytes", size))
	}
	if proto == "icmp" || proto == "raw" || proto == "gre" {
		score++
		reasons = append(reasons, fmt.Sprintf("Suspicious protocol detected: %s", proto))
	}
	if dst != "" && !isPrivateDst(dst) && dst != "255.255.255.255" {
		score++
		reasons = append(reasons, fmt.Sprintf("Connection to external/public IP: %s", dst))
	}

	return NetworkFinding{
		Src:       getString(details, "src"),
		Dst:       dst,
		Protocol:  proto,
		Size:      size,
		Summary:   getString(details, "summary"),
		RiskScore: score,
		Reasons:   reasons,
	}
}

// ServiceFinding is the scored verdict on one service-log record.
type ServiceFinding struct {
	Service   string   `json:"service"`
	EventID   int      `json:"event_id,omitempty"`
	RiskScore int      `json:"risk_score"`
	Reasons   []string `json:"reasons"`
}

// AnalyzeServiceEvent flags error-level records and the Windows
// service-crash event IDs 7031/7034.
func AnalyzeServiceEvent(details map[string]any) ServiceFinding {
	score := 0
	reasons := []string{}

	level := strings.ToLower(getString(details, "level"))
	eventID := int(getFloat(details, "event_id"))

	if level == "error" || level == "critical" || level == "fatal" {
		score += 2
		reasons = append(reasons, fmt.Sprintf("Service generated a %s event.", level))
	}
	if eventID == 7031 || eventID == 7034 {
		score++
		reasons = append(reasons, fmt.Sprintf("Service crashed unexpectedly (Event ID %d).", eventID))
	}

	service := getString(details, "service_name")
	if service == "" {
		service = getString(details, "name")
	}
	return ServiceFinding{
		Service:   service,
		EventID:   eventID,
		RiskScore: score,
		Reasons:   reasons,
	}
}

// HardwareFinding is the scored verdict on one resource spike.
type HardwareFinding struct {
	SubType   string   `json:"sub_type"`
	Name      string   `json:"name"`
	Exe       string   `json:"exe"`
	PID       int      `json:"pid,omitempty"`
	RiskScore int      `json:"risk_score"`
	Reasons   []string `json:"reasons"`
}

// AnalyzeHardware scores a hardware spike on CPU, GPU and memory
// pressure plus executable provenance. The score is clamped to 10.
func AnalyzeHardware(details map[string]any) HardwareFinding {
	score := 0
	reasons := []string{}

	subType := getString(details, "sub_type")
	exe := getString(details, "exe")

	metrics, _ := details["metrics"].(map[string]any)
	cpu := getFloat(metrics, "cpu_percent")
	mem := getFloat(metrics, "memory_percent")
	gpuMem := getFloat(metrics, "gpu_memory_mb")

	switch {
	case cpu > 80:
		score += 3
		reasons = append(reasons, "Sustained extreme CPU usage.")
	case cpu > 50:
		score++
		reasons = append(reasons, "High CPU usage.")
	}
	if gpuMem > 1000 {
		score += 2
		reasons = append(reasons, fmt.Sprintf("Heavy GPU memory consumption: %.0f MB", gpuMem))
	}
	switch {
	case mem > 70:
		score += 4
		reasons = append(reasons, "Critical memory pressure.")
	case mem > 40:
		score += 2
		reasons = append(reasons, "High memory usage.")
	}
	if exe != "" && hasSuspiciousPath(exe) && (cpu > 30 || gpuMem > 500) {
		score += 4
		reasons = append(reasons, fmt.Sprintf("Resource-heavy process running from suspicious path: %s", exe))
	}
	if subType == "GPU_USAGE" && exe == "" {
		score++
		reasons = append(reasons, "GPU consumer with no resolvable executable path.")
	}

	if score > 10 {
		score = 10
	}
	return HardwareFinding{
		SubType:   subType,
		Name:      getString(details, "name"),
		Exe:       exe,
		PID:       int(getFloat(details, "pid")),
		RiskScore: score,
		Reasons:   reasons,
	}
}

// MalwareFinding re-exposes the behavioral scanner's verdict; the
// score was computed at collection time.
type MalwareFinding struct {
	Name      string   `json:"name"`
	Exe       string   `json:"exe"`
	PID       int      `json:"pid,omitempty"`
	RiskScore int      `json:"risk_score"`
	Reasons   []string `json:"reasons"`
}

// AnalyzeMalware extracts the stored scanner verdict from a
// malware_alert event.
func AnalyzeMalware(details map[string]any) MalwareFinding {
	reasons := []string{}
	if raw, ok := details["reasons"].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				reasons = append(reasons, s)
			}
		}
	}
	return MalwareFinding{
		Name:      getString(details, "name"),
		Exe:       getString(details, "exe"),
		PID:       int(getFloat(details, "pid")),
		RiskScore: int(getFloat(details, "risk_score")),
		Reasons:   reasons,
	}
}

// HasSuspiciousPath reports whether the path contains a temp-like
// fragment. Exposed for the behavioral scanner, which shares the
// heuristic.
func HasSuspiciousPath(path string) bool { return hasSuspiciousPath(path) }

func hasSuspiciousPath(path string) bool {
	lower := strings.ToLower(path)
	for _, root := range suspiciousRoots {
		if strings.Contains(lower, root) {
			return true
		}
	}
	return false
}

func isPrivateDst(dst string) bool {
	return strings.HasPrefix(dst, "10.") ||
		strings.HasPrefix(dst, "192.168.") ||
		strings.HasPrefix(dst, "127.") ||
		strings.HasPrefix(dst, "fe80:")
}

func containsFold(set []string, s string) bool {
	for _, v := range set {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func getFloat(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
