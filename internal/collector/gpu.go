package collector

import (
	"context"
	"strconv"
	"strings"
)

// queryGPUUsage returns per-PID GPU memory in MB from nvidia-smi, or an
// empty map on hosts without the tool. One query covers the whole
// collection round.
func queryGPUUsage(ctx context.Context, runner CommandRunner) map[int64]int64 {
	out, err := runner.Run(ctx, "nvidia-smi",
		"--query-compute-apps=pid,used_memory", "--format=csv,noheader,nounits")
	if err != nil {
		return map[int64]int64{}
	}
	return parseGPUQuery(out)
}

// parseGPUQuery parses csv,noheader,nounits output: "pid, used_memory"
// per line. Malformed lines are skipped.
func parseGPUQuery(out []byte) map[int64]int64 {
	usage := map[int64]int64{}
	for _, line := range strings.Split(string(out), "\n") {
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			continue
		}
		pid, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			continue
		}
		mem, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			continue
		}
		usage[pid] = mem
	}
	return usage
}
