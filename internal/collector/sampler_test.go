package collector

import "testing"

func TestScoreBehavior(t *testing.T) {
	cases := []struct {
		name      string
		procName  string
		exe       string
		cpu       float64
		wantScore int64
		wantAlert bool
	}{
		{
			name:     "benign daemon",
			procName: "sshd", exe: "/usr/sbin/sshd", cpu: 0.1,
			wantScore: 0, wantAlert: false,
		},
		{
			name:     "tmp binary burning cpu",
			procName: "x", exe: "/tmp/x", cpu: 95,
			wantScore: 5, wantAlert: true,
		},
		{
			name:     "deleted binary in shm",
			procName: "d", exe: "/dev/shm/d (deleted)", cpu: 1,
			wantScore: 6, wantAlert: true,
		},
		{
			name:     "hidden name without exe",
			procName: ".helper", exe: "", cpu: 5,
			wantScore: 3, wantAlert: false,
		},
		{
			name:     "kernel thread",
			procName: "kworker/0:1", exe: "", cpu: 0,
			wantScore: 2, wantAlert: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict, alert := scoreBehavior(tc.procName, tc.exe, tc.cpu)
			if verdict.RiskScore != tc.wantScore {
				t.Errorf("score = %d, want %d; reasons: %v", verdict.RiskScore, tc.wantScore, verdict.Reasons)
			}
			if alert != tc.wantAlert {
				t.Errorf("alert = %v, want %v", alert, tc.wantAlert)
			}
		})
	}
}

func TestParseGPUQuery(t *testing.T) {
	out := []byte("1234, 512\n5678, 2048\n\nnot,a,line\nabc, 99\n")
	usage := parseGPUQuery(out)
	if len(usage) != 2 {
		t.Fatalf("got %d entries, want 2", len(usage))
	}
	if usage[1234] != 512 || usage[5678] != 2048 {
		t.Errorf("usage = %v", usage)
	}
}

func TestProtoName(t *testing.T) {
	cases := map[string]string{
		"ICMPv4": "icmp",
		"ICMPv6": "icmp",
		"TCP":    "tcp",
		"UDP":    "udp",
		"GRE":    "gre",
	}
	for in, want := range cases {
		if got := protoName(in); got != want {
			t.Errorf("protoName(%q) = %q, want %q", in, got, want)
		}
	}
}
