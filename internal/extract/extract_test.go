package extract_test

import (
	"strings"
	"testing"

	"github.com/kplau1128/tools-n-utilies/internal/extract"
	"github.com/kplau1128/tools-n-utilies/internal/model"
	"github.com/stretchr/testify/require"
)

func mustPatterns(t *testing.T, yml string) *model.PatternSet {
	t.Helper()
	set, err := model.LoadPatterns(strings.NewReader(yml))
	require.NoError(t, err)
	return set
}

const pingPatterns = `
patterns:
  - name: packet_loss
    kind: result
    regex: (\d+)% packet loss
    fields: [loss_pct]
  - name: rtt
    kind: result
    regex: time[=<]([0-9.]+) ms
    fields: [rtt_ms]
  - name: unknown_host
    kind: error
    regex: unknown host
  - name: timeout
    kind: error
    regex: Request timeout
`

func TestExtract(t *testing.T) {
	set := mustPatterns(t, pingPatterns)

	t.Run("both result rules contribute", func(t *testing.T) {
		out := "64 bytes from 127.0.0.1: icmp_seq=1 time=0.045 ms\n" +
			"1 packets transmitted, 1 received, 0% packet loss\n"
		fields := extract.Extract(out, set)
		require.Equal(t, "0", fields.Matches["loss_pct"])
		require.Equal(t, "0.05", fields.Matches["rtt_ms"]) // decimal rounded to 2 places
		require.False(t, fields.ErrorDetected)
		require.Empty(t, fields.ErrorNames)
	})

	t.Run("first match wins per rule", func(t *testing.T) {
		out := "10% packet loss here, then 90% packet loss there"
		fields := extract.Extract(out, set)
		require.Equal(t, "10", fields.Matches["loss_pct"])
	})

	t.Run("unmatched rules leave fields absent", func(t *testing.T) {
		fields := extract.Extract("ping: unknown host invalid.host", set)
		_, ok := fields.Matches["loss_pct"]
		require.False(t, ok, "absent, not set to empty string")
		_, ok = fields.Matches["rtt_ms"]
		require.False(t, ok)
		require.True(t, fields.ErrorDetected)
		require.Equal(t, []string{"unknown_host"}, fields.ErrorNames)
	})

	t.Run("multiple error rules", func(t *testing.T) {
		fields := extract.Extract("unknown host and Request timeout for icmp_seq 1", set)
		require.True(t, fields.ErrorDetected)
		require.Equal(t, []string{"unknown_host", "timeout"}, fields.ErrorNames)
	})

	t.Run("empty output is a normal outcome", func(t *testing.T) {
		fields := extract.Extract("", set)
		require.Empty(t, fields.Matches)
		require.False(t, fields.ErrorDetected)
	})
}

func TestExtract_OverlappingRules(t *testing.T) {
	// two rules matching the same region with different field names both
	// contribute to the same result
	set := mustPatterns(t, `
patterns:
  - name: throughput
    kind: result
    regex: "throughput: ([0-9.]+)"
    fields: [throughput]
  - name: throughput_int
    kind: result
    regex: "throughput: (\\d+)"
    fields: [throughput_whole]
`)
	fields := extract.Extract("throughput: 1234.5678 samples/s", set)
	require.Equal(t, "1234.57", fields.Matches["throughput"])
	require.Equal(t, "1234", fields.Matches["throughput_whole"])
}

func TestExtract_Normalization(t *testing.T) {
	set := mustPatterns(t, `
patterns:
  - name: value
    kind: result
    regex: "value=(\\S+)"
    fields: [value]
`)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"long decimal rounded", "value=12.345678", "12.35"},
		{"short decimal kept", "value=3.14", "3.14"},
		{"integer untouched", "value=100", "100"},
		{"non numeric untouched", "value=fast", "fast"},
		{"negative untouched", "value=-1.23456", "-1.23456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := extract.Extract(tt.in, set)
			require.Equal(t, tt.want, fields.Matches["value"])
		})
	}
}
