package model_test

import (
	"strings"
	"testing"

	"github.com/kplau1128/tools-n-utilies/internal/model"
	"github.com/stretchr/testify/require"
)

const patternsYML = `
version: 0
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
`

func TestLoadPatterns(t *testing.T) {
	set, err := model.LoadPatterns(strings.NewReader(patternsYML))
	require.NoError(t, err)
	require.NotNil(t, set)
	require.Len(t, set.Rules, 3)
	require.Len(t, set.ResultRules(), 2)
	require.Len(t, set.ErrorRules(), 1)
	require.Equal(t, []string{"loss_pct", "rtt_ms"}, set.FieldNames())

	loss := set.ResultRules()[0]
	captured, ok := loss.FirstMatch("1 packets transmitted, 0% packet loss")
	require.True(t, ok)
	require.Equal(t, map[string]string{"loss_pct": "0"}, captured)

	_, ok = loss.FirstMatch("no loss information at all")
	require.False(t, ok)

	errRule := set.ErrorRules()[0]
	require.True(t, errRule.Matches("ping: unknown host invalid.host"))
	require.False(t, errRule.Matches("64 bytes from 127.0.0.1"))
}

func TestLoadPatterns_NamedGroups(t *testing.T) {
	yml := `
patterns:
  - name: timing
    kind: result
    regex: (?P<unit>ms|us) (?P<value>\d+)
    fields: [value, unit]
`
	set, err := model.LoadPatterns(strings.NewReader(yml))
	require.NoError(t, err)

	// fields bind to the named groups, not positionally
	captured, ok := set.Rules[0].FirstMatch("took ms 125")
	require.True(t, ok)
	require.Equal(t, map[string]string{"value": "125", "unit": "ms"}, captured)
}

func TestLoadPatterns_FirstMatchWins(t *testing.T) {
	set, err := model.LoadPatterns(strings.NewReader(patternsYML))
	require.NoError(t, err)

	loss := set.ResultRules()[0]
	captured, ok := loss.FirstMatch("5% packet loss ... 90% packet loss")
	require.True(t, ok)
	require.Equal(t, "5", captured["loss_pct"])
}

func TestLoadPatterns_Fail(t *testing.T) {
	t.Run("regex does not compile", func(t *testing.T) {
		yml := `
patterns:
  - name: broken
    kind: result
    regex: "([unclosed"
    fields: [value]
`
		_, err := model.LoadPatterns(strings.NewReader(yml))
		require.Error(t, err)

		var cfgErr *model.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "patterns", cfgErr.Source)
		require.Equal(t, "patterns[0].regex", cfgErr.Path)
	})

	t.Run("result rule without fields", func(t *testing.T) {
		yml := `
patterns:
  - name: empty
    kind: result
    regex: (\d+)
`
		_, err := model.LoadPatterns(strings.NewReader(yml))
		require.ErrorIs(t, err, model.ErrNoFields)
	})

	t.Run("more fields than capture groups", func(t *testing.T) {
		yml := `
patterns:
  - name: short
    kind: result
    regex: (\d+) items
    fields: [count, extra]
`
		_, err := model.LoadPatterns(strings.NewReader(yml))
		require.ErrorIs(t, err, model.ErrFieldMismatch)

		var cfgErr *model.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "patterns[0].fields[1]", cfgErr.Path)
	})

	t.Run("invalid kind", func(t *testing.T) {
		yml := `
patterns:
  - name: odd
    kind: warning
    regex: whatever
`
		_, err := model.LoadPatterns(strings.NewReader(yml))
		require.Error(t, err)
	})

	t.Run("no patterns", func(t *testing.T) {
		_, err := model.LoadPatterns(strings.NewReader(`patterns: []`))
		require.Error(t, err)
	})
}
