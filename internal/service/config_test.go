package service_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kplau1128/tools-n-utilies/internal/service"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := service.LoadSettings("")
	require.NoError(t, err)
	require.Equal(t, service.DefaultOutputFile, s.OutputFile)
	require.Zero(t, s.Timeout)
	require.Empty(t, s.Journal)
	require.False(t, s.Verbose)
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runscripts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output_file: bench.csv
timeout: 90s
journal: runs.db
verbose: true
`), 0o600))

	s, err := service.LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, "bench.csv", s.OutputFile)
	require.Equal(t, 90*time.Second, s.Timeout)
	require.Equal(t, "runs.db", s.Journal)
	require.True(t, s.Verbose)
}

func TestLoadSettings_MissingExplicitFile(t *testing.T) {
	_, err := service.LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
