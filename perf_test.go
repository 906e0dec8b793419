package perf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aswintechie/ttnn-performance-dashboard/artifact"
	"github.com/Aswintechie/ttnn-performance-dashboard/types"
)

// newScriptConfig points discovery and measurement at shell scripts standing
// in for pytest and ttperf.
func newScriptConfig(t *testing.T) *Config {
	t.Helper()
	scripts := t.TempDir()
	collect := writeFile(t, scripts, "collect", `#!/bin/sh
echo "$1::TestEltwiseOperations::test_abs"
echo "$1::TestEltwiseOperations::test_exp"
echo "$1::TestEltwiseOperations::test_real"
`)
	ttperf := writeFile(t, scripts, "ttperf", `#!/bin/sh
case "$1" in
  *::test_abs) echo "DEVICE KERNEL DURATION [ns] total: 1200 ns" ;;
  *) echo "PASSED" ;;
esac
`)

	perfCfg := types.DefaultPerfConfig()
	perfCfg.Suite.DiscoverCommand = []string{"sh", collect, types.PlaceholderFile}
	perfCfg.Measurement.Command = []string{"sh", ttperf, types.PlaceholderSelector}
	perfCfg.Measurement.Attempts = 2
	perfCfg.Measurement.Pause = 0

	return &Config{
		Perf:      perfCfg,
		OutputDir: t.TempDir(),
		WorkDir:   t.TempDir(),
		Log:       log.NewLogger(log.DiscardHandler()),
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "test", nil)
	assert.Error(t, err)
}

func TestLifecycle_RunsOnceAndShutsDown(t *testing.T) {
	cfg := newScriptConfig(t)
	shutdown := make(chan error, 1)
	p, err := New(context.Background(), cfg, "test", func(err error) { shutdown <- err })
	require.NoError(t, err)

	var out bytes.Buffer
	p.out = &out

	require.NoError(t, p.Start(context.Background()))
	assert.False(t, p.Stopped())

	select {
	case err := <-shutdown:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback not called")
	}

	require.NotNil(t, p.summary)
	require.True(t, p.summary.Saved())
	rs, err := artifact.Load(p.summary.Final.JSON)
	require.NoError(t, err)
	require.Len(t, rs.Results, 1)
	assert.Equal(t, "test_abs", rs.Results[0].TestName)
	assert.Equal(t, 1200.0, rs.Results[0].AverageNs)
	assert.Equal(t, []string{"test_exp"}, rs.Metadata.FailedTestNames)
	assert.Equal(t, types.UnknownRevision, rs.Metadata.RevisionID)

	assert.Contains(t, out.String(), "Failed tests: test_exp")

	require.NoError(t, p.Stop(context.Background()))
	assert.True(t, p.Stopped())
	require.NoError(t, p.Stop(context.Background()))
}

func TestLifecycle_UploadUnavailableStillMeasures(t *testing.T) {
	cfg := newScriptConfig(t)
	cfg.Upload = true
	cfg.Uploader.Mode = "subprocess"
	cfg.Uploader.Binary = filepath.Join(t.TempDir(), "missing-perf-upload")
	cfg.Uploader.Log = cfg.Log

	p, err := New(context.Background(), cfg, "test", nil)
	require.NoError(t, err)
	p.out = &bytes.Buffer{}

	require.NoError(t, p.Start(context.Background()))
	require.True(t, p.summary.Saved())
	assert.False(t, p.summary.Uploaded)
	assert.NoError(t, p.summary.UploadErr)

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
