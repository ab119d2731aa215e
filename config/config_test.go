package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plprobelab/go-kadtable/kaderr"
)

func TestConfigValidate(t *testing.T) {
	t.Run("default is valid", func(t *testing.T) {
		require.NoError(t, Default().Validate())
	})

	t.Run("k positive", func(t *testing.T) {
		cfg := Default()
		cfg.BucketSize = 0
		require.Error(t, cfg.Validate())
	})

	t.Run("replacement cache size not negative", func(t *testing.T) {
		cfg := Default()
		cfg.ReplacementCacheSize = -1
		require.Error(t, cfg.Validate())
	})

	t.Run("stale positive", func(t *testing.T) {
		cfg := Default()
		cfg.StaleThreshold = 0
		require.Error(t, cfg.Validate())
	})

	t.Run("timings positive", func(t *testing.T) {
		cfg := Default()
		cfg.RestoreInterval = 0
		require.Error(t, cfg.Validate())

		cfg = Default()
		cfg.ResponseTimeout = -time.Second
		require.Error(t, cfg.Validate())
	})

	t.Run("operation timeout covers response timeout", func(t *testing.T) {
		cfg := Default()
		cfg.OperationTimeout = time.Second
		var cerr *kaderr.ConfigurationError
		require.True(t, errors.As(cfg.Validate(), &cerr))
		require.Equal(t, "NodeConfig", cerr.Component)
	})

	t.Run("max concurrent messages positive", func(t *testing.T) {
		cfg := Default()
		cfg.MaxConcurrentMessages = 0
		require.Error(t, cfg.Validate())
	})
}

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
k: 20
stale: 3
response_timeout: 500ms
`))
	require.NoError(t, err)
	require.Equal(t, 20, cfg.BucketSize)
	require.Equal(t, 3, cfg.StaleThreshold)
	require.Equal(t, 500*time.Millisecond, cfg.ResponseTimeout)

	// unset options keep their default
	require.Equal(t, 3, cfg.ReplacementCacheSize)
	require.Equal(t, time.Minute, cfg.RestoreInterval)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	_, err := Parse(strings.NewReader("bucket_size: 3\n"))
	require.Error(t, err)

	_, err = Parse(strings.NewReader("k: 0\n"))
	var cerr *kaderr.ConfigurationError
	require.True(t, errors.As(err, &cerr))
}

func TestWriteLoad(t *testing.T) {
	cfg := Default()
	cfg.BucketSize = 8
	cfg.Testing = true

	var buf bytes.Buffer
	require.NoError(t, cfg.Write(&buf))
	require.Contains(t, buf.String(), "restore_interval: 1m0s")

	path := filepath.Join(t.TempDir(), "kad.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRoutingConfig(t *testing.T) {
	cfg := Default()
	cfg.BucketSize = 20

	clk := clock.NewMock()
	rcfg := cfg.RoutingConfig(clk, zap.NewNop(), nil)
	require.NoError(t, rcfg.Validate())
	require.Equal(t, 20, rcfg.BucketSize)
	require.Equal(t, 3, rcfg.ReplacementCacheSize)
	require.Equal(t, 1, rcfg.StaleThreshold)
	require.Equal(t, clk, rcfg.Clock)
}
