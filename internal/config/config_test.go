package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/distance/internal/ingest"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"dns", "lan"}, cfg.Profiles)
	assert.Equal(t, ingest.PolicySkip, cfg.Policy())
	assert.Equal(t, time.Second, cfg.ProgressInterval)
	assert.Equal(t, DecoderTshark, cfg.Decoder.Kind)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Overlay(t *testing.T) {
	cfg, err := Parse([]byte(`
profiles: [dns]
row_policy: abort
timeout: 2m30s
parallelism: 4
max_firings: 100000
database: runs.db
decoder:
  kind: tsv
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"dns"}, cfg.Profiles)
	assert.Equal(t, ingest.PolicyAbort, cfg.Policy())
	assert.Equal(t, 150*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, 100000, cfg.MaxFirings)
	assert.Equal(t, "runs.db", cfg.Database)
	assert.Equal(t, DecoderTSV, cfg.Decoder.Kind)
	assert.Equal(t, ingest.DefaultTshark, cfg.Decoder.TsharkPath, "unset keys keep their default")
	assert.Equal(t, time.Second, cfg.ProgressInterval)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("profile: [dns]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile")
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Profiles = []string{"dns", "dns"}
	cfg.RowPolicy = "retry"
	cfg.Timeout = -time.Second
	cfg.Parallelism = 500
	cfg.MaxFirings = -1
	cfg.ProgressInterval = 0
	cfg.Decoder.Kind = "pcapng"

	err := cfg.Validate()
	require.Error(t, err)
	for _, key := range []string{"profiles", "row_policy", "timeout", "parallelism", "max_firings", "progress_interval", "decoder.kind"} {
		assert.Contains(t, err.Error(), key+":")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "distance.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_dir: out\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutputDir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
