package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modrt.toml")
	assert.NilError(t, os.WriteFile(path, []byte(`
[runtime]
frame_rate = 30

[modules]
startup_list = "boot.txt"

[metrics]
interval = "5s"
`), 0o644))

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Runtime.FrameRate, 30)
	assert.Equal(t, cfg.Runtime.FrameInterval(), time.Second/30)
	assert.Equal(t, cfg.Modules.Dir, "modules")
	assert.Equal(t, cfg.Modules.StartupList, "boot.txt")
	assert.Equal(t, cfg.Metrics.Interval, 5*time.Second)
	assert.Equal(t, cfg.Metrics.Retain, time.Minute)
	assert.Assert(t, !cfg.Database.Enabled)
	assert.Equal(t, cfg.Logging.Format, "console")
}

func TestLoadReportsParseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	assert.NilError(t, os.WriteFile(path, []byte("[runtime\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "read config")
}
