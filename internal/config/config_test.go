package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mapleads/mapleads/internal/scrape"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "data", cfg.Pipeline.DataDir)
	require.True(t, cfg.Browser.Headless)
	require.Equal(t, 100, cfg.Browser.RestartEvery)
	require.Equal(t, 30*time.Second, cfg.Stage.ItemTimeout)
	require.Equal(t, 3, cfg.Stage.RetryAttempts)
	require.Equal(t, 2*time.Second, cfg.Stage.RetryDelay)
	require.Equal(t, 2, cfg.Search.MaxStaleScrolls)
	require.Equal(t, 30, cfg.Search.MaxScrolls)
	require.Equal(t, 25*time.Second, cfg.Enrich.SiteBudget)
	require.Equal(t, 0, cfg.Scoring.MinScore)
	require.Contains(t, cfg.Enrich.ContactPaths, "impressum")
	require.Equal(t, "", cfg.Enrich.ContactPaths[0], "homepage is probed first")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
pipeline:
  data_dir: /tmp/leads
stage:
  item_timeout: 45s
scoring:
  min_score: 2
telegram:
  bot_token: tok
  chat_id: "42"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/leads", cfg.Pipeline.DataDir)
	require.Equal(t, 45*time.Second, cfg.Stage.ItemTimeout)
	require.Equal(t, 2, cfg.Scoring.MinScore)
	require.Equal(t, "tok", cfg.Telegram.BotToken)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MAPLEADS_PIPELINE_DATA_DIR", "/srv/leads")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/srv/leads", cfg.Pipeline.DataDir)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Pipeline.DataDir = ""
	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, scrape.IsConfigError(err))

	cfg = base()
	cfg.Stage.RetryAttempts = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Telegram.BotToken = "tok"
	require.Error(t, cfg.Validate(), "chat_id missing")

	cfg = base()
	cfg.Archive.Enabled = true
	require.Error(t, cfg.Validate(), "archive destination missing")
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.True(t, scrape.IsConfigError(err))
}
