package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/sanctions-engine/internal/secrets"
	"github.com/pdiddy/sanctions-engine/internal/store"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	configureEnv()
	loadedSecrets = nil
	t.Cleanup(viper.Reset)
}

func TestLoadConfigDefaults(t *testing.T) {
	resetConfig(t)
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "BIDV", cfg.Auth.Username)
	assert.Equal(t, "CSCV123", cfg.Auth.Password)
	assert.Equal(t, types.DefaultGeminiModel, cfg.Extraction.Model)
	assert.Equal(t, "data", cfg.Store.DataDir)
	assert.Empty(t, cfg.Extraction.APIKey)
}

func TestLoadConfigEnvironment(t *testing.T) {
	resetConfig(t)
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("SANCTIONS_ENGINE_DATA_DIR", "/srv/sanctions")
	t.Setenv("SANCTIONS_ENGINE_SERVER_ADDR", ":9090")
	t.Setenv("SANCTIONS_ENGINE_AUTH_SESSION_TTL", "30m")
	t.Setenv("SANCTIONS_ENGINE_SCHEDULER_ENABLED", "true")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Extraction.APIKey)
	assert.Equal(t, "/srv/sanctions", cfg.DataDir)
	assert.Equal(t, "/srv/sanctions", cfg.Extraction.DataDir)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionTTL)
	assert.True(t, cfg.Scheduler.Enabled)
}

func TestLoadConfigSecrets(t *testing.T) {
	resetConfig(t)
	dir := t.TempDir()
	for name, value := range map[string]string{
		secrets.GeminiAPIKey:  "secret-key\n",
		secrets.AdminPassword: "s3cret",
		secrets.SessionKey:    "signing",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(value), 0o600))
	}
	s, err := secrets.Load(dir)
	require.NoError(t, err)
	loadedSecrets = s

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.Extraction.APIKey)
	assert.Equal(t, "s3cret", cfg.Auth.Password)
	assert.Equal(t, "signing", cfg.Auth.SigningKey)

	t.Setenv("GEMINI_API_KEY", "env-wins")
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "env-wins", cfg.Extraction.APIKey)
}

func TestLoadConfigFile(t *testing.T) {
	resetConfig(t)
	path := filepath.Join(t.TempDir(), "sanctions-engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
concurrency: 5
extraction:
  model: gemini-2.5-flash
un:
  lookback_days: 7
screening:
  threshold: 0.9
`), 0o644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, "gemini-2.5-flash", cfg.Extraction.Model)
	assert.Equal(t, 7, cfg.UN.LookbackDays)
	assert.InDelta(t, 0.9, cfg.Screening.Threshold, 1e-9)
}

func TestQueryOptsFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "retrieve"}
	addFilterFlags(cmd, "limit")
	require.NoError(t, cmd.Flags().Parse([]string{"--type", "Entity", "--source", "OFAC", "--limit", "5"}))

	opts := queryOptsFromFlags(cmd, []string{"sea", "breeze"})
	assert.Equal(t, store.QueryOptions{
		Query:      "sea breeze",
		Type:       types.TypeEntity,
		Source:     "OFAC",
		MaxResults: 5,
	}, opts)

	require.NoError(t, cmd.Flags().Set("query", "explicit"))
	assert.Equal(t, "explicit", queryOptsFromFlags(cmd, []string{"ignored"}).Query)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "Nguyễn ...", truncate("Nguyễn Văn An", 10))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, types.Summary{
		TotalRecords:      4,
		FilesProcessed:    2,
		DuplicatesRemoved: 1,
		DataSources:       2,
		RecordsBySource:   map[string]int{"b.pdf": 1, "OFAC_API": 3},
		ByType:            map[string]int{"Individual": 4},
	}, []types.FileFailure{{FileName: "c.pdf", Stage: "import", Error: "file is not a PDF"}})

	out := buf.String()
	assert.Contains(t, out, "Total records        4")
	assert.Contains(t, out, "Duplicates removed   1")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("OFAC_API")), bytes.Index(buf.Bytes(), []byte("b.pdf")))
	assert.NotContains(t, out, "By watchlist")
	assert.Contains(t, out, "c.pdf [import]: file is not a PDF")
}
