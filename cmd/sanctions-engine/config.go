package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/sanctions-engine/internal/convert"
	"github.com/pdiddy/sanctions-engine/internal/extract"
	"github.com/pdiddy/sanctions-engine/internal/metrics"
	"github.com/pdiddy/sanctions-engine/internal/ofac"
	"github.com/pdiddy/sanctions-engine/internal/pipeline"
	"github.com/pdiddy/sanctions-engine/internal/secrets"
	"github.com/pdiddy/sanctions-engine/internal/store"
	"github.com/pdiddy/sanctions-engine/internal/un"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// envKeys are config keys settable through SANCTIONS_ENGINE_* variables.
// AutomaticEnv only resolves keys viper already knows, so Unmarshal needs
// them bound up front.
var envKeys = []string{
	"data_dir",
	"concurrency",
	"conversion.backend",
	"conversion.image",
	"extraction.model",
	"extraction.max_retries",
	"ofac.url",
	"un.page_url",
	"un.lookback_days",
	"store.max_results",
	"screening.threshold",
	"auth.username",
	"auth.password",
	"auth.signing_key",
	"auth.session_ttl",
	"server.addr",
	"server.max_upload_mb",
	"server.secure_cookies",
	"scheduler.enabled",
	"scheduler.refresh_cron",
	"scheduler.run_on_start",
	"log.level",
	"log.format",
}

func configureEnv() {
	viper.SetEnvPrefix("SANCTIONS_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, k := range envKeys {
		_ = viper.BindEnv(k)
	}
	_ = viper.BindEnv("extraction.api_key", "SANCTIONS_ENGINE_EXTRACTION_API_KEY", "GEMINI_API_KEY")
}

// logConfig reads only the log settings so the logger exists before the
// full config is resolved.
func logConfig() types.LogConfig {
	return types.LogConfig{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
	}
}

// loadConfig unmarshals the viper settings, fills credentials from the
// secrets directory and applies defaults.
func loadConfig() (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	cfg.Extraction.APIKey = loadedSecrets.Resolve(cfg.Extraction.APIKey, "", secrets.GeminiAPIKey)
	cfg.Auth.Password = loadedSecrets.Resolve(cfg.Auth.Password, "", secrets.AdminPassword)
	cfg.Auth.SigningKey = loadedSecrets.Resolve(cfg.Auth.SigningKey, "", secrets.SessionKey)

	cfg.Defaults()
	return cfg, nil
}

// newConverter builds the configured converter. When the markitdown
// container cannot run here, it falls back to pdftext.
func newConverter(cfg types.ConversionConfig) (convert.Converter, error) {
	c, err := convert.New(cfg)
	if err == nil {
		return c, nil
	}
	if cfg.Backend != types.BackendMarkitdown {
		return nil, err
	}
	logger.Warn("markitdown unavailable, using pdftext converter", "error", err)
	return convert.PDFTextConverter{}, nil
}

// newBackend returns the Gemini backend, or nil when no API key is set.
func newBackend(ctx context.Context, cfg types.ExtractionConfig) (extract.AIBackend, error) {
	if cfg.APIKey == "" {
		logger.Warn("Gemini API key not configured; extraction disabled")
		return nil, nil
	}
	return extract.NewGeminiBackend(ctx, cfg.AIConfig)
}

// app bundles the collaborators shared by the subcommands.
type app struct {
	cfg     types.PipelineConfig
	conv    convert.Converter
	backend extract.AIBackend
	store   *store.Store
	svc     *pipeline.Service
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("closing store", "error", err)
	}
}

// newApp loads the config and wires the pipeline service.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	conv, err := newConverter(cfg.Conversion)
	if err != nil {
		return nil, err
	}
	backend, err := newBackend(ctx, cfg.Extraction)
	if err != nil {
		return nil, err
	}

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Converter: conv,
		Backend:   backend,
		OFAC:      ofac.NewClient(cfg.OFAC, cfg.DataDir),
		UN:        un.NewClient(cfg.UN, cfg.DataDir),
		Store:     st,
		Metrics:   metrics.New(),
		Logger:    logger,
	}
	svc, err := pipeline.New(cfg, deps)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &app{cfg: cfg, conv: conv, backend: backend, store: st, svc: svc}, nil
}
