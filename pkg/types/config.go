package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// ConversionBackend identifies the PDF conversion tool.
type ConversionBackend string

const (
	BackendMarkitdown ConversionBackend = "markitdown"
	BackendPDFText    ConversionBackend = "pdftext"
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// Backend selects the conversion tool: markitdown or pdftext.
	Backend ConversionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Image is the container image used by the markitdown backend.
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// DataDir is the base directory for documents (contains raw/, markdown/).
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "gemini-2.5-pro").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// ExtractionConfig holds settings for the extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// DataDir is the base directory for documents (contains markdown/, extracted/).
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
}

// OFACConfig holds settings for the OFAC delta list client.
type OFACConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URL is the delta file endpoint.
	URL string `json:"url" yaml:"url" mapstructure:"url"`
}

// UNConfig holds settings for the UN Security Council consolidated list client.
type UNConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// PageURL is the page that links to the XML download.
	PageURL string `json:"page_url" yaml:"page_url" mapstructure:"page_url"`

	// LookbackDays is how many days before the generation date still count as
	// new listings (default 1).
	LookbackDays int `json:"lookback_days" yaml:"lookback_days" mapstructure:"lookback_days"`
}

// StoreConfig holds settings for the SQLite record store.
type StoreConfig struct {
	// DataDir is the base directory (contains index/).
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// MaxResults is the default maximum number of query results (default 50).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// ScreeningConfig holds settings for fuzzy name screening.
type ScreeningConfig struct {
	// Threshold is the minimum similarity that counts as a match (default 0.88).
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`

	// CacheSize bounds the number of cached screening results (default 4096).
	CacheSize int `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`

	// CacheTTL is how long a cached result stays valid (default 1h).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// AuthConfig holds the operator credentials and session settings.
type AuthConfig struct {
	Username   string        `json:"username" yaml:"username" mapstructure:"username"`
	Password   string        `json:"-" yaml:"-" mapstructure:"password"`
	SigningKey string        `json:"-" yaml:"-" mapstructure:"signing_key"`
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl" mapstructure:"session_ttl"`
}

// ServerConfig holds settings for the web application.
type ServerConfig struct {
	Addr        string `json:"addr" yaml:"addr" mapstructure:"addr"`
	MaxUploadMB int64  `json:"max_upload_mb" yaml:"max_upload_mb" mapstructure:"max_upload_mb"`

	// SecureCookies marks the session cookie Secure (enable behind TLS).
	SecureCookies bool `json:"secure_cookies" yaml:"secure_cookies" mapstructure:"secure_cookies"`
}

// SchedulerConfig holds settings for periodic list refreshes.
type SchedulerConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	RefreshCron string `json:"refresh_cron" yaml:"refresh_cron" mapstructure:"refresh_cron"`
	RunOnStart  bool   `json:"run_on_start" yaml:"run_on_start" mapstructure:"run_on_start"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	DataDir     string           `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Concurrency int              `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
	Conversion  ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Extraction  ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	OFAC        OFACConfig       `json:"ofac" yaml:"ofac" mapstructure:"ofac"`
	UN          UNConfig         `json:"un" yaml:"un" mapstructure:"un"`
	Store       StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Screening   ScreeningConfig  `json:"screening" yaml:"screening" mapstructure:"screening"`
	Auth        AuthConfig       `json:"auth" yaml:"auth" mapstructure:"auth"`
	Server      ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Scheduler   SchedulerConfig  `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
	Log         LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}

// Default endpoint and model values.
const (
	DefaultGeminiModel = "gemini-2.5-pro"
	DefaultOFACURL     = "https://sanctionslistservice.ofac.treas.gov/changes/latest"
	DefaultUNPageURL   = "https://main.un.org/securitycouncil/en/content/un-sc-consolidated-list"
	DefaultUserAgent   = "sanctions-engine/0.1"

	// BrowserUserAgent is sent to the UN site, which rejects unknown agents.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Defaults fills zero values with the documented defaults and propagates
// DataDir into the stage configs that have none of their own.
func (c *PipelineConfig) Defaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}

	if c.Conversion.Backend == "" {
		c.Conversion.Backend = BackendMarkitdown
	}
	if c.Conversion.Image == "" {
		c.Conversion.Image = "markitdown:latest"
	}
	if c.Conversion.DataDir == "" {
		c.Conversion.DataDir = c.DataDir
	}

	if c.Extraction.Model == "" {
		c.Extraction.Model = DefaultGeminiModel
	}
	if c.Extraction.MaxRetries <= 0 {
		c.Extraction.MaxRetries = 3
	}
	if c.Extraction.DataDir == "" {
		c.Extraction.DataDir = c.DataDir
	}

	if c.OFAC.URL == "" {
		c.OFAC.URL = DefaultOFACURL
	}
	if c.OFAC.Timeout <= 0 {
		c.OFAC.Timeout = 30 * time.Second
	}
	if c.OFAC.UserAgent == "" {
		c.OFAC.UserAgent = DefaultUserAgent
	}

	if c.UN.PageURL == "" {
		c.UN.PageURL = DefaultUNPageURL
	}
	if c.UN.Timeout <= 0 {
		c.UN.Timeout = 60 * time.Second
	}
	if c.UN.UserAgent == "" {
		c.UN.UserAgent = BrowserUserAgent
	}
	if c.UN.LookbackDays <= 0 {
		c.UN.LookbackDays = 1
	}

	if c.Store.DataDir == "" {
		c.Store.DataDir = c.DataDir
	}
	if c.Store.MaxResults <= 0 {
		c.Store.MaxResults = 50
	}

	if c.Screening.Threshold <= 0 {
		c.Screening.Threshold = 0.88
	}
	if c.Screening.CacheSize <= 0 {
		c.Screening.CacheSize = 4096
	}
	if c.Screening.CacheTTL <= 0 {
		c.Screening.CacheTTL = time.Hour
	}

	if c.Auth.Username == "" {
		c.Auth.Username = "BIDV"
	}
	if c.Auth.Password == "" {
		c.Auth.Password = "CSCV123"
	}
	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = 8 * time.Hour
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 50
	}

	if c.Scheduler.RefreshCron == "" {
		c.Scheduler.RefreshCron = "0 6 * * *"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
