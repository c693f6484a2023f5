// Package config loads and validates hotterms configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/hotterms/internal/fallback"
	"github.com/JakeFAU/hotterms/internal/source"
)

// Storage backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// ErrConfigPathRequired is returned when Load is called without a path.
var ErrConfigPathRequired = errors.New("config path is required")

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	HotSearchAPI HotSearchAPIConfig `mapstructure:"hotsearchapi"`
	Fetch        FetchConfig        `mapstructure:"fetch"`
	Router       RouterConfig       `mapstructure:"router"`
	Fallback     FallbackConfig     `mapstructure:"fallback"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Storage      StorageConfig      `mapstructure:"storage"`
	PubSub       PubSubConfig       `mapstructure:"pubsub"`
}

// HotSearchAPIConfig enables the per-account custom endpoints.
type HotSearchAPIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"baseurl"`
}

// FetchConfig tunes the source fetcher.
type FetchConfig struct {
	UserAgent     string        `mapstructure:"user_agent"`
	APITimeout    time.Duration `mapstructure:"api_timeout"`
	ScrapeTimeout time.Duration `mapstructure:"scrape_timeout"`
}

// RouterConfig governs custom endpoint querying.
type RouterConfig struct {
	EndpointDelay time.Duration `mapstructure:"endpoint_delay"`
	Concurrency   int           `mapstructure:"concurrency"`
	Rule          RuleConfig    `mapstructure:"rule"`
}

// RuleConfig is the JSON extraction rule for custom endpoint responses.
type RuleConfig struct {
	ItemsPath  string `mapstructure:"items_path"`
	TitleField string `mapstructure:"title_field"`
	StatusPath string `mapstructure:"status_path"`
	StatusOK   string `mapstructure:"status_ok"`
}

// ToRule converts the config into a source.Rule.
func (r RuleConfig) ToRule() source.Rule {
	return source.Rule{
		ItemsPath:  r.ItemsPath,
		TitleField: r.TitleField,
		StatusPath: r.StatusPath,
		StatusOK:   r.StatusOK,
	}
}

// FallbackConfig lists the fallback sources. Leaving Sources unset selects the
// built-in public sources; an explicit empty list disables the pool.
type FallbackConfig struct {
	Sources []SourceConfig `mapstructure:"sources"`
}

// SourceConfig describes one fallback source.
type SourceConfig struct {
	Name       string `mapstructure:"name"`
	Kind       string `mapstructure:"kind"`
	URL        string `mapstructure:"url"`
	ItemsPath  string `mapstructure:"items_path"`
	TitleField string `mapstructure:"title_field"`
	StatusPath string `mapstructure:"status_path"`
	StatusOK   string `mapstructure:"status_ok"`
	Selector   string `mapstructure:"selector"`
}

// ToSource converts the config into a source.Source.
func (s SourceConfig) ToSource() source.Source {
	return source.Source{
		Name: s.Name,
		Kind: source.Kind(s.Kind),
		URL:  s.URL,
		Rule: source.Rule{
			ItemsPath:  s.ItemsPath,
			TitleField: s.TitleField,
			StatusPath: s.StatusPath,
			StatusOK:   s.StatusOK,
			Selector:   s.Selector,
		},
	}
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig configures the optional Pushgateway push at the end of a run.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// StorageConfig selects where term files are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds metadata for run summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether run summaries should be published.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.Topic != ""
}

// Load builds a Config from disk and environment. The file must exist; a
// path without an extension is read as JSON.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, ErrConfigPathRequired
	}

	v := viper.New()
	v.SetEnvPrefix("HOTTERMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if v.IsSet("fallback.sources") && cfg.Fallback.Sources == nil {
		cfg.Fallback.Sources = []SourceConfig{}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hotsearchapi.enabled", false)
	v.SetDefault("hotsearchapi.baseurl", "")
	v.SetDefault("fetch.user_agent", source.DefaultUserAgent)
	v.SetDefault("fetch.api_timeout", source.DefaultAPITimeout)
	v.SetDefault("fetch.scrape_timeout", source.DefaultScrapeTimeout)
	v.SetDefault("router.endpoint_delay", time.Second)
	v.SetDefault("router.concurrency", 1)
	v.SetDefault("router.rule.items_path", "data")
	v.SetDefault("router.rule.title_field", "title")
	v.SetDefault("router.rule.status_path", "code")
	v.SetDefault("router.rule.status_ok", "200")
	v.SetDefault("logging.development", false)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "hotterms")
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HotSearchAPI.Enabled && strings.TrimSpace(c.HotSearchAPI.BaseURL) == "" {
		return fmt.Errorf("hotSearchApi.baseUrl must be set when hotSearchApi.enabled is true")
	}
	if c.Fetch.APITimeout <= 0 {
		return fmt.Errorf("fetch.api_timeout must be > 0")
	}
	if c.Fetch.ScrapeTimeout <= 0 {
		return fmt.Errorf("fetch.scrape_timeout must be > 0")
	}
	if c.Router.EndpointDelay < 0 {
		return fmt.Errorf("router.endpoint_delay must be >= 0")
	}
	if c.Router.Concurrency <= 0 {
		return fmt.Errorf("router.concurrency must be > 0")
	}
	switch c.Storage.Backend {
	case BackendLocal, BackendMemory:
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is %q", BackendGCS)
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of local, gcs, memory", c.Storage.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	for i, sc := range c.Fallback.Sources {
		if err := sc.ToSource().Validate(); err != nil {
			return fmt.Errorf("fallback.sources[%d]: %w", i, err)
		}
	}
	return nil
}

// FallbackSources returns the configured fallback sources, or the built-in
// defaults when the list is unset. An explicit empty list yields an empty
// non-nil slice.
func (c Config) FallbackSources() []source.Source {
	if c.Fallback.Sources == nil {
		return fallback.DefaultSources()
	}
	out := make([]source.Source, 0, len(c.Fallback.Sources))
	for _, sc := range c.Fallback.Sources {
		out = append(out, sc.ToSource())
	}
	return out
}

// FetcherConfig converts the fetch section into a source.Config.
func (c Config) FetcherConfig() source.Config {
	return source.Config{
		UserAgent:     c.Fetch.UserAgent,
		APITimeout:    c.Fetch.APITimeout,
		ScrapeTimeout: c.Fetch.ScrapeTimeout,
	}
}
