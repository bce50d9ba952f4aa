package pubfront

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Fallback modes for post slugs that were not rendered ahead of time.
const (
	// FallbackPlaceholder serves a loading placeholder that fetches the
	// post once the page has loaded.
	FallbackPlaceholder = "placeholder"
	// FallbackBlocking resolves the post before responding.
	FallbackBlocking = "blocking"
)

// SiteConfig holds all configuration for a pubfront site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "spacetraveling")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Author name for JSON-LD
	Lang        string `yaml:"lang"`        // HTML lang attribute (default "pt-BR")

	Addr      string `yaml:"addr"`       // Listen address (default ":3000")
	StaticDir string `yaml:"static_dir"` // User static assets served under /public (default "public")

	APIEndpoint  string        `yaml:"api_endpoint"`   // Required: Content API endpoint, e.g. https://repo.cdn.prismic.io/api/v2
	AccessToken  string        `yaml:"access_token"`   // Content API access token
	APITimeout   time.Duration `yaml:"api_timeout"`    // Per-request timeout (default 10s)
	APIRateLimit float64       `yaml:"api_rate_limit"` // Outbound requests per second (default 10)
	APIRateBurst int           `yaml:"api_rate_burst"` // Outbound burst (default 20)

	PostType            string        `yaml:"post_type"`              // Custom type of posts (default "posts")
	ListingPageSize     int           `yaml:"listing_page_size"`      // Posts per listing page (default 1)
	StaticPathsPageSize int           `yaml:"static_paths_page_size"` // Posts rendered ahead of time (default 2)
	RevalidateInterval  time.Duration `yaml:"revalidate_interval"`    // Page revalidation interval (default 30m)
	FallbackMode        string        `yaml:"fallback_mode"`          // "placeholder" (default) or "blocking"
	DisplayTimezone     string        `yaml:"display_timezone"`       // Timezone for dates (default "America/Sao_Paulo")

	LoadMoreLimit  int           `yaml:"load_more_limit"`  // Load-more requests per IP per window (default 30)
	LoadMoreWindow time.Duration `yaml:"load_more_window"` // Load-more rate window (default 1m)

	HtmxURL string `yaml:"htmx_url"` // htmx script URL

	RevalidateSecret string `yaml:"revalidate_secret"` // Enables POST /api/revalidate when set
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "spacetraveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.Lang == "" {
		c.Lang = "pt-BR"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.APITimeout == 0 {
		c.APITimeout = 10 * time.Second
	}
	if c.APIRateLimit == 0 {
		c.APIRateLimit = 10
	}
	if c.APIRateBurst == 0 {
		c.APIRateBurst = 20
	}
	if c.PostType == "" {
		c.PostType = "posts"
	}
	if c.ListingPageSize == 0 {
		c.ListingPageSize = 1
	}
	if c.StaticPathsPageSize == 0 {
		c.StaticPathsPageSize = 2
	}
	if c.RevalidateInterval == 0 {
		c.RevalidateInterval = 30 * time.Minute
	}
	if c.FallbackMode == "" {
		c.FallbackMode = FallbackPlaceholder
	}
	if c.DisplayTimezone == "" {
		c.DisplayTimezone = "America/Sao_Paulo"
	}
	if c.LoadMoreLimit == 0 {
		c.LoadMoreLimit = 30
	}
	if c.LoadMoreWindow == 0 {
		c.LoadMoreWindow = time.Minute
	}
	if c.HtmxURL == "" {
		c.HtmxURL = "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js"
	}
}

func (c *SiteConfig) validate() error {
	if c.APIEndpoint == "" {
		return fmt.Errorf("pubfront: APIEndpoint is required")
	}
	switch c.FallbackMode {
	case FallbackPlaceholder, FallbackBlocking:
	default:
		return fmt.Errorf("pubfront: unknown fallback mode %q", c.FallbackMode)
	}
	if c.ListingPageSize < 1 || c.StaticPathsPageSize < 1 {
		return fmt.Errorf("pubfront: page sizes must be positive")
	}
	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		return fmt.Errorf("pubfront: display timezone: %w", err)
	}
	return nil
}

// ConfigFromEnv builds a SiteConfig from environment variables. Unset
// variables keep their zero value and get defaults when the App starts.
func ConfigFromEnv() SiteConfig {
	return SiteConfig{
		Name:                os.Getenv("SITE_NAME"),
		URL:                 os.Getenv("SITE_URL"),
		Description:         os.Getenv("SITE_DESCRIPTION"),
		Author:              os.Getenv("SITE_AUTHOR"),
		Lang:                os.Getenv("SITE_LANG"),
		Addr:                os.Getenv("ADDR"),
		StaticDir:           os.Getenv("STATIC_DIR"),
		APIEndpoint:         os.Getenv("PRISMIC_API_ENDPOINT"),
		AccessToken:         os.Getenv("PRISMIC_ACCESS_TOKEN"),
		APITimeout:          envDuration("PRISMIC_TIMEOUT"),
		APIRateLimit:        envFloat("PRISMIC_RATE_LIMIT"),
		APIRateBurst:        envInt("PRISMIC_RATE_BURST"),
		PostType:            os.Getenv("POST_TYPE"),
		ListingPageSize:     envInt("LISTING_PAGE_SIZE"),
		StaticPathsPageSize: envInt("STATIC_PATHS_PAGE_SIZE"),
		RevalidateInterval:  envDuration("REVALIDATE_INTERVAL"),
		FallbackMode:        os.Getenv("FALLBACK_MODE"),
		DisplayTimezone:     os.Getenv("DISPLAY_TIMEZONE"),
		LoadMoreLimit:       envInt("LOAD_MORE_LIMIT"),
		LoadMoreWindow:      envDuration("LOAD_MORE_WINDOW"),
		HtmxURL:             os.Getenv("HTMX_URL"),
		RevalidateSecret:    os.Getenv("REVALIDATE_SECRET"),
	}
}

// LoadConfigFile overlays the YAML file at path onto cfg. Keys absent from
// the file leave cfg unchanged.
func LoadConfigFile(path string, cfg *SiteConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("pubfront: read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("pubfront: parse config %s: %w", path, err)
	}
	return nil
}

func envInt(key string) int {
	n, _ := strconv.Atoi(os.Getenv(key))
	return n
}

func envFloat(key string) float64 {
	f, _ := strconv.ParseFloat(os.Getenv(key), 64)
	return f
}

func envDuration(key string) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	return d
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithContentSource replaces the Content API client built from the config.
func WithContentSource(src ContentSource) Option {
	return func(a *App) {
		a.Content = src
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) {
		a.Registry = reg
	}
}
