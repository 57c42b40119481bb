package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/galdr/internal/deriver"
	"github.com/starford/galdr/internal/gallery"
	"github.com/starford/galdr/internal/sitemap"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Gallery GalleryConfig     `yaml:"gallery"`
	Assets  AssetsConfig      `yaml:"assets"`
	Ledger  LedgerConfig      `yaml:"ledger"`
	Cache   CacheConfig       `yaml:"cache"`
	Auth    AuthConfig        `yaml:"auth"`
	Site    SiteConfig        `yaml:"site"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Gallery.Validate(); err != nil {
		return err
	}
	if err := c.Assets.Validate(); err != nil {
		return err
	}
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// CORSOrigins lists allowed origins; empty allows any.
	CORSOrigins []string `yaml:"cors_origins"`
	// RateLimit caps API requests per client IP per minute; 0 disables it.
	RateLimit int `yaml:"rate_limit"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.RateLimit, validation.Min(0)),
	)
}

// GalleryConfig locates the item folders and controls assembly.
type GalleryConfig struct {
	Path string `yaml:"path"`
	// AssetsPath is a directory of loose images referenced by legacy
	// records. Optional.
	AssetsPath   string `yaml:"assets_path"`
	MediaPrefix  string `yaml:"media_prefix"`
	AssetsPrefix string `yaml:"assets_prefix"`
	Order        string `yaml:"order"`
	Watch        bool   `yaml:"watch"`
	// Debounce is the quiet period before the watcher reloads.
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the gallery configuration.
func (c *GalleryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Order, validation.In(gallery.OrderNumeric, gallery.OrderLexical, gallery.OrderInsertion)),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// Options returns the assembly options described by c.
func (c *GalleryConfig) Options() (gallery.Options, error) {
	order, err := gallery.ParseOrder(c.Order)
	if err != nil {
		return gallery.Options{}, err
	}
	return gallery.Options{
		Order:        order,
		MediaPrefix:  c.MediaPrefix,
		AssetsDir:    c.AssetsPath,
		AssetsPrefix: c.AssetsPrefix,
	}, nil
}

// AssetsConfig controls derivation.
type AssetsConfig struct {
	Mode               string  `yaml:"mode"`
	Processor          string  `yaml:"processor"`
	Widths             []int   `yaml:"widths"`
	PlaceholderWidth   int     `yaml:"placeholder_width"`
	PlaceholderBlur    float64 `yaml:"placeholder_blur"`
	PlaceholderQuality int     `yaml:"placeholder_quality"`
	VariantQuality     int     `yaml:"variant_quality"`
	// Workers caps concurrent items; 0 sizes the pool from available CPUs.
	Workers int `yaml:"workers"`
}

// Validate validates the assets configuration.
func (c *AssetsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(string(deriver.ModeFull), string(deriver.ModeFallback), string(deriver.ModeAuto))),
		validation.Field(&c.Processor, validation.In(deriver.ProcessorImaging, deriver.ProcessorVips, deriver.ProcessorNone)),
		validation.Field(&c.Widths, validation.Each(validation.Min(1))),
		validation.Field(&c.PlaceholderWidth, validation.Min(0), validation.Max(256)),
		validation.Field(&c.PlaceholderQuality, validation.Min(0), validation.Max(100)),
		validation.Field(&c.VariantQuality, validation.Min(0), validation.Max(100)),
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

// LedgerConfig locates the SQLite derivation ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// CacheConfig controls the query result cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SiteConfig describes the public site for sitemap generation.
type SiteConfig struct {
	// URL is the absolute site origin. When empty, /sitemap.xml uses the
	// request host.
	URL         string   `yaml:"url"`
	StaticPaths []string `yaml:"static_paths"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:      8080,
				RateLimit: 600,
			},
		},
		Gallery: GalleryConfig{
			Path:         "./gallery",
			MediaPrefix:  gallery.DefaultMediaPrefix,
			AssetsPrefix: gallery.DefaultAssetsPrefix,
			Order:        gallery.OrderNumeric,
			Watch:        true,
			Debounce:     gallery.DefaultDebounce,
		},
		Assets: AssetsConfig{
			Mode:               string(deriver.ModeAuto),
			Processor:          deriver.ProcessorImaging,
			Widths:             append([]int(nil), deriver.DefaultWidths...),
			PlaceholderWidth:   deriver.DefaultPlaceholderWidth,
			PlaceholderBlur:    deriver.DefaultPlaceholderBlur,
			PlaceholderQuality: deriver.DefaultPlaceholderQuality,
			VariantQuality:     deriver.DefaultVariantQuality,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "./galdr.db",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Site: SiteConfig{
			StaticPaths: append([]string(nil), sitemap.DefaultStaticPaths...),
		},
	}
}
