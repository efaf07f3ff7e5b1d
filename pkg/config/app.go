package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Cache backends.
const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

// AppConfig is the full proxy configuration.
type AppConfig struct {
	App     ApplicationConfig `yaml:"app"`
	Auth    AuthConfig        `yaml:"auth"`
	Drive   DriveConfig       `yaml:"drive"`
	Cache   CacheConfig       `yaml:"cache"`
	Gallery GalleryConfig     `yaml:"gallery"`
	News    NewsConfig        `yaml:"news"`
	Enrich  EnrichConfig      `yaml:"enrich"`
	API     APIConfig         `yaml:"api"`
}

// Validate validates the configuration.
func (c *AppConfig) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Drive.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Gallery.Validate(); err != nil {
		return err
	}
	return c.News.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  string     `yaml:"log_level"`
	PrettyLog bool       `yaml:"pretty_log"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP server listen address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds the identity provider settings. ClientSecret normally
// arrives via ${CLIENT_SECRET} expansion, never inline.
type AuthConfig struct {
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scope        string   `yaml:"scope"`
	CacheFile    string   `yaml:"cache_file"`
	SafetyMargin Duration `yaml:"safety_margin"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TokenURL, validation.Required),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ClientSecret, validation.Required),
		validation.Field(&c.CacheFile, validation.Required),
	)
}

// DriveConfig holds the remote store settings.
type DriveConfig struct {
	BaseURL      string   `yaml:"base_url"`
	LoginHost    string   `yaml:"login_host"`
	Host         string   `yaml:"host"`
	SitePath     string   `yaml:"site_path"`
	Timeout      Duration `yaml:"timeout"`
	MaxRedirects int      `yaml:"max_redirects"`
	SiteTTL      Duration `yaml:"site_ttl"`
}

// Validate validates the drive configuration.
func (c *DriveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.SitePath, validation.Required),
	)
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Backend   string `yaml:"backend"`
	Dir       string `yaml:"dir"`
	RedisAddr string `yaml:"redis_addr"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = CacheBackendFile
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(CacheBackendFile, CacheBackendRedis)),
	); err != nil {
		return err
	}
	if c.Backend == CacheBackendFile && c.Dir == "" {
		return fmt.Errorf("cache: backend is %q but dir is empty", CacheBackendFile)
	}
	if c.Backend == CacheBackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("cache: backend is %q but redis_addr is empty", CacheBackendRedis)
	}
	return nil
}

// GalleryConfig holds the gallery service settings.
type GalleryConfig struct {
	RootPath   string   `yaml:"root_path"`
	ListingTTL Duration `yaml:"listing_ttl"`
	YearsTTL   Duration `yaml:"years_ttl"`
	ContentTTL Duration `yaml:"content_ttl"`
}

// Validate validates the gallery configuration.
func (c *GalleryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RootPath, validation.Required),
	)
}

// NewsConfig holds the news service settings.
type NewsConfig struct {
	RootPath      string   `yaml:"root_path"`
	ListingTTL    Duration `yaml:"listing_ttl"`
	YearsTTL      Duration `yaml:"years_ttl"`
	DetailTTL     Duration `yaml:"detail_ttl"`
	ExcerptLength int      `yaml:"excerpt_length"`
}

// Validate validates the news configuration.
func (c *NewsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RootPath, validation.Required),
	)
}

// EnrichConfig holds the batch enrichment settings.
type EnrichConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}
