package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PaperSize is a PDF page format in millimetres.
type PaperSize struct {
	Width  float64 `yaml:"width" validate:"gt=0"`
	Height float64 `yaml:"height" validate:"gt=0"`
}

// Config is the complete runtime configuration. It is built once at startup and
// passed explicitly to every component.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Resume struct {
		SiteURL             string   `yaml:"site_url" validate:"required,url"`
		LocalizedLanguages  []string `yaml:"localized_languages"`
		ContainerSelector   string   `yaml:"container_selector" validate:"required"`
		ThemeToggleSelector string   `yaml:"theme_toggle_selector" validate:"required"`
		RemoveSelectors     []string `yaml:"remove_selectors"`
		ViewportWidth       int64    `yaml:"viewport_width" validate:"gt=0"`
		ViewportHeight      int64    `yaml:"viewport_height" validate:"gt=0"`
	} `yaml:"resume"`

	PDF struct {
		DefaultPaper    string               `yaml:"default_paper" validate:"required"`
		PaperSizes      map[string]PaperSize `yaml:"paper_sizes" validate:"required,dive"`
		TimeoutSecs     int                  `yaml:"timeout_secs" validate:"gt=0"`
		ChromePath      string               `yaml:"chrome_path"`
		ChromeNoSandbox bool                 `yaml:"chrome_no_sandbox"`
		UserDataDir     string               `yaml:"user_data_dir"`
	} `yaml:"pdf"`

	Storage struct {
		Bucket             string        `yaml:"bucket" validate:"required"`
		Region             string        `yaml:"region" validate:"required"`
		AccessKeyID        string        `yaml:"access_key_id"`
		SecretAccessKey    string        `yaml:"secret_access_key"`
		Endpoint           string        `yaml:"endpoint" validate:"omitempty,url"`
		UsePathStyle       bool          `yaml:"use_path_style"`
		DefaultKey         string        `yaml:"default_key" validate:"required"`
		URLExpiry          time.Duration `yaml:"url_expiry" validate:"gt=0"`
		AbortOnUploadError bool          `yaml:"abort_on_upload_error"`
	} `yaml:"storage"`

	Cache struct {
		RenderCacheEnabled bool          `yaml:"render_cache_enabled"`
		RenderCacheTTL     time.Duration `yaml:"render_cache_ttl"`
		RedisHost          string        `yaml:"redis_host"`
		RateLimitDB        int           `yaml:"redis_rate_db"`
		RenderCacheDB      int           `yaml:"redis_render_db"`
	} `yaml:"cache"`

	RateLimiter struct {
		Interval  time.Duration `yaml:"interval"`
		UserLimit int           `yaml:"user_limit" validate:"gte=0"`
	} `yaml:"rate_limiter"`

	Warmer struct {
		Delay time.Duration `yaml:"delay"`
	} `yaml:"warmer"`
}

var validate = validator.New()

// DefaultConfig returns the built-in configuration every source is layered on.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":8080"

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 7

	cfg.Resume.LocalizedLanguages = []string{"br"}
	cfg.Resume.ContainerSelector = "#area-cv"
	cfg.Resume.ThemeToggleSelector = "#theme-button"
	cfg.Resume.RemoveSelectors = []string{
		".language-toggle-container",
		"#tsparticles",
		"#resume__generate",
		"#theme-button",
		"#snow-button",
	}
	cfg.Resume.ViewportWidth = 970
	cfg.Resume.ViewportHeight = 955

	cfg.PDF.DefaultPaper = "default"
	cfg.PDF.PaperSizes = map[string]PaperSize{
		"default": {Width: 405, Height: 240},
		"br":      {Width: 418, Height: 240},
	}
	cfg.PDF.TimeoutSecs = 60
	cfg.PDF.ChromeNoSandbox = true

	cfg.Storage.DefaultKey = "Curriculum.pdf"
	cfg.Storage.URLExpiry = 3600 * time.Second
	cfg.Storage.AbortOnUploadError = true

	cfg.Cache.RenderCacheTTL = 10 * time.Minute
	cfg.Cache.RenderCacheDB = 1

	cfg.RateLimiter.Interval = time.Minute
	cfg.RateLimiter.UserLimit = 10

	cfg.Warmer.Delay = 75 * time.Millisecond
	return cfg
}

// LoadConfig loads configuration from CONFIG_PATH (default config.yaml).
// A missing file is fine; the defaults and the environment still apply.
func LoadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom loads configuration from the given YAML file, applies
// environment overrides and validates the result. It panics on invalid input.
func LoadConfigFrom(path string) Config {
	cfg, err := loadConfig(path)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	// .env is optional and never overrides variables already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := validate.Struct(&cfg); err != nil {
		return cfg, fmt.Errorf("validation failed: %w", err)
	}
	if _, ok := cfg.PDF.PaperSizes[cfg.PDF.DefaultPaper]; !ok {
		return cfg, fmt.Errorf("default paper %q is not configured", cfg.PDF.DefaultPaper)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString(&cfg.Resume.SiteURL, "RESUME_SITE")
	setString(&cfg.Storage.AccessKeyID, "AWS_KEY")
	setString(&cfg.Storage.SecretAccessKey, "AWS_SECRET")
	setString(&cfg.Storage.Region, "AWS_REGION_RESUME")
	setString(&cfg.Storage.Bucket, "AWS_BUCKET")
	setString(&cfg.Storage.Endpoint, "AWS_ENDPOINT_RESUME")
	setString(&cfg.Logger.Level, "LOG_LEVEL")
	setString(&cfg.Cache.RedisHost, "REDIS_HOST")
	if cfg.PDF.ChromePath == "" {
		setString(&cfg.PDF.ChromePath, "CHROME_BIN")
	}

	if v := os.Getenv("RENDER_CACHE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RENDER_CACHE_ENABLED: %w", err)
		}
		cfg.Cache.RenderCacheEnabled = enabled
	}

	cfg.Resume.SiteURL = strings.TrimRight(cfg.Resume.SiteURL, "/")
	return nil
}

// PaperFor returns the page format for a language, falling back to the default paper.
func (c Config) PaperFor(language string) PaperSize {
	if p, ok := c.PDF.PaperSizes[language]; ok {
		return p
	}
	return c.PDF.PaperSizes[c.PDF.DefaultPaper]
}

// RenderTimeout is the upper bound for one browser session.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.PDF.TimeoutSecs) * time.Second
}
