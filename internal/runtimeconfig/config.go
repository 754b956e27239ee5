// Package runtimeconfig holds the indexer configuration, its defaults and
// the YAML file loader.
package runtimeconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrPostsDirRequired       = errors.New("postindex config: posts directory is required")
	ErrPostsExtensionInvalid  = errors.New("postindex config: posts extension must start with a dot")
	ErrPageSizeInvalid        = errors.New("postindex config: page size must be positive")
	ErrStorageProviderUnknown = errors.New("postindex config: storage provider is invalid")
	ErrStoragePathRequired    = errors.New("postindex config: storage path is required for sqlite")
	ErrSyncIntervalInvalid    = errors.New("postindex config: sync interval must be positive")
	ErrLoggingProviderUnknown = errors.New("postindex config: logging provider is invalid")
	ErrLoggingLevelInvalid    = errors.New("postindex config: logging level is invalid")
	ErrLoggingFormatInvalid   = errors.New("postindex config: logging format is invalid")
	ErrHTTPBasePathInvalid    = errors.New("postindex config: http base path must start with a slash")
)

// Storage providers.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config aggregates every knob of the indexer runtime.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Posts   PostsConfig   `yaml:"posts"`
	Storage StorageConfig `yaml:"storage"`
	Sync    SyncConfig    `yaml:"sync"`
	Render  RenderConfig  `yaml:"render"`
	Logging LoggingConfig `yaml:"logging"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// SiteConfig carries descriptive metadata surfaced by the API.
type SiteConfig struct {
	Name        string `yaml:"name" json:"name"`
	Tagline     string `yaml:"tagline" json:"tagline"`
	Description string `yaml:"description" json:"description"`
}

// PostsConfig locates the markdown posts.
type PostsConfig struct {
	Dir       string   `yaml:"dir"`
	Extension string   `yaml:"extension"`
	Excluded  []string `yaml:"excluded"`
	PageSize  int      `yaml:"page_size"`
	// AboutFile is served by the about endpoint. It is always excluded
	// from the index.
	AboutFile string `yaml:"about_file"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	Provider string `yaml:"provider"`
	Path     string `yaml:"path"`
}

// SyncConfig drives the periodic reconciliation.
type SyncConfig struct {
	Interval   time.Duration `yaml:"interval"`
	RunOnStart bool          `yaml:"run_on_start"`
}

// RenderConfig maps onto markdown.RenderOptions.
type RenderConfig struct {
	Extensions  []string `yaml:"extensions"`
	HardWraps   bool     `yaml:"hard_wraps"`
	SafeMode    bool     `yaml:"safe_mode"`
	ImagePrefix string   `yaml:"image_prefix"`
	ImageClass  string   `yaml:"image_class"`
}

// LoggingConfig selects and tunes the logger provider.
type LoggingConfig struct {
	Provider  string   `yaml:"provider"`
	Level     string   `yaml:"level"`
	Format    string   `yaml:"format"`
	AddSource bool     `yaml:"add_source"`
	Focus     []string `yaml:"focus"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"base_path"`
}

// DefaultConfig returns the stock blog layout: posts/ indexed into
// data/blog.db every minute, ten posts per page.
func DefaultConfig() Config {
	return Config{
		Site: SiteConfig{
			Name:        "CoreBlog",
			Tagline:     "Clarity through simplicity",
			Description: "A minimalist blog focused on content first",
		},
		Posts: PostsConfig{
			Dir:       "posts",
			Extension: ".md",
			Excluded:  []string{"about.md"},
			PageSize:  10,
			AboutFile: "about.md",
		},
		Storage: StorageConfig{
			Provider: StorageSQLite,
			Path:     filepath.Join("data", "blog.db"),
		},
		Sync: SyncConfig{
			Interval:   60 * time.Second,
			RunOnStart: true,
		},
		Render: RenderConfig{
			Extensions:  []string{"gfm", "linkify", "tasklist"},
			ImagePrefix: "/static/images/",
			ImageClass:  "max-w-full h-auto rounded-lg shadow-md",
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
		HTTP: HTTPConfig{
			Addr:     ":5001",
			BasePath: "/api",
		},
	}
}

// Load reads a YAML file layered on top of DefaultConfig. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("postindex config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("postindex config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// ExcludedFiles returns the configured exclusions plus the about page.
func (cfg Config) ExcludedFiles() []string {
	out := make([]string, 0, len(cfg.Posts.Excluded)+1)
	seen := map[string]bool{}
	for _, name := range slices.Concat(cfg.Posts.Excluded, []string{cfg.Posts.AboutFile}) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Validate checks the configuration for values the runtime cannot use.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.Posts.Dir) == "" {
		return ErrPostsDirRequired
	}
	if ext := cfg.Posts.Extension; ext != "" && !strings.HasPrefix(ext, ".") {
		return fmt.Errorf("%w: %s", ErrPostsExtensionInvalid, ext)
	}
	if cfg.Posts.PageSize <= 0 {
		return ErrPageSizeInvalid
	}

	switch provider := normalize(cfg.Storage.Provider); provider {
	case StorageSQLite:
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return ErrStoragePathRequired
		}
	case StorageMemory:
	default:
		return fmt.Errorf("%w: %s", ErrStorageProviderUnknown, provider)
	}

	if cfg.Sync.Interval <= 0 {
		return ErrSyncIntervalInvalid
	}

	provider := normalize(cfg.Logging.Provider)
	if provider != "console" && provider != "gologger" {
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
	}
	if level := normalize(cfg.Logging.Level); level != "" && !supportedLevels[level] {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if format := normalize(cfg.Logging.Format); provider == "gologger" && format != "" && !supportedFormats[format] {
		return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
	}

	if base := cfg.HTTP.BasePath; base != "" && !strings.HasPrefix(base, "/") {
		return fmt.Errorf("%w: %s", ErrHTTPBasePathInvalid, base)
	}
	return nil
}

var supportedLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true, "fatal": true,
}

var supportedFormats = map[string]bool{"json": true, "console": true, "pretty": true}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
