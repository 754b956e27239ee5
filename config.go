package postindex

import "github.com/goliatone/go-postindex/internal/runtimeconfig"

var (
	ErrPostsDirRequired       = runtimeconfig.ErrPostsDirRequired
	ErrPostsExtensionInvalid  = runtimeconfig.ErrPostsExtensionInvalid
	ErrPageSizeInvalid        = runtimeconfig.ErrPageSizeInvalid
	ErrStorageProviderUnknown = runtimeconfig.ErrStorageProviderUnknown
	ErrStoragePathRequired    = runtimeconfig.ErrStoragePathRequired
	ErrSyncIntervalInvalid    = runtimeconfig.ErrSyncIntervalInvalid
	ErrLoggingProviderUnknown = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid    = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid   = runtimeconfig.ErrLoggingFormatInvalid
	ErrHTTPBasePathInvalid    = runtimeconfig.ErrHTTPBasePathInvalid
)

type (
	Config        = runtimeconfig.Config
	SiteConfig    = runtimeconfig.SiteConfig
	PostsConfig   = runtimeconfig.PostsConfig
	StorageConfig = runtimeconfig.StorageConfig
	SyncConfig    = runtimeconfig.SyncConfig
	RenderConfig  = runtimeconfig.RenderConfig
	LoggingConfig = runtimeconfig.LoggingConfig
	HTTPConfig    = runtimeconfig.HTTPConfig
)

const (
	StorageSQLite = runtimeconfig.StorageSQLite
	StorageMemory = runtimeconfig.StorageMemory
)

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	return runtimeconfig.Load(path)
}
