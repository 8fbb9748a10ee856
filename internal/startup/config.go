package startup

import (
	"path/filepath"
	"time"

	"live-gallery/internal/logging"
)

// WatcherConfig configures the ingest process.
type WatcherConfig struct {
	PublicDir     string
	IngestDir     string
	ImagesDir     string
	DatabaseDir   string
	DatabasePath  string
	TargetConfig  string
	QuarantineDir string

	TargetPollInterval time.Duration
	QuietPeriod        time.Duration
	StabilityPoll      time.Duration
	HiddenQuietPeriod  time.Duration

	BridgeURL      string
	ReconnectDelay time.Duration

	Renderer         string
	WebPQuality      int
	ThumbnailQuality int
	ThumbnailSize    int

	MetricsPort    string
	MetricsEnabled bool
}

// BridgeConfig configures the socket fanout bridge.
type BridgeConfig struct {
	Port            string
	PublishURL      string
	InternalSecret  string
	PublishTimeout  time.Duration
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool
}

// GalleryConfig configures the gallery server.
type GalleryConfig struct {
	PublicDir       string
	ImagesDir       string
	Port            string
	InternalSecret  string
	MetricsEnabled  bool
	LogStaticFiles  bool
	LogHealthChecks bool
}

func publicDirFromEnv() (string, error) {
	return absPath(getEnv("PUBLIC_DIR", "./public"), "public")
}

// LoadWatcherConfig loads and validates the watcher's configuration from
// environment variables.
func LoadWatcherConfig() (*WatcherConfig, error) {
	printBanner("watcher")
	logSystemInfo()
	section("CONFIGURATION")

	publicDir, err := publicDirFromEnv()
	if err != nil {
		return nil, err
	}
	databaseDir, err := absPath(getEnv("DATABASE_DIR", "./data"), "database")
	if err != nil {
		return nil, err
	}

	cfg := &WatcherConfig{
		PublicDir:          publicDir,
		IngestDir:          filepath.Join(publicDir, "ingest"),
		ImagesDir:          filepath.Join(publicDir, "images"),
		DatabaseDir:        databaseDir,
		DatabasePath:       filepath.Join(databaseDir, "gallery.db"),
		TargetConfig:       getEnv("TARGET_CONFIG", filepath.Join(databaseDir, "ingest-target.json")),
		QuarantineDir:      getEnv("QUARANTINE_DIR", filepath.Join(databaseDir, "quarantine")),
		TargetPollInterval: getEnvDuration("TARGET_POLL_INTERVAL", 5*time.Second),
		QuietPeriod:        getEnvDuration("QUIET_PERIOD", 1500*time.Millisecond),
		StabilityPoll:      getEnvDuration("STABILITY_POLL", 100*time.Millisecond),
		HiddenQuietPeriod:  getEnvDuration("HIDDEN_QUIET_PERIOD", 10*time.Minute),
		BridgeURL:          getEnv("BRIDGE_URL", "ws://localhost:8081/ws"),
		ReconnectDelay:     getEnvDuration("RECONNECT_DELAY", 5*time.Second),
		Renderer:           getEnv("RENDERER", "vips"),
		WebPQuality:        getEnvInt("WEBP_QUALITY", 80, 75, 85),
		ThumbnailQuality:   getEnvInt("THUMBNAIL_QUALITY", 80, 1, 100),
		ThumbnailSize:      getEnvInt("THUMBNAIL_SIZE", 300, 16, 4096),
		MetricsPort:        getEnv("METRICS_PORT", "9091"),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
	}
	if cfg.Renderer != "vips" && cfg.Renderer != "imaging" {
		logging.Warn("  Unknown RENDERER %q, using vips", cfg.Renderer)
		cfg.Renderer = "vips"
	}

	logging.Info("  PUBLIC_DIR:            %s", cfg.PublicDir)
	logging.Info("  DATABASE_DIR:          %s", cfg.DatabaseDir)
	logging.Info("  TARGET_CONFIG:         %s", cfg.TargetConfig)
	logging.Info("  QUARANTINE_DIR:        %s", cfg.QuarantineDir)
	logging.Info("  TARGET_POLL_INTERVAL:  %v", cfg.TargetPollInterval)
	logging.Info("  QUIET_PERIOD:          %v", cfg.QuietPeriod)
	logging.Info("  STABILITY_POLL:        %v", cfg.StabilityPoll)
	logging.Info("  HIDDEN_QUIET_PERIOD:   %v", cfg.HiddenQuietPeriod)
	logging.Info("  BRIDGE_URL:            %s", cfg.BridgeURL)
	logging.Info("  RECONNECT_DELAY:       %v", cfg.ReconnectDelay)
	logging.Info("  RENDERER:              %s", cfg.Renderer)
	logging.Info("  WEBP_QUALITY:          %d", cfg.WebPQuality)
	logging.Info("  THUMBNAIL_QUALITY:     %d", cfg.ThumbnailQuality)
	logging.Info("  THUMBNAIL_SIZE:        %d", cfg.ThumbnailSize)
	logging.Info("  METRICS_PORT:          %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:       %v", cfg.MetricsEnabled)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())

	section("DIRECTORY SETUP")
	if err := requireWritableDir(cfg.DatabaseDir, "database"); err != nil {
		return nil, err
	}
	if err := requireWritableDir(cfg.IngestDir, "ingest"); err != nil {
		return nil, err
	}
	if err := requireWritableDir(cfg.ImagesDir, "images"); err != nil {
		return nil, err
	}
	if err := requireWritableDir(cfg.QuarantineDir, "quarantine"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadBridgeConfig loads the bridge's configuration from environment variables.
func LoadBridgeConfig() (*BridgeConfig, error) {
	printBanner("bridge")
	logSystemInfo()
	section("CONFIGURATION")

	cfg := &BridgeConfig{
		Port:            getEnv("BRIDGE_PORT", "8081"),
		PublishURL:      getEnv("PUBLISH_URL", "http://localhost:8080/internal/publish"),
		InternalSecret:  getEnv("INTERNAL_SECRET", ""),
		PublishTimeout:  getEnvDuration("PUBLISH_TIMEOUT", 5*time.Second),
		MetricsPort:     getEnv("METRICS_PORT", "9092"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
	}

	logging.Info("  BRIDGE_PORT:        %s", cfg.Port)
	logging.Info("  PUBLISH_URL:        %s", cfg.PublishURL)
	logging.Info("  INTERNAL_SECRET:    %s", maskSecret(cfg.InternalSecret))
	logging.Info("  PUBLISH_TIMEOUT:    %v", cfg.PublishTimeout)
	logging.Info("  METRICS_PORT:       %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:    %v", cfg.MetricsEnabled)
	logging.Info("  LOG_LEVEL:          %s", logging.GetLevel())

	if cfg.InternalSecret == "" {
		logging.Warn("  INTERNAL_SECRET is empty, the gallery will refuse every forwarded event")
	}
	return cfg, nil
}

// LoadGalleryConfig loads the gallery server's configuration from
// environment variables.
func LoadGalleryConfig() (*GalleryConfig, error) {
	printBanner("gallery")
	logSystemInfo()
	section("CONFIGURATION")

	publicDir, err := publicDirFromEnv()
	if err != nil {
		return nil, err
	}

	cfg := &GalleryConfig{
		PublicDir:       publicDir,
		ImagesDir:       filepath.Join(publicDir, "images"),
		Port:            getEnv("PORT", "8080"),
		InternalSecret:  getEnv("INTERNAL_SECRET", ""),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogStaticFiles:  getEnvBool("LOG_STATIC_FILES", false),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
	}

	logging.Info("  PUBLIC_DIR:         %s", cfg.PublicDir)
	logging.Info("  PORT:               %s", cfg.Port)
	logging.Info("  INTERNAL_SECRET:    %s", maskSecret(cfg.InternalSecret))
	logging.Info("  METRICS_ENABLED:    %v", cfg.MetricsEnabled)
	logging.Info("  LOG_STATIC_FILES:   %v", cfg.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:  %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:          %s", logging.GetLevel())

	if cfg.InternalSecret == "" {
		logging.Warn("  INTERNAL_SECRET is empty, POST /internal/publish will refuse all requests")
	}

	section("DIRECTORY SETUP")
	if err := ensureDirectory(cfg.ImagesDir, "images"); err != nil {
		logging.Warn("  Images directory issue: %v", err)
	}
	return cfg, nil
}

func maskSecret(s string) string {
	if s == "" {
		return "(empty)"
	}
	return "(set)"
}
