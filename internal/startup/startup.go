package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"live-gallery/internal/logging"
	"live-gallery/internal/memory"
	"live-gallery/internal/middleware"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

func section(title string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(path string, duration time.Duration) {
	section("DATABASE INITIALIZATION")
	logging.Info("  Path: %s", path)
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv
func LogMemoryConfig(result memory.ConfigResult) {
	section("MEMORY CONFIGURATION")
	if !result.Configured {
		logging.Info("  GOMEMLIMIT: not set (set MEMORY_LIMIT to configure automatically)")
		return
	}
	logging.Info("  Source:      %s", result.Source)
	logging.Info("  GOMEMLIMIT:  %s", formatBytes(result.GoMemLimit))
	if result.ContainerLimit > 0 {
		logging.Info("  Container:   %s", formatBytes(result.ContainerLimit))
		logging.Info("  Renderer:    %s reserved for %d thread(s)", formatBytes(result.RenderReserve), result.RenderThreads)
	}
}

// RendererInfo describes the renderer chosen for the watcher.
type RendererInfo struct {
	Backend          string
	VipsAvailable    bool
	ProbeAvailable   bool
	WebPQuality      int
	ThumbnailSize    int
	ThumbnailQuality int
}

// LogRendererInit logs renderer and probe availability
func LogRendererInit(info RendererInfo) {
	section("RENDERER INITIALIZATION")
	logging.Info("  Backend:          %s", info.Backend)
	logging.Info("  libvips:          %s", enabledString(info.VipsAvailable))
	logging.Info("  ffprobe:          %s", enabledString(info.ProbeAvailable))
	logging.Info("  WebP quality:     %d", info.WebPQuality)
	logging.Info("  Thumbnail:        %dpx @ quality %d", info.ThumbnailSize, info.ThumbnailQuality)
	if !info.ProbeAvailable {
		logging.Info("  Videos will be stored without dimensions or duration")
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			// Prefix-only routes such as the static file server
			pathTemplate, err = route.GetPathRegexp()
			if err != nil {
				return nil
			}
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the registered routes (debug) and the access log filters.
func LogHTTPRoutes(router *mux.Router, access middleware.LoggingConfig) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  HTTP logging enabled (%s)", access.ServiceName)
	for _, prefix := range access.SkipPrefixes {
		logging.Info("    Not logged: %s*", prefix)
	}
	if access.LogHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "^")
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Name            string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
	// Extra endpoints, e.g. "Socket: ws://0.0.0.0:8081/ws"
	Endpoints []string
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	section(strings.ToUpper(config.Name) + " STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	if config.Port != "" {
		logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	}
	for _, e := range config.Endpoints {
		logging.Info("    %s", e)
	}
	if config.MetricsEnabled {
		if config.MetricsPort != "" {
			logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
		} else {
			logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
		}
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner(component string) {
	banner := `
------------------------------------------------------------
    __    _              ______      ____
   / /   (_)   _____    / ____/___ _/ / /__  _______  __
  / /   / / | / / _ \  / / __/ __ '/ / / _ \/ ___/ / / /
 / /___/ /| |/ /  __/ / /_/ / /_/ / / /  __/ /  / /_/ /
/_____/_/ |___/\___/  \____/\__,_/_/_/\___/_/   \__, /
                                               /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Component:  %s", component)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")

	if name == "ingest" && logging.IsDebugEnabled() {
		if entries, err := os.ReadDir(path); err == nil {
			logging.Debug("    Contents: %d entries waiting (top level)", len(entries))
		}
	}

	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

// requireWritableDir creates dir and checks that it can be written to.
func requireWritableDir(dir, name string) error {
	if err := ensureDirectory(dir, name); err != nil {
		return fmt.Errorf("%s directory error: %w", name, err)
	}
	if err := testWriteAccess(dir); err != nil {
		return fmt.Errorf("%s directory is not writable: %w", name, err)
	}
	logging.Info("  [OK] %s directory is writable: %s", name, dir)
	return nil
}

func absPath(path, name string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s directory path: %w", name, err)
	}
	return abs, nil
}

// formatBytes formats bytes into human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("  Invalid %s %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvInt reads an integer in [lo, hi], falling back to defaultValue.
func getEnvInt(key string, defaultValue, lo, hi int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < lo || parsed > hi {
		logging.Warn("  Invalid %s %q (want %d-%d), using default: %d", key, value, lo, hi, defaultValue)
		return defaultValue
	}
	return parsed
}
