package media

import (
	"errors"
	"sync"

	"live-gallery/internal/logging"
	"live-gallery/internal/workers"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// errVipsUnavailable is returned by the vips renderer before InitVips.
var errVipsUnavailable = errors.New("libvips not available")

// vipsLogSettings maps the application log level onto the libvips level and
// a handler that routes vips messages through the application logger.
func vipsLogSettings(level logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	route := func(min vips.LogLevel) func(string, vips.LogLevel, string) {
		return func(domain string, l vips.LogLevel, msg string) {
			if l < min {
				return
			}
			switch l {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			default:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	}

	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo, route(vips.LogLevelDebug)
	case logging.LevelWarn:
		return vips.LogLevelError, route(vips.LogLevelError)
	case logging.LevelError:
		return vips.LogLevelCritical, route(vips.LogLevelCritical)
	default:
		return vips.LogLevelWarning, route(vips.LogLevelWarning)
	}
}

// InitVips initializes the libvips library.
// This should be called once at startup.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging before Startup so LOG_LEVEL applies to startup messages
	vipsLevel, handler := vipsLogSettings(logging.GetLevel())
	vips.LoggingSettings(handler, vipsLevel)

	// One file renders at a time; its operations may use every CPU
	threads := workers.ForCPU(4)
	vips.Startup(&vips.Config{
		ConcurrencyLevel: threads,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s, threads: %d)", vips.Version, threads)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}
