// Package target resolves the folder that newly ingested media is attached to.
package target

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"live-gallery/internal/database"
	"live-gallery/internal/filesystem"
	"live-gallery/internal/logging"
	"live-gallery/internal/metrics"

	"github.com/goccy/go-json"
)

// DefaultInterval is how often the configuration file is re-read.
const DefaultInterval = 5 * time.Second

// FallbackName is the name of the folder created when no configured or
// previously used folder is available.
const FallbackName = "Live"

// fallbackMatch is the case-insensitive substring used to adopt an
// existing folder.
const fallbackMatch = "live"

// Store is the subset of the database the resolver needs.
type Store interface {
	FolderExists(ctx context.Context, id string) (bool, error)
	FindFolderByNameLike(ctx context.Context, substr string) (*database.Folder, error)
	CreateFolder(ctx context.Context, f database.Folder) (*database.Folder, error)
}

// Config is the on-disk target configuration. Both the legacy single-id
// form and the list form are accepted.
type Config struct {
	FolderID  string   `json:"folderId,omitempty"`
	FolderIDs []string `json:"folderIds,omitempty"`
}

// IDs returns the configured folder ids in order, the list form first.
func (c Config) IDs() []string {
	ids := make([]string, 0, len(c.FolderIDs)+1)
	for _, id := range c.FolderIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 && c.FolderID != "" {
		ids = append(ids, c.FolderID)
	}
	return ids
}

// ParseConfig decodes a target configuration document.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse target config: %w", err)
	}
	return c, nil
}

// Resolver tracks the current ingest target. It is safe for concurrent use.
type Resolver struct {
	store      Store
	configPath string
	interval   time.Duration
	log        *logging.Logger

	mu      sync.RWMutex
	current string
	// configured remembers the last configuration seen so changes are logged once
	configured []string

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a resolver that reads configPath every interval.
func New(store Store, configPath string, interval time.Duration) *Resolver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Resolver{
		store:      store,
		configPath: configPath,
		interval:   interval,
		log:        logging.Component("target"),
		ready:      make(chan struct{}),
	}
}

// Current returns the folder id media should be ingested into, or "" before
// the first successful resolution.
func (r *Resolver) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Ready is closed once a target has been resolved for the first time.
func (r *Resolver) Ready() <-chan struct{} {
	return r.ready
}

// WaitReady blocks until a target is resolved or ctx is done.
func (r *Resolver) WaitReady(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readConfig returns the first configured id. A missing or unreadable file
// yields "" so resolution falls through to the fallbacks.
func (r *Resolver) readConfig() string {
	data, err := filesystem.ReadFileWithRetry(r.configPath, filesystem.DefaultRetryConfig())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.log.Debug("target config %s does not exist", r.configPath)
		} else {
			r.log.Warn("failed to read target config %s: %v", r.configPath, err)
		}
		return ""
	}

	c, err := ParseConfig(data)
	if err != nil {
		r.log.Warn("%v", err)
		return ""
	}

	ids := c.IDs()
	r.noteConfigured(ids)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func (r *Resolver) noteConfigured(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if equalIDs(ids, r.configured) {
		return
	}
	r.configured = append([]string(nil), ids...)
	if len(ids) > 1 {
		r.log.Info("%d target folders configured, only the first (%s) receives ingested media", len(ids), ids[0])
	}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Refresh re-reads the configuration and resolves the target. On error the
// previous target is left in place.
func (r *Resolver) Refresh(ctx context.Context) (string, error) {
	id, err := r.resolve(ctx)
	if err != nil {
		metrics.TargetPollsTotal.WithLabelValues("error").Inc()
		metrics.TargetFallbacksTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	r.mu.Lock()
	changed := id != r.current
	previous := r.current
	r.current = id
	r.mu.Unlock()

	if changed {
		metrics.TargetChangesTotal.Inc()
		if previous == "" {
			r.log.Info("ingest target resolved: %s", id)
		} else {
			r.log.Info("ingest target changed: %s -> %s", previous, id)
		}
	}

	r.readyOnce.Do(func() { close(r.ready) })
	return id, nil
}

func (r *Resolver) resolve(ctx context.Context) (string, error) {
	configured := r.readConfig()
	if configured != "" {
		exists, err := r.store.FolderExists(ctx, configured)
		if err != nil {
			return "", fmt.Errorf("check configured folder %s: %w", configured, err)
		}
		if exists {
			metrics.TargetPollsTotal.WithLabelValues("configured").Inc()
			return configured, nil
		}
		r.log.Warn("configured target folder %s does not exist", configured)
	}

	metrics.TargetPollsTotal.WithLabelValues("fallback").Inc()

	if previous := r.Current(); previous != "" {
		exists, err := r.store.FolderExists(ctx, previous)
		if err != nil {
			return "", fmt.Errorf("check previous folder %s: %w", previous, err)
		}
		if exists {
			metrics.TargetFallbacksTotal.WithLabelValues("previous").Inc()
			return previous, nil
		}
	}

	folder, err := r.store.FindFolderByNameLike(ctx, fallbackMatch)
	if err == nil {
		metrics.TargetFallbacksTotal.WithLabelValues("existing").Inc()
		r.log.Debug("using existing folder %q (%s) as target", folder.Name, folder.ID)
		return folder.ID, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return "", fmt.Errorf("find fallback folder: %w", err)
	}

	folder, err = r.store.CreateFolder(ctx, database.Folder{
		Name:         FallbackName,
		Visible:      true,
		GridEligible: true,
	})
	if err != nil {
		return "", fmt.Errorf("create fallback folder: %w", err)
	}
	metrics.TargetFallbacksTotal.WithLabelValues("created").Inc()
	r.log.Info("created fallback target folder %q (%s)", folder.Name, folder.ID)
	return folder.ID, nil
}

// Serve resolves immediately and then on every interval until ctx is done.
// A failed tick is logged and retried on the next one.
func (r *Resolver) Serve(ctx context.Context) error {
	if _, err := r.Refresh(ctx); err != nil {
		r.log.Error("initial target resolution failed: %v", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil {
				r.log.Error("target resolution failed, keeping %q: %v", r.Current(), err)
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (r *Resolver) String() string {
	return "target-resolver"
}
