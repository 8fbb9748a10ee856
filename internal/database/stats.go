package database

import (
	"context"
	"time"
)

// LibraryStats summarizes the stored library.
type LibraryStats struct {
	Images  int
	Videos  int
	Folders int
}

// GetStats counts media files by kind and folders.
func (d *Database) GetStats(ctx context.Context) (LibraryStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats LibraryStats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'image' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'video' THEN 1 ELSE 0 END), 0),
			(SELECT COUNT(*) FROM folders)
		FROM media_files`).Scan(&stats.Images, &stats.Videos, &stats.Folders)
	return stats, err
}
