package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"live-gallery/internal/metrics"

	"github.com/google/uuid"
)

const mediaColumns = "id, hash, file_name, kind, width, height, duration, size, orientation, folder_id, created_at"

func scanMediaFile(row rowScanner) (*MediaFile, error) {
	var m MediaFile
	var width, height, duration sql.NullInt64
	var createdAt int64
	err := row.Scan(&m.ID, &m.Hash, &m.FileName, &m.Kind, &width, &height, &duration,
		&m.Size, &m.Orientation, &m.FolderID, &createdAt)
	if err != nil {
		return nil, err
	}
	m.Width = fromNullInt(width)
	m.Height = fromNullInt(height)
	m.Duration = fromNullInt(duration)
	m.CreatedAt = time.Unix(createdAt, 0)
	return &m, nil
}

// FindByHash returns a media file with the given content hash, or nil when
// none exists.
func (d *Database) FindByHash(ctx context.Context, hash string) (*MediaFile, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("find_by_hash", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m *MediaFile
	m, err = scanMediaFile(d.db.QueryRowContext(ctx,
		"SELECT "+mediaColumns+" FROM media_files WHERE hash = ? ORDER BY created_at, rowid LIMIT 1", hash))
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	return m, err
}

// CreateWithVariants inserts file and its variants in one transaction. The
// owning folder is checked inside the same transaction; when it does not
// exist ErrFolderNotFound is returned and nothing is written. Missing ids
// and the creation time are filled in.
func (d *Database) CreateWithVariants(ctx context.Context, file MediaFile, variants []Variant) (*MediaFile, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_with_variants", start, err) }()

	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	if file.Orientation == 0 {
		file.Orientation = 1
	}

	file.Variants = make([]Variant, len(variants))
	for i, v := range variants {
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		v.MediaFileID = file.ID
		file.Variants[i] = v
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM folders WHERE id = ?)", file.FolderID).Scan(&exists); err != nil {
			return fmt.Errorf("check folder: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrFolderNotFound, file.FolderID)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO media_files ("+mediaColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			file.ID, file.Hash, file.FileName, file.Kind,
			nullInt(file.Width), nullInt(file.Height), nullInt(file.Duration),
			file.Size, file.Orientation, file.FolderID, file.CreatedAt.Unix(),
		); err != nil {
			return fmt.Errorf("insert media file: %w", err)
		}

		for _, v := range file.Variants {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO variants (id, media_file_id, kind, path, size, width, height)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, v.ID, v.MediaFileID, v.Kind, v.Path, v.Size, nullInt(v.Width), nullInt(v.Height)); err != nil {
				return fmt.Errorf("insert %s variant: %w", v.Kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.DBRowsAffected.WithLabelValues("create_with_variants").Observe(float64(1 + len(file.Variants)))
	return &file, nil
}

// GetMediaFile returns the media file with its variants, or ErrNotFound.
func (d *Database) GetMediaFile(ctx context.Context, id string) (*MediaFile, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_media_file", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m *MediaFile
	m, err = scanMediaFile(d.db.QueryRowContext(ctx, "SELECT "+mediaColumns+" FROM media_files WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	m.Variants, err = d.listVariants(ctx, id)
	return m, err
}

// ListVariants returns the variants of a media file ordered by kind.
func (d *Database) ListVariants(ctx context.Context, mediaFileID string) ([]Variant, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_variants", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var variants []Variant
	variants, err = d.listVariants(ctx, mediaFileID)
	return variants, err
}

func (d *Database) listVariants(ctx context.Context, mediaFileID string) ([]Variant, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, media_file_id, kind, path, size, width, height
		FROM variants
		WHERE media_file_id = ?
		ORDER BY CASE kind WHEN 'original' THEN 0 WHEN 'webp' THEN 1 ELSE 2 END
	`, mediaFileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var variants []Variant
	for rows.Next() {
		var v Variant
		var width, height sql.NullInt64
		if err := rows.Scan(&v.ID, &v.MediaFileID, &v.Kind, &v.Path, &v.Size, &width, &height); err != nil {
			return nil, err
		}
		v.Width = fromNullInt(width)
		v.Height = fromNullInt(height)
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// CountMediaFiles returns the number of media files in a folder, or in all
// folders when folderID is empty.
func (d *Database) CountMediaFiles(ctx context.Context, folderID string) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_media_files", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	if folderID == "" {
		err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_files").Scan(&n)
	} else {
		err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_files WHERE folder_id = ?", folderID).Scan(&n)
	}
	return n, err
}

// DeleteMediaFile removes a media file; its variants are removed by cascade.
func (d *Database) DeleteMediaFile(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_media_file", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, "DELETE FROM media_files WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
	}
	return err
}
