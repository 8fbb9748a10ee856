package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const folderColumns = "id, name, visible, grid_eligible, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (*Folder, error) {
	var f Folder
	var createdAt int64
	if err := row.Scan(&f.ID, &f.Name, &f.Visible, &f.GridEligible, &createdAt); err != nil {
		return nil, err
	}
	f.CreatedAt = time.Unix(createdAt, 0)
	return &f, nil
}

// FolderExists reports whether a folder with the given id exists.
func (d *Database) FolderExists(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("folder_exists", start, err) }()

	if id == "" {
		return false, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var exists bool
	err = d.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM folders WHERE id = ?)", id).Scan(&exists)
	return exists, err
}

// GetFolder returns the folder with the given id, or ErrNotFound.
func (d *Database) GetFolder(ctx context.Context, id string) (*Folder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_folder", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var f *Folder
	f, err = scanFolder(d.db.QueryRowContext(ctx, "SELECT "+folderColumns+" FROM folders WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return f, err
}

// FindFolderByNameLike returns the oldest folder whose name contains
// substr, compared case-insensitively, or ErrNotFound.
func (d *Database) FindFolderByNameLike(ctx context.Context, substr string) (*Folder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("find_folder_by_name", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pattern := "%" + escapeLike(strings.ToLower(substr)) + "%"
	var f *Folder
	f, err = scanFolder(d.db.QueryRowContext(ctx, `
		SELECT `+folderColumns+`
		FROM folders
		WHERE LOWER(name) LIKE ? ESCAPE '\'
		ORDER BY created_at, rowid
		LIMIT 1
	`, pattern))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return f, err
}

// CreateFolder inserts a folder. A missing id is generated.
func (d *Database) CreateFolder(ctx context.Context, f Folder) (*Folder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_folder", start, err) }()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		"INSERT INTO folders ("+folderColumns+") VALUES (?, ?, ?, ?, ?)",
		f.ID, f.Name, f.Visible, f.GridEligible, f.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFolders returns all folders, oldest first.
func (d *Database) ListFolders(ctx context.Context) ([]Folder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_folders", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT "+folderColumns+" FROM folders ORDER BY created_at, rowid")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var folders []Folder
	for rows.Next() {
		var f *Folder
		f, err = scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *f)
	}
	err = rows.Err()
	return folders, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
