package database

import (
	"database/sql"
	"time"
)

// FileKind is the kind of a stored media file.
type FileKind string

const (
	FileKindImage FileKind = "image"
	FileKindVideo FileKind = "video"
)

// VariantKind is the kind of a stored rendition.
type VariantKind string

const (
	VariantOriginal  VariantKind = "original"
	VariantWebP      VariantKind = "webp"
	VariantThumbnail VariantKind = "thumbnail"
)

// Folder is a gallery folder that media files are ingested into.
type Folder struct {
	ID           string
	Name         string
	Visible      bool
	GridEligible bool
	CreatedAt    time.Time
}

// MediaFile is one ingested image or video. Width, Height and Duration are
// nil when unknown.
type MediaFile struct {
	ID          string
	Hash        string
	FileName    string
	Kind        FileKind
	Width       *int
	Height      *int
	Duration    *int
	Size        int64
	Orientation int
	FolderID    string
	CreatedAt   time.Time
	Variants    []Variant
}

// Variant is a rendition of a MediaFile served from Path.
type Variant struct {
	ID          string
	MediaFileID string
	Kind        VariantKind
	Path        string
	Size        int64
	Width       *int
	Height      *int
}

// Variant returns the variant of the given kind, or nil.
func (m *MediaFile) Variant(kind VariantKind) *Variant {
	for i := range m.Variants {
		if m.Variants[i].Kind == kind {
			return &m.Variants[i]
		}
	}
	return nil
}

// IntPtr returns a pointer to v, or nil when v is zero or negative.
func IntPtr(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
