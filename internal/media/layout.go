package media

import (
	"path"
	"path/filepath"
	"strings"

	"live-gallery/internal/filesystem"
)

// Variant subdirectories under images/<folderId>/.
const (
	DirOriginal  = "original"
	DirWebP      = "webp"
	DirThumbnail = "thumbs"
	DirRaw       = "raw"
)

// PublicPrefix is the URL prefix under which the images tree is served.
const PublicPrefix = "/images"

// Location is a file's place on disk together with the URL path it is served under.
type Location struct {
	Disk   string
	Public string
}

// VariantPaths are the locations of all files derived from one source.
type VariantPaths struct {
	Base      string
	Original  Location
	WebP      Location
	Thumbnail Location
}

// Layout maps folder ids and file names onto the persisted images tree.
type Layout struct {
	root string
}

// NewLayout returns a layout rooted at imagesDir (public/images).
func NewLayout(imagesDir string) Layout {
	return Layout{root: imagesDir}
}

// Root returns the images directory.
func (l Layout) Root() string { return l.root }

func (l Layout) locate(folderID, dir, name string) Location {
	return Location{
		Disk:   filepath.Join(l.root, folderID, dir, name),
		Public: path.Join(PublicPrefix, folderID, dir, name),
	}
}

// Raw returns the archive location for a RAW file.
func (l Layout) Raw(folderID, name string) Location {
	return l.locate(folderID, DirRaw, name)
}

// Variants returns the locations for name in folderID. When a file from a
// previous ingest already occupies any of them, the base name gets a suffix
// derived from hash so nothing is overwritten.
func (l Layout) Variants(folderID, name, hash string) VariantPaths {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base = hash
	}

	paths := l.variantsFor(folderID, base, ext)
	if l.occupied(paths) {
		suffix := hash
		if len(suffix) > 8 {
			suffix = suffix[:8]
		}
		paths = l.variantsFor(folderID, base+"_"+suffix, ext)
	}
	return paths
}

func (l Layout) variantsFor(folderID, base, ext string) VariantPaths {
	return VariantPaths{
		Base:      base,
		Original:  l.locate(folderID, DirOriginal, base+ext),
		WebP:      l.locate(folderID, DirWebP, base+".webp"),
		Thumbnail: l.locate(folderID, DirThumbnail, base+"_thumb.webp"),
	}
}

func (l Layout) occupied(p VariantPaths) bool {
	return filesystem.Exists(p.Original.Disk) ||
		filesystem.Exists(p.WebP.Disk) ||
		filesystem.Exists(p.Thumbnail.Disk)
}

// Output returns the renderer output paths for p.
func (p VariantPaths) Output() Output {
	return Output{WebPPath: p.WebP.Disk, ThumbnailPath: p.Thumbnail.Disk}
}
