/*
Package media renders ingested still images into their persisted variants.

A Renderer decodes the source, applies the EXIF orientation to the pixels so
every output is upright without metadata, and writes two renditions:

  - webp/<base>.webp: the full-size image as lossy WebP
  - thumbs/<base>_thumb.webp: a square cover crop centered on the image

Two backends implement Renderer. VipsRenderer uses libvips through govips
and is the default. ImagingRenderer decodes with the standard image
registry, rotates with github.com/disintegration/imaging and encodes with
github.com/kolesa-team/go-webp.

# Orientation

ReadOrientation reads the EXIF tag, ApplyOrientation applies one of the
eight transforms. Orientations 5 to 8 swap width and height.

# Layout

Layout maps a folder id and source name onto the images tree:

	images/<folderId>/original/<name>
	images/<folderId>/webp/<base>.webp
	images/<folderId>/thumbs/<base>_thumb.webp
	images/<folderId>/raw/<name>

Each Location carries both the disk path and the public URL path served
under /images/.

# libvips

InitVips must run before the vips backend renders. It routes libvips log
output through the application logger at the configured level. govips
cannot restart libvips after ShutdownVips in the same process.
*/
package media
