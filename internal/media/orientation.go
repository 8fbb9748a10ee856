package media

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// OrientationNormal is the EXIF value for pixels that need no transform.
const OrientationNormal = 1

// ReadOrientation returns the EXIF orientation of an encoded image, or
// OrientationNormal when the tag is missing or out of range.
func ReadOrientation(buf []byte) int {
	x, err := exif.Decode(bytes.NewReader(buf))
	if err != nil {
		return OrientationNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return OrientationNormal
	}
	return v
}

// ApplyOrientation transforms img so that it displays upright without any
// orientation metadata.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		// imaging rotates counter-clockwise; 270 CCW is 90 CW
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// SwapsDimensions reports whether the orientation is one of the 90 degree
// class transforms that exchange width and height.
func SwapsDimensions(orientation int) bool {
	return orientation >= 5 && orientation <= 8
}

// OrientedSize returns the upright dimensions of a w x h source.
func OrientedSize(w, h, orientation int) (int, int) {
	if SwapsDimensions(orientation) {
		return h, w
	}
	return w, h
}
