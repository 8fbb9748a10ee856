// Package mediatypes classifies files entering the ingest pipeline.
//
// Classification is signature based: the first SniffLen bytes of a file are
// matched with github.com/gabriel-vasile/mimetype. The file extension is only
// used for camera RAW formats, which are recognized from a fixed allow-list
// before any sniffing:
//
//	c := mediatypes.Classify(name, head)
//	switch c.Kind {
//	case mediatypes.KindImage:
//	    // render variants
//	case mediatypes.KindVideo:
//	    // store as-is
//	case mediatypes.KindRaw:
//	    // archive
//	default:
//	    // discard
//	}
//
// The package has no dependencies on other internal packages and can be
// imported from anywhere without creating import cycles.
package mediatypes
