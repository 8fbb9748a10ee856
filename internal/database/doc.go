// Package database provides SQLite storage for the gallery's ingest subset:
// folders, media files and their variants.
//
// A media file and all of its variants are written in a single transaction
// by CreateWithVariants, which also verifies the owning folder inside that
// transaction. Readers never observe a media file without its variants.
// Variants are removed with their media file through ON DELETE CASCADE, so
// the connection string enables foreign keys.
//
// The content hash column is indexed but not unique; duplicate detection is
// a lookup with FindByHash before insert.
//
// The database uses WAL mode for concurrent readers and includes automatic
// schema initialization.
package database
