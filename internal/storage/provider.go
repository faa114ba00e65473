// Package storage defines the read side of the content file system.
package storage

import "time"

// FileInfo describes one content file.
type FileInfo struct {
	// Path is slash-separated and relative to the content root.
	Path     string
	Size     int64
	ModTime  time.Time
	Checksum string
}

// Provider is the interface for content file access.
type Provider interface {
	// Root returns the absolute content root.
	Root() string
	// List returns every regular file under dir (relative to the root),
	// sorted by path. Hidden and unreadable files and directories are skipped.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
}
