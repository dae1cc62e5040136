package storage

import (
	"context"
	"errors"
	"time"
)

// Backend is the storage capability consumed by the virtual filesystem.
// Implementations map flat slash-delimited keys onto whatever medium they
// manage; they know nothing about property sidecars or WebDAV.
type Backend interface {
	// Stat returns metadata for the object at path.
	Stat(ctx context.Context, path string) (*ObjectInfo, error)
	// Read returns up to length bytes starting at offset. A negative
	// length reads to the end of the object.
	Read(ctx context.Context, path string, offset int64, length int64) ([]byte, error)
	// Write stores data at offset, creating the object if absent.
	Write(ctx context.Context, path string, offset int64, data []byte) error
	// Mkdir creates a directory entry.
	Mkdir(ctx context.Context, path string) error
	// Destroy removes a file or an empty directory.
	Destroy(ctx context.Context, path string) error
	// List returns the names of the entries directly under a directory,
	// in a stable implementation-defined order.
	List(ctx context.Context, path string) ([]string, error)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

var (
	// ErrNotFound is returned when a requested object doesn't exist
	ErrNotFound = errors.New("object not found")
	// ErrAlreadyExists is returned when creating an object that exists
	ErrAlreadyExists = errors.New("object already exists")
	// ErrIsDirectory is returned for content operations on a directory
	ErrIsDirectory = errors.New("object is a directory")
	// ErrNotDirectory is returned for directory operations on a file
	ErrNotDirectory = errors.New("object is not a directory")
	// ErrNotEmpty is returned when destroying a non-empty directory
	ErrNotEmpty = errors.New("directory not empty")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input parameters")
)
