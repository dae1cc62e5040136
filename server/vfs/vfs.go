package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/davkit/davkit/server/storage"
)

var (
	// ErrMalformedRecord is returned when a sidecar payload cannot be
	// parsed, or a file's record lacks a required property. The
	// condition is unrecoverable for that resource and is never
	// silently defaulted.
	ErrMalformedRecord = errors.New("malformed property record")
	// ErrValidation is returned when the startup invariant check fails.
	ErrValidation = errors.New("store validation failed")
)

// Config carries the startup configuration checked by Valid.
type Config struct {
	// PrincipalPath is the root principal collection whose record must
	// hold the password and salt properties.
	PrincipalPath string
}

// Resource is one entry of a directory listing.
type Resource struct {
	Path    Path
	Size    int64
	ModTime time.Time
}

// FS is the virtual filesystem: it maps logical resources onto a storage
// backend, pairing every content entry with a property sidecar and
// keeping the two consistent under a per-path lock.
type FS struct {
	backend storage.Backend
	logger  *slog.Logger
	locks   *pathLocks
}

// New creates a virtual filesystem over the given backend.
func New(backend storage.Backend, logger *slog.Logger) *FS {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FS{
		backend: backend,
		logger:  logger,
		locks:   newPathLocks(),
	}
}

// Stat returns backend metadata for the resource at p.
func (fs *FS) Stat(ctx context.Context, p Path) (*storage.ObjectInfo, error) {
	return fs.backend.Stat(ctx, p.Key())
}

// ReadFile reads a file's content and property record. Either I/O
// failing fails the read.
func (fs *FS) ReadFile(ctx context.Context, file Path) ([]byte, *Record, error) {
	if file.IsDir() {
		return nil, nil, storage.ErrIsDirectory
	}
	unlock := fs.locks.Lock(file.Key())
	defer unlock()

	content, err := fs.backend.Read(ctx, file.Key(), 0, -1)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", file, err)
	}
	rec, err := fs.readRecord(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	if _, err := rec.LastModified(); err != nil {
		return nil, nil, fmt.Errorf("file %s: %w", file, err)
	}
	return content, rec, nil
}

// WriteFile overwrites a file's content and persists its property
// record. The old content entry is destroyed first; there is no partial
// overwrite in place. Both writes happen under the path lock, but a
// crash between them can still leave the pair inconsistent.
func (fs *FS) WriteFile(ctx context.Context, file Path, content []byte, rec *Record) error {
	if file.IsDir() {
		return storage.ErrIsDirectory
	}
	if _, err := rec.LastModified(); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	unlock := fs.locks.Lock(file.Key())
	defer unlock()

	if err := fs.backend.Destroy(ctx, file.Key()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("write %s: clear old content: %w", file, err)
	}
	if err := fs.backend.Write(ctx, file.Key(), 0, content); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	if err := fs.writeSidecar(ctx, file, rec); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	return nil
}

// Mkdir creates a directory entry and its property sidecar.
func (fs *FS) Mkdir(ctx context.Context, dir Path, rec *Record) error {
	if !dir.IsDir() {
		return storage.ErrNotDirectory
	}
	unlock := fs.locks.Lock(dir.Key())
	defer unlock()

	if err := fs.backend.Mkdir(ctx, dir.Key()); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	if err := fs.writeSidecar(ctx, dir, rec); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// MkdirAll materializes every missing ancestor of dir in root-to-leaf
// order, each with a default property record.
func (fs *FS) MkdirAll(ctx context.Context, dir Path) error {
	segments := dir.Segments()
	for i := 1; i <= len(segments); i++ {
		prefix := NewDir(segments[:i]...)
		info, err := fs.backend.Stat(ctx, prefix.Key())
		if err == nil {
			if !info.IsDir {
				return fmt.Errorf("mkdir %s: %w", prefix, storage.ErrNotDirectory)
			}
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("mkdir %s: %w", prefix, err)
		}
		if err := fs.Mkdir(ctx, prefix, NewDirRecord(time.Now())); err != nil {
			return err
		}
		fs.logger.Debug("materialized directory", "path", prefix.String())
	}
	return nil
}

// List enumerates a directory. Sidecar entries are excluded, each
// remaining name is classified via stat, and entries whose stat fails
// are skipped rather than failing the listing. Order follows the
// backend's listing order.
func (fs *FS) List(ctx context.Context, dir Path) ([]Resource, error) {
	if !dir.IsDir() {
		return nil, storage.ErrNotDirectory
	}
	names, err := fs.backend.List(ctx, dir.Key())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	resources := make([]Resource, 0, len(names))
	for _, name := range names {
		if strings.HasSuffix(name, SidecarSuffix) {
			continue
		}
		info, err := fs.backend.Stat(ctx, dir.Child(name).Key())
		if err != nil {
			fs.logger.Warn("skipping unstattable entry",
				"dir", dir.String(),
				"name", name,
				"error", err)
			continue
		}
		child := dir.Child(name)
		if info.IsDir {
			child = dir.ChildDir(name)
		}
		resources = append(resources, Resource{
			Path:    child,
			Size:    info.Size,
			ModTime: info.ModTime,
		})
	}
	return resources, nil
}

// Destroy removes a resource and its sidecar. A recursive destroy on a
// directory removes every child depth-first first; the first child
// failure aborts and propagates, so a partial deletion is possible and
// is not rolled back.
func (fs *FS) Destroy(ctx context.Context, p Path, recursive bool) error {
	if recursive && p.IsDir() {
		children, err := fs.List(ctx, p)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := fs.Destroy(ctx, child.Path, true); err != nil {
				return err
			}
		}
	}

	unlock := fs.locks.Lock(p.Key())
	defer unlock()

	if err := fs.backend.Destroy(ctx, p.SidecarKey()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("destroy %s: sidecar: %w", p, err)
	}
	if err := fs.backend.Destroy(ctx, p.Key()); err != nil {
		return fmt.Errorf("destroy %s: %w", p, err)
	}
	return nil
}

// PropertyMap reads a resource's property record. A file record must
// carry getlastmodified; for directories a missing getlastmodified is
// synthesized on read from creationdate (or the epoch) without ever
// being persisted.
func (fs *FS) PropertyMap(ctx context.Context, p Path) (*Record, error) {
	rec, err := fs.StoredPropertyMap(ctx, p)
	if err != nil {
		return nil, err
	}
	if !p.IsDir() {
		return rec, nil
	}

	if _, ok := rec.GetDAV(PropGetLastModified); !ok {
		modTime := time.Unix(0, 0).UTC()
		if created, ok := rec.GetDAV(PropCreationDate); ok {
			if t, err := time.Parse(time.RFC3339, created.TextContent); err == nil {
				modTime = t
			}
		}
		rec.SetText(PropGetLastModified, modTime.UTC().Format(http.TimeFormat))
	}
	return rec, nil
}

// StoredPropertyMap reads the record exactly as persisted, without the
// directory getlastmodified synthesis. PROPPATCH goes through this so a
// synthesized value is never written back.
func (fs *FS) StoredPropertyMap(ctx context.Context, p Path) (*Record, error) {
	rec, err := fs.readRecord(ctx, p)
	if err != nil {
		if p.IsDir() && errors.Is(err, storage.ErrNotFound) {
			return NewRecord(), nil
		}
		return nil, err
	}
	if !p.IsDir() {
		if _, err := rec.LastModified(); err != nil {
			return nil, fmt.Errorf("file %s: %w", p, err)
		}
	}
	return rec, nil
}

// WritePropertyMap persists a resource's property record.
func (fs *FS) WritePropertyMap(ctx context.Context, p Path, rec *Record) error {
	if !p.IsDir() {
		if _, err := rec.LastModified(); err != nil {
			return fmt.Errorf("file %s: %w", p, err)
		}
	}
	unlock := fs.locks.Lock(p.Key())
	defer unlock()
	return fs.writeSidecar(ctx, p, rec)
}

// Valid checks the startup invariant: the configured root principal's
// record must contain both a password and a salt property, otherwise the
// store is unusable.
func (fs *FS) Valid(ctx context.Context, cfg Config) error {
	principal := ParsePath(cfg.PrincipalPath).AsDir()
	rec, err := fs.PropertyMap(ctx, principal)
	if err != nil {
		return fmt.Errorf("%w: principal %s: %v", ErrValidation, principal, err)
	}
	if _, ok := rec.GetDAV(PropPassword); !ok {
		return fmt.Errorf("%w: principal %s has no password property", ErrValidation, principal)
	}
	if _, ok := rec.GetDAV(PropSalt); !ok {
		return fmt.Errorf("%w: principal %s has no salt property", ErrValidation, principal)
	}
	return nil
}

func (fs *FS) readRecord(ctx context.Context, p Path) (*Record, error) {
	data, err := fs.backend.Read(ctx, p.SidecarKey(), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read sidecar of %s: %w", p, err)
	}
	return DecodeRecord(data)
}

func (fs *FS) writeSidecar(ctx context.Context, p Path, rec *Record) error {
	data, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("encode sidecar of %s: %w", p, err)
	}
	if err := fs.backend.Destroy(ctx, p.SidecarKey()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("clear sidecar of %s: %w", p, err)
	}
	if err := fs.backend.Write(ctx, p.SidecarKey(), 0, data); err != nil {
		return fmt.Errorf("write sidecar of %s: %w", p, err)
	}
	return nil
}
