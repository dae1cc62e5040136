// sqlite based backend, persisting the object tree in a single database file
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/davkit/davkit/server/storage"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	path     TEXT PRIMARY KEY,
	is_dir   INTEGER NOT NULL,
	content  BLOB NOT NULL DEFAULT x'',
	mod_time INTEGER NOT NULL
);
`

// Store implements storage.Backend on top of a sqlite database. Paths are
// stored as flat keys; listing order is the primary key order.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open opens (and if needed initializes) the database at dsn. Use
// "file:davkit.db" for an on-disk store or "file::memory:" for tests.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite backend: %w", err)
	}
	// The database/sql pool would otherwise hand each query its own
	// connection, which breaks ":memory:" databases.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize sqlite schema: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO objects (path, is_dir, mod_time) VALUES ('', 1, ?)`,
		time.Now().UTC().Unix())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize sqlite root: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func normalize(path string) string {
	return strings.Trim(path, "/")
}

func parentKey(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[:i]
	}
	return ""
}

func baseName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

type row struct {
	isDir   bool
	size    int64
	modTime time.Time
}

func (s *Store) statKey(ctx context.Context, key string) (*row, error) {
	var isDir int
	var size int64
	var modUnix int64
	err := s.db.QueryRowContext(ctx,
		`SELECT is_dir, length(content), mod_time FROM objects WHERE path = ?`, key).
		Scan(&isDir, &size, &modUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", key, err)
	}
	return &row{isDir: isDir != 0, size: size, modTime: time.Unix(modUnix, 0).UTC()}, nil
}

func (s *Store) Stat(ctx context.Context, path string) (*storage.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := normalize(path)
	r, err := s.statKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return &storage.ObjectInfo{
		Name:    baseName(key),
		IsDir:   r.isDir,
		Size:    r.size,
		ModTime: r.modTime,
	}, nil
}

func (s *Store) Read(ctx context.Context, path string, offset int64, length int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := normalize(path)
	var isDir int
	var content []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT is_dir, content FROM objects WHERE path = ?`, key).
		Scan(&isDir, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	if isDir != 0 {
		return nil, storage.ErrIsDirectory
	}
	if offset < 0 || offset > int64(len(content)) {
		return nil, storage.ErrInvalidInput
	}
	end := int64(len(content))
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	return content[offset:end], nil
}

func (s *Store) Write(ctx context.Context, path string, offset int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(path)
	if key == "" {
		return storage.ErrIsDirectory
	}
	parent, err := s.statKey(ctx, parentKey(key))
	if err != nil {
		return err
	}
	if !parent.isDir {
		return storage.ErrNotDirectory
	}

	var isDir int
	var content []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT is_dir, content FROM objects WHERE path = ?`, key).
		Scan(&isDir, &content)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		content = nil
	case err != nil:
		return fmt.Errorf("write %q: %w", key, err)
	case isDir != 0:
		return storage.ErrIsDirectory
	}

	if offset < 0 || offset > int64(len(content)) {
		return storage.ErrInvalidInput
	}
	if grown := offset + int64(len(data)); grown > int64(len(content)) {
		buf := make([]byte, grown)
		copy(buf, content)
		content = buf
	}
	copy(content[offset:], data)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO objects (path, is_dir, content, mod_time) VALUES (?, 0, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET content = excluded.content, mod_time = excluded.mod_time`,
		key, content, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

func (s *Store) Mkdir(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(path)
	if key == "" {
		return storage.ErrAlreadyExists
	}
	if _, err := s.statKey(ctx, key); err == nil {
		return storage.ErrAlreadyExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	parent, err := s.statKey(ctx, parentKey(key))
	if err != nil {
		return err
	}
	if !parent.isDir {
		return storage.ErrNotDirectory
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO objects (path, is_dir, mod_time) VALUES (?, 1, ?)`,
		key, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("mkdir %q: %w", key, err)
	}
	return nil
}

func (s *Store) Destroy(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(path)
	if key == "" {
		return storage.ErrInvalidInput
	}
	r, err := s.statKey(ctx, key)
	if err != nil {
		return err
	}
	if r.isDir {
		var children int
		err := s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM objects WHERE path LIKE ? ESCAPE '\'`,
			likePrefix(key)+"%").Scan(&children)
		if err != nil {
			return fmt.Errorf("destroy %q: %w", key, err)
		}
		if children > 0 {
			return storage.ErrNotEmpty
		}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE path = ?`, key); err != nil {
		return fmt.Errorf("destroy %q: %w", key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, path string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := normalize(path)
	r, err := s.statKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if !r.isDir {
		return nil, storage.ErrNotDirectory
	}

	prefix := ""
	if key != "" {
		prefix = key + "/"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM objects WHERE path LIKE ? ESCAPE '\' AND path != ? ORDER BY path`,
		likeEscape(prefix)+"%", key)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", key, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("list %q: %w", key, err)
		}
		rest := p[len(prefix):]
		if !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	return names, rows.Err()
}

func likePrefix(key string) string {
	return likeEscape(key + "/")
}

// likeEscape escapes LIKE metacharacters so stored paths containing
// '%' or '_' cannot widen a prefix query.
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
