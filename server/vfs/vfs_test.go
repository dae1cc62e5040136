package vfs_test

import (
	"context"
	"testing"
	"time"

	"github.com/davkit/davkit/server/storage"
	"github.com/davkit/davkit/server/storage/memory"
	"github.com/davkit/davkit/server/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFS(t *testing.T) *vfs.FS {
	t.Helper()
	return vfs.New(memory.New(), nil)
}

func mustWrite(t *testing.T, fs *vfs.FS, path, content string) {
	t.Helper()
	p := vfs.ParsePath(path)
	require.NoError(t, fs.MkdirAll(context.Background(), p.Parent()))
	rec := vfs.NewFileRecord("text/calendar", len(content), time.Now())
	require.NoError(t, fs.WriteFile(context.Background(), p, []byte(content), rec))
}

func TestWriteReadFile(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	mustWrite(t, fs, "/cal/a.ics", "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")

	content, rec, err := fs.ReadFile(ctx, vfs.ParsePath("/cal/a.ics"))
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", string(content))

	ct, ok := rec.GetDAV(vfs.PropGetContentType)
	require.True(t, ok)
	assert.Equal(t, "text/calendar", ct.TextContent)
	_, err = rec.LastModified()
	assert.NoError(t, err)
}

func TestWriteFileRequiresLastModified(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	rec := vfs.NewRecord()
	rec.SetText(vfs.PropGetContentType, "text/calendar")
	err := fs.WriteFile(ctx, vfs.ParsePath("/a.ics"), []byte("x"), rec)
	assert.ErrorIs(t, err, vfs.ErrMalformedRecord)
}

func TestListExcludesSidecars(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	require.NoError(t, fs.MkdirAll(ctx, vfs.ParsePath("/cal/sub/")))
	mustWrite(t, fs, "/cal/a.ics", "A")
	mustWrite(t, fs, "/cal/b.ics", "B")
	mustWrite(t, fs, "/cal/c.ics", "C")

	resources, err := fs.List(ctx, vfs.ParsePath("/cal/"))
	require.NoError(t, err)
	// 3 files + 1 sub-directory, no sidecar entries.
	require.Len(t, resources, 4)
	for _, res := range resources {
		name, err := res.Path.Basename()
		require.NoError(t, err)
		assert.NotContains(t, name, vfs.SidecarSuffix)
	}

	var dirs int
	for _, res := range resources {
		if res.Path.IsDir() {
			dirs++
		}
	}
	assert.Equal(t, 1, dirs)
}

func TestListDeterministicOrder(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	mustWrite(t, fs, "/cal/b.ics", "B")
	mustWrite(t, fs, "/cal/a.ics", "A")

	first, err := fs.List(ctx, vfs.ParsePath("/cal/"))
	require.NoError(t, err)
	second, err := fs.List(ctx, vfs.ParsePath("/cal/"))
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Path.Equal(second[i].Path))
	}
}

func TestMkdirAllMaterializesAncestors(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	require.NoError(t, fs.MkdirAll(ctx, vfs.ParsePath("/a/b/c/")))

	for _, dir := range []string{"/a/", "/a/b/", "/a/b/c/"} {
		info, err := fs.Stat(ctx, vfs.ParsePath(dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir, dir)

		rec, err := fs.PropertyMap(ctx, vfs.ParsePath(dir))
		require.NoError(t, err, dir)
		ct, ok := rec.GetDAV(vfs.PropGetContentType)
		require.True(t, ok, dir)
		assert.Equal(t, vfs.DirContentType, ct.TextContent)
	}

	// Idempotent.
	assert.NoError(t, fs.MkdirAll(ctx, vfs.ParsePath("/a/b/c/")))
}

func TestDirLastModifiedSynthesis(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	dir := vfs.ParsePath("/cal/")
	require.NoError(t, fs.MkdirAll(ctx, dir))

	rec, err := fs.PropertyMap(ctx, dir)
	require.NoError(t, err)
	_, err = rec.LastModified()
	require.NoError(t, err)

	// The synthesis never reaches the persisted sidecar.
	stored, err := fs.StoredPropertyMap(ctx, dir)
	require.NoError(t, err)
	_, ok := stored.GetDAV(vfs.PropGetLastModified)
	assert.False(t, ok)
}

func TestDirWithoutSidecarSynthesizesEpoch(t *testing.T) {
	backend := memory.New()
	fs := vfs.New(backend, nil)
	ctx := context.Background()

	// Create the directory entry directly, without a sidecar.
	require.NoError(t, backend.Mkdir(ctx, "bare"))

	rec, err := fs.PropertyMap(ctx, vfs.ParsePath("/bare/"))
	require.NoError(t, err)
	modified, err := rec.LastModified()
	require.NoError(t, err)
	assert.True(t, modified.Equal(time.Unix(0, 0)), "got %v", modified)
}

func TestFileWithoutRecordFails(t *testing.T) {
	backend := memory.New()
	fs := vfs.New(backend, nil)
	ctx := context.Background()

	require.NoError(t, backend.Write(ctx, "orphan.ics", 0, []byte("X")))

	_, _, err := fs.ReadFile(ctx, vfs.ParsePath("/orphan.ics"))
	assert.Error(t, err)
	_, err = fs.PropertyMap(ctx, vfs.ParsePath("/orphan.ics"))
	assert.Error(t, err)
}

func TestDestroyFile(t *testing.T) {
	backend := memory.New()
	fs := vfs.New(backend, nil)
	ctx := context.Background()

	mustWrite(t, fs, "/cal/a.ics", "A")
	require.NoError(t, fs.Destroy(ctx, vfs.ParsePath("/cal/a.ics"), false))

	_, err := fs.Stat(ctx, vfs.ParsePath("/cal/a.ics"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	// The sidecar went with it.
	_, err = backend.Stat(ctx, "cal/a.ics.prop.xml")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDestroyRecursiveLeavesNoResidue(t *testing.T) {
	backend := memory.New()
	fs := vfs.New(backend, nil)
	ctx := context.Background()

	mustWrite(t, fs, "/cal/a.ics", "A")
	mustWrite(t, fs, "/cal/sub/deep/b.ics", "B")

	require.NoError(t, fs.Destroy(ctx, vfs.ParsePath("/cal/"), true))

	names, err := backend.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDestroyNonRecursiveOnNonEmptyDirFails(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	mustWrite(t, fs, "/cal/a.ics", "A")
	err := fs.Destroy(ctx, vfs.ParsePath("/cal/"), false)
	assert.ErrorIs(t, err, storage.ErrNotEmpty)
}

func TestValid(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()
	cfg := vfs.Config{PrincipalPath: "/u/root/"}

	assert.ErrorIs(t, fs.Valid(ctx, cfg), vfs.ErrValidation)

	principal := vfs.ParsePath("/u/root/")
	require.NoError(t, fs.MkdirAll(ctx, principal))
	rec, err := fs.StoredPropertyMap(ctx, principal)
	require.NoError(t, err)
	rec.SetText(vfs.PropSalt, "pepper")
	require.NoError(t, fs.WritePropertyMap(ctx, principal, rec))
	assert.ErrorIs(t, fs.Valid(ctx, cfg), vfs.ErrValidation)

	rec.SetText(vfs.PropPassword, "0123abcd")
	require.NoError(t, fs.WritePropertyMap(ctx, principal, rec))
	assert.NoError(t, fs.Valid(ctx, cfg))
}
