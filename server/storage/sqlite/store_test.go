package sqlite

import (
	"context"
	"testing"

	"github.com/davkit/davkit/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Mkdir(ctx, "cal"))
	require.NoError(t, s.Write(ctx, "cal/a.ics", 0, []byte("BEGIN:VCALENDAR")))

	data, err := s.Read(ctx, "cal/a.ics", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", string(data))

	data, err = s.Read(ctx, "cal/a.ics", 6, 9)
	require.NoError(t, err)
	assert.Equal(t, "VCALENDAR", string(data))

	info, err := s.Stat(ctx, "cal/a.ics")
	require.NoError(t, err)
	assert.False(t, info.IsDir)
	assert.EqualValues(t, 15, info.Size)
}

func TestParentChecks(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Write(ctx, "nope/a.ics", 0, []byte("x")), storage.ErrNotFound)
	assert.ErrorIs(t, s.Mkdir(ctx, "nope/sub"), storage.ErrNotFound)

	require.NoError(t, s.Write(ctx, "file", 0, []byte("x")))
	assert.ErrorIs(t, s.Mkdir(ctx, "file/sub"), storage.ErrNotDirectory)
}

func TestListOrderAndScope(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Mkdir(ctx, "cal"))
	require.NoError(t, s.Write(ctx, "cal/b.ics", 0, []byte("B")))
	require.NoError(t, s.Write(ctx, "cal/a.ics", 0, []byte("A")))
	require.NoError(t, s.Mkdir(ctx, "cal/sub"))
	require.NoError(t, s.Write(ctx, "cal/sub/deep.ics", 0, []byte("D")))
	require.NoError(t, s.Mkdir(ctx, "calendar"))

	names, err := s.List(ctx, "cal")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ics", "b.ics", "sub"}, names)

	names, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"cal", "calendar"}, names)
}

func TestDestroy(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Mkdir(ctx, "cal"))
	require.NoError(t, s.Write(ctx, "cal/a.ics", 0, []byte("A")))

	assert.ErrorIs(t, s.Destroy(ctx, "cal"), storage.ErrNotEmpty)
	require.NoError(t, s.Destroy(ctx, "cal/a.ics"))
	require.NoError(t, s.Destroy(ctx, "cal"))
	assert.ErrorIs(t, s.Destroy(ctx, "cal"), storage.ErrNotFound)
}
