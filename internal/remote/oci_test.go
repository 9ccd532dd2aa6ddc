package remote

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestOCI spins up an in-memory registry and returns a store bound to a
// fresh tag in it.
func newTestOCI(t *testing.T) *OCI {
	t.Helper()
	srv := httptest.NewServer(registry.New(registry.Logger(log.New(io.Discard, "", 0))))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	r, err := NewOCI(u.Host+"/test/pins:main", nil)
	require.NoError(t, err)
	return r
}

func TestOCIEmptyBoard(t *testing.T) {
	ctx := context.Background()
	r := newTestOCI(t)

	// A missing tag is an empty board.
	ok, err := r.PathExists(ctx, "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.PathExists(ctx, "pin")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := r.ListDir(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = r.GetFile(ctx, "pin/v1/data.txt")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestOCIRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestOCI(t)

	require.NoError(t, r.PutFile(ctx, "pin/v1/data.txt", []byte("hello")))
	require.NoError(t, r.PutFile(ctx, "pin/v1/blob.bin", []byte("world")))

	data, err := r.GetFile(ctx, "pin/v1/data.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	ok, err := r.PathExists(ctx, "pin")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := r.ListDir(ctx, "pin")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Name: "v1", IsFile: false}, entries[0])

	entries, err = r.ListDir(ctx, "pin/v1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Name: "blob.bin", IsFile: true}, entries[0])
	assert.Equal(t, Entry{Name: "data.txt", IsFile: true}, entries[1])
}

func TestOCIPutOverwrites(t *testing.T) {
	ctx := context.Background()
	r := newTestOCI(t)

	require.NoError(t, r.PutFile(ctx, "pin/v1/data.txt", []byte("first")))
	require.NoError(t, r.PutFile(ctx, "pin/v1/data.txt", []byte("second")))

	data, err := r.GetFile(ctx, "pin/v1/data.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestOCIDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestOCI(t)

	require.NoError(t, r.PutFile(ctx, "pin/v1/data.txt", []byte("x")))
	require.NoError(t, r.PutFile(ctx, "pin/v2/data.txt", []byte("y")))

	require.NoError(t, r.DeleteFile(ctx, "pin/v1/data.txt"))

	_, err := r.GetFile(ctx, "pin/v1/data.txt")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = r.DeleteFile(ctx, "pin/v1/data.txt")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Sibling entries survive the manifest rewrite.
	data, err := r.GetFile(ctx, "pin/v2/data.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), data)

	ok, err := r.PathExists(ctx, "pin/v1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOCIVisibleToFreshHandle(t *testing.T) {
	ctx := context.Background()
	r := newTestOCI(t)

	require.NoError(t, r.PutFile(ctx, "pin/v1/data.txt", []byte("shared")))

	other, err := NewOCI(r.ref.String(), nil)
	require.NoError(t, err)

	data, err := other.GetFile(ctx, "pin/v1/data.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), data)
}

func TestOCIMkDirKeepsEmptyDir(t *testing.T) {
	ctx := context.Background()
	r := newTestOCI(t)

	require.NoError(t, r.MkDir(ctx, "pin"))
	require.NoError(t, r.MkDir(ctx, "pin")) // idempotent

	ok, err := r.PathExists(ctx, "pin")
	require.NoError(t, err)
	assert.True(t, ok)

	// The marker is invisible: the directory lists as empty, not missing.
	entries, err := r.ListDir(ctx, "pin")
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = r.ListDir(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Name: "pin", IsFile: false}, entries[0])
}

func TestOCIDeletePrunesDirMarkers(t *testing.T) {
	ctx := context.Background()
	r := newTestOCI(t)

	require.NoError(t, r.MkDir(ctx, "pin"))
	require.NoError(t, r.PutFile(ctx, "pin/v1/data.txt", []byte("x")))

	// Deleting the last real file takes the now-empty directory with it.
	require.NoError(t, r.DeleteFile(ctx, "pin/v1/data.txt"))

	ok, err := r.PathExists(ctx, "pin")
	require.NoError(t, err)
	assert.False(t, ok, "emptied tree should be pruned")
}

func TestOCIDedupesIdenticalContent(t *testing.T) {
	ctx := context.Background()
	r := newTestOCI(t)

	require.NoError(t, r.PutFile(ctx, "a/v1/data.txt", []byte("same bytes")))
	require.NoError(t, r.PutFile(ctx, "b/v1/data.txt", []byte("same bytes")))

	_, index, err := r.load(ctx)
	require.NoError(t, err)
	require.Len(t, index, 2)
	assert.Equal(t, index["a/v1/data.txt"].Digest, index["b/v1/data.txt"].Digest)
}
