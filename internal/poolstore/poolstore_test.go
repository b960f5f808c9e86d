package poolstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpus_dups/internal/dupcount"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoadPool(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	pool := dupcount.Count([]string{"hello world test", "hello world test", "another one here"})

	require.NoError(t, s.SavePool(ctx, "brown", pool))

	got, ok, err := s.LoadPool(ctx, "brown")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pool, got)
}

func TestLoadMissingPool(t *testing.T) {
	s := openMem(t)
	got, ok, err := s.LoadPool(context.Background(), "nothing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestEmptyPoolIsStillFound(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	require.NoError(t, s.SavePool(ctx, "empty", dupcount.Tally{}))

	got, ok, err := s.LoadPool(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestSaveReplacesAndIsolatesCorpora(t *testing.T) {
	s := openMem(t)
	ctx := context.Background()
	require.NoError(t, s.SavePool(ctx, "a", dupcount.Count([]string{"old key"})))
	require.NoError(t, s.SavePool(ctx, "ab", dupcount.Count([]string{"other corpus"})))
	require.NoError(t, s.SavePool(ctx, "a", dupcount.Count([]string{"new key", "new key"})))

	got, ok, err := s.LoadPool(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, dupcount.Tally{"new key": 2}, got)

	other, ok, err := s.LoadPool(ctx, "ab")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, dupcount.Tally{"other corpus": 1}, other)

	names, err := s.Corpora(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "ab"}, names)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pool")
	ctx := context.Background()

	s, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.SavePool(ctx, "gutenberg", dupcount.Count([]string{"x y z"})))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	got, ok, err := s.LoadPool(ctx, "gutenberg")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, got.Total())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
