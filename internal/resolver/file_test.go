package resolver

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileResolverMaterializePlainPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake-mp3-bytes"), 0644))

	fr := NewFileResolver()
	src, cancel, err := fr.Materialize(context.Background(), path)
	require.NoError(t, err)
	defer src.Close()
	cancel()

	assert.Equal(t, "mp3", src.Ext())

	n, ok := src.Len()
	require.True(t, ok)
	assert.EqualValues(t, len("fake-mp3-bytes"), n)

	data, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "fake-mp3-bytes", string(data))
}

func TestFileResolverMaterializeFileSchemeURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.flac")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	fr := NewFileResolver()
	src, cancel, err := fr.Materialize(context.Background(), "file://"+path)
	require.NoError(t, err)
	defer src.Close()
	cancel()

	assert.Equal(t, "flac", src.Ext())
}

func TestFileResolverMaterializeMissingFileErrors(t *testing.T) {
	fr := NewFileResolver()
	_, _, err := fr.Materialize(context.Background(), "/no/such/file.mp3")
	assert.Error(t, err)
}

func TestFileResolverSeek(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.wav")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))

	fr := NewFileResolver()
	src, cancel, err := fr.Materialize(context.Background(), path)
	require.NoError(t, err)
	defer src.Close()
	defer cancel()

	pos, err := src.Seek(5, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 5, pos)

	rest, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "56789", string(rest))
}

func TestFileResolverPriorityAndRules(t *testing.T) {
	fr := NewFileResolver()
	assert.Equal(t, 3, fr.Priority())
	assert.True(t, ruleSetMatches(fr.Rules(), "/any/path.mp3"))
	assert.True(t, ruleSetMatches(fr.Rules(), "file:///any/path.mp3"))
}
