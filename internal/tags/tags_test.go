package tags

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

// memSource is an in-memory source.Source backed by a byte slice, for
// exercising tag extraction without a real audio file.
type memSource struct {
	*bytes.Reader
	ext       string
	seekErr   error
	seekCalls int
}

func newMemSource(data []byte, ext string) *memSource {
	return &memSource{Reader: bytes.NewReader(data), ext: ext}
}

func (m *memSource) Close() error { return nil }
func (m *memSource) Seek(offset int64, whence int) (int64, error) {
	m.seekCalls++
	if m.seekErr != nil {
		return 0, m.seekErr
	}
	return m.Reader.Seek(offset, whence)
}
func (m *memSource) Len() (int64, bool) { return m.Reader.Size(), true }
func (m *memSource) Ext() string        { return m.ext }

func TestExtractReturnsNilForUntaggedData(t *testing.T) {
	src := newMemSource([]byte("not a real audio file with tags"), "mp3")
	meta := Extract(src)
	assert.Nil(t, meta)
}

func TestExtractRewindsSourceEvenOnFailure(t *testing.T) {
	src := newMemSource([]byte("garbage"), "mp3")
	_, err := io.ReadAll(src) // advance the read position first
	assert.NoError(t, err)

	Extract(src)

	assert.Equal(t, 1, src.seekCalls)
	pos, _ := src.Reader.Seek(0, io.SeekCurrent)
	assert.EqualValues(t, 0, pos)
}

func TestExtractToleratesRewindFailure(t *testing.T) {
	src := newMemSource([]byte("garbage"), "mp3")
	src.seekErr = errors.New("not seekable")

	assert.NotPanics(t, func() {
		meta := Extract(src)
		assert.Nil(t, meta)
	})
}
