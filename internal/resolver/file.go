package resolver

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrmoore/platune/internal/source"
)

// FileResolver materializes file:// URLs and bare local paths.
type FileResolver struct{}

// NewFileResolver builds the default local-file materializer.
func NewFileResolver() *FileResolver { return &FileResolver{} }

func (FileResolver) Priority() int { return 3 }

func (FileResolver) Rules() []Rule {
	return []Rule{UrlScheme("file"), AnyString()}
}

func (FileResolver) Materialize(_ context.Context, input string) (source.Source, source.CancelFunc, error) {
	path := strings.TrimPrefix(input, "file://")

	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to open file source")
		return nil, nil, err
	}

	return &fileSource{f: f, ext: strings.TrimPrefix(filepath.Ext(path), ".")}, func() {}, nil
}

type fileSource struct {
	f   *os.File
	ext string
}

func (s *fileSource) Read(p []byte) (int, error)         { return s.f.Read(p) }
func (s *fileSource) Close() error                       { return s.f.Close() }
func (s *fileSource) Seek(o int64, w int) (int64, error) { return s.f.Seek(o, w) }
func (s *fileSource) Ext() string                        { return s.ext }

func (s *fileSource) Len() (int64, bool) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}
