// Package tags extracts in-stream metadata (ID3, Vorbis comments, MP4
// atoms, ...) from a Source before it is handed to the decoder.
package tags

import (
	"github.com/dhowden/tag"

	"github.com/jrmoore/platune/internal/logging"
	"github.com/jrmoore/platune/internal/source"
	"github.com/jrmoore/platune/pkg/platune"
)

var log = logging.For("TAGS")

// Extract reads tag metadata from src and rewinds it to the start
// afterward so a subsequent decode sees the full stream. Returns nil if
// no tags are present or the source isn't seekable in a way tag.ReadFrom
// accepts; this is advisory data, never a hard failure.
func Extract(src source.Source) *platune.Metadata {
	m, err := tag.ReadFrom(src)
	if _, serr := src.Seek(0, 0); serr != nil {
		log.Warn().Err(serr).Msg("failed to rewind source after tag extraction")
	}
	if err != nil {
		log.Debug().Err(err).Msg("no in-stream tags found")
		return nil
	}

	meta := &platune.Metadata{}
	if artist := m.Artist(); artist != "" {
		meta.Artist = &artist
	}
	if albumArtist := m.AlbumArtist(); albumArtist != "" {
		meta.AlbumArtist = &albumArtist
	}
	if album := m.Album(); album != "" {
		meta.Album = &album
	}
	if title := m.Title(); title != "" {
		meta.Song = &title
	}
	if num, _ := m.Track(); num != 0 {
		meta.TrackNumber = &num
	}
	return meta
}
