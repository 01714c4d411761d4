// Package decoder implements C2: demuxing and decoding a single Source
// into interleaved float64 frames, with mid-stream pause, seek, and
// volume application, plus gapless leading-silence trim on the first
// packet.
package decoder

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"github.com/jrmoore/platune/internal/logging"
	"github.com/jrmoore/platune/internal/source"
	"github.com/jrmoore/platune/internal/tags"
	"github.com/jrmoore/platune/pkg/platune"
)

var log = logging.For("DECODER")

// chunkFrames is how many stereo frames each Next call pulls from the
// underlying streamer. This stands in for symphonia's "one packet" unit:
// it's the granularity at which paused/seek/volume commands take effect
// and at which Position events are evaluated upstream.
const chunkFrames = 1024

// Params constructs a Decoder.
type Params struct {
	Source         source.Source
	Volume         float64
	OutputChannels int
	StartPosition  *time.Duration
}

// Decoder demuxes and decodes one Source, producing interleaved float64
// samples in OutputChannels layout (1 or 2).
type Decoder struct {
	streamer       beep.StreamSeekCloser
	format         beep.Format
	outputChannels int
	volume         float64
	paused         bool

	frames []stereoFrame

	currentBuf []float64
	currentLen int

	// DiscoveredTags is populated once, at construction, from in-stream
	// tags (ID3/Vorbis comments/etc) when present.
	DiscoveredTags *platune.Metadata
}

type stereoFrame = [2]float64

// New probes the source by extension hint, opens a demuxer/decoder with
// gapless framing, selects the default (only) track, and runs the
// silence-trim or position-preserving init path from spec.md §4.2.
func New(p Params) (*Decoder, error) {
	discovered := tags.Extract(p.Source)

	streamer, format, err := decodeSource(p.Source)
	if err != nil {
		return nil, err
	}
	if format.NumChannels > 2 {
		_ = streamer.Close()
		return nil, &Error{
			Kind: KindUnsupportedFormat,
			Err:  fmt.Errorf("audio sources with more than 2 channels are not supported (got %d)", format.NumChannels),
		}
	}

	outCh := p.OutputChannels
	if outCh != 1 {
		outCh = 2
	}

	d := &Decoder{
		streamer:       streamer,
		format:         format,
		outputChannels: outCh,
		volume:         p.Volume,
		frames:         make([]stereoFrame, chunkFrames),
		DiscoveredTags: discovered,
	}

	if p.StartPosition != nil {
		if _, err := d.Seek(*p.StartPosition); err != nil {
			log.Warn().Err(err).Dur("position", *p.StartPosition).Msg("unable to seek to start position")
		}
		if err := d.initializePreserveSilence(); err != nil {
			_ = streamer.Close()
			return nil, err
		}
	} else {
		if err := d.initializeTrimSilence(); err != nil {
			_ = streamer.Close()
			return nil, err
		}
	}

	return d, nil
}

func decodeSource(src source.Source) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(src.Ext(), "."))

	type attempt struct {
		name   string
		decode func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)
	}
	attempts := []attempt{
		{"mp3", mp3.Decode},
		{"wav", wavDecode},
		{"flac", flacDecode},
		{"ogg", vorbisDecode},
	}

	// Extension hint goes first; if it fails to probe we fall back to
	// trying the rest in priority order, rewinding the source each time.
	ordered := make([]attempt, 0, len(attempts))
	for i, a := range attempts {
		if a.name == ext || (ext == "oga" && a.name == "ogg") || (ext == "vorbis" && a.name == "ogg") {
			ordered = append(ordered, a)
			attempts = append(attempts[:i], attempts[i+1:]...)
			break
		}
	}
	ordered = append(ordered, attempts...)

	var lastErr error
	for i, a := range ordered {
		if i > 0 {
			if _, err := src.Seek(0, 0); err != nil {
				return nil, beep.Format{}, &Error{Kind: KindFormatNotFound, Err: err}
			}
		}
		streamer, format, err := a.decode(src)
		if err == nil {
			return streamer, format, nil
		}
		lastErr = err
	}

	return nil, beep.Format{}, &Error{Kind: KindFormatNotFound, Err: lastErr}
}

func wavDecode(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)    { return wav.Decode(r) }
func flacDecode(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)   { return flac.Decode(r) }
func vorbisDecode(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(r) }

// SetVolume updates the volume applied to future frames.
func (d *Decoder) SetVolume(v float64) { d.volume = v }

// Volume returns the currently applied volume.
func (d *Decoder) Volume() float64 { return d.volume }

// Pause makes Next return a same-length zeroed buffer instead of
// advancing the underlying reader.
func (d *Decoder) Pause() { d.paused = true }

// Resume undoes Pause.
func (d *Decoder) Resume() { d.paused = false }

// SampleRate is the input (source) sample rate.
func (d *Decoder) SampleRate() int { return int(d.format.SampleRate) }

// Current returns the most recently produced buffer (from New's init or
// the last Next call) without advancing.
func (d *Decoder) Current() []float64 { return d.currentBuf[:d.currentLen] }

// Next decodes the next chunk of frames. A nil, nil return means the
// source reached end of stream; a non-nil error wraps the decoder error
// taxonomy in spec.md §7. beep's Streamer contract only reports failure
// as a terminal ok=false plus Err(), so a corrupt packet ends the stream
// rather than being individually skippable; such a failure surfaces here
// as KindDecodeError.
func (d *Decoder) Next() ([]float64, error) {
	if d.paused {
		for i := range d.currentBuf[:d.currentLen] {
			d.currentBuf[i] = 0
		}
		return d.currentBuf[:d.currentLen], nil
	}

	n, ok := d.streamer.Stream(d.frames)
	if !ok {
		if err := d.streamer.Err(); err != nil {
			return nil, &Error{Kind: KindDecodeError, Err: err}
		}
		return nil, nil
	}
	d.applyCurrent(n)
	return d.currentBuf[:d.currentLen], nil
}

// Seek coarse-seeks the underlying reader. On failure it restores the
// previously reported position and returns the original error.
func (d *Decoder) Seek(t time.Duration) (time.Duration, error) {
	prev := d.streamer.Position()
	target := d.format.SampleRate.N(t)
	if target < 0 {
		target = 0
	}
	if l := d.streamer.Len(); l > 0 && target >= l {
		target = l - 1
	}

	if err := d.streamer.Seek(target); err != nil {
		log.Warn().Err(err).Msg("seek failed, restoring previous position")
		if _, rerr := d.streamer.Seek(prev); rerr != nil {
			log.Error().Err(rerr).Msg("failed to restore position after failed seek")
		}
		return d.format.SampleRate.D(prev), err
	}

	return d.format.SampleRate.D(d.streamer.Position()), nil
}

// CurrentPosition reports the decoder's position and the wallclock time
// it was computed at.
func (d *Decoder) CurrentPosition() platune.CurrentPosition {
	return platune.CurrentPosition{
		Position:      d.format.SampleRate.D(d.streamer.Position()),
		RetrievalTime: time.Now(),
	}
}

// Close releases the underlying reader.
func (d *Decoder) Close() error { return d.streamer.Close() }

func (d *Decoder) applyCurrent(n int) {
	outLen := n * d.outputChannels
	d.ensureCap(outLen)
	switch d.outputChannels {
	case 2:
		for i := 0; i < n; i++ {
			l, r := d.frames[i][0], d.frames[i][1]
			d.currentBuf[2*i] = l * d.volume
			d.currentBuf[2*i+1] = r * d.volume
		}
	default:
		for i := 0; i < n; i++ {
			l, r := d.frames[i][0], d.frames[i][1]
			d.currentBuf[i] = (l + r) / 2 * d.volume
		}
	}
	d.currentLen = outLen
}

func (d *Decoder) ensureCap(n int) {
	if cap(d.currentBuf) < n {
		buf := make([]float64, n)
		copy(buf, d.currentBuf)
		d.currentBuf = buf
	} else if len(d.currentBuf) < n {
		d.currentBuf = d.currentBuf[:n]
	}
}

// initializeTrimSilence decodes packets until the first non-zero sample,
// discards the leading silence, and applies the current volume to the
// remainder. Detection runs on un-scaled samples, so a volume of 0 never
// makes every sample look silent (the edge case spec.md §4.2 calls out
// for a timestamp-based decoder is moot here because trim detection and
// volume application are separate steps).
func (d *Decoder) initializeTrimSilence() error {
	for {
		n, ok := d.streamer.Stream(d.frames)
		if !ok {
			if err := d.streamer.Err(); err != nil {
				return &Error{Kind: KindDecodeError, Err: err}
			}
			d.currentLen = 0
			return nil
		}

		outLen := n * d.outputChannels
		d.ensureCap(outLen)
		raw := d.currentBuf[:outLen]
		switch d.outputChannels {
		case 2:
			for i := 0; i < n; i++ {
				raw[2*i] = d.frames[i][0]
				raw[2*i+1] = d.frames[i][1]
			}
		default:
			for i := 0; i < n; i++ {
				raw[i] = (d.frames[i][0] + d.frames[i][1]) / 2
			}
		}

		idx := firstNonZero(raw)
		if idx == -1 {
			continue
		}
		if d.outputChannels == 2 && idx%2 == 1 {
			idx--
		}

		trimmed := raw[idx:]
		for i := range trimmed {
			trimmed[i] *= d.volume
		}
		copy(d.currentBuf, trimmed)
		d.currentLen = len(trimmed)
		log.Info().Int("skipped_samples", idx).Msg("trimmed leading silence")
		return nil
	}
}

// initializePreserveSilence decodes a single chunk without trimming,
// used when starting from a caller-supplied position.
func (d *Decoder) initializePreserveSilence() error {
	n, ok := d.streamer.Stream(d.frames)
	if !ok {
		if err := d.streamer.Err(); err != nil {
			return &Error{Kind: KindDecodeError, Err: err}
		}
		d.currentLen = 0
		return nil
	}
	d.applyCurrent(n)
	return nil
}

func firstNonZero(buf []float64) int {
	for i, s := range buf {
		if s != 0 {
			return i
		}
	}
	return -1
}
