// Package audio implements C5: the audio manager. It owns the output
// device and the resampler, drives a Decoder packet-by-packet, and
// decides whether a packet needs resampling before it reaches the ring
// buffer.
package audio

import (
	"time"

	"github.com/jrmoore/platune/internal/decoder"
	"github.com/jrmoore/platune/internal/logging"
	"github.com/jrmoore/platune/internal/output"
	"github.com/jrmoore/platune/internal/resample"
)

var log = logging.For("AUDIO")

// resampleChunkFrames is the block size handed to the resampler; this
// mirrors the decoder's own per-Next block size so one decode call
// produces exactly one resample call when resampling is active.
const resampleChunkFrames = 1024

// Settings configures how a Processor drives decoded audio to the
// output device.
type Settings struct {
	EnableResampling bool
	OutputSampleRate float64
	OutputChannels   int
}

// Processor wraps a Decoder with the output device and (when needed) a
// resampler, implementing decode_source/decode_resample/
// decode_no_resample/play_remaining.
type Processor struct {
	dec      *decoder.Decoder
	out      *output.Device
	resample *resample.Resampler
	settings Settings

	// pending accumulates interleaved input samples until there's
	// enough for one resampler block.
	pending    []float64
	pendingLen int
}

// NewProcessor builds a Processor around an already-initialized decoder
// and output device, configuring a resampler if the rates differ and
// resampling is enabled.
func NewProcessor(dec *decoder.Decoder, out *output.Device, settings Settings) *Processor {
	p := &Processor{dec: dec, out: out, settings: settings}
	p.rebuildResampler()
	return p
}

func (p *Processor) needsResample() bool {
	return p.settings.EnableResampling && p.dec.SampleRate() != int(p.settings.OutputSampleRate)
}

func (p *Processor) rebuildResampler() {
	if !p.needsResample() {
		p.resample = nil
		p.pending = nil
		p.pendingLen = 0
		return
	}
	p.resample = resample.New(
		float64(p.dec.SampleRate()),
		p.settings.OutputSampleRate,
		resampleChunkFrames,
		p.settings.OutputChannels,
	)
	p.pending = make([]float64, resampleChunkFrames*p.settings.OutputChannels)
	p.pendingLen = 0
}

// DecodeSource drives the processor until the decoder reaches end of
// stream or stop is signalled (checked via shouldStop, polled between
// blocks so the caller's command loop stays responsive). Returns the
// position decoding stopped at, for resume after a hot-swap.
func (p *Processor) DecodeSource(shouldStop func() bool) (time.Duration, error) {
	for {
		if shouldStop != nil && shouldStop() {
			return p.dec.CurrentPosition().Position, nil
		}

		buf, err := p.dec.Next()
		if err != nil {
			return p.dec.CurrentPosition().Position, err
		}
		if buf == nil {
			p.playRemaining()
			return p.dec.CurrentPosition().Position, nil
		}

		if p.needsResample() {
			p.decodeResample(buf)
		} else {
			p.decodeNoResample(buf)
		}
	}
}

func (p *Processor) decodeNoResample(buf []float64) {
	samples := make([]float32, len(buf))
	for i, s := range buf {
		samples[i] = float32(s)
	}
	p.out.Write(samples)
}

func (p *Processor) decodeResample(buf []float64) {
	channels := p.settings.OutputChannels
	need := p.resample.InputFramesNeeded() * channels

	i := 0
	for i < len(buf) {
		n := copy(p.pending[p.pendingLen:need], buf[i:])
		p.pendingLen += n
		i += n

		if p.pendingLen == need {
			out := p.resample.Process(p.pending)
			p.writeFloat64(out)
			p.pendingLen = 0
		}
	}
}

// playRemaining pads any partial resampler input with silence and
// flushes the final block, matching spec.md §4.5's EOS behavior.
func (p *Processor) playRemaining() {
	if p.resample == nil || p.pendingLen == 0 {
		return
	}
	channels := p.settings.OutputChannels
	frames := p.pendingLen / channels

	for i := p.pendingLen; i < len(p.pending); i++ {
		p.pending[i] = 0
	}
	out := p.resample.Flush(p.pending, frames)
	p.writeFloat64(out)
	p.pendingLen = 0
}

func (p *Processor) writeFloat64(buf []float64) {
	samples := make([]float32, len(buf))
	for i, s := range buf {
		samples[i] = float32(s)
	}
	p.out.Write(samples)
}

// Reset reconfigures the processor for a new output sample rate/channel
// count, rebuilding the resampler (or clearing it) as needed. Used when
// the audio manager reinitializes after a device hot-swap.
func (p *Processor) Reset(settings Settings) {
	p.settings = settings
	p.rebuildResampler()
}

// Decoder exposes the underlying decoder for commands that bypass the
// processor (Seek, SetVolume, Pause/Resume, CurrentPosition).
func (p *Processor) Decoder() *decoder.Decoder { return p.dec }
