// Package resample implements a fixed-input-block resampler: it consumes
// exactly chunkSize input frames per process call and emits the
// corresponding number of output frames at the target rate.
//
// There's no FFT-style resampler in the reference stack this engine
// otherwise follows, so this generalizes beep.Resample's linear
// interpolation algorithm (see DESIGN.md) to the fixed-block shape the
// audio manager needs for hot-swap and rate-change handling.
package resample

// Resampler linearly interpolates fixed-size blocks of interleaved
// frames from inRate to outRate.
type Resampler struct {
	inRate   float64
	outRate  float64
	chunk    int
	channels int

	// pos is the fractional input-frame read cursor, carried across
	// process calls so block boundaries don't introduce clicks.
	pos float64

	// prev holds the last frame of the previous block, used as the
	// left-hand sample for interpolation at the start of the next one.
	prev []float64
}

// New builds a Resampler for chunkSize input frames of channels each.
func New(inRate, outRate float64, chunkSize, channels int) *Resampler {
	return &Resampler{
		inRate:   inRate,
		outRate:  outRate,
		chunk:    chunkSize,
		channels: channels,
		prev:     make([]float64, channels),
	}
}

// InputFramesNeeded is always the configured chunk size: this resampler
// only ever consumes whole blocks.
func (r *Resampler) InputFramesNeeded() int { return r.chunk }

// OutputFrames returns how many output frames a full input block of
// InputFramesNeeded produces, rounding down.
func (r *Resampler) OutputFrames() int {
	return int(float64(r.chunk) * r.outRate / r.inRate)
}

// Process resamples one fixed-size block of interleaved input frames
// (len(in) == chunkSize*channels) into a freshly sized interleaved
// output slice. The last call for a logical stream should instead go
// through Flush if the final block is short.
func (r *Resampler) Process(in []float64) []float64 {
	return r.process(in, r.chunk)
}

// Flush resamples a final, possibly short, block of nFrames input
// frames (nFrames <= chunkSize; the caller silence-pads the remainder
// of in beyond nFrames*channels as needed by the manager before calling
// this, per spec.md §4.3's play_remaining behavior).
func (r *Resampler) Flush(in []float64, nFrames int) []float64 {
	if nFrames <= 0 {
		return nil
	}
	return r.process(in, nFrames)
}

func (r *Resampler) process(in []float64, nFrames int) []float64 {
	ratio := r.inRate / r.outRate
	outFrames := int(float64(nFrames) / ratio)
	out := make([]float64, outFrames*r.channels)

	frameAt := func(idx int, ch int) float64 {
		if idx < 0 {
			return r.prev[ch]
		}
		if idx >= nFrames {
			idx = nFrames - 1
		}
		return in[idx*r.channels+ch]
	}

	for i := 0; i < outFrames; i++ {
		srcPos := r.pos + float64(i)*ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)

		for ch := 0; ch < r.channels; ch++ {
			a := frameAt(idx, ch)
			b := frameAt(idx+1, ch)
			out[i*r.channels+ch] = a + (b-a)*frac
		}
	}

	r.pos += float64(outFrames) * ratio
	r.pos -= float64(nFrames)
	if r.pos < 0 {
		r.pos = 0
	}

	if nFrames > 0 {
		for ch := 0; ch < r.channels; ch++ {
			r.prev[ch] = in[(nFrames-1)*r.channels+ch]
		}
	}

	return out
}

// Reset clears interpolation state (the carried read cursor and the
// previous frame).
func (r *Resampler) Reset() {
	r.pos = 0
	for i := range r.prev {
		r.prev[i] = 0
	}
}

// InRate and OutRate report the configured rates, so the manager can
// detect when the source's rate no longer matches and a rebuild is due.
func (r *Resampler) InRate() float64  { return r.inRate }
func (r *Resampler) OutRate() float64 { return r.outRate }
