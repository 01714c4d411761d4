package decoder

import (
	"errors"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStreamer is a hand-rolled beep.StreamSeekCloser over an in-memory
// stereo frame buffer, standing in for a real demuxer so Seek/Next/Close
// can be exercised without a real audio file.
type fakeStreamer struct {
	frames       []stereoFrame
	pos          int
	err          error
	failNextSeek bool
	closed       bool
}

func (f *fakeStreamer) Stream(samples [][2]float64) (int, bool) {
	if f.pos >= len(f.frames) {
		return 0, false
	}
	n := copy(samples, f.frames[f.pos:])
	f.pos += n
	return n, true
}

func (f *fakeStreamer) Err() error    { return f.err }
func (f *fakeStreamer) Len() int      { return len(f.frames) }
func (f *fakeStreamer) Position() int { return f.pos }
func (f *fakeStreamer) Seek(p int) error {
	if f.failNextSeek {
		f.failNextSeek = false
		return errors.New("seek failed")
	}
	if p < 0 || p > len(f.frames) {
		return errors.New("seek out of range")
	}
	f.pos = p
	return nil
}
func (f *fakeStreamer) Close() error { f.closed = true; return nil }

func newTestDecoder(frames []stereoFrame, outputChannels int, volume float64) *Decoder {
	return &Decoder{
		streamer:       &fakeStreamer{frames: frames},
		format:         beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2},
		outputChannels: outputChannels,
		volume:         volume,
		frames:         make([]stereoFrame, len(frames)),
	}
}

func TestFirstNonZeroFindsLeadingSilenceBoundary(t *testing.T) {
	buf := []float64{0, 0, 0, 0, 0.5, 0.3}
	assert.Equal(t, 4, firstNonZero(buf))
}

func TestFirstNonZeroAllSilentReturnsMinusOne(t *testing.T) {
	buf := make([]float64, 8)
	assert.Equal(t, -1, firstNonZero(buf))
}

func TestApplyCurrentStereoAppliesVolume(t *testing.T) {
	d := newTestDecoder(nil, 2, 0.5)
	d.frames = []stereoFrame{{1.0, -1.0}, {0.2, 0.4}}

	d.applyCurrent(2)

	require.Equal(t, 4, d.currentLen)
	got := d.Current()
	assert.InDelta(t, 0.5, got[0], 1e-9)
	assert.InDelta(t, -0.5, got[1], 1e-9)
	assert.InDelta(t, 0.1, got[2], 1e-9)
	assert.InDelta(t, 0.2, got[3], 1e-9)
}

func TestApplyCurrentMonoDownmixAverages(t *testing.T) {
	d := newTestDecoder(nil, 1, 1.0)
	d.frames = []stereoFrame{{1.0, 0.0}, {0.5, 0.5}}

	d.applyCurrent(2)

	require.Equal(t, 2, d.currentLen)
	got := d.Current()
	assert.InDelta(t, 0.5, got[0], 1e-9)
	assert.InDelta(t, 0.5, got[1], 1e-9)
}

func TestEnsureCapGrowsAndPreservesExistingContent(t *testing.T) {
	d := newTestDecoder(nil, 2, 1.0)
	d.currentBuf = []float64{1, 2, 3}

	d.ensureCap(10)

	assert.GreaterOrEqual(t, cap(d.currentBuf), 10)
	assert.Equal(t, []float64{1, 2, 3}, d.currentBuf[:3])
}

func TestNextWhilePausedReturnsZeroedBufferSameLength(t *testing.T) {
	d := newTestDecoder(nil, 2, 1.0)
	d.currentBuf = []float64{0.7, 0.8, 0.9, 0.1}
	d.currentLen = 4
	d.Pause()

	out, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, out)

	d.Resume()
	assert.False(t, d.paused)
}

func TestNextAdvancesThroughStreamerAndAppliesVolume(t *testing.T) {
	frames := []stereoFrame{{1.0, 1.0}, {0.5, 0.5}}
	d := newTestDecoder(frames, 2, 0.25)

	out, err := d.Next()
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.InDelta(t, 0.25, out[0], 1e-9)
	assert.InDelta(t, 0.25, out[1], 1e-9)
	assert.InDelta(t, 0.125, out[2], 1e-9)
	assert.InDelta(t, 0.125, out[3], 1e-9)
}

func TestNextAtEndOfStreamReturnsNilNil(t *testing.T) {
	d := newTestDecoder(nil, 2, 1.0)
	out, err := d.Next()
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestNextPropagatesStreamerError(t *testing.T) {
	d := newTestDecoder(nil, 2, 1.0)
	d.streamer.(*fakeStreamer).err = errors.New("boom")

	_, err := d.Next()
	require.Error(t, err)
	var decErr *Error
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, KindDecodeError, decErr.Kind)
}

func TestSeekClampsNegativeAndOutOfRangeTargets(t *testing.T) {
	frames := make([]stereoFrame, 100)
	d := newTestDecoder(frames, 2, 1.0)

	pos, err := d.Seek(-5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), pos)

	pos, err = d.Seek(time.Hour)
	require.NoError(t, err)
	assert.Less(t, pos, time.Hour)
}

func TestSeekRestoresPositionOnFailure(t *testing.T) {
	frames := make([]stereoFrame, 100)
	d := newTestDecoder(frames, 2, 1.0)
	fs := d.streamer.(*fakeStreamer)
	fs.pos = 10
	fs.failNextSeek = true

	_, err := d.Seek(time.Second)
	require.Error(t, err)
	assert.Equal(t, 10, fs.pos)
}

func TestCurrentPositionReflectsStreamerPosition(t *testing.T) {
	frames := make([]stereoFrame, 44100)
	d := newTestDecoder(frames, 2, 1.0)
	fs := d.streamer.(*fakeStreamer)
	fs.pos = 22050

	cp := d.CurrentPosition()
	assert.InDelta(t, 500*time.Millisecond, cp.Position, float64(time.Millisecond))
}

func TestCloseClosesUnderlyingStreamer(t *testing.T) {
	d := newTestDecoder(nil, 2, 1.0)
	fs := d.streamer.(*fakeStreamer)
	require.NoError(t, d.Close())
	assert.True(t, fs.closed)
}

func TestSetVolumeRoundTrips(t *testing.T) {
	d := newTestDecoder(nil, 2, 0.3)
	d.SetVolume(0.9)
	assert.InDelta(t, 0.9, d.Volume(), 1e-9)
}
