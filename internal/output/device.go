// Package output implements C4: a bounded ring-buffered pull-mode audio
// output device on top of portaudio's callback stream, with device
// hot-swap and the DeviceNotAvailable/other-error recovery split from
// spec.md §4.4.
package output

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/jrmoore/platune/internal/logging"
)

var log = logging.For("OUTPUT")

const (
	writeTimeout = time.Second
	ringFrames   = 1 << 15 // ring capacity in interleaved samples

	// sentinel marks unfilled callback samples in test mode, so tests can
	// tell "the engine wrote silence" apart from "nothing was written".
	sentinel = float32(-1)

	// deviceWatchInterval is how often the background watchdog re-checks
	// that the opened device still shows up in the system device list.
	// portaudio's callback API has no async error notification, so
	// polling the device table is the only way to detect an unplugged
	// device short of a failed Write.
	deviceWatchInterval = 2 * time.Second
)

// Initialize must be called once before any Device is opened, and
// Terminate once on shutdown; both wrap portaudio's global init.
func Initialize() error { return portaudio.Initialize() }
func Terminate() error  { return portaudio.Terminate() }

// ErrorSignal is delivered when the device backend reports a stream
// error. Unavailable distinguishes a removed/unplugged device (which the
// caller should answer with Reset) from any other error (Stop).
type ErrorSignal struct {
	Err         error
	Unavailable bool
}

// Device is a started or stopped audio output sink. The zero value is
// not usable; construct with New.
type Device struct {
	stream     *portaudio.Stream
	ring       *ring
	sampleRate float64
	channels   int
	deviceName string
	testMode   bool
	started    bool

	scratchBuf []float32
	stopWatch  chan struct{}

	Errors chan ErrorSignal
}

// New opens (but does not start) an output device. deviceName selects a
// specific device by name; empty uses the system default output. A
// background watchdog begins polling for the device's disappearance
// (Errors) as soon as the stream is open.
func New(deviceName string, sampleRate float64, channels int, testMode bool) (*Device, error) {
	d := &Device{
		ring:       newRing(ringFrames),
		sampleRate: sampleRate,
		channels:   channels,
		deviceName: deviceName,
		testMode:   testMode,
		stopWatch:  make(chan struct{}),
		Errors:     make(chan ErrorSignal, 4),
	}

	dev, err := resolveDevice(deviceName)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(nil, dev)
	params.Output.Channels = channels
	params.SampleRate = sampleRate

	stream, err := portaudio.OpenStream(params, d.callback)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	d.stream = stream
	if !testMode {
		go d.watchDevice()
	}
	return d, nil
}

// watchDevice polls for the configured device dropping out of the
// system's device list (e.g. unplugged) and reports it on Errors as
// Unavailable so the engine can self-issue a Reset once a replacement
// device is available. It exits when stopWatch is closed by Close.
func (d *Device) watchDevice() {
	ticker := time.NewTicker(deviceWatchInterval)
	defer ticker.Stop()
	reported := false
	for {
		select {
		case <-d.stopWatch:
			return
		case <-ticker.C:
			_, err := resolveDevice(d.deviceName)
			if err != nil && !reported {
				reported = true
				select {
				case d.Errors <- ErrorSignal{Err: err, Unavailable: true}:
				default:
					log.Warn().Err(err).Msg("device error channel full, dropping unavailable signal")
				}
			} else if err == nil {
				reported = false
			}
		}
	}
}

// ListDevices enumerates output-capable devices by name, for
// SetOutputDevice.
func ListDevices() ([]string, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, dev := range devices {
		if dev.MaxOutputChannels > 0 {
			names = append(names, dev.Name)
		}
	}
	return names, nil
}

func resolveDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxOutputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("output device %q not found", name)
}

// callback is invoked on the backend's real-time thread: it must never
// allocate once steady state is reached, hence the reused scratch
// buffer.
func (d *Device) callback(out [][]float32) {
	n := len(out[0])
	interleaved := d.scratch(n * d.channels)
	got := d.ring.Read(interleaved)

	fill := sentinel
	if !d.testMode {
		fill = 0
	}
	for i := got; i < len(interleaved); i++ {
		interleaved[i] = fill
	}

	for ch := 0; ch < d.channels; ch++ {
		for i := 0; i < n; i++ {
			out[ch][i] = interleaved[i*d.channels+ch]
		}
	}
}

func (d *Device) scratch(n int) []float32 {
	if cap(d.scratchBuf) < n {
		d.scratchBuf = make([]float32, n)
	}
	return d.scratchBuf[:n]
}

// Start begins pulling from the ring buffer, reopening it (empty) if a
// previous Stop closed it. Idempotent.
func (d *Device) Start() error {
	if d.started {
		return nil
	}
	d.ring.Reset()
	if err := d.stream.Start(); err != nil {
		return err
	}
	d.started = true
	return nil
}

// Stop halts the stream and unblocks any pending Write.
func (d *Device) Stop() error {
	if !d.started {
		return nil
	}
	d.ring.Close()
	err := d.stream.Stop()
	d.started = false
	return err
}

// Write enqueues interleaved samples, blocking up to one second if the
// ring is full before giving up and reporting a short write.
func (d *Device) Write(samples []float32) int {
	return d.ring.Write(samples, writeTimeout)
}

func (d *Device) SampleRate() float64 { return d.sampleRate }
func (d *Device) Channels() int       { return d.channels }
func (d *Device) DeviceName() string  { return d.deviceName }

// Close releases the underlying stream.
func (d *Device) Close() error {
	_ = d.Stop()
	close(d.stopWatch)
	return d.stream.Close()
}
