package audio

import (
	"fmt"
	"time"

	"github.com/jrmoore/platune/internal/decoder"
	"github.com/jrmoore/platune/internal/output"
	"github.com/jrmoore/platune/internal/source"
)

// OutputConfig names the device and format a Manager's output should
// run at.
type OutputConfig struct {
	DeviceName string
	SampleRate float64
	Channels   int
	TestMode   bool
}

// Manager owns the single output device and resampler live at any time
// and builds Processors against them.
type Manager struct {
	out    *output.Device
	cfg    OutputConfig
	chunk  int
	enable bool
}

// NewManager opens the output device described by cfg.
func NewManager(cfg OutputConfig, resampleChunk int, enableResampling bool) (*Manager, error) {
	dev, err := output.New(cfg.DeviceName, cfg.SampleRate, cfg.Channels, cfg.TestMode)
	if err != nil {
		return nil, fmt.Errorf("open output device: %w", err)
	}
	return &Manager{out: dev, cfg: cfg, chunk: resampleChunk, enable: enableResampling}, nil
}

// InitializeProcessor builds a Decoder for src and wraps it in a
// Processor configured against the manager's current output.
func (m *Manager) InitializeProcessor(src source.Source, volume float64, startPosition *time.Duration) (*Processor, error) {
	dec, err := decoder.New(decoder.Params{
		Source:         src,
		Volume:         volume,
		OutputChannels: m.cfg.Channels,
		StartPosition:  startPosition,
	})
	if err != nil {
		return nil, err
	}

	return NewProcessor(dec, m.out, Settings{
		EnableResampling: m.enable,
		OutputSampleRate: m.cfg.SampleRate,
		OutputChannels:   m.cfg.Channels,
	}), nil
}

// Start begins pulling from the ring buffer. Idempotent.
func (m *Manager) Start() error { return m.out.Start() }

// Stop halts the output stream.
func (m *Manager) Stop() error { return m.out.Stop() }

// Reset replaces the output device (for a hot-swap to a new device
// name or format) and reconfigures the given processor against it.
func (m *Manager) Reset(cfg OutputConfig, proc *Processor) error {
	if err := m.out.Close(); err != nil {
		return fmt.Errorf("close previous output: %w", err)
	}

	dev, err := output.New(cfg.DeviceName, cfg.SampleRate, cfg.Channels, cfg.TestMode)
	if err != nil {
		return fmt.Errorf("open output device: %w", err)
	}
	m.out = dev
	m.cfg = cfg

	if proc != nil {
		proc.out = m.out
		proc.Reset(Settings{
			EnableResampling: m.enable,
			OutputSampleRate: cfg.SampleRate,
			OutputChannels:   cfg.Channels,
		})
	}
	return nil
}

// Errors surfaces the live output device's error signal channel.
func (m *Manager) Errors() <-chan output.ErrorSignal { return m.out.Errors }

// Close releases the output device.
func (m *Manager) Close() error { return m.out.Close() }
