package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jrmoore/platune/internal/audio"
	"github.com/jrmoore/platune/internal/chanutil"
	"github.com/jrmoore/platune/internal/events"
	"github.com/jrmoore/platune/internal/logging"
	"github.com/jrmoore/platune/internal/resolver"
	"github.com/jrmoore/platune/pkg/platune"
)

var log = logging.For("ENGINE")

const (
	queueChannelCapacity = 2
	getResponseTimeout   = 5 * time.Second
	shutdownWatchdog     = time.Second
	defaultResampleChunk = 1024
)

// Config configures a new Engine.
type Config struct {
	OutputDeviceName string
	OutputSampleRate float64
	OutputChannels   int
	EnableResampling bool
	ResampleChunk    int
	TestMode         bool
}

// Engine is the library's public entry point: the control goroutine
// (C7) wrapped in a method set that mirrors spec.md §6's abstract
// library API.
type Engine struct {
	cmdTx   chanutil.Sender[Command, Response]
	cmdRx   chanutil.Receiver[Command, Response]
	bus     *events.Bus
	manager *audio.Manager

	done chan struct{}
}

// New builds and starts an Engine: it opens the output device, uses
// reg to resolve queued tracks into sources, and launches the control
// and decoder-loop goroutines.
func New(cfg Config, reg *resolver.Registry) (*Engine, error) {
	resolver.CleanupStaleTempFiles()

	if cfg.OutputChannels != 1 {
		cfg.OutputChannels = 2
	}
	if cfg.ResampleChunk == 0 {
		cfg.ResampleChunk = defaultResampleChunk
	}

	manager, err := audio.NewManager(audio.OutputConfig{
		DeviceName: cfg.OutputDeviceName,
		SampleRate: cfg.OutputSampleRate,
		Channels:   cfg.OutputChannels,
		TestMode:   cfg.TestMode,
	}, cfg.ResampleChunk, cfg.EnableResampling)
	if err != nil {
		return nil, fmt.Errorf("initialize audio manager: %w", err)
	}

	cmdTx, cmdRx := chanutil.New[Command, Response](8)
	decTx, decRx := chanutil.New[DecoderCommand, DecoderResponse](1)
	queueCh := make(chan QueueSource, queueChannelCapacity)
	bus := events.NewBus()

	e := &Engine{
		cmdTx:   cmdTx,
		cmdRx:   cmdRx,
		bus:     bus,
		manager: manager,
		done:    make(chan struct{}),
	}

	dl := newDecoderLoop(queueCh, &decRx, cmdTx, bus, manager)
	go dl.run()

	p := &playerState{
		cfg:     cfg,
		reg:     reg,
		bus:     bus,
		queueCh: queueCh,
		decTx:   decTx,
		done:    e.done,
	}
	go p.run(&e.cmdRx)
	go e.watchDeviceErrors()

	return e, nil
}

// watchDeviceErrors relays the output device's error signals into
// self-issued commands: a device-lost (Unavailable) signal triggers a
// Reset, which restarts the current track at its current position; any
// other stream error triggers a Stop, matching spec.md §4.4/§7's
// recovery split.
func (e *Engine) watchDeviceErrors() {
	for {
		select {
		case sig, ok := <-e.manager.Errors():
			if !ok {
				return
			}
			if sig.Unavailable {
				log.Warn().Err(sig.Err).Msg("output device unavailable, resetting")
				e.cmdTx.Send(CmdReset{})
			} else {
				log.Error().Err(sig.Err).Msg("output stream error, stopping")
				e.cmdTx.Send(CmdStop{})
			}
		case <-e.done:
			return
		}
	}
}

// playerState is the control goroutine's exclusive-owner state: queue,
// position, status. Never touched outside run's goroutine.
type playerState struct {
	cfg     Config
	reg     *resolver.Registry
	bus     *events.Bus
	queueCh chan QueueSource
	decTx   chanutil.Sender[DecoderCommand, DecoderResponse]
	done    chan struct{}

	state  platune.PlayerState
	active bool // true once at least one source has been dispatched
}

func (p *playerState) run(rx *chanutil.Receiver[Command, Response]) {
	defer close(p.done)
	for {
		cmd, ok := rx.Recv()
		if !ok {
			return
		}
		if p.dispatch(rx, cmd) {
			return
		}
	}
}

// dispatch handles one command; returns true when the control loop
// should exit (Shutdown).
func (p *playerState) dispatch(rx *chanutil.Receiver[Command, Response], cmd Command) bool {
	ctx := context.Background()

	switch c := cmd.(type) {
	case CmdSetQueue:
		p.setQueue(ctx, c.Tracks)
		rx.Respond(Response{})

	case CmdAddToQueue:
		p.addToQueue(ctx, c.Tracks)
		rx.Respond(Response{})

	case CmdEnded:
		p.onEnded(ctx)
		rx.Respond(Response{})

	case CmdNext:
		p.skipTo(ctx, p.state.QueuePosition+1)
		rx.Respond(Response{})

	case CmdPrevious:
		p.skipTo(ctx, p.state.QueuePosition-1)
		rx.Respond(Response{})

	case CmdSeek:
		p.sendDecoder(DecSeek{Duration: c.Duration, Mode: c.Mode})
		p.bus.Publish(platune.PlayerEvent{Kind: platune.EventSeek, State: p.state.Clone(), SeekTo: c.Duration})
		rx.Respond(Response{})

	case CmdSetVolume:
		p.state.Volume = c.Volume
		p.sendDecoder(DecSetVolume{Volume: float64(c.Volume)})
		rx.Respond(Response{})

	case CmdPause:
		p.sendDecoder(DecPause{})
		p.state.Status = platune.Paused
		p.bus.Publish(platune.PlayerEvent{Kind: platune.EventPause, State: p.state.Clone()})
		rx.Respond(Response{})

	case CmdResume:
		p.sendDecoder(DecPlay{})
		p.state.Status = platune.Playing
		p.bus.Publish(platune.PlayerEvent{Kind: platune.EventResume, State: p.state.Clone()})
		rx.Respond(Response{})

	case CmdToggle:
		if p.state.Status == platune.Playing {
			p.sendDecoder(DecPause{})
			p.state.Status = platune.Paused
			p.bus.Publish(platune.PlayerEvent{Kind: platune.EventPause, State: p.state.Clone()})
		} else {
			p.sendDecoder(DecPlay{})
			p.state.Status = platune.Playing
			p.bus.Publish(platune.PlayerEvent{Kind: platune.EventResume, State: p.state.Clone()})
		}
		rx.Respond(Response{})

	case CmdStop:
		p.sendDecoder(DecStop{})
		p.drainQueue()
		p.state.Status = platune.Stopped
		p.active = false
		p.bus.Publish(platune.PlayerEvent{Kind: platune.EventStop, State: p.state.Clone()})
		rx.Respond(Response{})

	case CmdSetDeviceName:
		p.cfg.OutputDeviceName = c.Name
		if p.active {
			p.forceRestart(ctx, c.Name)
		}
		rx.Respond(Response{})

	case CmdReset:
		p.forceRestart(ctx, p.cfg.OutputDeviceName)
		rx.Respond(Response{})

	case CmdGetCurrentStatus:
		status := platune.PlayerStatus{TrackStatus: platune.TrackStatus{State: p.state.Clone(), Status: p.state.Status}}
		if p.state.Status != platune.Stopped {
			getCtx, cancel := context.WithTimeout(ctx, getResponseTimeout)
			resp, err := p.decTx.GetResponse(getCtx, DecGetCurrentPosition{})
			cancel()
			if err == nil && resp.Position != nil {
				status.CurrentPosition = resp.Position
			}
		}
		rx.Respond(Response{Status: &status})

	case CmdShutdown:
		p.sendDecoder(DecStop{})
		p.drainQueue()
		close(p.queueCh)
		rx.Respond(Response{})
		return true
	}
	return false
}

func (p *playerState) sendDecoder(cmd DecoderCommand) {
	if !p.active {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), getResponseTimeout)
	defer cancel()
	if _, err := p.decTx.GetResponse(ctx, cmd); err != nil {
		log.Warn().Err(err).Msg("decoder command did not complete")
	}
}

func (p *playerState) setQueue(ctx context.Context, tracks []platune.Track) {
	p.drainQueue()
	p.state.Queue = tracks
	p.state.QueuePosition = 0
	p.active = len(tracks) > 0

	if len(tracks) > 0 {
		p.enqueueTrack(ctx, 0, nil)
	}
	if len(tracks) >= 2 {
		p.enqueueTrack(ctx, 1, nil)
	}
	p.bus.Publish(platune.PlayerEvent{Kind: platune.EventStartQueue, State: p.state.Clone()})
}

func (p *playerState) addToQueue(ctx context.Context, tracks []platune.Track) {
	if !p.active {
		p.setQueue(ctx, tracks)
		return
	}
	wasLen := len(p.state.Queue)
	p.state.Queue = append(p.state.Queue, tracks...)
	if wasLen == p.state.QueuePosition+1 {
		p.enqueueTrack(ctx, p.state.QueuePosition+1, nil)
	}
	p.bus.Publish(platune.PlayerEvent{Kind: platune.EventQueueUpdated, State: p.state.Clone()})
}

// onEnded handles the decoder's natural-end-of-track signal: the
// completed track always publishes Ended (at its own queue position)
// before the queue advances to the next track or ends.
func (p *playerState) onEnded(ctx context.Context) {
	p.bus.Publish(platune.PlayerEvent{Kind: platune.EventEnded, State: p.state.Clone()})

	if p.state.QueuePosition+1 >= len(p.state.Queue) {
		p.state.Status = platune.Stopped
		p.active = false
		p.bus.Publish(platune.PlayerEvent{Kind: platune.EventQueueEnded, State: p.state.Clone()})
		return
	}

	p.state.QueuePosition++
	p.bus.Publish(platune.PlayerEvent{Kind: platune.EventTrackChanged, State: p.state.Clone()})
	p.state.Status = platune.Playing

	next := p.state.QueuePosition + 1
	if next < len(p.state.Queue) {
		p.enqueueTrack(ctx, next, nil)
	}
}

// skipTo moves to an explicit queue index for Next/Previous. A target
// outside [0, len(Queue)) is a no-op: the current track keeps playing
// untouched, matching the boundary behavior of the original go_next/
// go_previous (no decoder stop, no state change, no event).
func (p *playerState) skipTo(ctx context.Context, target int) {
	if target < 0 || target >= len(p.state.Queue) {
		return
	}

	p.sendDecoder(DecStop{})
	p.drainQueue()
	p.state.QueuePosition = target
	p.enqueueTrack(ctx, target, nil)
	if target+1 < len(p.state.Queue) {
		p.enqueueTrack(ctx, target+1, nil)
	}
	p.bus.Publish(platune.PlayerEvent{Kind: platune.EventTrackChanged, State: p.state.Clone()})
}

func (p *playerState) forceRestart(ctx context.Context, deviceName string) {
	if !p.active || p.state.QueuePosition >= len(p.state.Queue) {
		return
	}

	getCtx, cancel := context.WithTimeout(ctx, getResponseTimeout)
	resp, err := p.decTx.GetResponse(getCtx, DecGetCurrentPosition{})
	cancel()

	var pos *time.Duration
	if err == nil && resp.Position != nil {
		pos = &resp.Position.Position
	}

	p.drainQueue()
	p.sendDecoder(DecStop{})
	p.enqueueTrack(ctx, p.state.QueuePosition, &forceRestartParams{device: deviceName, pos: pos})
	if p.state.QueuePosition+1 < len(p.state.Queue) {
		p.enqueueTrack(ctx, p.state.QueuePosition+1, nil)
	}
}

type forceRestartParams struct {
	device string
	pos    *time.Duration
}

func (p *playerState) enqueueTrack(ctx context.Context, index int, restart *forceRestartParams) {
	if index < 0 || index >= len(p.state.Queue) {
		return
	}
	track := p.state.Queue[index]

	urls, err := p.reg.Resolve(ctx, track.URL)
	if err != nil || len(urls) == 0 {
		log.Error().Err(err).Str("url", track.URL).Msg("url resolution failed")
		return
	}

	src, cancel, err := p.reg.Materialize(ctx, urls[0])
	if err != nil {
		log.Error().Err(err).Str("url", urls[0]).Msg("source materialization failed")
		return
	}

	qs := QueueSource{
		Track:             track,
		Src:               src,
		Cancel:            cancel,
		Volume:            float64(p.state.Volume),
		EnableResampling:  p.cfg.EnableResampling,
		ResampleChunkSize: p.cfg.ResampleChunk,
	}
	if restart != nil {
		qs.Mode = StartForceRestart
		qs.DeviceName = restart.device
		qs.StartPosition = restart.pos
	}

	select {
	case p.queueCh <- qs:
	default:
		log.Warn().Str("url", urls[0]).Msg("queue channel full, dropping pre-enqueue")
		src.Close()
	}
}

// drainQueue empties any QueueSource waiting in the bounded channel,
// cancelling each one's background fetch.
func (p *playerState) drainQueue() {
	for {
		select {
		case qs := <-p.queueCh:
			if qs.Cancel != nil {
				qs.Cancel()
			}
			qs.Src.Close()
		default:
			return
		}
	}
}

// --- Public Engine API -----------------------------------------------

func (e *Engine) SetQueue(tracks []platune.Track) {
	e.cmdTx.Send(CmdSetQueue{Tracks: tracks})
}

func (e *Engine) AddToQueue(tracks []platune.Track) {
	e.cmdTx.Send(CmdAddToQueue{Tracks: tracks})
}

func (e *Engine) Pause()   { e.cmdTx.Send(CmdPause{}) }
func (e *Engine) Resume()  { e.cmdTx.Send(CmdResume{}) }
func (e *Engine) Toggle()  { e.cmdTx.Send(CmdToggle{}) }
func (e *Engine) Stop()    { e.cmdTx.Send(CmdStop{}) }
func (e *Engine) Next()    { e.cmdTx.Send(CmdNext{}) }
func (e *Engine) Previous() { e.cmdTx.Send(CmdPrevious{}) }

func (e *Engine) Seek(d time.Duration, mode platune.SeekMode) {
	e.cmdTx.Send(CmdSeek{Duration: d, Mode: mode})
}

func (e *Engine) SetVolume(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.cmdTx.Send(CmdSetVolume{Volume: v})
}

// GetCurrentStatus blocks for a snapshot of player state plus, when
// playing, the live position.
func (e *Engine) GetCurrentStatus(ctx context.Context) (platune.PlayerStatus, error) {
	resp, err := e.cmdTx.GetResponse(ctx, CmdGetCurrentStatus{})
	if err != nil {
		return platune.PlayerStatus{}, err
	}
	if resp.Status == nil {
		return platune.PlayerStatus{}, fmt.Errorf("no status returned")
	}
	return *resp.Status, nil
}

// OutputDevices lists output-capable device names.
func (e *Engine) OutputDevices() ([]string, error) {
	return listOutputDevices()
}

// SetOutputDevice records name as the output device name (empty for the
// system default) and, if playback is active, restarts the current
// track at its current position. The audio manager keeps the device it
// opened in New; the recorded name is not applied to it.
func (e *Engine) SetOutputDevice(name string) {
	e.cmdTx.Send(CmdSetDeviceName{Name: name})
}

// Subscribe registers for lifecycle events; call Unsubscribe on the
// returned handle when done.
func (e *Engine) Subscribe() *events.Subscription {
	return e.bus.Subscribe()
}

// Join stops playback and shuts the engine down, waiting up to one
// second for the control goroutine to exit before returning anyway.
// The decoder goroutine's exit is not waited for.
func (e *Engine) Join(ctx context.Context) error {
	if _, err := e.cmdTx.GetResponse(ctx, CmdShutdown{}); err != nil {
		return err
	}
	select {
	case <-e.done:
	case <-time.After(shutdownWatchdog):
		log.Warn().Msg("shutdown watchdog expired waiting for control goroutine")
	}
	return e.manager.Close()
}
