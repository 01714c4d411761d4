package engine

import (
	"time"

	"github.com/jrmoore/platune/internal/audio"
	"github.com/jrmoore/platune/internal/chanutil"
	"github.com/jrmoore/platune/internal/events"
	"github.com/jrmoore/platune/pkg/platune"
)

// positionThrottle matches spec.md §4.9: emit Position only when the
// delta from the last reported position is negative (a backward seek)
// or at least this large.
const positionThrottle = 10 * time.Second

// decoderLoop is C6: a dedicated goroutine that receives QueueSource
// values on a bounded channel and drives one source at a time through
// the audio manager, polling decoder commands between decode blocks.
type decoderLoop struct {
	queue   <-chan QueueSource
	decCmds *chanutil.Receiver[DecoderCommand, DecoderResponse]
	control chanutil.Sender[Command, Response]
	bus     *events.Bus
	manager *audio.Manager

	lastPos time.Duration
}

func newDecoderLoop(
	queue <-chan QueueSource,
	decCmds *chanutil.Receiver[DecoderCommand, DecoderResponse],
	control chanutil.Sender[Command, Response],
	bus *events.Bus,
	manager *audio.Manager,
) *decoderLoop {
	return &decoderLoop{queue: queue, decCmds: decCmds, control: control, bus: bus, manager: manager}
}

// run blocks until the queue channel is closed (Shutdown).
func (d *decoderLoop) run() {
	for qs := range d.queue {
		d.handle(qs)
	}
}

func (d *decoderLoop) handle(qs QueueSource) {
	if qs.Mode == StartForceRestart {
		if err := d.manager.Stop(); err != nil {
			log.Warn().Err(err).Msg("stop during force restart failed")
		}
	}

	proc, err := d.manager.InitializeProcessor(qs.Src, qs.Volume, qs.StartPosition)
	if err != nil {
		log.Error().Err(err).Str("url", qs.Track.URL).Msg("decoder construction failed, abandoning source")
		qs.Src.Close()
		// No Ended is sent: a source that never started doesn't count
		// as a completed track (spec.md §7).
		d.drainInitWait()
		return
	}
	defer proc.Decoder().Close()
	defer qs.Src.Close()

	if err := d.manager.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start output")
	}

	d.drainInitWait()
	d.lastPos = 0

	stopRequested := false
	poll := func() bool {
		d.pollCommands(proc, &stopRequested)
		d.maybeEmitPosition(proc)
		return stopRequested
	}

	_, err = proc.DecodeSource(poll)
	if err != nil {
		log.Warn().Err(err).Str("url", qs.Track.URL).Msg("decode error, ending source")
	}

	if qs.Cancel != nil {
		qs.Cancel()
	}

	if !stopRequested {
		d.control.Send(CmdEnded{})
	}
}

// drainInitWait answers a pending WaitForInitialization handshake (if
// the control goroutine is blocked on one) now that the processor is
// ready.
func (d *decoderLoop) drainInitWait() {
	for {
		cmd, ok := d.decCmds.TryRecv()
		if !ok {
			return
		}
		if _, isWait := cmd.(DecWaitForInitialization); isWait {
			d.decCmds.Respond(DecoderResponse{})
			return
		}
		// Any other command arriving before initialization completes is
		// answered with a no-op; the caller can reissue it once playing.
		d.decCmds.Respond(DecoderResponse{})
	}
}

func (d *decoderLoop) pollCommands(proc *audio.Processor, stopRequested *bool) {
	for {
		cmd, ok := d.decCmds.TryRecv()
		if !ok {
			return
		}
		switch c := cmd.(type) {
		case DecWaitForInitialization:
			d.decCmds.Respond(DecoderResponse{})
		case DecPlay:
			proc.Decoder().Resume()
			d.decCmds.Respond(DecoderResponse{})
		case DecPause:
			proc.Decoder().Pause()
			d.decCmds.Respond(DecoderResponse{})
		case DecStop:
			*stopRequested = true
			d.decCmds.Respond(DecoderResponse{})
		case DecSeek:
			target := resolveSeekTarget(proc.Decoder().CurrentPosition().Position, c.Duration, c.Mode)
			pos, err := proc.Decoder().Seek(target)
			d.decCmds.Respond(DecoderResponse{Position: &platune.CurrentPosition{Position: pos, RetrievalTime: time.Now()}, SeekedTo: &pos, Err: err})
		case DecSetVolume:
			proc.Decoder().SetVolume(c.Volume)
			d.decCmds.Respond(DecoderResponse{})
		case DecGetCurrentPosition:
			cp := proc.Decoder().CurrentPosition()
			d.decCmds.Respond(DecoderResponse{Position: &cp})
		case DecReset:
			*stopRequested = true
			d.decCmds.Respond(DecoderResponse{})
		}
	}
}

func (d *decoderLoop) maybeEmitPosition(proc *audio.Processor) {
	cp := proc.Decoder().CurrentPosition()
	delta := cp.Position - d.lastPos
	if delta < 0 || delta >= positionThrottle {
		d.lastPos = cp.Position
		d.bus.Publish(platune.PlayerEvent{Kind: platune.EventPosition, Pos: cp})
	}
}

func resolveSeekTarget(current time.Duration, dur time.Duration, mode platune.SeekMode) time.Duration {
	switch mode {
	case platune.SeekForward:
		return current + dur
	case platune.SeekBackward:
		t := current - dur
		if t < 0 {
			t = 0
		}
		return t
	default:
		return dur
	}
}
