// Package platune defines the public data model of the playback engine:
// tracks, player state, status snapshots and the lifecycle events the
// engine publishes.
package platune

import "time"

// Track is a playable queue entry: a URL plus optional externally supplied
// metadata. Immutable once enqueued.
type Track struct {
	URL string

	Artist      *string
	AlbumArtist *string
	Album       *string
	Song        *string
	TrackNumber *int
	Duration    *time.Duration
}

// Metadata is track metadata. The decoder fills one from in-stream tags
// (Decoder.DiscoveredTags); that value is not merged into a Track or into
// PlayerState.Metadata.
type Metadata struct {
	Artist      *string
	AlbumArtist *string
	Album       *string
	Song        *string
	TrackNumber *int
	Duration    *time.Duration
}

// AudioStatus is the playback status of the engine.
type AudioStatus int

const (
	Stopped AudioStatus = iota
	Paused
	Playing
)

func (s AudioStatus) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Paused:
		return "Paused"
	case Playing:
		return "Playing"
	default:
		return "Unknown"
	}
}

// PlayerState is the single source of truth held by the control goroutine.
//
// Invariants: QueuePosition < len(Queue) whenever Queue is non-empty;
// Status == Stopped iff the decoder goroutine holds no source; after
// SetQueue, QueuePosition == 0.
type PlayerState struct {
	Queue         []Track
	QueuePosition int
	Volume        float32
	Status        AudioStatus
	Metadata      *Metadata
}

// Clone returns a deep-enough copy safe to hand to observers: the Queue
// slice header is copied so a later append on the original doesn't race
// with a reader of the snapshot.
func (s PlayerState) Clone() PlayerState {
	q := make([]Track, len(s.Queue))
	copy(q, s.Queue)
	s.Queue = q
	return s
}

// CurrentPosition pairs a playback position with the wallclock time it was
// observed at, so a remote observer can extrapolate forward between sparse
// updates.
type CurrentPosition struct {
	Position      time.Duration
	RetrievalTime time.Time
}

// TrackStatus is a snapshot of player state plus audio status, returned by
// GetCurrentStatus.
type TrackStatus struct {
	State  PlayerState
	Status AudioStatus
}

// PlayerStatus adds the live position (when not stopped) to a TrackStatus.
type PlayerStatus struct {
	TrackStatus     TrackStatus
	CurrentPosition *CurrentPosition
}

// SeekMode selects how Seek's duration argument is interpreted.
type SeekMode int

const (
	SeekAbsolute SeekMode = iota
	SeekForward
	SeekBackward
)

// EventKind discriminates the PlayerEvent sum type.
type EventKind int

const (
	EventPause EventKind = iota
	EventResume
	EventStop
	EventTrackChanged
	EventStartQueue
	EventQueueUpdated
	EventQueueEnded
	EventSeek
	EventPosition
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventPause:
		return "Pause"
	case EventResume:
		return "Resume"
	case EventStop:
		return "Stop"
	case EventTrackChanged:
		return "TrackChanged"
	case EventStartQueue:
		return "StartQueue"
	case EventQueueUpdated:
		return "QueueUpdated"
	case EventQueueEnded:
		return "QueueEnded"
	case EventSeek:
		return "Seek"
	case EventPosition:
		return "Position"
	case EventEnded:
		return "Ended"
	default:
		return "Unknown"
	}
}

// PlayerEvent is published on the event bus at every state transition and,
// for EventPosition, at a throttled cadence while a source is decoding.
type PlayerEvent struct {
	Kind  EventKind
	State PlayerState
	// SeekTo is only set for EventSeek.
	SeekTo time.Duration
	// Pos is only set for EventPosition.
	Pos CurrentPosition
}
