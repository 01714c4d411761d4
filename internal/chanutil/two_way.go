// Package chanutil implements a request/response channel that carries a
// oneshot responder alongside each message, so a receiver can correlate a
// reply with its request without per-message ids.
//
// This is the Go shape of the Rust two_way_channel used throughout the
// lineage this engine is grounded on: a sender's GetResponse pairs the
// outgoing message with a fresh reply channel and blocks for the answer;
// Send/SendCtx/TrySend fire-and-forget with no reply channel attached.
package chanutil

import "context"

type message[TIn any, TOut any] struct {
	payload TIn
	reply   chan TOut
}

// Sender is the caller-facing half of a two-way channel.
type Sender[TIn any, TOut any] struct {
	main chan message[TIn, TOut]
}

// Receiver is the callee-facing half. It is not safe for concurrent use by
// multiple goroutines (matching the single decoder/control goroutine that
// owns each receiver in this engine).
type Receiver[TIn any, TOut any] struct {
	main    chan message[TIn, TOut]
	pending chan TOut
}

// New creates a linked Sender/Receiver pair. capacity sizes the underlying
// channel buffer (0 for a fully synchronous rendezvous).
func New[TIn any, TOut any](capacity int) (Sender[TIn, TOut], Receiver[TIn, TOut]) {
	ch := make(chan message[TIn, TOut], capacity)
	return Sender[TIn, TOut]{main: ch}, Receiver[TIn, TOut]{main: ch}
}

// Send enqueues a message with no reply channel attached. Blocks if the
// channel is full.
func (s Sender[TIn, TOut]) Send(payload TIn) {
	s.main <- message[TIn, TOut]{payload: payload}
}

// SendCtx is Send with cancellation.
func (s Sender[TIn, TOut]) SendCtx(ctx context.Context, payload TIn) error {
	select {
	case s.main <- message[TIn, TOut]{payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues without blocking; reports whether the message was sent.
func (s Sender[TIn, TOut]) TrySend(payload TIn) bool {
	select {
	case s.main <- message[TIn, TOut]{payload: payload}:
		return true
	default:
		return false
	}
}

// GetResponse sends payload with a fresh reply channel attached and waits
// for the receiver to Respond.
func (s Sender[TIn, TOut]) GetResponse(ctx context.Context, payload TIn) (TOut, error) {
	reply := make(chan TOut, 1)
	msg := message[TIn, TOut]{payload: payload, reply: reply}

	select {
	case s.main <- msg:
	case <-ctx.Done():
		var zero TOut
		return zero, ctx.Err()
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		var zero TOut
		return zero, ctx.Err()
	}
}

// Recv blocks for the next message, remembering its reply channel (if any)
// for a subsequent Respond.
func (r *Receiver[TIn, TOut]) Recv() (TIn, bool) {
	msg, ok := <-r.main
	if !ok {
		var zero TIn
		return zero, false
	}
	r.pending = msg.reply
	return msg.payload, true
}

// TryRecv is Recv without blocking. ok is false both when the channel is
// empty and when it is closed; TryRecv does not distinguish the two.
func (r *Receiver[TIn, TOut]) TryRecv() (TIn, bool) {
	select {
	case msg, ok := <-r.main:
		if !ok {
			var zero TIn
			return zero, false
		}
		r.pending = msg.reply
		return msg.payload, true
	default:
		var zero TIn
		return zero, false
	}
}

// Respond answers the most recently received message, if it carried a
// reply channel. A no-op otherwise (the caller used Send, not
// GetResponse).
func (r *Receiver[TIn, TOut]) Respond(resp TOut) {
	if r.pending == nil {
		return
	}
	r.pending <- resp
	r.pending = nil
}
