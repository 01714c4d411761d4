// Package source defines the Source abstraction the resolver produces and
// the decoder consumes: an opaque, blocking, seekable byte reader with an
// optional known length and a file-extension hint.
package source

import "io"

// Source is a seekable (or best-effort seekable) byte reader ready to hand
// to a demuxer/decoder. Materialized once per queue entry and consumed to
// completion, cancelled, or replaced.
type Source interface {
	io.ReadCloser
	io.Seeker

	// Len reports the byte length of the underlying stream, if known.
	// ok is false for non-seekable/streaming sources whose total size
	// hasn't been determined yet (e.g. chunked HTTP without
	// Content-Length).
	Len() (n int64, ok bool)

	// Ext is the hinted file extension (without the leading dot), used to
	// pick a demuxer before falling back to format probing. May be empty.
	Ext() string
}

// CancelFunc aborts any background fetch backing a Source (an in-flight
// HTTP download, a spawned extractor process). Safe to call more than
// once; a Source that has already finished naturally treats it as a
// no-op.
type CancelFunc func()
