package http

import (
	"errors"
	"io"
	"sync"

	"github.com/rhuss/fetchbridge/pkg/debug"
	"github.com/rhuss/fetchbridge/pkg/fetch"
	"github.com/rhuss/fetchbridge/pkg/transport"
)

// chunkSize is the size of one body copy step.
const chunkSize = 32 << 10

var chunkPool = sync.Pool{
	New: func() any {
		b := make([]byte, chunkSize)
		return &b
	},
}

// writeResponse replays resp onto out: one header block, then the body chunk
// by chunk, or an immediate End when there is no body.
//
// The signal is checked before the header block and before every read and
// write; once it is set nothing more is written and writeResponse returns
// (false, nil). It returns (true, nil) after the message has been ended.
// Failures while moving bytes are returned as *transport.StreamError.
// The response body is always closed.
func writeResponse(signal *fetch.Signal, out OutgoingMessage, resp *fetch.Response) (bool, error) {
	body := resp.Body()
	if body != nil {
		defer body.Close()
	}

	if signal.Aborted() {
		return false, nil
	}
	if err := out.WriteHead(resp.Status(), resp.StatusText(), resp.Headers()); err != nil {
		return false, &transport.StreamError{Op: "head", Err: err}
	}

	if body != nil {
		done, err := copyBody(signal, out, body)
		if err != nil || !done {
			return false, err
		}
	}

	if signal.Aborted() {
		return false, nil
	}
	if err := out.End(); err != nil {
		return false, &transport.StreamError{Op: "end", Err: err}
	}
	return true, nil
}

// copyBody moves body to out one chunk at a time and flushes after each
// chunk. The next chunk is not read until the previous Write returned, so a
// slow peer throttles the producer.
func copyBody(signal *fetch.Signal, out OutgoingMessage, body io.Reader) (bool, error) {
	bufp := chunkPool.Get().(*[]byte)
	defer chunkPool.Put(bufp)
	buf := *bufp

	for {
		if signal.Aborted() {
			return false, nil
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if signal.Aborted() {
				return false, nil
			}
			if _, err := out.Write(buf[:n]); err != nil {
				return false, streamErr(signal, "write", err)
			}
			if err := out.Flush(); err != nil {
				return false, streamErr(signal, "flush", err)
			}
			debug.Trace("streaming", "chunk written", "bytes", n)
		}
		if errors.Is(readErr, io.EOF) {
			return true, nil
		}
		if readErr != nil {
			return false, streamErr(signal, "read", readErr)
		}
	}
}

// streamErr reports a copy failure, unless the signal fired meanwhile: a
// failure caused by the peer going away is an abort, not a stream error.
func streamErr(signal *fetch.Signal, op string, err error) error {
	if signal.Aborted() {
		return nil
	}
	return &transport.StreamError{Op: op, Err: err}
}
