// Package workerpool runs pure functions in isolated child processes. The
// parent round-robins jobs across a fixed set of workers and collects
// replies over a length-prefixed byte protocol on each worker's
// stdin/stdout pipes.
package workerpool

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxFrame bounds a single message. Page records carry whole link lists but
// never approach this.
const maxFrame = 256 << 20

// Envelope is one reply from a worker. Exactly one field is set: a result,
// a warning to relay to the parent's warning sink, or an error that
// poisons the pool.
type Envelope struct {
	Result  json.RawMessage `json:"result,omitempty"`
	Warning string          `json:"warning,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// WriteFrame writes one length-prefixed message. The envelope has to be
// {u32 little-endian length, payload}: payloads contain arbitrary byte
// strings, so no delimiter-based framing is safe.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed message. Returns io.EOF cleanly when
// the stream ends on a frame boundary.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("truncated frame header")
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > maxFrame {
		return nil, fmt.Errorf("frame length %d exceeds limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("truncated frame payload: %w", err)
	}
	return payload, nil
}

// WorkFunc is the single function a worker executes. Warnings emitted
// through warn are flushed to the parent before the result.
type WorkFunc func(args json.RawMessage, warn func(string)) (interface{}, error)

// Serve runs the worker main loop on stdin/stdout: read one request,
// execute, reply, repeat. An execution error is reported to the parent and
// the worker exits with status 1. Parent closure appears as EOF and ends
// the loop cleanly.
func Serve(fn WorkFunc) {
	in := bufio.NewReader(os.Stdin)
	out := bufio.NewWriter(os.Stdout)

	writeEnvelope := func(env Envelope) error {
		payload, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := WriteFrame(out, payload); err != nil {
			return err
		}
		return out.Flush()
	}

	for {
		req, err := ReadFrame(in)
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "worker: %v\n", err)
			os.Exit(1)
		}

		warn := func(msg string) {
			_ = writeEnvelope(Envelope{Warning: msg})
		}

		result, err := fn(req, warn)
		if err != nil {
			_ = writeEnvelope(Envelope{Error: err.Error()})
			os.Exit(1)
		}

		data, err := json.Marshal(result)
		if err != nil {
			_ = writeEnvelope(Envelope{Error: err.Error()})
			os.Exit(1)
		}
		if err := writeEnvelope(Envelope{Result: data}); err != nil {
			fmt.Fprintf(os.Stderr, "worker: %v\n", err)
			os.Exit(1)
		}
	}
}
