package transport

import (
	"bufio"
	"fmt"

	"github.com/padflight/groundstation/cobs"
)

// maxBufferedBytes bounds an undelimited run before the accumulator is
// discarded and a fresh frame is started (§4.B).
const maxBufferedBytes = 64 * 1024

// ErrOverflow is reported to the handler when more than 64 KiB arrives
// without a 0x00 delimiter.
var ErrOverflow = fmt.Errorf("transport: frame exceeded 64KiB without a delimiter")

// ErrClosed wraps whatever error terminated the underlying read loop
// (including io.EOF), letting a FrameHandler distinguish "the link is
// gone" from an in-stream framing hiccup (ErrOverflow, a COBS decode
// failure) that the reader keeps running past.
var ErrClosed = fmt.Errorf("transport: read loop terminated")

// FrameHandler receives one decoded frame, or a non-nil err. After a
// framing failure (malformed COBS body or overflow) the stream continues
// (§4.B, §7 "Framing errors"); an err wrapping ErrClosed is the last call
// the handler receives.
type FrameHandler func(frame []byte, err error)

// StartReceive reads port byte by byte, accumulating until a 0x00
// delimiter, COBS-decoding the stuffed body between delimiters and
// invoking handler once per delimited frame. It runs in its own
// goroutine; the returned func stops it and the accumulator is
// discarded. A frame may legitimately arrive split across multiple
// underlying reads — the accumulator does not care where read
// boundaries fall (spec §8 scenario 8).
func StartReceive(port Port, handler FrameHandler) func() {
	done := make(chan struct{})

	go func() {
		reader := bufio.NewReader(port)
		buf := make([]byte, 0, 256)

		for {
			select {
			case <-done:
				return
			default:
			}

			b, err := reader.ReadByte()
			if err != nil {
				handler(nil, fmt.Errorf("%w: %v", ErrClosed, err))
				return
			}

			if b == 0x00 {
				frame, derr := cobs.Decode(buf)
				handler(frame, derr)
				buf = buf[:0]
				continue
			}

			buf = append(buf, b)
			if len(buf) > maxBufferedBytes {
				handler(nil, ErrOverflow)
				buf = buf[:0]
			}
		}
	}()

	return func() { close(done) }
}

// SendFrame COBS-encodes payload and writes it to port terminated by a
// single 0x00 delimiter (§4.B, §6).
func SendFrame(port Port, payload []byte) error {
	encoded := cobs.Encode(payload)
	encoded = append(encoded, 0x00)
	_, err := port.Write(encoded)
	if err != nil {
		return fmt.Errorf("transport: writing frame: %w", err)
	}
	return nil
}
