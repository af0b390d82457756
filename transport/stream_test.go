package transport

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/padflight/groundstation/cobs"
)

// pipePort adapts an io.Pipe pair to the Port interface for tests.
type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newPipePort() (*pipePort, *io.PipeWriter) {
	r, w := io.Pipe()
	return &pipePort{r: r, w: w}, w
}

func (p *pipePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipePort) Write(b []byte) (int, error) { return 0, io.ErrClosedPipe }
func (p *pipePort) Close() error {
	p.r.Close()
	return nil
}

func TestStartReceiveDecodesWholeFrame(t *testing.T) {
	port, w := newPipePort()
	defer port.Close()

	frames := make(chan []byte, 4)
	stop := StartReceive(port, func(frame []byte, err error) {
		require.NoError(t, err)
		frames <- frame
	})
	defer stop()

	payload := []byte{0x10, 0x01, 0x02, 0x00, 0x03}
	stuffed := append(cobs.Encode(payload), 0x00)

	go func() { w.Write(stuffed) }()

	select {
	case got := <-frames:
		require.Equal(t, payload, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decoded frame")
	}
}

// TestStartReceiveHandlesSplitFrame reproduces the literal split-frame
// scenario: the same stuffed frame plus delimiter arrives in two
// arbitrary chunks across separate writes (§8 scenario 8).
func TestStartReceiveHandlesSplitFrame(t *testing.T) {
	port, w := newPipePort()
	defer port.Close()

	frames := make(chan []byte, 4)
	stop := StartReceive(port, func(frame []byte, err error) {
		require.NoError(t, err)
		frames <- frame
	})
	defer stop()

	payload := []byte{0x10, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	stuffed := append(cobs.Encode(payload), 0x00)
	mid := len(stuffed) / 2

	go func() {
		w.Write(stuffed[:mid])
		time.Sleep(5 * time.Millisecond)
		w.Write(stuffed[mid:])
	}()

	select {
	case got := <-frames:
		require.Equal(t, payload, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decoded frame")
	}
}

func TestStartReceiveReportsErrClosedOnEOF(t *testing.T) {
	port, w := newPipePort()
	defer port.Close()

	errs := make(chan error, 1)
	stop := StartReceive(port, func(frame []byte, err error) {
		if err != nil {
			select {
			case errs <- err:
			default:
			}
		}
	})
	defer stop()

	w.Close() // no more data ever arrives: reader sees io.EOF

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ErrClosed")
	}
}

func TestStartReceiveOverflowResetsAndContinues(t *testing.T) {
	port, w := newPipePort()
	defer port.Close()

	errs := make(chan error, 1)
	frames := make(chan []byte, 1)
	stop := StartReceive(port, func(frame []byte, err error) {
		if err != nil {
			select {
			case errs <- err:
			default:
			}
			return
		}
		frames <- frame
	})
	defer stop()

	go func() {
		junk := make([]byte, maxBufferedBytes+10)
		for i := range junk {
			junk[i] = 0xAA
		}
		w.Write(junk)
		good := append(cobs.Encode([]byte{0x01, 0x02}), 0x00)
		w.Write(good)
	}()

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrOverflow)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for overflow error")
	}

	select {
	case got := <-frames:
		require.Equal(t, []byte{0x01, 0x02}, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for post-overflow frame")
	}
}
