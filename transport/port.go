// Package transport turns a byte-oriented serial link into a stream of
// COBS-delimited frames, the glue layer between raw bytes and the
// protocol parser (spec §4.B's stream-accumulation rules, §6's "Stream
// of COBS-encoded frames each terminated by one 0x00 byte"). The
// goroutine-plus-callback ingestion shape is grounded on the teacher's
// rtl_adsb.StartReceive (bufio.Scanner loop over a subprocess's stdout,
// handler callback, a stop func to kill it), adapted from scanning text
// lines to accumulating raw bytes up to a 0x00 delimiter.
package transport

import "io"

// Port is the byte-oriented transport the core reads frames from and
// writes command bytes to. go.bug.st/serial's *serial.Port satisfies
// this directly; so does anything else with Read/Write/Close.
type Port interface {
	io.ReadWriteCloser
}
