package cobs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0x11, 0x22, 0x00, 0x33},
		{0x00, 0x00, 0x00},
		bytes.Repeat([]byte{0x01}, 300),
		bytes.Repeat([]byte{0x00}, 10),
		append(bytes.Repeat([]byte{0xAB}, 254), 0x00, 0x01),
	}

	for _, raw := range cases {
		enc := Encode(raw)
		require.NotContains(t, enc, byte(0x00), "encoded frame must not contain 0x00")

		dec, err := Decode(enc)
		require.NoError(t, err)
		require.Equal(t, raw, dec)
	}
}

func TestEncodeEmpty(t *testing.T) {
	require.Equal(t, []byte{0x01}, Encode(nil))
}

func TestDecodeFailures(t *testing.T) {
	_, err := Decode(nil)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = Decode([]byte{0x00, 0x01})
	require.ErrorIs(t, err, ErrZeroCodeByte)

	_, err = Decode([]byte{0x05, 0x01, 0x02})
	require.ErrorIs(t, err, ErrBlockTooLong)

	_, err = Decode([]byte{0x03, 0x01, 0x00})
	require.ErrorIs(t, err, ErrEmbeddedZero)
}

func TestDecodeKnownVector(t *testing.T) {
	// "00 00" -> [0x01, 0x01, 0x01]
	enc := Encode([]byte{0x00, 0x00})
	require.Equal(t, []byte{0x01, 0x01, 0x01}, enc)
}
