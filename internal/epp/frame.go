// Package epp is the wire edge: length-prefixed XML framing, the command
// codec, and the TCP listener. Protocol semantics live in dispatch and the
// engines; this package only translates.
package epp

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frames are a 4-byte big-endian total length (header included) followed by
// the XML payload, per RFC 5734 §4.
const (
	frameHeaderLen = 4
	// MaxFrameLen bounds inbound frames; oversized frames indicate a broken
	// or hostile peer and end the connection.
	MaxFrameLen = 256 * 1024
)

// ReadFrame reads one frame payload from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	total := binary.BigEndian.Uint32(header[:])
	if total < frameHeaderLen {
		return nil, fmt.Errorf("frame length %d shorter than header", total)
	}
	if total > MaxFrameLen {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d", total, MaxFrameLen)
	}
	payload := make([]byte, total-frameHeaderLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes one framed payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [frameHeaderLen]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)+frameHeaderLen))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
