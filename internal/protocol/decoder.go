package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// ErrIncomplete reports that the decoder needs more bytes before the next
// frame is complete. It is not a failure.
var ErrIncomplete = errors.New("incomplete frame")

// Decoder turns an arbitrarily chunked byte stream into frames. Transport
// reads are appended with Feed; Next drains one complete frame at a time.
// Frames split across reads and multiple frames per read are both handled:
// callers loop on Next until ErrIncomplete before feeding more bytes.
//
// Decoder is not safe for concurrent use. The read goroutine owns it.
type Decoder struct {
	buf bytes.Buffer
	err error
}

// Feed appends raw bytes from the transport.
func (d *Decoder) Feed(p []byte) {
	d.buf.Write(p)
}

// Next decodes and consumes the next complete frame. Returns ErrIncomplete
// when the buffered bytes do not yet form a whole frame. A declared payload
// length beyond MaxPayloadSize returns ErrPayloadTooLarge immediately,
// before any payload bytes arrive. Decode errors are sticky: frame
// boundaries cannot be trusted past a corrupt frame, so every subsequent
// Next returns the same error regardless of what is fed after it.
func (d *Decoder) Next() (any, error) {
	if d.err != nil {
		return nil, d.err
	}

	b := d.buf.Bytes()
	if len(b) < HeaderSize {
		return nil, ErrIncomplete
	}

	payloadLen := binary.BigEndian.Uint32(b[0:4])
	frameType := FrameType(b[4])

	if payloadLen > MaxPayloadSize {
		d.err = ErrPayloadTooLarge
		return nil, d.err
	}
	if len(b) < HeaderSize+int(payloadLen) {
		return nil, ErrIncomplete
	}

	// Copy the payload out before consuming: Next() below reuses the
	// underlying storage.
	payload := make([]byte, payloadLen)
	copy(payload, b[HeaderSize:HeaderSize+int(payloadLen)])
	d.buf.Next(HeaderSize + int(payloadLen))

	frame, err := DecodePayload(frameType, payload)
	if err != nil {
		d.err = err
		return nil, err
	}
	return frame, nil
}

// Buffered returns the number of bytes awaiting decode.
func (d *Decoder) Buffered() int {
	return d.buf.Len()
}
