package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
	ErrUnknownFrame    = errors.New("unknown frame type")
	ErrShortPayload    = errors.New("payload too short for frame type")
)

// --- Frame types ---

type Login struct {
	Username string
	Password string
}

type LoginAck struct {
	ConnID uint64
}

type LoginReject struct {
	Reason string
}

type Message struct {
	TimestampMs int64
	Sender      string
	Text        string
}

type MessageAck struct {
	Seq uint64
}

type Heartbeat struct {
	TimestampMs int64
}

type ErrorFrame struct {
	Description string
}

type Disconnect struct {
	Reason string
}

// --- Encoding ---

// WriteFrame writes a framed unit (header + payload) to w.
//
// Fixed-size frames encode into stack buffers to avoid heap allocation.
// Variable-length frames build their payload once and write header + payload
// in two writes.
func WriteFrame(w io.Writer, frame any) error {
	var frameType FrameType
	var payload []byte

	// Stack buffer for fixed-size frame payloads.
	var scratch [8]byte

	switch f := frame.(type) {
	case *Login:
		frameType = FrameLogin
		u, p := []byte(f.Username), []byte(f.Password)
		if len(u) > 0xFFFF || len(p) > 0xFFFF {
			return ErrPayloadTooLarge
		}
		payload = make([]byte, 2+len(u)+2+len(p))
		binary.BigEndian.PutUint16(payload[0:2], uint16(len(u)))
		copy(payload[2:], u)
		off := 2 + len(u)
		binary.BigEndian.PutUint16(payload[off:off+2], uint16(len(p)))
		copy(payload[off+2:], p)
	case *LoginAck:
		frameType = FrameLoginAck
		binary.BigEndian.PutUint64(scratch[:8], f.ConnID)
		payload = scratch[:8]
	case *LoginReject:
		frameType = FrameLoginReject
		var err error
		if payload, err = encodeString(f.Reason); err != nil {
			return err
		}
	case *Message:
		return writeMessageFrame(w, f)
	case *MessageAck:
		frameType = FrameMessageAck
		binary.BigEndian.PutUint64(scratch[:8], f.Seq)
		payload = scratch[:8]
	case *Heartbeat:
		frameType = FrameHeartbeat
		binary.BigEndian.PutUint64(scratch[:8], uint64(f.TimestampMs))
		payload = scratch[:8]
	case *ErrorFrame:
		frameType = FrameError
		var err error
		if payload, err = encodeString(f.Description); err != nil {
			return err
		}
	case *Disconnect:
		frameType = FrameDisconnect
		var err error
		if payload, err = encodeString(f.Reason); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported frame type: %T", frame)
	}

	if len(payload) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}

	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(payload)))
	header[4] = byte(frameType)

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// writeMessageFrame writes a Message without copying the text into yet
// another intermediate buffer. Chat text is the only payload that can
// approach the size bound.
func writeMessageFrame(w io.Writer, m *Message) error {
	sender, text := []byte(m.Sender), []byte(m.Text)
	if len(sender) > 0xFFFF {
		return ErrPayloadTooLarge
	}
	payloadLen := 8 + 2 + len(sender) + 4 + len(text)
	if payloadLen > MaxPayloadSize {
		return ErrPayloadTooLarge
	}

	hdr := make([]byte, HeaderSize+8+2+len(sender)+4)
	binary.BigEndian.PutUint32(hdr[0:4], uint32(payloadLen))
	hdr[4] = byte(FrameMessage)
	binary.BigEndian.PutUint64(hdr[5:13], uint64(m.TimestampMs))
	binary.BigEndian.PutUint16(hdr[13:15], uint16(len(sender)))
	copy(hdr[15:], sender)
	binary.BigEndian.PutUint32(hdr[15+len(sender):], uint32(len(text)))

	if _, err := w.Write(hdr); err != nil {
		return err
	}
	if len(text) > 0 {
		if _, err := w.Write(text); err != nil {
			return err
		}
	}
	return nil
}

// encodeString encodes a single [2B len][bytes] string payload.
func encodeString(s string) ([]byte, error) {
	b := []byte(s)
	if len(b) > 0xFFFF {
		return nil, ErrPayloadTooLarge
	}
	payload := make([]byte, 2+len(b))
	binary.BigEndian.PutUint16(payload[0:2], uint16(len(b)))
	copy(payload[2:], b)
	return payload, nil
}

// --- Decoding ---

// ReadFrame reads one framed unit from r, blocking until it is complete.
// Used on serial paths (handshakes, the server side); the client's read loop
// goes through Decoder instead.
func ReadFrame(r io.Reader) (any, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	payloadLen := binary.BigEndian.Uint32(header[0:4])
	frameType := FrameType(header[4])

	if payloadLen > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	return DecodePayload(frameType, payload)
}

// DecodePayload decodes a raw payload given its frame type.
func DecodePayload(frameType FrameType, payload []byte) (any, error) {
	switch frameType {
	case FrameLogin:
		if len(payload) < LoginMinSize {
			return nil, ErrShortPayload
		}
		username, rest, err := decodeString16(payload)
		if err != nil {
			return nil, err
		}
		password, _, err := decodeString16(rest)
		if err != nil {
			return nil, err
		}
		return &Login{Username: username, Password: password}, nil

	case FrameLoginAck:
		if len(payload) < LoginAckSize {
			return nil, ErrShortPayload
		}
		return &LoginAck{ConnID: binary.BigEndian.Uint64(payload[0:8])}, nil

	case FrameLoginReject:
		reason, _, err := decodeString16(payload)
		if err != nil {
			return nil, err
		}
		return &LoginReject{Reason: reason}, nil

	case FrameMessage:
		if len(payload) < MessageMinSize {
			return nil, ErrShortPayload
		}
		ts := int64(binary.BigEndian.Uint64(payload[0:8]))
		sender, rest, err := decodeString16(payload[8:])
		if err != nil {
			return nil, err
		}
		if len(rest) < 4 {
			return nil, ErrShortPayload
		}
		textLen := binary.BigEndian.Uint32(rest[0:4])
		if uint32(len(rest)-4) < textLen {
			return nil, ErrShortPayload
		}
		return &Message{
			TimestampMs: ts,
			Sender:      sender,
			Text:        string(rest[4 : 4+textLen]),
		}, nil

	case FrameMessageAck:
		if len(payload) < MessageAckSize {
			return nil, ErrShortPayload
		}
		return &MessageAck{Seq: binary.BigEndian.Uint64(payload[0:8])}, nil

	case FrameHeartbeat:
		if len(payload) < HeartbeatSize {
			return nil, ErrShortPayload
		}
		return &Heartbeat{
			TimestampMs: int64(binary.BigEndian.Uint64(payload[0:8])),
		}, nil

	case FrameError:
		description, _, err := decodeString16(payload)
		if err != nil {
			return nil, err
		}
		return &ErrorFrame{Description: description}, nil

	case FrameDisconnect:
		// A bare Disconnect (empty payload) is allowed.
		if len(payload) == 0 {
			return &Disconnect{}, nil
		}
		reason, _, err := decodeString16(payload)
		if err != nil {
			return nil, err
		}
		return &Disconnect{Reason: reason}, nil

	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownFrame, byte(frameType))
	}
}

// decodeString16 decodes a [2B len][bytes] string and returns the remainder.
func decodeString16(payload []byte) (string, []byte, error) {
	if len(payload) < StringMinSize {
		return "", nil, ErrShortPayload
	}
	n := binary.BigEndian.Uint16(payload[0:2])
	if len(payload) < 2+int(n) {
		return "", nil, ErrShortPayload
	}
	return string(payload[2 : 2+n]), payload[2+int(n):], nil
}
