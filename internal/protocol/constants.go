package protocol

// Wire format version.
const Version = 1

// Header: [4B payload_length big-endian][1B frame_type]
const HeaderSize = 5

// Maximum payload size (1 MiB). A declared length beyond this is treated as
// a corrupt frame and is fatal to the connection.
const MaxPayloadSize = 1 * 1024 * 1024

// FrameType identifies the type of a framed protocol unit.
type FrameType byte

const (
	// Handshake
	FrameLogin       FrameType = 0x01
	FrameLoginAck    FrameType = 0x02
	FrameLoginReject FrameType = 0x03

	// Chat
	FrameMessage    FrameType = 0x10
	FrameMessageAck FrameType = 0x11

	// Liveness and teardown
	FrameHeartbeat  FrameType = 0x20
	FrameError      FrameType = 0x30
	FrameDisconnect FrameType = 0x31
)

func (t FrameType) String() string {
	switch t {
	case FrameLogin:
		return "Login"
	case FrameLoginAck:
		return "LoginAck"
	case FrameLoginReject:
		return "LoginReject"
	case FrameMessage:
		return "Message"
	case FrameMessageAck:
		return "MessageAck"
	case FrameHeartbeat:
		return "Heartbeat"
	case FrameError:
		return "Error"
	case FrameDisconnect:
		return "Disconnect"
	default:
		return "unknown"
	}
}

// Fixed payload sizes (excluding header). Variable-length frames list their
// minimum size.
const (
	LoginAckSize   = 8         // u64 connection id
	MessageAckSize = 8         // u64 message sequence
	HeartbeatSize  = 8         // i64 unix ms
	MessageMinSize = 8 + 2 + 4 // timestamp + sender len + text len
	LoginMinSize   = 2 + 2     // username len + password len
	StringMinSize  = 2         // LoginReject / Error / Disconnect carry one string
)
