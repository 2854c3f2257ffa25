package protocol

import (
	"bytes"
	"testing"
	"time"
)

func TestLoginRoundTrip(t *testing.T) {
	original := &Login{Username: "penger", Password: "password"}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, original); err != nil {
		t.Fatal(err)
	}

	frame, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}

	decoded, ok := frame.(*Login)
	if !ok {
		t.Fatalf("expected *Login, got %T", frame)
	}
	if decoded.Username != original.Username || decoded.Password != original.Password {
		t.Fatalf("login mismatch: got %q/%q", decoded.Username, decoded.Password)
	}
}

func TestLoginEmptyFields(t *testing.T) {
	original := &Login{}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, original); err != nil {
		t.Fatal(err)
	}
	frame, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	decoded := frame.(*Login)
	if decoded.Username != "" || decoded.Password != "" {
		t.Fatalf("expected empty fields, got %q/%q", decoded.Username, decoded.Password)
	}
}

func TestLoginAckRoundTrip(t *testing.T) {
	for _, id := range []uint64{0, 1, 1<<32 - 1, 1<<64 - 1} {
		original := &LoginAck{ConnID: id}
		var buf bytes.Buffer
		if err := WriteFrame(&buf, original); err != nil {
			t.Fatal(err)
		}
		frame, err := ReadFrame(&buf)
		if err != nil {
			t.Fatal(err)
		}
		decoded := frame.(*LoginAck)
		if decoded.ConnID != original.ConnID {
			t.Fatalf("conn id mismatch: got %d, want %d", decoded.ConnID, original.ConnID)
		}
	}
}

func TestLoginRejectRoundTrip(t *testing.T) {
	for _, reason := range []string{"", "rejected", "unknown user"} {
		original := &LoginReject{Reason: reason}
		var buf bytes.Buffer
		if err := WriteFrame(&buf, original); err != nil {
			t.Fatal(err)
		}
		frame, err := ReadFrame(&buf)
		if err != nil {
			t.Fatal(err)
		}
		decoded := frame.(*LoginReject)
		if decoded.Reason != original.Reason {
			t.Fatalf("reason mismatch: got %q, want %q", decoded.Reason, original.Reason)
		}
	}
}

func TestMessageRoundTrip(t *testing.T) {
	original := &Message{
		TimestampMs: time.Now().UnixMilli(),
		Sender:      "penger",
		Text:        "hi",
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, original); err != nil {
		t.Fatal(err)
	}
	frame, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	decoded := frame.(*Message)
	if decoded.TimestampMs != original.TimestampMs {
		t.Fatalf("timestamp mismatch: got %d, want %d", decoded.TimestampMs, original.TimestampMs)
	}
	if decoded.Sender != original.Sender || decoded.Text != original.Text {
		t.Fatalf("message mismatch: got %q from %q", decoded.Text, decoded.Sender)
	}
}

func TestMessageEmptyText(t *testing.T) {
	original := &Message{TimestampMs: 1, Sender: "a"}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, original); err != nil {
		t.Fatal(err)
	}
	frame, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	decoded := frame.(*Message)
	if decoded.Text != "" {
		t.Fatalf("expected empty text, got %q", decoded.Text)
	}
}

func TestMessageAckRoundTrip(t *testing.T) {
	original := &MessageAck{Seq: 42}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, original); err != nil {
		t.Fatal(err)
	}
	frame, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	decoded := frame.(*MessageAck)
	if decoded.Seq != 42 {
		t.Fatalf("seq mismatch: got %d", decoded.Seq)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	original := &Heartbeat{TimestampMs: time.Now().UnixMilli()}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, original); err != nil {
		t.Fatal(err)
	}
	frame, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	decoded := frame.(*Heartbeat)
	if decoded.TimestampMs != original.TimestampMs {
		t.Fatalf("timestamp mismatch: got %d, want %d", decoded.TimestampMs, original.TimestampMs)
	}
}

func TestErrorFrameRoundTrip(t *testing.T) {
	original := &ErrorFrame{Description: "corrupt frame"}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, original); err != nil {
		t.Fatal(err)
	}
	frame, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	decoded := frame.(*ErrorFrame)
	if decoded.Description != original.Description {
		t.Fatalf("description mismatch: got %q", decoded.Description)
	}
}

func TestDisconnectRoundTrip(t *testing.T) {
	for _, reason := range []string{"", "server shutting down"} {
		original := &Disconnect{Reason: reason}
		var buf bytes.Buffer
		if err := WriteFrame(&buf, original); err != nil {
			t.Fatal(err)
		}
		frame, err := ReadFrame(&buf)
		if err != nil {
			t.Fatal(err)
		}
		decoded := frame.(*Disconnect)
		if decoded.Reason != original.Reason {
			t.Fatalf("reason mismatch: got %q, want %q", decoded.Reason, original.Reason)
		}
	}
}

func TestDisconnectBarePayload(t *testing.T) {
	// A zero-length Disconnect payload is valid on the wire.
	frame, err := DecodePayload(FrameDisconnect, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d := frame.(*Disconnect); d.Reason != "" {
		t.Fatalf("expected empty reason, got %q", d.Reason)
	}
}

func TestMultipleFramesInSequence(t *testing.T) {
	var buf bytes.Buffer

	frames := []any{
		&Login{Username: "penger", Password: "password"},
		&LoginAck{ConnID: 7},
		&Heartbeat{TimestampMs: 1000},
		&Message{TimestampMs: 2000, Sender: "penger", Text: "first"},
		&Message{TimestampMs: 3000, Sender: "penger", Text: "second"},
		&Disconnect{Reason: "bye"},
	}

	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatal(err)
		}
	}

	for i, expected := range frames {
		frame, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		switch e := expected.(type) {
		case *Login:
			d := frame.(*Login)
			if d.Username != e.Username || d.Password != e.Password {
				t.Fatalf("frame %d: login mismatch", i)
			}
		case *LoginAck:
			d := frame.(*LoginAck)
			if d.ConnID != e.ConnID {
				t.Fatalf("frame %d: login ack mismatch", i)
			}
		case *Heartbeat:
			d := frame.(*Heartbeat)
			if d.TimestampMs != e.TimestampMs {
				t.Fatalf("frame %d: heartbeat mismatch", i)
			}
		case *Message:
			d := frame.(*Message)
			if d.TimestampMs != e.TimestampMs || d.Sender != e.Sender || d.Text != e.Text {
				t.Fatalf("frame %d: message mismatch", i)
			}
		case *Disconnect:
			d := frame.(*Disconnect)
			if d.Reason != e.Reason {
				t.Fatalf("frame %d: disconnect mismatch", i)
			}
		}
	}
}

func TestDecodeShortPayload(t *testing.T) {
	// LoginAck needs 8 bytes, give it 3
	_, err := DecodePayload(FrameLoginAck, make([]byte, 3))
	if err != ErrShortPayload {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestDecodeTruncatedString(t *testing.T) {
	// Declares a 10-byte reason but supplies 2
	_, err := DecodePayload(FrameLoginReject, []byte{0, 10, 'a', 'b'})
	if err != ErrShortPayload {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := DecodePayload(FrameType(0xFF), nil)
	if err == nil {
		t.Fatal("expected error for unknown frame type")
	}
}

func TestPayloadTooLarge(t *testing.T) {
	huge := &Message{Sender: "a", Text: string(make([]byte, MaxPayloadSize+1))}
	var buf bytes.Buffer
	err := WriteFrame(&buf, huge)
	if err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	// Header declaring a 2 MiB payload; no payload content should matter.
	hdr := []byte{0x00, 0x20, 0x00, 0x00, byte(FrameMessage)}
	_, err := ReadFrame(bytes.NewReader(hdr))
	if err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

// --- Fuzz tests ---

func FuzzDecodeLogin(f *testing.F) {
	f.Add([]byte{0, 1, 'a', 0, 1, 'b'})
	f.Fuzz(func(t *testing.T, data []byte) {
		DecodePayload(FrameLogin, data)
	})
}

func FuzzDecodeMessage(f *testing.F) {
	f.Add([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 'a', 0, 0, 0, 0})
	f.Fuzz(func(t *testing.T, data []byte) {
		DecodePayload(FrameMessage, data)
	})
}

func FuzzReadFrame(f *testing.F) {
	var buf bytes.Buffer
	WriteFrame(&buf, &Heartbeat{TimestampMs: 12345})
	f.Add(buf.Bytes())

	buf.Reset()
	WriteFrame(&buf, &Login{Username: "penger", Password: "password"})
	f.Add(buf.Bytes())

	f.Fuzz(func(t *testing.T, data []byte) {
		ReadFrame(bytes.NewReader(data))
	})
}

func FuzzRoundTripMessage(f *testing.F) {
	f.Add(int64(0), "penger", "hi")
	f.Add(int64(-1), "", "")
	f.Add(int64(1706745600000), "user", "some longer chat text")
	f.Fuzz(func(t *testing.T, ts int64, sender, text string) {
		if len(sender) > 0xFFFF {
			sender = sender[:0xFFFF]
		}
		if len(text) > 64*1024 { // keep fuzz fast
			text = text[:64*1024]
		}
		original := &Message{TimestampMs: ts, Sender: sender, Text: text}
		var buf bytes.Buffer
		if err := WriteFrame(&buf, original); err != nil {
			t.Fatal(err)
		}
		frame, err := ReadFrame(&buf)
		if err != nil {
			t.Fatal(err)
		}
		decoded := frame.(*Message)
		if decoded.TimestampMs != original.TimestampMs ||
			decoded.Sender != original.Sender || decoded.Text != original.Text {
			t.Fatalf("round trip mismatch")
		}
	})
}

func FuzzRoundTripLogin(f *testing.F) {
	f.Add("penger", "password")
	f.Add("", "")
	f.Fuzz(func(t *testing.T, username, password string) {
		if len(username) > 0xFFFF || len(password) > 0xFFFF {
			return
		}
		original := &Login{Username: username, Password: password}
		var buf bytes.Buffer
		if err := WriteFrame(&buf, original); err != nil {
			t.Fatal(err)
		}
		frame, err := ReadFrame(&buf)
		if err != nil {
			t.Fatal(err)
		}
		decoded := frame.(*Login)
		if decoded.Username != original.Username || decoded.Password != original.Password {
			t.Fatal("round trip mismatch")
		}
	})
}
