package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

// encodeAll writes the given frames into one contiguous byte slice.
func encodeAll(t *testing.T, frames []any) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

// drain pulls all complete frames out of the decoder.
func drain(t *testing.T, d *Decoder) []any {
	t.Helper()
	var out []any
	for {
		frame, err := d.Next()
		if err == ErrIncomplete {
			return out
		}
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, frame)
	}
}

var streamFrames = []any{
	&Login{Username: "penger", Password: "password"},
	&LoginAck{ConnID: 1},
	&Heartbeat{TimestampMs: 99},
	&Message{TimestampMs: 100, Sender: "other", Text: "hello there"},
	&MessageAck{Seq: 3},
	&Disconnect{Reason: "done"},
}

func TestDecoderSingleChunk(t *testing.T) {
	wire := encodeAll(t, streamFrames)

	var d Decoder
	d.Feed(wire)
	got := drain(t, &d)

	if !reflect.DeepEqual(got, streamFrames) {
		t.Fatalf("decoded frames differ: got %v, want %v", got, streamFrames)
	}
	if d.Buffered() != 0 {
		t.Fatalf("expected empty buffer, %d bytes left", d.Buffered())
	}
}

// Chunk-boundary invariance: any chunking of the stream yields the same
// ordered frame sequence as decoding it all at once.
func TestDecoderChunkInvariance(t *testing.T) {
	wire := encodeAll(t, streamFrames)

	for _, chunkSize := range []int{1, 2, 3, 5, 7, 13, 64, len(wire)} {
		var d Decoder
		var got []any
		for off := 0; off < len(wire); off += chunkSize {
			end := min(off+chunkSize, len(wire))
			d.Feed(wire[off:end])
			got = append(got, drain(t, &d)...)
		}
		if !reflect.DeepEqual(got, streamFrames) {
			t.Fatalf("chunk size %d: decoded frames differ", chunkSize)
		}
	}
}

func TestDecoderMultipleFramesOneFeed(t *testing.T) {
	wire := encodeAll(t, []any{
		&Heartbeat{TimestampMs: 1},
		&Heartbeat{TimestampMs: 2},
		&Heartbeat{TimestampMs: 3},
	})

	var d Decoder
	d.Feed(wire)

	for want := int64(1); want <= 3; want++ {
		frame, err := d.Next()
		if err != nil {
			t.Fatal(err)
		}
		if hb := frame.(*Heartbeat); hb.TimestampMs != want {
			t.Fatalf("expected heartbeat %d, got %d", want, hb.TimestampMs)
		}
	}
	if _, err := d.Next(); err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestDecoderIncompleteHeader(t *testing.T) {
	var d Decoder
	d.Feed([]byte{0, 0})
	if _, err := d.Next(); err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestDecoderIncompletePayload(t *testing.T) {
	wire := encodeAll(t, []any{&Message{TimestampMs: 1, Sender: "a", Text: "hello"}})

	var d Decoder
	d.Feed(wire[:len(wire)-1])
	if _, err := d.Next(); err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	d.Feed(wire[len(wire)-1:])
	frame, err := d.Next()
	if err != nil {
		t.Fatal(err)
	}
	if m := frame.(*Message); m.Text != "hello" {
		t.Fatalf("expected hello, got %q", m.Text)
	}
}

// A declared length beyond the bound fails as soon as the header is visible,
// before any payload bytes arrive.
func TestDecoderOversizedLength(t *testing.T) {
	hdr := []byte{0x00, 0x20, 0x00, 0x00, byte(FrameMessage)} // 2 MiB declared

	var d Decoder
	d.Feed(hdr)
	if _, err := d.Next(); err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

// A corrupt frame poisons the stream: the decoder reports the error on
// every subsequent Next, and frames after the bad one are never surfaced,
// no matter how the bytes were chunked.
func TestDecoderErrorSticky(t *testing.T) {
	bad := []byte{0x00, 0x00, 0x00, 0x00, 0xFF} // zero-length frame, unknown type
	wire := append(bad, encodeAll(t, []any{&Heartbeat{TimestampMs: 1}})...)

	var d Decoder
	d.Feed(wire)

	if _, err := d.Next(); !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("expected ErrUnknownFrame, got %v", err)
	}
	if frame, err := d.Next(); !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("error must latch, got frame %v, err %v", frame, err)
	}

	// Feeding more valid bytes does not revive the stream.
	d.Feed(encodeAll(t, []any{&Heartbeat{TimestampMs: 2}}))
	if _, err := d.Next(); !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("error must survive further feeds, got %v", err)
	}
}

// Byte-at-a-time delivery of [corrupt frame][valid frame] must match the
// whole-stream outcome: no frames, same error.
func TestDecoderErrorStickyChunked(t *testing.T) {
	bad := []byte{0x00, 0x00, 0x00, 0x00, 0xFF}
	wire := append(bad, encodeAll(t, []any{&Heartbeat{TimestampMs: 1}})...)

	var d Decoder
	var frames []any
	var firstErr error
	for _, b := range wire {
		d.Feed([]byte{b})
		for {
			frame, err := d.Next()
			if err == ErrIncomplete {
				break
			}
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				break
			}
			frames = append(frames, frame)
		}
	}

	if len(frames) != 0 {
		t.Fatalf("frames after a corrupt frame must not surface, got %d", len(frames))
	}
	if !errors.Is(firstErr, ErrUnknownFrame) {
		t.Fatalf("expected ErrUnknownFrame, got %v", firstErr)
	}
}

// decodeChunked runs one decoder over data delivered in chunkSize pieces,
// returning every decoded frame and the first hard error (ErrIncomplete is
// not an error, just "feed more").
func decodeChunked(data []byte, chunkSize int) ([]any, error) {
	var d Decoder
	var frames []any
	var firstErr error
	for off := 0; off < len(data); off += chunkSize {
		end := min(off+chunkSize, len(data))
		d.Feed(data[off:end])
		for {
			frame, err := d.Next()
			if err == ErrIncomplete {
				break
			}
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				break
			}
			frames = append(frames, frame)
		}
	}
	return frames, firstErr
}

func FuzzDecoderChunked(f *testing.F) {
	wire := func() []byte {
		var buf bytes.Buffer
		WriteFrame(&buf, &Heartbeat{TimestampMs: 1})
		WriteFrame(&buf, &Message{TimestampMs: 2, Sender: "a", Text: "b"})
		return buf.Bytes()
	}()
	f.Add(wire, 3)
	f.Add(append([]byte{0x00, 0x00, 0x00, 0x00, 0xFF}, wire...), 1)

	f.Fuzz(func(t *testing.T, data []byte, chunkSize int) {
		if chunkSize < 1 {
			chunkSize = 1
		}

		wholeFrames, wholeErr := decodeChunked(data, max(len(data), 1))
		chunkedFrames, chunkedErr := decodeChunked(data, chunkSize)

		if !reflect.DeepEqual(wholeFrames, chunkedFrames) {
			t.Fatal("chunked decode differs from whole decode")
		}
		if (wholeErr == nil) != (chunkedErr == nil) {
			t.Fatalf("error mismatch: whole=%v chunked=%v", wholeErr, chunkedErr)
		}
		if wholeErr != nil && wholeErr.Error() != chunkedErr.Error() {
			t.Fatalf("error mismatch: whole=%v chunked=%v", wholeErr, chunkedErr)
		}
	})
}
