// Tests for [EncodeFrame] and [DecodeFrame] covering round-trips, partial
// reads, and malformed input.
package control

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func mustEncodeFrame(t *testing.T, opcode Opcode, payload []byte) []byte {
	t.Helper()
	frame, err := EncodeFrame(opcode, payload)
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	return frame
}

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		opcode  Opcode
		payload []byte
	}{
		{"command", OpCommand, []byte(`{"command":"start"}`)},
		{"response", OpResponse, []byte(`{"ok":true,"message":"Tracking started"}`)},
		{"event", OpEvent, []byte(`{"active":true,"elapsed":"01:05"}`)},
		{"close_empty", OpClose, []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := mustEncodeFrame(t, tt.opcode, tt.payload)
			opcode, payload, err := DecodeFrame(bytes.NewReader(frame))
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if opcode != tt.opcode {
				t.Errorf("opcode = %d, want %d", opcode, tt.opcode)
			}
			if !bytes.Equal(payload, tt.payload) {
				t.Errorf("payload = %q, want %q", payload, tt.payload)
			}
		})
	}
}

func TestDecodeFramePartialReads(t *testing.T) {
	original := []byte(`{"command":"status"}`)
	reader := &slowReader{data: mustEncodeFrame(t, OpCommand, original)}

	opcode, payload, err := DecodeFrame(reader)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if opcode != OpCommand || !bytes.Equal(payload, original) {
		t.Errorf("got opcode %d payload %q", opcode, payload)
	}
}

// slowReader returns data one byte at a time, simulating partial reads.
type slowReader struct {
	data []byte
	pos  int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

func TestDecodeFrameSequential(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(mustEncodeFrame(t, OpCommand, []byte(`{"command":"ping"}`)))
	buf.Write(mustEncodeFrame(t, OpResponse, []byte(`{"ok":true}`)))

	op1, _, err := DecodeFrame(&buf)
	if err != nil || op1 != OpCommand {
		t.Fatalf("first frame: opcode %d err %v", op1, err)
	}
	op2, _, err := DecodeFrame(&buf)
	if err != nil || op2 != OpResponse {
		t.Fatalf("second frame: opcode %d err %v", op2, err)
	}
}

func TestEncodeFrameOversized(t *testing.T) {
	_, err := EncodeFrame(OpCommand, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestDecodeFrameOversizedHeader(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(OpCommand))
	binary.LittleEndian.PutUint32(header[4:8], MaxPayloadSize+1)

	_, _, err := DecodeFrame(bytes.NewReader(header))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestDecodeFrameTruncated(t *testing.T) {
	// Header claims 50 payload bytes but only 5 follow.
	header := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(OpCommand))
	binary.LittleEndian.PutUint32(header[4:8], 50)
	data := append(header, []byte("short")...)

	if _, _, err := DecodeFrame(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}
