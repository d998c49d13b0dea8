package bitio

import (
	"bytes"
	"testing"

	"github.com/bitflac/flac/ferr"
)

func TestWriteUintInvalidWidth(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteUint(33, 0); !ferr.Is(err, ferr.InvalidArgument) {
		t.Errorf("WriteUint(33, 0): err = %v, want InvalidArgument", err)
	}
}

func TestAlignToByte(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteUint(3, 0x5); err != nil {
		t.Fatal(err)
	}
	if err := w.AlignToByte(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if got := buf.Bytes(); len(got) != 1 {
		t.Fatalf("after aligning a 3-bit write, got %d bytes, want 1", len(got))
	}
	// 0x5 = 101, padded on the right to a byte with zero bits: 10100000.
	if got := buf.Bytes()[0]; got != 0xA0 {
		t.Errorf("aligned byte = 0x%02X, want 0xA0", got)
	}
}

func TestGetCrcNotAlignedMidByte(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteUint(3, 0x5); err != nil {
		t.Fatal(err)
	}
	if _, err := w.GetCrc8(); !ferr.Is(err, ferr.NotAligned) {
		t.Errorf("GetCrc8() mid-byte: err = %v, want NotAligned", err)
	}
	if _, err := w.GetCrc16(); !ferr.Is(err, ferr.NotAligned) {
		t.Errorf("GetCrc16() mid-byte: err = %v, want NotAligned", err)
	}
}

func TestWriterCloseIdempotent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteUint(8, 0x42); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if err := w.WriteUint(8, 0); !ferr.Is(err, ferr.InvalidState) {
		t.Errorf("WriteUint() after Close: err = %v, want InvalidState", err)
	}
}

func TestGetByteCount(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteUint(8, 1); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint(8, 2); err != nil {
		t.Fatal(err)
	}
	if got := w.GetByteCount(); got != 2 {
		t.Errorf("GetByteCount() = %d, want 2", got)
	}
	if err := w.WriteUint(4, 0xF); err != nil {
		t.Fatal(err)
	}
	if got := w.GetByteCount(); got != 2 {
		t.Errorf("GetByteCount() with a pending nibble = %d, want 2", got)
	}
}
