package bitio

import (
	"bufio"
	"io"

	"github.com/bitflac/flac/ferr"
	"github.com/bitflac/flac/internal/crc"
)

// Writer writes individual bits and aligned bytes to an underlying
// io.Writer, MSB-first, while tracking running CRC-8 and CRC-16
// checksums over the bytes it has emitted.
//
// Unlike Reader, Writer has no reason to batch its CRC updates: every
// byte it emits is final the moment it is written, so the checksums are
// folded in immediately.
type Writer struct {
	bw *bufio.Writer

	bitBuffer    uint64
	bitBufferLen int // always in [0, 8) between calls

	crc8      uint8
	crc16     uint16
	byteCount int64

	closed bool
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteUint writes the low n bits (0 <= n <= 32) of val, MSB-first.
func (w *Writer) WriteUint(n int, val uint32) error {
	if w.closed {
		return ferr.New(ferr.InvalidState, "bitio.Writer.WriteUint", "writer is closed")
	}
	if n < 0 || n > 32 {
		return ferr.Newf(ferr.InvalidArgument, "bitio.Writer.WriteUint", "n=%d out of range [0,32]", n)
	}
	if n == 0 {
		return nil
	}
	mask := uint64(1)<<uint(n) - 1
	w.bitBuffer = (w.bitBuffer << uint(n)) | (uint64(val) & mask)
	w.bitBufferLen += n
	for w.bitBufferLen >= 8 {
		shift := uint(w.bitBufferLen - 8)
		if err := w.emitByte(byte(w.bitBuffer >> shift)); err != nil {
			return err
		}
		w.bitBufferLen -= 8
	}
	return nil
}

// WriteSignedInt writes the low n bits (0 <= n <= 32) of val's
// two's-complement representation, MSB-first.
func (w *Writer) WriteSignedInt(n int, val int32) error {
	if n < 0 || n > 32 {
		return ferr.Newf(ferr.InvalidArgument, "bitio.Writer.WriteSignedInt", "n=%d out of range [0,32]", n)
	}
	if n == 0 {
		return nil
	}
	var mask uint32
	if n == 32 {
		mask = 0xFFFFFFFF
	} else {
		mask = uint32(1)<<uint(n) - 1
	}
	return w.WriteUint(n, uint32(val)&mask)
}

// AlignToByte pads the current partial byte with zero bits until the
// writer sits at a byte boundary.
func (w *Writer) AlignToByte() error {
	if w.closed {
		return ferr.New(ferr.InvalidState, "bitio.Writer.AlignToByte", "writer is closed")
	}
	if w.bitBufferLen == 0 {
		return nil
	}
	return w.WriteUint(8-w.bitBufferLen, 0)
}

// Flush pushes any fully-formed bytes through to the underlying
// io.Writer. It does not pad or otherwise disturb a partial trailing
// byte; call AlignToByte first if a byte-aligned flush is required.
func (w *Writer) Flush() error {
	if w.closed {
		return ferr.New(ferr.InvalidState, "bitio.Writer.Flush", "writer is closed")
	}
	if err := w.bw.Flush(); err != nil {
		return ferr.Wrap(ferr.InvalidState, "bitio.Writer.Flush", err)
	}
	return nil
}

// ResetCrcs marks the current position as the start of both the CRC-8
// and CRC-16 spans. It must be called at a byte boundary.
func (w *Writer) ResetCrcs() error {
	if w.bitBufferLen != 0 {
		return ferr.New(ferr.NotAligned, "bitio.Writer.ResetCrcs", "not at a byte boundary")
	}
	w.crc8 = 0
	w.crc16 = 0
	return nil
}

// GetCrc8 returns the running CRC-8 over the bytes written since the
// last ResetCrcs. It must be called at a byte boundary.
func (w *Writer) GetCrc8() (uint8, error) {
	if w.bitBufferLen != 0 {
		return 0, ferr.New(ferr.NotAligned, "bitio.Writer.GetCrc8", "not at a byte boundary")
	}
	return w.crc8, nil
}

// GetCrc16 returns the running CRC-16 over the bytes written since the
// last ResetCrcs. It must be called at a byte boundary.
func (w *Writer) GetCrc16() (uint16, error) {
	if w.bitBufferLen != 0 {
		return 0, ferr.New(ferr.NotAligned, "bitio.Writer.GetCrc16", "not at a byte boundary")
	}
	return w.crc16, nil
}

// GetByteCount returns the number of whole bytes emitted so far.
func (w *Writer) GetByteCount() int64 {
	return w.byteCount
}

// Close pads any partial trailing byte with zero bits, flushes the
// underlying io.Writer, and marks the Writer closed. Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	err := w.AlignToByte()
	if flushErr := w.bw.Flush(); err == nil {
		err = flushErr
	}
	w.closed = true
	return err
}

// WriteRiceSignedInts encodes end-start signed integers from
// values[start:end] as Rice codes with parameter param: each value is
// zig-zag mapped to an unsigned integer, then written as a unary
// quotient (q zero bits followed by a one bit) and a param-bit binary
// remainder.
func (w *Writer) WriteRiceSignedInts(param int, values []int32, start, end int) error {
	if w.closed {
		return ferr.New(ferr.InvalidState, "bitio.Writer.WriteRiceSignedInts", "writer is closed")
	}
	if param < 0 || param > 31 {
		return ferr.Newf(ferr.InvalidArgument, "bitio.Writer.WriteRiceSignedInts", "rice parameter %d out of range [0,31]", param)
	}
	if start < 0 || end > len(values) || start > end {
		return ferr.Newf(ferr.InvalidArgument, "bitio.Writer.WriteRiceSignedInts", "invalid range [%d,%d) for values of length %d", start, end, len(values))
	}
	for i := start; i < end; i++ {
		v := values[i]
		u := uint32((v << 1) ^ (v >> 31))
		q := u >> uint(param)
		for q > 0 {
			chunk := q
			if chunk > 32 {
				chunk = 32
			}
			if err := w.WriteUint(int(chunk), 0); err != nil {
				return err
			}
			q -= chunk
		}
		if err := w.WriteUint(1, 1); err != nil {
			return err
		}
		if param > 0 {
			rem := u & (uint32(1)<<uint(param) - 1)
			if err := w.WriteUint(param, rem); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) emitByte(b byte) error {
	if err := w.bw.WriteByte(b); err != nil {
		return ferr.Wrap(ferr.InvalidState, "bitio.Writer", err)
	}
	w.crc8 = crc.Update8(w.crc8, []byte{b})
	w.crc16 = crc.Update16(w.crc16, []byte{b})
	w.byteCount++
	return nil
}
