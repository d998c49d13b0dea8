// Package bitio implements the big-endian, bit-granular stream reader and
// writer that every other package in this module builds frame headers,
// metadata blocks, and Rice-coded residuals on top of.
package bitio

import (
	"io"

	"github.com/bitflac/flac/ferr"
	"github.com/bitflac/flac/internal/crc"
	"github.com/bitflac/flac/internal/rice"
)

const byteBufSize = 4096

// Reader reads individual bits, aligned bytes, and Rice-coded signed
// integers from a Source, while tracking running CRC-8 and CRC-16
// checksums over the bytes it has consumed.
//
// A Reader owns two layers of buffering: a byte buffer refilled in large
// chunks from the Source, and a 64-bit bit buffer drawn from it 8 bits at
// a time. CRC accumulation happens against the byte buffer lazily, in
// batches, rather than bit by bit.
type Reader struct {
	src Source

	buf                [byteBufSize]byte
	byteBufferStartPos int64
	byteBufferLen      int // -1 once the source is exhausted
	byteBufferIndex    int

	bitBuffer    uint64
	bitBufferLen int

	crcStartIndex int
	crc8          uint8
	crc16         uint16

	closed bool
}

// NewReader returns a Reader drawing bytes from src.
func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

// GetLength returns the total byte length of the underlying stream, if
// src reports one.
func (r *Reader) GetLength() (int64, error) {
	ls, ok := r.src.(LengthSource)
	if !ok {
		return 0, ferr.New(ferr.Unsupported, "bitio.Reader.GetLength", "source has no defined length")
	}
	return ls.Length()
}

// GetPosition returns the absolute byte offset of the next bit to be
// read. A partially consumed byte counts as unread.
func (r *Reader) GetPosition() int64 {
	return r.byteBufferStartPos + int64(r.byteBufferIndex) - int64((r.bitBufferLen+7)/8)
}

// GetBitPosition returns the number of bits already consumed from the
// byte at GetPosition, in [0, 8).
func (r *Reader) GetBitPosition() int {
	return (8 - r.bitBufferLen%8) % 8
}

// SeekTo repositions the Reader to absolute byte offset pos. It discards
// all buffered bits and bytes and resets both CRC accumulators; it does
// not require a prior byte-alignment check, since it unconditionally
// abandons whatever bits were in flight.
func (r *Reader) SeekTo(pos int64) error {
	if r.closed {
		return ferr.New(ferr.InvalidState, "bitio.Reader.SeekTo", "reader is closed")
	}
	ss, ok := r.src.(SeekableSource)
	if !ok {
		return ferr.New(ferr.Unsupported, "bitio.Reader.SeekTo", "source does not support seeking")
	}
	if err := ss.SeekTo(pos); err != nil {
		return ferr.Wrap(ferr.Unsupported, "bitio.Reader.SeekTo", err)
	}
	r.byteBufferStartPos = pos
	r.byteBufferIndex = 0
	r.byteBufferLen = 0
	r.bitBuffer = 0
	r.bitBufferLen = 0
	r.crcStartIndex = 0
	r.crc8 = 0
	r.crc16 = 0
	return nil
}

// ReadUint reads the next n bits (0 <= n <= 32) as an unsigned, MSB-first
// integer.
func (r *Reader) ReadUint(n int) (uint32, error) {
	if r.closed {
		return 0, ferr.New(ferr.InvalidState, "bitio.Reader.ReadUint", "reader is closed")
	}
	if n < 0 || n > 32 {
		return 0, ferr.Newf(ferr.InvalidArgument, "bitio.Reader.ReadUint", "n=%d out of range [0,32]", n)
	}
	v, err := r.readBitsCore(n)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// ReadSignedInt reads the next n bits (0 <= n <= 32) as a two's-complement
// signed integer.
func (r *Reader) ReadSignedInt(n int) (int32, error) {
	u, err := r.ReadUint(n)
	if err != nil {
		return 0, err
	}
	if n == 0 || n == 32 {
		return int32(u), nil
	}
	signBit := uint32(1) << uint(n-1)
	if u&signBit != 0 {
		u |= ^uint32(0) << uint(n)
	}
	return int32(u), nil
}

// ReadByte reads the next whole byte. It must be called at a byte
// boundary (GetBitPosition() == 0). It returns -1, nil at a clean
// end of stream rather than an error, so callers probing for the end of
// a container (for example, the last metadata block) can do so without
// special-casing ferr.EndOfStream.
func (r *Reader) ReadByte() (int, error) {
	if r.closed {
		return 0, ferr.New(ferr.InvalidState, "bitio.Reader.ReadByte", "reader is closed")
	}
	if r.GetBitPosition() != 0 {
		return 0, ferr.New(ferr.NotAligned, "bitio.Reader.ReadByte", "not at a byte boundary")
	}
	v, err := r.readBitsCore(8)
	if err != nil {
		if ferr.Is(err, ferr.EndOfStream) {
			return -1, nil
		}
		return 0, err
	}
	return int(v), nil
}

// ReadFully fills buf with consecutive bytes. It must be called at a
// byte boundary.
func (r *Reader) ReadFully(buf []byte) error {
	if r.closed {
		return ferr.New(ferr.InvalidState, "bitio.Reader.ReadFully", "reader is closed")
	}
	if r.GetBitPosition() != 0 {
		return ferr.New(ferr.NotAligned, "bitio.Reader.ReadFully", "not at a byte boundary")
	}
	for i := range buf {
		v, err := r.readBitsCore(8)
		if err != nil {
			return err
		}
		buf[i] = byte(v)
	}
	return nil
}

// ResetCrcs marks the current position as the start of both the CRC-8 and
// CRC-16 spans. It must be called at a byte boundary.
func (r *Reader) ResetCrcs() error {
	if r.GetBitPosition() != 0 {
		return ferr.New(ferr.NotAligned, "bitio.Reader.ResetCrcs", "not at a byte boundary")
	}
	r.crcStartIndex = r.byteBufferIndex - r.bitBufferLen/8
	r.crc8 = 0
	r.crc16 = 0
	return nil
}

// GetCrc8 returns the running CRC-8 over the bytes read since the last
// ResetCrcs. It must be called at a byte boundary.
func (r *Reader) GetCrc8() (uint8, error) {
	if r.GetBitPosition() != 0 {
		return 0, ferr.New(ferr.NotAligned, "bitio.Reader.GetCrc8", "not at a byte boundary")
	}
	r.flushCrcs()
	return r.crc8, nil
}

// GetCrc16 returns the running CRC-16 over the bytes read since the last
// ResetCrcs. It must be called at a byte boundary.
func (r *Reader) GetCrc16() (uint16, error) {
	if r.GetBitPosition() != 0 {
		return 0, ferr.New(ferr.NotAligned, "bitio.Reader.GetCrc16", "not at a byte boundary")
	}
	r.flushCrcs()
	return r.crc16, nil
}

// Close releases the underlying source, if it is an io.Closer. Close is
// idempotent and safe to call after a prior read failed.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ReadRiceSignedInts decodes end-start Rice-coded signed integers with
// parameter param into result[start:end]. param must be in [0, 31].
//
// When param has a table and at least 8 bytes remain in the byte buffer,
// the bit buffer is topped up to TableBits*4 bits and up to four symbols
// are resolved via the internal/rice lookup table; otherwise (or for any
// symbol the table can't resolve, because its encoding is longer than the
// table's window) decoding falls back to reading the unary prefix bit by
// bit.
func (r *Reader) ReadRiceSignedInts(param int, result []int32, start, end int) error {
	if r.closed {
		return ferr.New(ferr.InvalidState, "bitio.Reader.ReadRiceSignedInts", "reader is closed")
	}
	if param < 0 || param > 31 {
		return ferr.Newf(ferr.InvalidArgument, "bitio.Reader.ReadRiceSignedInts", "rice parameter %d out of range [0,31]", param)
	}
	if start < 0 || end > len(result) || start > end {
		return ferr.Newf(ferr.InvalidArgument, "bitio.Reader.ReadRiceSignedInts", "invalid range [%d,%d) for result of length %d", start, end, len(result))
	}
	unaryLimit := uint64(1) << uint(53-param)
	table := rice.Get(param)

	i := start
	for i < end {
		if table != nil && r.availableBytes() >= 8 {
			r.growBitsFast(4 * rice.TableBits)
			limit := i + 4
			if limit > end {
				limit = end
			}
			for ; i < limit; i++ {
				if r.bitBufferLen < rice.TableBits {
					v, err := r.decodeRiceSlow(param, unaryLimit)
					if err != nil {
						return err
					}
					result[i] = v
					continue
				}
				idx := int((r.bitBuffer >> uint(r.bitBufferLen-rice.TableBits)) & (rice.TableSize - 1))
				consumed := table.Consumed[idx]
				if consumed == 0 {
					v, err := r.decodeRiceSlow(param, unaryLimit)
					if err != nil {
						return err
					}
					result[i] = v
					continue
				}
				r.bitBufferLen -= int(consumed)
				result[i] = table.Value[idx]
			}
			continue
		}
		v, err := r.decodeRiceSlow(param, unaryLimit)
		if err != nil {
			return err
		}
		result[i] = v
		i++
	}
	return nil
}

// decodeRiceSlow decodes a single Rice-coded signed integer bit by bit:
// a unary prefix terminated by a 1 bit, then param remainder bits.
func (r *Reader) decodeRiceSlow(param int, unaryLimit uint64) (int32, error) {
	var q uint64
	for {
		bit, err := r.readBitsCore(1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		q++
		if q >= unaryLimit {
			return 0, ferr.Newf(ferr.InvalidData, "bitio.Reader.ReadRiceSignedInts", "rice residual too large: unary prefix reached %d", q)
		}
	}
	var rem uint64
	if param > 0 {
		var err error
		rem, err = r.readBitsCore(param)
		if err != nil {
			return 0, err
		}
	}
	u := uint32((q << uint(param)) | rem)
	return int32(u>>1) ^ -int32(u&1), nil
}

// availableBytes returns the number of unconsumed bytes sitting in the
// byte buffer (not yet pulled into the bit buffer).
func (r *Reader) availableBytes() int {
	if r.byteBufferLen < 0 {
		return 0
	}
	return r.byteBufferLen - r.byteBufferIndex
}

// growBitsFast pulls whole bytes straight from the byte buffer into the
// bit buffer until bitBufferLen reaches target. The caller must already
// have verified enough bytes are available (availableBytes() >= 8
// comfortably covers target <= 56), so this never has to refill the byte
// buffer itself.
func (r *Reader) growBitsFast(target int) {
	for r.bitBufferLen < target {
		b := r.buf[r.byteBufferIndex]
		r.byteBufferIndex++
		r.bitBuffer = (r.bitBuffer << 8) | uint64(b)
		r.bitBufferLen += 8
	}
}

// readBitsCore is the shared primitive behind every public read method:
// it returns the next n bits (0 <= n <= 57, since a wider request could
// push more than 64 bits through the bit buffer; callers never ask for
// more than 32) as the low n bits of the result.
func (r *Reader) readBitsCore(n int) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	for r.bitBufferLen < n {
		if err := r.pullByte(); err != nil {
			return 0, err
		}
	}
	shift := uint(r.bitBufferLen - n)
	result := r.bitBuffer >> shift
	if n < 64 {
		result &= (uint64(1) << uint(n)) - 1
	}
	r.bitBufferLen -= n
	return result, nil
}

// pullByte pulls one more byte from the byte buffer into the bit buffer,
// refilling the byte buffer from the source first if it is exhausted.
func (r *Reader) pullByte() error {
	if r.byteBufferIndex >= r.byteBufferLen {
		if err := r.refillByteBuffer(); err != nil {
			return err
		}
	}
	b := r.buf[r.byteBufferIndex]
	r.byteBufferIndex++
	r.bitBuffer = (r.bitBuffer << 8) | uint64(b)
	r.bitBufferLen += 8
	return nil
}

// refillByteBuffer flushes the CRC accumulators over whatever remains of
// the current byte buffer, then repopulates it from the source. Once the
// source is exhausted, byteBufferLen is pinned at -1 and every further
// call short-circuits with EndOfStream. A fresh or freshly-seeked Reader
// has byteBufferLen == 0, which is an empty buffer, not end of stream.
func (r *Reader) refillByteBuffer() error {
	if r.byteBufferLen < 0 {
		return ferr.New(ferr.EndOfStream, "bitio.Reader", "end of stream")
	}
	r.updateCRCs(r.byteBufferLen)
	r.byteBufferStartPos += int64(r.byteBufferLen)

	n, _ := r.src.ReadInto(r.buf[:])
	r.crcStartIndex = 0
	r.byteBufferIndex = 0
	if n <= 0 {
		r.byteBufferLen = -1
		return ferr.New(ferr.EndOfStream, "bitio.Reader", "end of stream")
	}
	r.byteBufferLen = n
	return nil
}

// flushCrcs folds in whatever bytes have been consumed past the last CRC
// flush point but excludes the whole bytes still sitting unread in the
// bit buffer.
func (r *Reader) flushCrcs() {
	upto := r.byteBufferIndex - r.bitBufferLen/8
	r.updateCRCs(upto)
}

func (r *Reader) updateCRCs(upto int) {
	if upto <= r.crcStartIndex {
		return
	}
	data := r.buf[r.crcStartIndex:upto]
	r.crc8 = crc.Update8(r.crc8, data)
	r.crc16 = crc.Update16(r.crc16, data)
	r.crcStartIndex = upto
}
