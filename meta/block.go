// Package meta implements the STREAMINFO and SEEKTABLE metadata block
// codecs: parsing, validation, and serialization of the two metadata
// blocks a decoder or encoder needs before it can touch a single audio
// frame.
package meta

import "github.com/bitflac/flac/bitio"

// Block type codes, as they appear in a metadata block header.
const (
	BlockTypeStreamInfo = 0
	BlockTypeSeekTable  = 3
)

// BlockHeader is the 4-byte header prefixing every FLAC metadata block.
type BlockHeader struct {
	IsLast bool
	Type   uint8
	Length uint32 // 24-bit payload length, in bytes
}

// ParseBlockHeader reads a 4-byte metadata block header.
func ParseBlockHeader(r *bitio.Reader) (BlockHeader, error) {
	isLast, err := r.ReadUint(1)
	if err != nil {
		return BlockHeader{}, err
	}
	typ, err := r.ReadUint(7)
	if err != nil {
		return BlockHeader{}, err
	}
	length, err := r.ReadUint(24)
	if err != nil {
		return BlockHeader{}, err
	}
	return BlockHeader{IsLast: isLast != 0, Type: uint8(typ), Length: length}, nil
}

// WriteBlockHeader writes a 4-byte metadata block header.
func WriteBlockHeader(w *bitio.Writer, isLast bool, typ uint8, length uint32) error {
	var isLastBit uint32
	if isLast {
		isLastBit = 1
	}
	if err := w.WriteUint(1, isLastBit); err != nil {
		return err
	}
	if err := w.WriteUint(7, uint32(typ)); err != nil {
		return err
	}
	return w.WriteUint(24, length)
}

// readUint64 reads a big-endian 64-bit field as two 32-bit halves, since
// bitio.Reader.ReadUint tops out at 32 bits.
func readUint64(r *bitio.Reader) (uint64, error) {
	hi, err := r.ReadUint(32)
	if err != nil {
		return 0, err
	}
	lo, err := r.ReadUint(32)
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

func writeUint64(w *bitio.Writer, v uint64) error {
	if err := w.WriteUint(32, uint32(v>>32)); err != nil {
		return err
	}
	return w.WriteUint(32, uint32(v))
}
