package meta

import (
	"github.com/bitflac/flac/bitio"
	"github.com/bitflac/flac/ferr"
)

// SeekPointSize is the serialized size, in bytes, of one seek point.
const SeekPointSize = 18

// PlaceholderSampleOffset marks a SeekPoint as a placeholder: a reserved
// slot with no real seek target yet.
const PlaceholderSampleOffset = 0xFFFFFFFFFFFFFFFF

// SeekPoint is one entry of a SEEKTABLE block.
type SeekPoint struct {
	SampleOffset uint64
	FileOffset   uint64
	FrameSamples uint16
}

// IsPlaceholder reports whether p is a placeholder seek point.
func (p SeekPoint) IsPlaceholder() bool {
	return p.SampleOffset == PlaceholderSampleOffset
}

// SeekTable is an ordered list of seek points.
type SeekTable struct {
	Points []SeekPoint
}

// ParseSeekTable reads a SEEKTABLE payload of the given length (the
// block header must already have been consumed). Parsing does not
// enforce ordering; call CheckValues for that.
func ParseSeekTable(r *bitio.Reader, payloadLength uint32) (*SeekTable, error) {
	if payloadLength%SeekPointSize != 0 {
		return nil, ferr.Newf(ferr.InvalidData, "meta.ParseSeekTable", "payload length %d is not a multiple of %d", payloadLength, SeekPointSize)
	}
	count := int(payloadLength / SeekPointSize)
	points := make([]SeekPoint, count)
	for i := range points {
		sampleOffset, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		fileOffset, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		frameSamples, err := r.ReadUint(16)
		if err != nil {
			return nil, err
		}
		points[i] = SeekPoint{
			SampleOffset: sampleOffset,
			FileOffset:   fileOffset,
			FrameSamples: uint16(frameSamples),
		}
	}
	return &SeekTable{Points: points}, nil
}

// checkValues reports the first violated invariant, or "" if st is
// valid.
func (st *SeekTable) checkValues() string {
	seenPlaceholder := false
	var prevSample uint64
	var prevFile uint64
	havePrev := false
	for _, p := range st.Points {
		if p.IsPlaceholder() {
			seenPlaceholder = true
			continue
		}
		if seenPlaceholder {
			return "placeholder seek points must form a suffix"
		}
		if havePrev {
			if p.SampleOffset <= prevSample {
				return "non-placeholder sampleOffset must be strictly increasing"
			}
			if p.FileOffset < prevFile {
				return "non-placeholder fileOffset must be non-decreasing"
			}
		}
		prevSample, prevFile, havePrev = p.SampleOffset, p.FileOffset, true
	}
	return ""
}

// CheckValues reports whether st satisfies every SEEKTABLE ordering
// invariant.
func (st *SeekTable) CheckValues() error {
	if msg := st.checkValues(); msg != "" {
		return ferr.New(ferr.InvalidData, "meta.SeekTable.CheckValues", msg)
	}
	return nil
}

// maxSeekPoints is the largest point count whose serialized payload
// still fits a 24-bit metadata block length.
const maxSeekPoints = (1<<24 - 1) / SeekPointSize

// Write serializes st as a complete SEEKTABLE block (4-byte header plus
// 18*len(Points) bytes), failing with InvalidState if st does not
// satisfy CheckValues or has too many points to address.
func (st *SeekTable) Write(w *bitio.Writer, isLast bool) error {
	if msg := st.checkValues(); msg != "" {
		return ferr.New(ferr.InvalidState, "meta.SeekTable.Write", msg)
	}
	if len(st.Points) > maxSeekPoints {
		return ferr.Newf(ferr.InvalidState, "meta.SeekTable.Write", "%d seek points exceed the 24-bit block length limit", len(st.Points))
	}
	length := uint32(len(st.Points) * SeekPointSize)
	if err := WriteBlockHeader(w, isLast, BlockTypeSeekTable, length); err != nil {
		return err
	}
	for _, p := range st.Points {
		if err := writeUint64(w, p.SampleOffset); err != nil {
			return err
		}
		if err := writeUint64(w, p.FileOffset); err != nil {
			return err
		}
		if err := w.WriteUint(16, uint32(p.FrameSamples)); err != nil {
			return err
		}
	}
	return nil
}
