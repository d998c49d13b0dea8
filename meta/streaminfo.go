package meta

import (
	"github.com/bitflac/flac/bitio"
	"github.com/bitflac/flac/ferr"
)

// StreamInfoPayloadSize is the fixed payload length, in bytes, of a
// STREAMINFO block (excluding its 4-byte header).
const StreamInfoPayloadSize = 34

// StreamInfo is the audio-stream descriptor every FLAC file carries in
// its first metadata block.
type StreamInfo struct {
	MinBlockSize uint16
	MaxBlockSize uint16
	MinFrameSize uint32 // 24-bit; 0 means unknown
	MaxFrameSize uint32 // 24-bit; 0 means unknown
	SampleRate   uint32 // 20-bit; 1..655350
	NumChannels  int    // 1..8
	SampleDepth  int    // 4..32
	NumSamples   uint64 // 36-bit; 0 means unknown
	MD5          [16]byte
}

// checkValues reports the first violated invariant, or "" if si is
// valid.
func (si *StreamInfo) checkValues() string {
	switch {
	case si.MinBlockSize < 16:
		return "minBlockSize must be at least 16"
	case si.MaxBlockSize < si.MinBlockSize:
		return "maxBlockSize must be at least minBlockSize"
	case si.MinFrameSize != 0 && si.MaxFrameSize != 0 && si.MaxFrameSize < si.MinFrameSize:
		return "maxFrameSize must be at least minFrameSize when both are known"
	case si.SampleRate == 0 || si.SampleRate > 655350:
		return "sampleRate must be in [1, 655350]"
	case si.MinFrameSize >= 1<<24 || si.MaxFrameSize >= 1<<24:
		return "frame sizes must fit in 24 bits"
	case si.NumChannels < 1 || si.NumChannels > 8:
		return "numChannels must be in [1, 8]"
	case si.SampleDepth < 4 || si.SampleDepth > 32:
		return "sampleDepth must be in [4, 32]"
	case si.NumSamples >= 1<<36:
		return "numSamples must fit in 36 bits"
	default:
		return ""
	}
}

// CheckValues reports whether si satisfies every STREAMINFO invariant.
func (si *StreamInfo) CheckValues() error {
	if msg := si.checkValues(); msg != "" {
		return ferr.New(ferr.InvalidData, "meta.StreamInfo.CheckValues", msg)
	}
	return nil
}

// ParseStreamInfo reads a 34-byte STREAMINFO payload (the block header
// must already have been consumed by the caller).
func ParseStreamInfo(r *bitio.Reader) (*StreamInfo, error) {
	minBlockSize, err := r.ReadUint(16)
	if err != nil {
		return nil, err
	}
	maxBlockSize, err := r.ReadUint(16)
	if err != nil {
		return nil, err
	}
	minFrameSize, err := r.ReadUint(24)
	if err != nil {
		return nil, err
	}
	maxFrameSize, err := r.ReadUint(24)
	if err != nil {
		return nil, err
	}
	sampleRate, err := r.ReadUint(20)
	if err != nil {
		return nil, err
	}
	channelsMinusOne, err := r.ReadUint(3)
	if err != nil {
		return nil, err
	}
	depthMinusOne, err := r.ReadUint(5)
	if err != nil {
		return nil, err
	}
	samplesHi, err := r.ReadUint(18)
	if err != nil {
		return nil, err
	}
	samplesLo, err := r.ReadUint(18)
	if err != nil {
		return nil, err
	}
	var md5 [16]byte
	if err := r.ReadFully(md5[:]); err != nil {
		return nil, err
	}

	si := &StreamInfo{
		MinBlockSize: uint16(minBlockSize),
		MaxBlockSize: uint16(maxBlockSize),
		MinFrameSize: minFrameSize,
		MaxFrameSize: maxFrameSize,
		SampleRate:   sampleRate,
		NumChannels:  int(channelsMinusOne) + 1,
		SampleDepth:  int(depthMinusOne) + 1,
		NumSamples:   uint64(samplesHi)<<18 | uint64(samplesLo),
		MD5:          md5,
	}
	if msg := si.checkValues(); msg != "" {
		return nil, ferr.New(ferr.InvalidData, "meta.ParseStreamInfo", msg)
	}
	return si, nil
}

// Write serializes si as a complete 38-byte STREAMINFO block (4-byte
// header plus 34-byte payload), failing with InvalidState if si does
// not satisfy CheckValues.
func (si *StreamInfo) Write(w *bitio.Writer, isLast bool) error {
	if msg := si.checkValues(); msg != "" {
		return ferr.New(ferr.InvalidState, "meta.StreamInfo.Write", msg)
	}
	if err := WriteBlockHeader(w, isLast, BlockTypeStreamInfo, StreamInfoPayloadSize); err != nil {
		return err
	}
	if err := w.WriteUint(16, uint32(si.MinBlockSize)); err != nil {
		return err
	}
	if err := w.WriteUint(16, uint32(si.MaxBlockSize)); err != nil {
		return err
	}
	if err := w.WriteUint(24, si.MinFrameSize); err != nil {
		return err
	}
	if err := w.WriteUint(24, si.MaxFrameSize); err != nil {
		return err
	}
	if err := w.WriteUint(20, si.SampleRate); err != nil {
		return err
	}
	if err := w.WriteUint(3, uint32(si.NumChannels-1)); err != nil {
		return err
	}
	if err := w.WriteUint(5, uint32(si.SampleDepth-1)); err != nil {
		return err
	}
	if err := w.WriteUint(18, uint32(si.NumSamples>>18)); err != nil {
		return err
	}
	if err := w.WriteUint(18, uint32(si.NumSamples&((1<<18)-1))); err != nil {
		return err
	}
	for _, b := range si.MD5 {
		if err := w.WriteUint(8, uint32(b)); err != nil {
			return err
		}
	}
	return nil
}
