// Package frame implements the FLAC frame header codec: parsing and
// serializing the header that precedes every frame's subframes, the
// variable-length UTF-8-style position field, and cross-validation
// against a stream's STREAMINFO record.
package frame

import (
	"math/bits"

	"github.com/bitflac/flac/bitio"
	"github.com/bitflac/flac/ferr"
	"github.com/bitflac/flac/meta"
)

// syncCode is the 14-bit frame sync pattern.
const syncCode = 0x3FFE

// FrameInfo describes one FLAC frame header, decoded or about to be
// encoded.
type FrameInfo struct {
	// Exactly one of FrameIndex or SampleOffset is non-absent (>= 0); the
	// other is -1.
	FrameIndex   int64
	SampleOffset int64

	// ChannelAssignment is the raw 4-bit field: 0..7 mean (value+1)
	// independent channels, 8/9/10 mean left/side, right/side, mid/side
	// stereo respectively.
	ChannelAssignment uint8
	NumChannels       int

	BlockSize int

	// SampleRate and SampleDepth are -1 when the frame defers to the
	// stream's STREAMINFO record.
	SampleRate  int32
	SampleDepth int32

	// FrameSize is -1 until the caller (who knows where the next frame
	// starts) fills it in.
	FrameSize int64
}

type blockSizeEntry struct {
	value int
	code  uint8
}

var blockSizeCodes = []blockSizeEntry{
	{192, 1}, {576, 2}, {1152, 3}, {2304, 4}, {4608, 5},
	{256, 8}, {512, 9}, {1024, 10}, {2048, 11}, {4096, 12}, {8192, 13}, {16384, 14}, {32768, 15},
}

type sampleDepthEntry struct {
	value int
	code  uint8
}

var sampleDepthCodes = []sampleDepthEntry{
	{8, 1}, {12, 2}, {16, 4}, {20, 5}, {24, 6},
}

type sampleRateEntry struct {
	value int
	code  uint8
}

var sampleRateCodes = []sampleRateEntry{
	{88200, 1}, {176400, 2}, {192000, 3}, {8000, 4}, {16000, 5}, {22050, 6},
	{24000, 7}, {32000, 8}, {44100, 9}, {48000, 10}, {96000, 11},
}

// ReadFrame parses one frame header from r. It returns nil, nil at a
// clean end of stream (no more frames).
func ReadFrame(r *bitio.Reader) (*FrameInfo, error) {
	if err := r.ResetCrcs(); err != nil {
		return nil, err
	}
	b0, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if b0 == -1 {
		return nil, nil
	}
	rest, err := r.ReadUint(6)
	if err != nil {
		return nil, err
	}
	sync := uint32(b0)<<6 | rest
	if sync != syncCode {
		return nil, ferr.Newf(ferr.InvalidData, "frame.ReadFrame", "bad sync 0x%04X, want 0x%04X", sync, syncCode)
	}

	reserved1, err := r.ReadUint(1)
	if err != nil {
		return nil, err
	}
	if reserved1 != 0 {
		return nil, ferr.New(ferr.InvalidData, "frame.ReadFrame", "reserved bit after sync must be 0")
	}
	blockStrategy, err := r.ReadUint(1)
	if err != nil {
		return nil, err
	}
	blockSizeCode, err := r.ReadUint(4)
	if err != nil {
		return nil, err
	}
	sampleRateCode, err := r.ReadUint(4)
	if err != nil {
		return nil, err
	}
	channelAssignment, err := r.ReadUint(4)
	if err != nil {
		return nil, err
	}
	var numChannels int
	switch {
	case channelAssignment <= 7:
		numChannels = int(channelAssignment) + 1
	case channelAssignment <= 10:
		numChannels = 2
	default:
		return nil, ferr.Newf(ferr.InvalidData, "frame.ReadFrame", "reserved channel assignment %d", channelAssignment)
	}
	sampleDepthCode, err := r.ReadUint(3)
	if err != nil {
		return nil, err
	}
	sampleDepth, err := sampleDepthFromCode(uint8(sampleDepthCode))
	if err != nil {
		return nil, err
	}
	reserved2, err := r.ReadUint(1)
	if err != nil {
		return nil, err
	}
	if reserved2 != 0 {
		return nil, ferr.New(ferr.InvalidData, "frame.ReadFrame", "reserved bit before position must be 0")
	}

	position, err := readUTF8Int(r)
	if err != nil {
		return nil, err
	}

	frameIndex := int64(-1)
	sampleOffset := int64(-1)
	if blockStrategy == 0 {
		if position > (1<<31)-1 {
			return nil, ferr.Newf(ferr.InvalidData, "frame.ReadFrame", "frame index %d exceeds 31 bits", position)
		}
		frameIndex = int64(position)
	} else {
		sampleOffset = int64(position)
	}

	blockSize, err := blockSizeFromCode(r, uint8(blockSizeCode))
	if err != nil {
		return nil, err
	}
	sampleRate, err := sampleRateFromCode(r, uint8(sampleRateCode))
	if err != nil {
		return nil, err
	}

	wantCrc, err := r.GetCrc8()
	if err != nil {
		return nil, err
	}
	gotCrc, err := r.ReadUint(8)
	if err != nil {
		return nil, err
	}
	if uint8(gotCrc) != wantCrc {
		return nil, ferr.Newf(ferr.InvalidData, "frame.ReadFrame", "frame header CRC-8 mismatch: stream has 0x%02X, computed 0x%02X", gotCrc, wantCrc)
	}

	return &FrameInfo{
		FrameIndex:        frameIndex,
		SampleOffset:      sampleOffset,
		ChannelAssignment: uint8(channelAssignment),
		NumChannels:       numChannels,
		BlockSize:         blockSize,
		SampleRate:        int32(sampleRate),
		SampleDepth:       int32(sampleDepth),
		FrameSize:         -1,
	}, nil
}

// WriteHeader serializes fi's header. Per the format's own asymmetry, an
// encoder always writes the variable-blocksize form (blockStrategy=1,
// position=SampleOffset); fi.FrameIndex must be absent.
func (fi *FrameInfo) WriteHeader(w *bitio.Writer) error {
	if fi.FrameIndex >= 0 || fi.SampleOffset < 0 {
		return ferr.New(ferr.InvalidState, "frame.FrameInfo.WriteHeader", "encoder requires a non-absent SampleOffset and an absent FrameIndex")
	}
	blockCode, err := codeForBlockSize(fi.BlockSize)
	if err != nil {
		return err
	}
	rateCode, err := codeForSampleRate(int(fi.SampleRate))
	if err != nil {
		return err
	}
	depthCode := codeForSampleDepth(int(fi.SampleDepth))

	if err := w.ResetCrcs(); err != nil {
		return err
	}
	if err := w.WriteUint(14, syncCode); err != nil {
		return err
	}
	if err := w.WriteUint(1, 0); err != nil {
		return err
	}
	if err := w.WriteUint(1, 1); err != nil {
		return err
	}
	if err := w.WriteUint(4, uint32(blockCode)); err != nil {
		return err
	}
	if err := w.WriteUint(4, uint32(rateCode)); err != nil {
		return err
	}
	if err := w.WriteUint(4, uint32(fi.ChannelAssignment)); err != nil {
		return err
	}
	if err := w.WriteUint(3, uint32(depthCode)); err != nil {
		return err
	}
	if err := w.WriteUint(1, 0); err != nil {
		return err
	}
	if err := writeUTF8Int(w, uint64(fi.SampleOffset)); err != nil {
		return err
	}
	if err := writeBlockSizeTail(w, blockCode, fi.BlockSize); err != nil {
		return err
	}
	if err := writeSampleRateTail(w, rateCode, int(fi.SampleRate)); err != nil {
		return err
	}
	crc, err := w.GetCrc8()
	if err != nil {
		return err
	}
	return w.WriteUint(8, uint32(crc))
}

// CheckAgainst validates fi against the stream-level invariants recorded
// in si.
func (fi *FrameInfo) CheckAgainst(si *meta.StreamInfo) error {
	if fi.NumChannels != si.NumChannels {
		return ferr.Newf(ferr.InvalidData, "frame.FrameInfo.CheckAgainst", "frame has %d channels, stream info has %d", fi.NumChannels, si.NumChannels)
	}
	if fi.SampleRate != -1 && uint32(fi.SampleRate) != si.SampleRate {
		return ferr.Newf(ferr.InvalidData, "frame.FrameInfo.CheckAgainst", "frame sample rate %d does not match stream info %d", fi.SampleRate, si.SampleRate)
	}
	if fi.SampleDepth != -1 && int(fi.SampleDepth) != si.SampleDepth {
		return ferr.Newf(ferr.InvalidData, "frame.FrameInfo.CheckAgainst", "frame sample depth %d does not match stream info %d", fi.SampleDepth, si.SampleDepth)
	}
	if fi.BlockSize > int(si.MaxBlockSize) {
		return ferr.Newf(ferr.InvalidData, "frame.FrameInfo.CheckAgainst", "frame block size %d exceeds stream info max %d", fi.BlockSize, si.MaxBlockSize)
	}
	if si.MinFrameSize != 0 && si.MaxFrameSize != 0 && fi.FrameSize >= 0 {
		if uint32(fi.FrameSize) < si.MinFrameSize || uint32(fi.FrameSize) > si.MaxFrameSize {
			return ferr.Newf(ferr.InvalidData, "frame.FrameInfo.CheckAgainst", "frame size %d outside stream info bounds [%d,%d]", fi.FrameSize, si.MinFrameSize, si.MaxFrameSize)
		}
	}
	if si.NumSamples != 0 && uint64(fi.BlockSize) > si.NumSamples {
		return ferr.Newf(ferr.InvalidData, "frame.FrameInfo.CheckAgainst", "frame block size %d exceeds stream info sample count %d", fi.BlockSize, si.NumSamples)
	}
	return nil
}

// readUTF8Int reads the variable-length UTF-8-style position field.
func readUTF8Int(r *bitio.Reader) (uint64, error) {
	head, err := r.ReadUint(8)
	if err != nil {
		return 0, err
	}
	n := bits.LeadingZeros32(^(head << 24))
	if n == 1 || n == 8 {
		return 0, ferr.Newf(ferr.InvalidData, "frame.readUTF8Int", "invalid UTF-8 leading byte 0x%02X", head)
	}
	var value uint64
	if n == 0 {
		value = uint64(head)
	} else {
		value = uint64(head) & uint64((1<<uint(7-n))-1)
		for i := 0; i < n-1; i++ {
			cont, err := r.ReadUint(8)
			if err != nil {
				return 0, err
			}
			if cont&0xC0 != 0x80 {
				return 0, ferr.Newf(ferr.InvalidData, "frame.readUTF8Int", "invalid UTF-8 continuation byte 0x%02X", cont)
			}
			value = value<<6 | uint64(cont&0x3F)
		}
	}
	if value >= 1<<36 {
		return 0, ferr.Newf(ferr.InvalidData, "frame.readUTF8Int", "UTF-8 integer %d exceeds 36 bits", value)
	}
	return value, nil
}

// writeUTF8Int writes v (which must fit 36 bits) in the variable-length
// UTF-8-style encoding.
func writeUTF8Int(w *bitio.Writer, v uint64) error {
	if v >= 1<<36 {
		return ferr.Newf(ferr.InvalidArgument, "frame.writeUTF8Int", "value %d exceeds 36 bits", v)
	}
	bitLen := 64 - bits.LeadingZeros64(v)
	if bitLen <= 7 {
		return w.WriteUint(8, uint32(v))
	}
	n := (bitLen - 2) / 5
	first := (uint64(0xFF80) >> uint(n)) | (v >> uint(n*6))
	if err := w.WriteUint(8, uint32(first)); err != nil {
		return err
	}
	for i := n - 1; i >= 0; i-- {
		b := 0x80 | ((v >> uint(i*6)) & 0x3F)
		if err := w.WriteUint(8, uint32(b)); err != nil {
			return err
		}
	}
	return nil
}

func blockSizeFromCode(r *bitio.Reader, code uint8) (int, error) {
	switch code {
	case 0:
		return 0, ferr.New(ferr.InvalidData, "frame.ReadFrame", "reserved block-size code 0")
	case 6:
		v, err := r.ReadUint(8)
		if err != nil {
			return 0, err
		}
		return int(v) + 1, nil
	case 7:
		v, err := r.ReadUint(16)
		if err != nil {
			return 0, err
		}
		return int(v) + 1, nil
	default:
		for _, e := range blockSizeCodes {
			if e.code == code {
				return e.value, nil
			}
		}
		return 0, ferr.Newf(ferr.InvalidData, "frame.ReadFrame", "reserved block-size code %d", code)
	}
}

func sampleRateFromCode(r *bitio.Reader, code uint8) (int, error) {
	switch code {
	case 0:
		return -1, nil
	case 12:
		v, err := r.ReadUint(8)
		if err != nil {
			return 0, err
		}
		return int(v), nil
	case 13:
		v, err := r.ReadUint(16)
		if err != nil {
			return 0, err
		}
		return int(v), nil
	case 14:
		v, err := r.ReadUint(16)
		if err != nil {
			return 0, err
		}
		return int(v) * 10, nil
	case 15:
		return 0, ferr.New(ferr.InvalidData, "frame.ReadFrame", "reserved sample-rate code 15")
	default:
		for _, e := range sampleRateCodes {
			if e.code == code {
				return e.value, nil
			}
		}
		return 0, ferr.Newf(ferr.InvalidData, "frame.ReadFrame", "reserved sample-rate code %d", code)
	}
}

func sampleDepthFromCode(code uint8) (int, error) {
	if code == 0 {
		return -1, nil
	}
	for _, e := range sampleDepthCodes {
		if e.code == code {
			return e.value, nil
		}
	}
	return 0, ferr.Newf(ferr.InvalidData, "frame.ReadFrame", "reserved sample-depth code %d", code)
}

func codeForBlockSize(value int) (uint8, error) {
	for _, e := range blockSizeCodes {
		if e.value == value {
			return e.code, nil
		}
	}
	switch {
	case value >= 1 && value <= 256:
		return 6, nil
	case value >= 1 && value <= 65536:
		return 7, nil
	default:
		return 0, ferr.Newf(ferr.InvalidArgument, "frame.codeForBlockSize", "block size %d has no representable code", value)
	}
}

func codeForSampleRate(value int) (uint8, error) {
	if value == -1 {
		return 0, nil
	}
	for _, e := range sampleRateCodes {
		if e.value == value {
			return e.code, nil
		}
	}
	switch {
	case value < 256:
		return 12, nil
	case value < 65536:
		return 13, nil
	case value < 655360 && value%10 == 0:
		return 14, nil
	default:
		return 0, nil
	}
}

func codeForSampleDepth(value int) uint8 {
	if value == -1 {
		return 0
	}
	for _, e := range sampleDepthCodes {
		if e.value == value {
			return e.code
		}
	}
	return 0
}

func writeBlockSizeTail(w *bitio.Writer, code uint8, value int) error {
	switch code {
	case 6:
		return w.WriteUint(8, uint32(value-1))
	case 7:
		return w.WriteUint(16, uint32(value-1))
	default:
		return nil
	}
}

func writeSampleRateTail(w *bitio.Writer, code uint8, value int) error {
	switch code {
	case 12:
		return w.WriteUint(8, uint32(value))
	case 13:
		return w.WriteUint(16, uint32(value))
	case 14:
		return w.WriteUint(16, uint32(value/10))
	default:
		return nil
	}
}
