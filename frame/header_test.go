package frame

import (
	"bytes"
	"testing"

	"github.com/bitflac/flac/bitio"
	"github.com/bitflac/flac/ferr"
	"github.com/bitflac/flac/meta"
)

func TestFrameHeaderConcreteScenario(t *testing.T) {
	fi := &FrameInfo{
		FrameIndex:        -1,
		SampleOffset:      0,
		ChannelAssignment: 1,
		NumChannels:       2,
		BlockSize:         512,
		SampleRate:        44100,
		SampleDepth:       16,
		FrameSize:         -1,
	}

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := fi.WriteHeader(w); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := bitio.NewReader(bitio.FromReader(bytes.NewReader(buf.Bytes())))
	got, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got == nil {
		t.Fatal("ReadFrame returned nil at a non-empty stream")
	}
	got.FrameSize = -1
	if *got != *fi {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", *got, *fi)
	}
}

func TestUTF8IntegerConcreteScenario(t *testing.T) {
	const value = 1<<36 - 1 // 36 one bits, the widest 7-byte form
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := writeUTF8Int(w, value); err != nil {
		t.Fatalf("writeUTF8Int: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xFE, 0xBF, 0xBF, 0xBF, 0xBF, 0xBF, 0xBF}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded = % X, want % X", buf.Bytes(), want)
	}

	r := bitio.NewReader(bitio.FromReader(bytes.NewReader(buf.Bytes())))
	got, err := readUTF8Int(r)
	if err != nil {
		t.Fatalf("readUTF8Int: %v", err)
	}
	if got != value {
		t.Errorf("decoded = %d, want %d", got, value)
	}
}

func TestUTF8IntegerBoundaryForms(t *testing.T) {
	cases := []uint64{0, 1, 0x7F, 0x80, 0x7FF, 0x800, 0xFFFF, 0x10000, 1<<31 - 1, 1 << 31, 1<<36 - 1}
	for _, v := range cases {
		var buf bytes.Buffer
		w := bitio.NewWriter(&buf)
		if err := writeUTF8Int(w, v); err != nil {
			t.Fatalf("writeUTF8Int(%d): %v", v, err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		r := bitio.NewReader(bitio.FromReader(bytes.NewReader(buf.Bytes())))
		got, err := readUTF8Int(r)
		if err != nil {
			t.Fatalf("readUTF8Int(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip of %d returned %d", v, got)
		}
	}
}

func TestUTF8IntegerRejectsReservedLeadingForms(t *testing.T) {
	// n==1 (continuation byte used as a leading byte) and n==8 (0xFF).
	for _, head := range []byte{0x80, 0xFF} {
		r := bitio.NewReader(bitio.FromReader(bytes.NewReader([]byte{head, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80})))
		if _, err := readUTF8Int(r); !ferr.Is(err, ferr.InvalidData) {
			t.Errorf("readUTF8Int with leading byte 0x%02X: err = %v, want InvalidData", head, err)
		}
	}
}

func TestWriteUTF8IntRejectsOverflow(t *testing.T) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := writeUTF8Int(w, 1<<36); !ferr.Is(err, ferr.InvalidArgument) {
		t.Errorf("writeUTF8Int(1<<36) = %v, want InvalidArgument", err)
	}
}

func TestCrc8ConcreteScenario(t *testing.T) {
	data := []byte{0x4D, 0x6F, 0x6E, 0x6B, 0x65, 0x79}

	r := bitio.NewReader(bitio.FromReader(bytes.NewReader(data)))
	if err := r.ResetCrcs(); err != nil {
		t.Fatal(err)
	}
	if err := r.ReadFully(make([]byte, len(data))); err != nil {
		t.Fatal(err)
	}
	readerCrc, err := r.GetCrc8()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := w.ResetCrcs(); err != nil {
		t.Fatal(err)
	}
	for _, b := range data {
		if err := w.WriteUint(8, uint32(b)); err != nil {
			t.Fatal(err)
		}
	}
	writerCrc, err := w.GetCrc8()
	if err != nil {
		t.Fatal(err)
	}

	if readerCrc != writerCrc {
		t.Errorf("reader crc8 = 0x%02X, writer crc8 = 0x%02X, want agreement", readerCrc, writerCrc)
	}
}

func TestReadFrameRejectsBadSync(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x00}
	r := bitio.NewReader(bitio.FromReader(bytes.NewReader(data)))
	if _, err := ReadFrame(r); !ferr.Is(err, ferr.InvalidData) {
		t.Errorf("ReadFrame with bad sync: err = %v, want InvalidData", err)
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	r := bitio.NewReader(bitio.FromReader(bytes.NewReader(nil)))
	got, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame at EOF: err = %v, want nil", err)
	}
	if got != nil {
		t.Errorf("ReadFrame at EOF = %+v, want nil", got)
	}
}

func TestReadFrameRejectsReservedChannelAssignment(t *testing.T) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := w.ResetCrcs(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint(14, syncCode); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint(1, 0); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint(1, 1); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint(4, 9); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint(4, 9); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint(4, 11); err != nil { // reserved channel assignment
		t.Fatal(err)
	}
	if err := w.WriteUint(3, 4); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint(1, 0); err != nil {
		t.Fatal(err)
	}
	if err := writeUTF8Int(w, 0); err != nil {
		t.Fatal(err)
	}
	crc, err := w.GetCrc8()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint(8, uint32(crc)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := bitio.NewReader(bitio.FromReader(bytes.NewReader(buf.Bytes())))
	if _, err := ReadFrame(r); !ferr.Is(err, ferr.InvalidData) {
		t.Errorf("ReadFrame with reserved channel assignment: err = %v, want InvalidData", err)
	}
}

func TestWriteHeaderRequiresSampleOffsetForm(t *testing.T) {
	fi := &FrameInfo{FrameIndex: 3, SampleOffset: -1, NumChannels: 2, BlockSize: 4096, SampleRate: 44100, SampleDepth: 16, FrameSize: -1}
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	if err := fi.WriteHeader(w); !ferr.Is(err, ferr.InvalidState) {
		t.Errorf("WriteHeader with frameIndex set: err = %v, want InvalidState", err)
	}
}

func TestCheckAgainstCatchesMismatches(t *testing.T) {
	si := &meta.StreamInfo{
		MinBlockSize: 4096, MaxBlockSize: 4096,
		SampleRate: 44100, NumChannels: 2, SampleDepth: 16,
	}
	base := FrameInfo{
		FrameIndex: -1, SampleOffset: 0,
		NumChannels: 2, BlockSize: 4096,
		SampleRate: 44100, SampleDepth: 16, FrameSize: -1,
	}

	ok := base
	if err := ok.CheckAgainst(si); err != nil {
		t.Errorf("CheckAgainst on matching frame: %v", err)
	}

	badChannels := base
	badChannels.NumChannels = 1
	if err := badChannels.CheckAgainst(si); !ferr.Is(err, ferr.InvalidData) {
		t.Errorf("CheckAgainst channel mismatch: %v, want InvalidData", err)
	}

	badRate := base
	badRate.SampleRate = 48000
	if err := badRate.CheckAgainst(si); !ferr.Is(err, ferr.InvalidData) {
		t.Errorf("CheckAgainst sample rate mismatch: %v, want InvalidData", err)
	}

	badDepth := base
	badDepth.SampleDepth = 24
	if err := badDepth.CheckAgainst(si); !ferr.Is(err, ferr.InvalidData) {
		t.Errorf("CheckAgainst sample depth mismatch: %v, want InvalidData", err)
	}

	badBlock := base
	badBlock.BlockSize = 8192
	if err := badBlock.CheckAgainst(si); !ferr.Is(err, ferr.InvalidData) {
		t.Errorf("CheckAgainst block size overflow: %v, want InvalidData", err)
	}
}

func TestBlockSizeAndSampleRateCodeRoundTrip(t *testing.T) {
	for _, v := range []int{192, 256, 100, 32768, 60000} {
		code, err := codeForBlockSize(v)
		if err != nil {
			t.Fatalf("codeForBlockSize(%d): %v", v, err)
		}
		var buf bytes.Buffer
		w := bitio.NewWriter(&buf)
		if err := writeBlockSizeTail(w, code, v); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		r := bitio.NewReader(bitio.FromReader(bytes.NewReader(buf.Bytes())))
		got, err := blockSizeFromCode(r, code)
		if err != nil {
			t.Fatalf("blockSizeFromCode(%d): %v", code, err)
		}
		if got != v {
			t.Errorf("block size round trip: got %d, want %d", got, v)
		}
	}

	for _, v := range []int{44100, 96000, 200, 50000, 99990, -1} {
		code, err := codeForSampleRate(v)
		if err != nil {
			t.Fatalf("codeForSampleRate(%d): %v", v, err)
		}
		var buf bytes.Buffer
		w := bitio.NewWriter(&buf)
		if err := writeSampleRateTail(w, code, v); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		r := bitio.NewReader(bitio.FromReader(bytes.NewReader(buf.Bytes())))
		got, err := sampleRateFromCode(r, code)
		if err != nil {
			t.Fatalf("sampleRateFromCode(%d): %v", code, err)
		}
		if got != v {
			t.Errorf("sample rate round trip: got %d, want %d", got, v)
		}
	}
}
