// Command flacprobe decodes a WAV file and emits the STREAMINFO metadata
// block a FLAC encoder would record for it, including the MD5 checksum of
// the unencoded audio data.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-audio/wav"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"

	"github.com/bitflac/flac/bitio"
	"github.com/bitflac/flac/md5sum"
	"github.com/bitflac/flac/meta"
	"github.com/bitflac/flac/pcmsrc"
)

func main() {
	// Parse command line arguments.
	var (
		// force overwrite output file if already present.
		force bool
	)
	flag.BoolVar(&force, "f", false, "force overwrite")
	flag.Parse()
	for _, wavPath := range flag.Args() {
		if err := probe(wavPath, force); err != nil {
			log.Fatalf("%+v", err)
		}
	}
}

func probe(wavPath string, force bool) error {
	// Create WAV decoder.
	r, err := os.Open(wavPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return errors.Errorf("invalid WAV file %q", wavPath)
	}
	sampleRate, nchannels, bps := int(dec.SampleRate), int(dec.NumChans), int(dec.BitDepth)

	outPath := pathutil.TrimExt(wavPath) + ".streaminfo"
	if !force && osutil.Exists(outPath) {
		return errors.Errorf("output file %q already present; use -f flag to force overwrite", outPath)
	}

	// Decode samples.
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return errors.WithStack(err)
	}
	channels, err := pcmsrc.Split(buf)
	if err != nil {
		return errors.WithStack(err)
	}
	nsamples := 0
	if len(channels) > 0 {
		nsamples = len(channels[0])
	}
	md5, err := md5sum.Of(channels, nsamples, bps)
	if err != nil {
		return errors.WithStack(err)
	}

	info := &meta.StreamInfo{
		MinBlockSize: 4096,
		MaxBlockSize: 4096,
		SampleRate:   uint32(sampleRate),
		NumChannels:  nchannels,
		SampleDepth:  bps,
		NumSamples:   uint64(nsamples),
		MD5:          md5,
	}

	// Serialize the STREAMINFO block.
	f, err := os.Create(outPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	w := bitio.NewWriter(f)
	if err := info.Write(w, true); err != nil {
		return errors.WithStack(err)
	}
	if err := w.Close(); err != nil {
		return errors.WithStack(err)
	}

	fmt.Printf("%s: %d Hz, %d channels, %d bits, %d samples, md5 %x\n", wavPath, sampleRate, nchannels, bps, nsamples, md5)
	return nil
}
