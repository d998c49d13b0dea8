// Package md5sum computes the MD5 checksum of unencoded interleaved PCM
// audio, the value a STREAMINFO block's MD5 field records.
package md5sum

import (
	"crypto/md5"

	"github.com/bitflac/flac/ferr"
)

// flushSamples bounds how many interleaved samples accumulate before
// being fed to the running digest, so a caller streaming an unbounded
// source never has to buffer the whole thing.
const flushSamples = 2048

// Of returns the MD5 digest of numSamples samples across channels,
// serialized little-endian and interleaved channel-by-channel within
// each sample frame: sample 0 of every channel, then sample 1 of every
// channel, and so on. depth is the bits-per-sample of every channel; it
// must be a multiple of 8 and at most 32.
func Of(channels [][]int32, numSamples int, depth int) ([16]byte, error) {
	if depth <= 0 || depth%8 != 0 || depth > 32 {
		return [16]byte{}, ferr.Newf(ferr.InvalidArgument, "md5sum.Of", "depth %d must be a multiple of 8 and at most 32", depth)
	}
	bytesPerSample := depth / 8
	for j, ch := range channels {
		if len(ch) < numSamples {
			return [16]byte{}, ferr.Newf(ferr.InvalidArgument, "md5sum.Of", "channel %d has %d samples, want at least %d", j, len(ch), numSamples)
		}
	}

	h := md5.New()
	buf := make([]byte, 0, flushSamples*len(channels)*bytesPerSample)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if _, err := h.Write(buf); err != nil {
			return ferr.Wrap(ferr.InvalidState, "md5sum.Of", err)
		}
		buf = buf[:0]
		return nil
	}

	for i := 0; i < numSamples; i++ {
		for _, ch := range channels {
			v := uint32(ch[i])
			for k := 0; k < bytesPerSample; k++ {
				buf = append(buf, byte(v>>uint(8*k)))
			}
		}
		if (i+1)%flushSamples == 0 {
			if err := flush(); err != nil {
				return [16]byte{}, err
			}
		}
	}
	if err := flush(); err != nil {
		return [16]byte{}, err
	}

	var digest [16]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}
