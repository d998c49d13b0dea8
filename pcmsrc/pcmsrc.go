// Package pcmsrc adapts the interleaved PCM buffers produced by the
// go-audio decoders into the per-channel sample layout the rest of this
// module consumes.
package pcmsrc

import (
	"github.com/go-audio/audio"

	"github.com/bitflac/flac/ferr"
)

// Split deinterleaves buf into one []int32 per channel. The buffer's
// Data length must be a multiple of its channel count.
func Split(buf *audio.IntBuffer) ([][]int32, error) {
	if buf == nil || buf.Format == nil {
		return nil, ferr.New(ferr.InvalidArgument, "pcmsrc.Split", "nil buffer or format")
	}
	nchannels := buf.Format.NumChannels
	if nchannels < 1 || nchannels > 8 {
		return nil, ferr.Newf(ferr.InvalidArgument, "pcmsrc.Split", "channel count %d out of range [1,8]", nchannels)
	}
	if len(buf.Data)%nchannels != 0 {
		return nil, ferr.Newf(ferr.InvalidArgument, "pcmsrc.Split", "%d interleaved samples do not divide into %d channels", len(buf.Data), nchannels)
	}
	nsamples := len(buf.Data) / nchannels
	channels := make([][]int32, nchannels)
	for j := range channels {
		channels[j] = make([]int32, nsamples)
	}
	for i := 0; i < nsamples; i++ {
		for j := 0; j < nchannels; j++ {
			channels[j][i] = int32(buf.Data[i*nchannels+j])
		}
	}
	return channels, nil
}
