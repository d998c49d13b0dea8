package bitio

import "io"

// Source is the abstract raw-byte collaborator a Reader pulls bytes from.
// It is deliberately narrower than io.Reader's surface so that callers can
// adapt arbitrary byte producers (a file, an in-memory slice, a network
// connection) without pulling in io.Reader's broader contract.
type Source interface {
	ReadInto(buf []byte) (int, error)
}

// LengthSource is implemented by a Source that knows its total byte
// length up front.
type LengthSource interface {
	Length() (int64, error)
}

// SeekableSource is implemented by a Source that can reposition itself to
// an absolute byte offset from the start of the stream.
type SeekableSource interface {
	SeekTo(pos int64) error
}

// readerSource adapts a plain io.Reader to Source. It supports neither
// Length nor SeekTo.
type readerSource struct {
	r io.Reader
}

// FromReader wraps r as a Source with no known length and no seek
// support.
func FromReader(r io.Reader) Source {
	return readerSource{r: r}
}

func (s readerSource) ReadInto(buf []byte) (int, error) {
	return s.r.Read(buf)
}

// readSeekerSource adapts an io.ReadSeeker to Source, LengthSource, and
// SeekableSource.
type readSeekerSource struct {
	rs io.ReadSeeker
}

// FromReadSeeker wraps rs as a Source that also supports Length and
// SeekTo.
func FromReadSeeker(rs io.ReadSeeker) interface {
	Source
	LengthSource
	SeekableSource
} {
	return readSeekerSource{rs: rs}
}

func (s readSeekerSource) ReadInto(buf []byte) (int, error) {
	return s.rs.Read(buf)
}

func (s readSeekerSource) SeekTo(pos int64) error {
	_, err := s.rs.Seek(pos, io.SeekStart)
	return err
}

func (s readSeekerSource) Length() (int64, error) {
	cur, err := s.rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.rs.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}
