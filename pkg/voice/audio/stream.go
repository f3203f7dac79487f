// Package audio normalizes the byte-stream shapes returned by synthesis
// providers into a single producer contract.
package audio

import (
	"errors"
	"io"
)

// Stream produces audio bytes in order. Next returns io.EOF after the final
// chunk has been delivered. Close releases the underlying source and is safe
// to call more than once.
type Stream interface {
	Next() ([]byte, error)
	Close() error
}

// FromBuffer wraps a fully-buffered payload.
func FromBuffer(b []byte) Stream {
	return &bufferStream{buf: b}
}

type bufferStream struct {
	buf  []byte
	done bool
}

func (s *bufferStream) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	if len(s.buf) == 0 {
		return nil, io.EOF
	}
	return s.buf, nil
}

func (s *bufferStream) Close() error {
	s.done = true
	return nil
}

// FromReader wraps a pull-style reader. The reader is closed with the stream
// when it implements io.Closer.
func FromReader(r io.Reader) Stream {
	return &readerStream{r: r}
}

type readerStream struct {
	r      io.Reader
	closed bool
}

func (s *readerStream) Next() ([]byte, error) {
	if s.closed {
		return nil, io.EOF
	}
	buf := make([]byte, 32*1024)
	n, err := s.r.Read(buf)
	if n > 0 {
		// Deliver the chunk; a terminal error surfaces on the next call.
		if err == io.EOF {
			err = nil
		}
		return buf[:n], err
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

func (s *readerStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// FromChunks wraps a push-style chunk channel. After the channel is drained,
// errFn (if non-nil) is consulted once for a terminal error; a nil result
// means clean end of stream. stop (optional) is invoked on Close so the
// producer can tear down early.
func FromChunks(ch <-chan []byte, errFn func() error, stop func()) Stream {
	return &chunkStream{ch: ch, errFn: errFn, stop: stop}
}

type chunkStream struct {
	ch     <-chan []byte
	errFn  func() error
	stop   func()
	closed bool
}

func (s *chunkStream) Next() ([]byte, error) {
	if s.closed {
		return nil, io.EOF
	}
	chunk, ok := <-s.ch
	if !ok {
		if s.errFn != nil {
			if err := s.errFn(); err != nil {
				return nil, err
			}
		}
		return nil, io.EOF
	}
	return chunk, nil
}

func (s *chunkStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.stop != nil {
		s.stop()
	}
	return nil
}

// Copy drains src into w, flushing after each chunk when w supports it, and
// returns the number of bytes written. The stream is closed before return.
func Copy(w io.Writer, src Stream) (int64, error) {
	defer src.Close()

	type flusher interface{ Flush() }

	var written int64
	for {
		chunk, err := src.Next()
		if len(chunk) > 0 {
			n, werr := w.Write(chunk)
			written += int64(n)
			if werr != nil {
				return written, werr
			}
			if f, ok := w.(flusher); ok {
				f.Flush()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return written, nil
			}
			return written, err
		}
	}
}

// ReadAll collects the remaining stream contents into one buffer.
func ReadAll(src Stream) ([]byte, error) {
	defer src.Close()

	var out []byte
	for {
		chunk, err := src.Next()
		out = append(out, chunk...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
	}
}
