package chunked

import (
	"io"
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

// ResponseSink streams to an http.ResponseWriter.  net/http requires
// that writes finish before the handler returns, so handlers wait on
// Done.
type ResponseSink struct {
	lock   sync.Mutex
	rw     http.ResponseWriter
	stream io.Writer
	done   chan struct{}
	closed bool
}

func NewResponseSink(rw http.ResponseWriter) *ResponseSink {
	return &ResponseSink{
		rw:     rw,
		stream: rw,
		done:   make(chan struct{}),
	}
}

func (s *ResponseSink) Stream() io.Writer {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stream
}

func (s *ResponseSink) Replace(w io.Writer) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stream = w
}

// Commit flushes buffered chunks to the client
func (s *ResponseSink) Commit() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return errors.New("response already closed")
	}
	if f, ok := s.stream.(interface{ Flush() error }); ok && s.stream != io.Writer(s.rw) {
		if err := f.Flush(); err != nil {
			return errors.WithStack(err)
		}
	}
	if f, ok := s.rw.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// Close closes a replaced stream, flushes, and releases Done
func (s *ResponseSink) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	defer close(s.done)
	var err error
	if c, ok := s.stream.(io.Closer); ok && s.stream != io.Writer(s.rw) {
		err = errors.WithStack(c.Close())
	}
	if f, ok := s.rw.(http.Flusher); ok {
		f.Flush()
	}
	return err
}

// Done is closed when the sink is closed
func (s *ResponseSink) Done() <-chan struct{} {
	return s.done
}
