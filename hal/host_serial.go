//go:build !tinygo

package hal

import (
	"io"
	"sync"
)

// hostSerial pumps a blocking reader into a buffer so Read never blocks.
type hostSerial struct {
	mu  sync.Mutex
	in  []byte
	err error

	wmu sync.Mutex
	w   io.Writer
}

func newHostSerial(r io.Reader, w io.Writer) *hostSerial {
	s := &hostSerial{w: w}
	if r != nil {
		go s.pump(r)
	}
	return s
}

func (s *hostSerial) pump(r io.Reader) {
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		s.mu.Lock()
		s.in = append(s.in, buf[:n]...)
		if err != nil {
			s.err = err
		}
		s.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (s *hostSerial) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.in) == 0 {
		if s.err != nil && s.err != io.EOF {
			return 0, s.err
		}
		return 0, nil
	}
	n := copy(p, s.in)
	s.in = s.in[n:]
	return n, nil
}

func (s *hostSerial) Write(p []byte) (int, error) {
	if s.w == nil {
		return 0, ErrNotImplemented
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.w.Write(p)
}
