//go:build tinygo && baremetal

package hal

type stubFramebuffer struct {
	w      int
	h      int
	format PixelFormat
	buf    []byte
}

func (f *stubFramebuffer) Width() int          { return f.w }
func (f *stubFramebuffer) Height() int         { return f.h }
func (f *stubFramebuffer) Format() PixelFormat { return f.format }
func (f *stubFramebuffer) StrideBytes() int    { return f.w * 2 }

// Buffer is allocated on first use so drawing into a missing panel is
// harmless.
func (f *stubFramebuffer) Buffer() []byte {
	if f.buf == nil {
		f.buf = make([]byte, f.w*f.h*2)
	}
	return f.buf
}

func (f *stubFramebuffer) ClearRGB(r, g, b uint8) {}
func (f *stubFramebuffer) Present() error         { return ErrNotImplemented }
