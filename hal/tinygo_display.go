//go:build tinygo && baremetal

package hal

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ili9341"
)

// lcdFramebuffer keeps an RGB565 framebuffer in RAM and pushes it to an
// ILI9341 panel on Present.
type lcdFramebuffer struct {
	dev    *ili9341.Device
	width  int
	height int
	buf    []byte
}

func newLCDFramebuffer(width, height int) (*lcdFramebuffer, error) {
	if machine.SPI0 == nil {
		return nil, errors.New("SPI0 unavailable")
	}
	if err := machine.SPI0.Configure(machine.SPIConfig{
		SCK:       machine.GP18,
		SDO:       machine.GP19,
		SDI:       machine.GP16,
		Frequency: 40_000_000,
	}); err != nil {
		return nil, err
	}

	dev := ili9341.NewSPI(machine.SPI0, machine.GP20, machine.GP17, machine.GP21)
	dev.Configure(ili9341.Config{Rotation: drivers.Rotation90})

	return &lcdFramebuffer{
		dev:    dev,
		width:  width,
		height: height,
		buf:    make([]byte, width*height*2),
	}, nil
}

func (f *lcdFramebuffer) Width() int          { return f.width }
func (f *lcdFramebuffer) Height() int         { return f.height }
func (f *lcdFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *lcdFramebuffer) StrideBytes() int    { return f.width * 2 }
func (f *lcdFramebuffer) Buffer() []byte      { return f.buf }

func (f *lcdFramebuffer) ClearRGB(r, g, b uint8) {
	pixel := rgb565(r, g, b)
	for i := 0; i+1 < len(f.buf); i += 2 {
		f.buf[i] = byte(pixel)
		f.buf[i+1] = byte(pixel >> 8)
	}
}

// Present sends the whole frame. The panel wants big-endian pixels, so the
// buffer is byte-swapped in place around the transfer; there is no RAM for
// a second full frame.
func (f *lcdFramebuffer) Present() error {
	swap16(f.buf)
	err := f.dev.DrawRGBBitmap8(0, 0, f.buf, int16(f.width), int16(f.height))
	swap16(f.buf)
	return err
}

func swap16(b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
}
