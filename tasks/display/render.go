package display

import (
	"fmt"
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinydraw"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"tinyscope/hal"
	"tinyscope/scope/acquire"
	"tinyscope/scope/frame"
	"tinyscope/scope/settings"
)

var (
	colorBG   = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	colorGrid = color.RGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff}
	colorText = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

	// Trace colors, indexed by channel.
	colorTrace = [acquire.NumChannels]color.RGBA{
		{R: 0xff, G: 0x00, B: 0x00, A: 0xff},
		{R: 0xff, G: 0xff, B: 0x00, A: 0xff},
	}
)

// Label layout in pixels.
const (
	labelMargin      = 3
	labelRightColumn = 200
	labelLowerRow    = 25
	labelBaseline    = 12
	labelHeight      = labelLowerRow + 16

	dashOn  = 4
	dashLen = 8
)

var labelFont tinyfont.Fonter = &proggy.TinySZ8pt7b

// fbDisplay adapts an RGB565 framebuffer to drivers.Displayer. Pixels
// outside the framebuffer are dropped, which is where unclamped trace rows
// get clipped.
type fbDisplay struct {
	fb hal.Framebuffer
}

var _ drivers.Displayer = (*fbDisplay)(nil)

func (d *fbDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	off := iy*d.fb.StrideBytes() + ix*2
	if off+1 >= len(buf) {
		return
	}
	pixel := hal.RGB565(c.R, c.G, c.B)
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d *fbDisplay) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

// FillRectangle paints the clipped rectangle.
func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) {
	if d.fb == nil {
		return
	}
	x0 := clampInt(int(x), 0, d.fb.Width())
	y0 := clampInt(int(y), 0, d.fb.Height())
	x1 := clampInt(int(x)+int(width), 0, d.fb.Width())
	y1 := clampInt(int(y)+int(height), 0, d.fb.Height())
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			d.SetPixel(int16(px), int16(py), c)
		}
	}
}

func (d *fbDisplay) clear() {
	if d.fb != nil {
		d.fb.ClearRGB(colorBG.R, colorBG.G, colorBG.B)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// drawGrid draws the dashed division lines, one pixel before each division
// boundary.
func drawGrid(d *fbDisplay) {
	for x := frame.PixelsPerXDiv - 1; x < frame.Width; x += frame.PixelsPerXDiv {
		for y := 0; y < frame.Height; y += dashLen {
			tinydraw.Line(d, int16(x), int16(y), int16(x), int16(y+dashOn-1), colorGrid)
		}
	}
	for y := frame.PixelsPerYDiv - 1; y < frame.Height; y += frame.PixelsPerYDiv {
		for x := 0; x < frame.Width; x += dashLen {
			tinydraw.Line(d, int16(x), int16(y), int16(x+dashOn-1), int16(y), colorGrid)
		}
	}
}

// labels returns the four status lines in display order: top left, lower
// left, top right, lower right.
func labels(freq [acquire.NumChannels]uint32, s settings.Scope) [4]string {
	return [4]string{
		fmt.Sprintf("Ch1 Freq: %d HZ", freq[acquire.Ch1]),
		fmt.Sprintf("Ch2 Freq: %d HZ", freq[acquire.Ch2]),
		fmt.Sprintf("Xscale: %d us", s.XScale),
		fmt.Sprintf("Yscale: %d mV", s.YScale),
	}
}

func drawLabels(d *fbDisplay, text [4]string) {
	d.FillRectangle(0, 0, frame.Width, labelHeight, colorBG)
	pos := [4][2]int16{
		{labelMargin, labelMargin + labelBaseline},
		{labelMargin, labelLowerRow + labelBaseline},
		{labelRightColumn, labelMargin + labelBaseline},
		{labelRightColumn, labelLowerRow + labelBaseline},
	}
	for i, s := range text {
		tinyfont.WriteLine(d, labelFont, pos[i][0], pos[i][1], s, colorText)
	}
}

// drawTrace joins consecutive points of tr with a two-pixel pen, relative
// to the baseline row.
func drawTrace(d *fbDisplay, tr *frame.Trace, baseline int, c color.RGBA) {
	for i := 0; i+1 < len(tr); i++ {
		x0, y0 := int16(tr[i].X), int16(baseline+tr[i].Y)
		x1, y1 := int16(tr[i+1].X), int16(baseline+tr[i+1].Y)
		tinydraw.Line(d, x0, y0, x1, y1, c)
		tinydraw.Line(d, x0, y0+1, x1, y1+1, c)
	}
}
