package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"tinyscope/hal"
	"tinyscope/kernel"
)

const (
	panicLineHeight = 10
	panicBaseline   = 8
)

var panicFont tinyfont.Fonter = &proggy.TinySZ8pt7b

func (s *System) installPanicHandler() {
	s.k.SetPanicHandler(func(info kernel.PanicInfo) {
		lines := panicLines(info)
		l := s.h.Logger()
		if l != nil {
			for _, line := range lines {
				l.WriteLineString(line)
			}
		}
		if d := s.h.Display(); d != nil {
			if err := drawPanic(d.Framebuffer(), lines); err != nil && l != nil {
				l.WriteLineString("panic: present: " + err.Error())
			}
		}
	})
}

func panicLines(info kernel.PanicInfo) []string {
	lines := []string{
		"tinyscope panic:",
		fmt.Sprintf("task: %d", info.TaskID),
		fmt.Sprintf("panic: %v", info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// drawPanic fills the screen white and prints lines in black, wrapped at
// the screen width, until the screen is full.
func drawPanic(fb hal.Framebuffer, lines []string) error {
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return nil
	}
	fb.ClearRGB(255, 255, 255)

	_, outbox := tinyfont.LineWidth(panicFont, "0")
	charW := int16(outbox)
	if charW <= 0 {
		charW = 6
	}
	cols := int16(fb.Width()) / charW
	if cols <= 0 {
		cols = 1
	}

	d := panicDisplay{fb: fb}
	fg := color.RGBA{A: 255}
	y := int16(0)
	for _, line := range lines {
		for len(line) > 0 {
			if int(y)+panicLineHeight > fb.Height() {
				return fb.Present()
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, panicFont, 0, y+panicBaseline, chunk, fg)
			y += panicLineHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	return fb.Present()
}

// panicDisplay is a minimal drivers.Displayer over the framebuffer. It does
// not depend on any task state, which may be what panicked.
type panicDisplay struct {
	fb hal.Framebuffer
}

func (d panicDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d panicDisplay) SetPixel(x, y int16, c color.RGBA) {
	buf := d.fb.Buffer()
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	pixel := hal.RGB565(c.R, c.G, c.B)
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d panicDisplay) Display() error { return nil }

// takeRunes splits s after n runes.
func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	i := 0
	for count := int16(0); i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], s[i:]
}
