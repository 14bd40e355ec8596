package display

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var (
	On  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Off = color.RGBA{A: 255}
)

// textFont is the small font used for status lines; y coordinates passed to
// Text are the top of the line, the font baseline sits textAscent below.
var textFont tinyfont.Fonter = &proggy.TinySZ8pt7b

const textAscent = 7

// Framebuffer is a 1 bit per pixel image in the SSD1306 page layout: byte
// x+(y/8)*width holds column x of page y/8, bit y%8.
type Framebuffer struct {
	width, height int
	buf           []byte
}

var _ drivers.Displayer = (*Framebuffer)(nil)

func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{width: width, height: height, buf: make([]byte, width*((height+7)/8))}
}

func (f *Framebuffer) Width() int  { return f.width }
func (f *Framebuffer) Height() int { return f.height }

// Bytes is the live buffer, valid until the next drawing call.
func (f *Framebuffer) Bytes() []byte { return f.buf }

func (f *Framebuffer) Clear() {
	clear(f.buf)
}

func (f *Framebuffer) Pixel(x, y int, on bool) {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return
	}
	i := x + (y/8)*f.width
	bit := byte(1) << (y % 8)
	if on {
		f.buf[i] |= bit
	} else {
		f.buf[i] &^= bit
	}
}

func (f *Framebuffer) Get(x, y int) bool {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return false
	}
	return f.buf[x+(y/8)*f.width]&(1<<(y%8)) != 0
}

func (f *Framebuffer) FillRect(x, y, w, h int, on bool) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			f.Pixel(xx, yy, on)
		}
	}
}

// Line draws a one pixel wide line with Bresenham's algorithm.
func (f *Framebuffer) Line(x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		f.Pixel(x0, y0, true)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Text writes s with its top-left corner at x, y.
func (f *Framebuffer) Text(x, y int, s string) {
	tinyfont.WriteLine(f, textFont, int16(x), int16(y+textAscent), s, On)
}

func (f *Framebuffer) Size() (int16, int16) { return int16(f.width), int16(f.height) }

func (f *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	f.Pixel(int(x), int(y), c.R|c.G|c.B != 0)
}

// Display is a no-op; Renderer pushes the buffer to the panel.
func (f *Framebuffer) Display() error { return nil }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
