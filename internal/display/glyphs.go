package display

// Digits are 5 columns by 7 rows; bit n of a column byte is row n.
var digitGlyphs = map[rune][5]byte{
	'0': {0x3E, 0x51, 0x49, 0x45, 0x3E},
	'1': {0x00, 0x42, 0x7F, 0x40, 0x00},
	'2': {0x42, 0x61, 0x51, 0x49, 0x46},
	'3': {0x21, 0x41, 0x45, 0x4B, 0x31},
	'4': {0x18, 0x14, 0x12, 0x7F, 0x10},
	'5': {0x27, 0x45, 0x45, 0x45, 0x39},
	'6': {0x3C, 0x4A, 0x49, 0x49, 0x30},
	'7': {0x01, 0x71, 0x09, 0x05, 0x03},
	'8': {0x36, 0x49, 0x49, 0x49, 0x36},
	'9': {0x06, 0x49, 0x49, 0x29, 0x1E},
}

const (
	glyphCols = 5
	glyphRows = 7
)

// DigitWidth is the pixel width of one digit at scale.
func DigitWidth(scale int) int { return glyphCols * scale }

// DigitHeight is the pixel height of one digit at scale.
func DigitHeight(scale int) int { return glyphRows * scale }

// NumberWidth is the width of n digits at scale separated by spacing.
func NumberWidth(n, scale, spacing int) int {
	if n <= 0 {
		return 0
	}
	return n*DigitWidth(scale) + (n-1)*spacing
}

// BigDigit draws d scaled up with its top-left corner at x, y. Unknown runes
// draw nothing.
func (f *Framebuffer) BigDigit(d rune, x, y, scale int) {
	cols, ok := digitGlyphs[d]
	if !ok {
		return
	}
	for c, bits := range cols {
		for r := 0; r < glyphRows; r++ {
			if bits&(1<<r) != 0 {
				f.FillRect(x+c*scale, y+r*scale, scale, scale, true)
			}
		}
	}
}

// BigNumber draws s digit by digit starting at x, y.
func (f *Framebuffer) BigNumber(s string, x, y, scale, spacing int) {
	for _, d := range s {
		f.BigDigit(d, x, y, scale)
		x += DigitWidth(scale) + spacing
	}
}

// MuteIcon draws a speaker cone with a cross, 15 by 11 units of scale.
func (f *Framebuffer) MuteIcon(x, y, s int) {
	f.FillRect(x, y+3*s, 3*s, 4*s, true)
	f.Line(x+3*s, y+3*s, x+6*s, y)
	f.Line(x+3*s, y+7*s, x+6*s, y+10*s)
	f.Line(x+6*s, y, x+6*s, y+10*s)
	f.Line(x+8*s, y, x+14*s, y+10*s)
	f.Line(x+14*s, y, x+8*s, y+10*s)
}

// MoonIcon is an 8x8 crescent.
func (f *Framebuffer) MoonIcon(x, y int) {
	f.FillRect(x, y, 8, 8, true)
	f.FillRect(x+2, y+1, 6, 6, false)
}

// SunIcon is a 9x9 disc with eight rays.
func (f *Framebuffer) SunIcon(x, y int) {
	f.FillRect(x+3, y+3, 2, 2, true)
	for _, p := range [][2]int{
		{x + 4, y}, {x + 4, y + 8}, {x, y + 4}, {x + 8, y + 4},
		{x + 1, y + 1}, {x + 7, y + 7}, {x + 7, y + 1}, {x + 1, y + 7},
	} {
		f.Pixel(p[0], p[1], true)
	}
}
