package util

import "strings"

// PagesToRows converts a page-addressed monochrome buffer (one byte covers
// eight vertical pixels, LSB on top) into one string per pixel row.
func PagesToRows(buf []byte, width, height int, on, off rune) []string {
	rows := make([]string, 0, height)
	for y := 0; y < height; y++ {
		var s strings.Builder
		page := (y / 8) * width
		bit := byte(1) << (y % 8)
		for x := 0; x < width; x++ {
			i := page + x
			if i < len(buf) && buf[i]&bit != 0 {
				s.WriteRune(on)
			} else {
				s.WriteRune(off)
			}
		}
		rows = append(rows, s.String())
	}
	return rows
}
