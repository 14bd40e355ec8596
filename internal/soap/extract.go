package soap

import (
	"bytes"
	"strconv"
	"strings"
)

// The speaker answers with a fixed, tiny envelope. Fields are located by their
// opening/closing tag pair only; nothing else of the XML is interpreted.

// ExtractField returns the text between <tag> and </tag>.
func ExtractField(body []byte, tag string) (string, bool) {
	open := []byte("<" + tag + ">")
	start := bytes.Index(body, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := bytes.Index(body[start:], []byte("</"+tag+">"))
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(string(body[start : start+end])), true
}

// ParseVolume reads <CurrentVolume>, divides it by divisor and clamps to 0..100.
// A missing or non-numeric field is reported as not ok, never as zero.
func ParseVolume(body []byte, divisor int) (int, bool) {
	raw, ok := ExtractField(body, "CurrentVolume")
	if !ok || raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	if divisor > 1 {
		v /= divisor
	}
	return min(max(v, 0), 100), true
}

// ParseMute reads <CurrentMute>; "1" means muted.
func ParseMute(body []byte) (bool, bool) {
	raw, ok := ExtractField(body, "CurrentMute")
	if !ok {
		return false, false
	}
	switch raw {
	case "1", "true":
		return true, true
	case "0", "false":
		return false, true
	}
	return false, false
}
