package classifier

import (
	"image/color"
	"regexp"
)

var timePattern = regexp.MustCompile(`\d:\d{2}\.\d{3}`)

// ExtractTime returns the first M:SS.mmm substring of OCR output.
func ExtractTime(text string) (string, bool) {
	m := timePattern.FindString(text)
	return m, m != ""
}

// IsBlue reports whether c is the ghost-border blue. Thresholds are tuned
// for the default HUD theme only.
func IsBlue(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	r, g, b = r>>8, g>>8, b>>8
	return b > 150 && g < 100 && r < 100
}
