package console

import (
	"strings"

	"github.com/fatih/color"
	"github.com/sandertv/gophertunnel/minecraft/text"
)

var colourCodes = map[byte]color.Attribute{
	'0': color.FgBlack,
	'1': color.FgBlue,
	'2': color.FgGreen,
	'3': color.FgCyan,
	'4': color.FgRed,
	'5': color.FgMagenta,
	'6': color.FgYellow,
	'7': color.FgWhite,
	'8': color.FgHiBlack,
	'9': color.FgHiBlue,
	'a': color.FgHiGreen,
	'b': color.FgHiCyan,
	'c': color.FgHiRed,
	'd': color.FgHiMagenta,
	'e': color.FgHiYellow,
	'f': color.FgHiWhite,
}

var styleCodes = map[byte]color.Attribute{
	'l': color.Bold,
	'm': color.CrossedOut,
	'n': color.Underline,
	'o': color.Italic,
}

// Render converts the Minecraft formatting codes (§a, §l, ...) in s to ANSI
// escape sequences. If colour is false, the codes are stripped instead.
func Render(s string, colour bool) string {
	if !colour {
		return text.Clean(s)
	}
	var (
		b     strings.Builder
		attrs []color.Attribute
	)
	flush := func(seg string) {
		if seg == "" {
			return
		}
		if len(attrs) == 0 {
			b.WriteString(seg)
			return
		}
		c := color.New(attrs...)
		c.EnableColor()
		b.WriteString(c.Sprint(seg))
	}
	for {
		i := strings.Index(s, "§")
		if i == -1 || i+len("§") >= len(s) {
			flush(s)
			return b.String()
		}
		flush(s[:i])
		code := s[i+len("§")]
		s = s[i+len("§")+1:]
		if a, ok := colourCodes[code]; ok {
			// A colour code resets any styles set before it.
			attrs = []color.Attribute{a}
		} else if a, ok := styleCodes[code]; ok {
			attrs = append(attrs, a)
		} else if code == 'r' {
			attrs = nil
		}
	}
}
