// Package morse holds the CW text helpers shared by the receive and
// transmit paths: the transmittable character set, text sanitizing, and
// the procedural signals (prosigns) used for turn-taking.
package morse

import (
	"regexp"
	"strings"
)

// Prosigns recognized on the link. These are sent as plain letter groups
// by the decoder, so they appear in decoded text as ordinary words.
const (
	ProsignAR = "AR" // end of message
	ProsignSK = "SK" // end of contact
	ProsignKN = "KN" // go-ahead, named station only
	ProsignBK = "BK" // break
	ProsignK  = "K"  // go-ahead, any station
)

// ClosingSignals lists every prosign that validly ends a transmission.
// Order matters for suffix matching: longer signals first so "SK" is not
// shadowed by the bare "K".
var ClosingSignals = []string{ProsignAR, ProsignSK, ProsignKN, ProsignBK, ProsignK}

// transmittable is the set of characters with an international Morse
// encoding. Everything else is stripped before transmission.
var transmittable = func() map[rune]bool {
	set := make(map[rune]bool)
	for _, r := range "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" {
		set[r] = true
	}
	for _, r := range `.,?'!/()&:;=+-_"$@ ` {
		set[r] = true
	}
	return set
}()

// CallsignExpr matches a callsign-shaped token: one or two prefix
// letters, a digit, then a one-to-three character suffix ending in a
// letter. It deliberately stays loose; directory validation is someone
// else's job.
const CallsignExpr = `[A-Z]{1,2}[0-9][A-Z0-9]{0,2}[A-Z]`

// CallsignPattern is CallsignExpr with word boundaries applied.
var CallsignPattern = regexp.MustCompile(`\b` + CallsignExpr + `\b`)

// Sanitize reduces arbitrary text to what the keyer can actually send:
// uppercase, non-transmittable characters dropped, whitespace runs
// collapsed to single spaces, leading and trailing whitespace removed.
func Sanitize(text string) string {
	upper := strings.ToUpper(text)
	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(' ')
		case transmittable[r]:
			b.WriteRune(r)
		}
	}
	return CollapseWhitespace(b.String())
}

// CollapseWhitespace squeezes internal whitespace runs to single spaces
// and trims the ends.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// EndsWithClosingSignal reports whether the text already carries a
// closing prosign, so callers don't append a second one. The bare "K"
// only counts when it stands alone as the final word.
func EndsWithClosingSignal(text string) bool {
	trimmed := strings.TrimRight(strings.ToUpper(text), " ")
	if trimmed == "" {
		return false
	}
	fields := strings.Fields(trimmed)
	last := fields[len(fields)-1]
	for _, sig := range ClosingSignals {
		if last == sig {
			return true
		}
	}
	return false
}

// IsTransmittable reports whether a single character survives Sanitize.
func IsTransmittable(r rune) bool {
	return transmittable[r]
}
