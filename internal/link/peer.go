package link

import (
	"regexp"
	"strings"

	"github.com/dbehnke/cwlink/internal/morse"
)

// PeerUnknown is the sentinel peer for an utterance whose transmitting
// station could not be inferred.
const PeerUnknown = "UNKNOWN"

var (
	// "CQ ... DE <call>" — a general call; the transmitting station
	// follows DE.
	cqPattern = regexp.MustCompile(`\bCQ\b.*?\bDE\s+(` + morse.CallsignExpr + `)\b`)

	// "<call> DE <call>" — a directed call; the second callsign is the
	// one transmitting.
	directedPattern = regexp.MustCompile(`\b(` + morse.CallsignExpr + `)\s+DE\s+(` + morse.CallsignExpr + `)\b`)
)

// ExtractPeer infers the conversational partner from everything decoded
// so far in the current utterance. Priority: general-call pattern, then
// directed-call pattern, then the last callsign-shaped token, then the
// unknown sentinel.
func ExtractPeer(text string) string {
	upper := strings.ToUpper(text)

	if m := cqPattern.FindStringSubmatch(upper); m != nil {
		return m[1]
	}
	if m := directedPattern.FindStringSubmatch(upper); m != nil {
		return m[2]
	}
	if calls := morse.CallsignPattern.FindAllString(upper, -1); len(calls) > 0 {
		return calls[len(calls)-1]
	}
	return PeerUnknown
}
