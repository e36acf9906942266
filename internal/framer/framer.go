// Package framer turns the decoder's continuous character stream into
// discrete utterances. Two independent triggers close an utterance: a
// procedural terminator at the end of the accumulated text, or a run of
// silence with no new characters.
package framer

import (
	"strings"
	"sync"
	"time"

	"github.com/dbehnke/cwlink/internal/morse"
)

// DefaultSilenceTimeout closes an utterance when no new characters have
// arrived for this long.
const DefaultSilenceTimeout = 3 * time.Second

// terminators are the multi-letter prosigns that close an utterance
// wherever they end the accumulated text.
var terminators = []string{
	morse.ProsignAR,
	morse.ProsignSK,
	morse.ProsignKN,
	morse.ProsignBK,
}

// Framer accumulates pushed fragments and emits complete utterances
// through the sink callback. All methods are safe for the silence timer
// goroutine to race against the pushing goroutine; the sink is invoked
// with the framer's lock held and must not call back into it.
type Framer struct {
	silence time.Duration
	sink    func(text string)

	mu    sync.Mutex
	buf   strings.Builder
	timer *time.Timer
	gen   uint64
}

// New creates a framer. A non-positive silence duration selects
// DefaultSilenceTimeout.
func New(silence time.Duration, sink func(text string)) *Framer {
	if silence <= 0 {
		silence = DefaultSilenceTimeout
	}
	return &Framer{silence: silence, sink: sink}
}

// Push appends a decoded fragment, restarts the silence timer, and
// flushes immediately when the accumulated text now ends in a
// terminator. An empty fragment is a no-op.
func (f *Framer) Push(fragment string) {
	if fragment == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf.WriteString(fragment)
	f.restartTimerLocked()

	if endsInTerminator(f.buf.String()) {
		f.flushLocked()
	}
}

// Flush closes the current utterance, if any. It emits at most once per
// accumulator content and never emits an empty string; on an empty
// accumulator it only clears the pending timer.
func (f *Framer) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushLocked()
}

// Reset discards the accumulator and any pending timer without
// emitting. Used when accumulated text can no longer be trusted, such
// as after a connection loss or a remote restart.
func (f *Framer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelTimerLocked()
	f.buf.Reset()
}

func (f *Framer) flushLocked() {
	f.cancelTimerLocked()
	text := morse.CollapseWhitespace(f.buf.String())
	f.buf.Reset()
	if text != "" && f.sink != nil {
		f.sink(text)
	}
}

// restartTimerLocked arms a fresh silence timer. The generation counter
// makes an already-fired timer callback a no-op, so a flush can never
// double-fire for the same content.
func (f *Framer) restartTimerLocked() {
	f.cancelTimerLocked()
	gen := f.gen
	f.timer = time.AfterFunc(f.silence, func() {
		f.silenceExpired(gen)
	})
}

func (f *Framer) cancelTimerLocked() {
	f.gen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Framer) silenceExpired(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen || f.timer == nil {
		// A newer push, flush, or reset superseded this timer.
		return
	}
	f.flushLocked()
}

// endsInTerminator reports whether text, ignoring case and trailing
// spaces, ends in a closing prosign. The bare "K" go-ahead only counts
// when preceded by a word boundary; a "K" glued to the previous word by
// noisy copy is indistinguishable from an ordinary word ending in K and
// deliberately does not trigger.
func endsInTerminator(text string) bool {
	trimmed := strings.TrimRight(strings.ToUpper(text), " \t\r\n")
	if trimmed == "" {
		return false
	}
	for _, term := range terminators {
		if strings.HasSuffix(trimmed, term) {
			return true
		}
	}
	if strings.HasSuffix(trimmed, morse.ProsignK) {
		if len(trimmed) == 1 {
			return true
		}
		prev := trimmed[len(trimmed)-2]
		return prev == ' ' || prev == '\t' || prev == '\n' || prev == '\r'
	}
	return false
}
