// Package transmit owns every outbound transmission. Each send runs
// through an ordered sequence of safety gates, is sanitized and
// formatted for CW, speed-matched to the most recently observed receive
// speed, identified when identification is due, and covered by a
// maximum-duration watchdog that aborts a transmission nobody ended.
package transmit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dbehnke/cwlink/internal/morse"
)

// Intent distinguishes a general call from a directed reply; it selects
// the addressing prefix and the closing prosign.
type Intent int

const (
	IntentBroadcast Intent = iota
	IntentDirected
)

// Reason names the gate or failure that refused a transmission.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonDisabled
	ReasonInhibited
	ReasonNoCallsign
	ReasonCooldown
	ReasonNotListening
	ReasonMissingPeer
	ReasonEmptyText
	ReasonDecoderError
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonDisabled:
		return "transmit disabled"
	case ReasonInhibited:
		return "transmit inhibited"
	case ReasonNoCallsign:
		return "no station callsign configured"
	case ReasonCooldown:
		return "transmit cooldown not elapsed"
	case ReasonNotListening:
		return "listen-before-transmit not satisfied"
	case ReasonMissingPeer:
		return "directed transmission without peer callsign"
	case ReasonEmptyText:
		return "no transmittable text"
	case ReasonDecoderError:
		return "decoder rejected transmission"
	default:
		return "unknown"
	}
}

// Outcome is the per-send result. Preflight refusals are values, never
// errors: callers are expected to retry later, not crash.
type Outcome struct {
	OK     bool
	Reason Reason
	Err    error
	Text   string // the text actually transmitted, when OK
}

func refused(r Reason) Outcome {
	return Outcome{Reason: r}
}

// LogEntry is the append-only audit record emitted once per successful
// transmission.
type LogEntry struct {
	Timestamp   time.Time
	Text        string
	Speed       int
	FrequencyHz float64
	Callsign    string
}

// Decoder is the slice of the decoder client the transmitter needs.
type Decoder interface {
	SetTxSpeed(ctx context.Context, wpm int) error
	AddTxText(ctx context.Context, text string) error
	StartTx(ctx context.Context) error
	StopTx(ctx context.Context) error
	Abort(ctx context.Context) error
	RxLength(ctx context.Context) (int, error)
}

// Speed matching bounds.
const (
	MinSpeed          = 5
	MaxSpeed          = 60
	minDetectedSpeed  = 5
	DefaultMinGap     = 500 * time.Millisecond
	DefaultMinListen  = 10 * time.Second
	DefaultMaxTxTime  = 120 * time.Second
	DefaultIDInterval = 10 * time.Minute
	DefaultQRLWait    = 5 * time.Second
)

// Config holds the transmitter's settings. Zero durations select the
// defaults; Enabled and Callsign have no defaults on purpose.
type Config struct {
	Enabled      bool
	Callsign     string
	DefaultSpeed int
	FrequencyHz  float64
	MinGap       time.Duration
	MinListen    time.Duration
	MaxDuration  time.Duration
	IDInterval   time.Duration
	QRLWait      time.Duration
}

func (c *Config) applyDefaults() {
	if c.MinGap <= 0 {
		c.MinGap = DefaultMinGap
	}
	if c.MinListen <= 0 {
		c.MinListen = DefaultMinListen
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxTxTime
	}
	if c.IDInterval <= 0 {
		c.IDInterval = DefaultIDInterval
	}
	if c.QRLWait <= 0 {
		c.QRLWait = DefaultQRLWait
	}
	if c.DefaultSpeed <= 0 {
		c.DefaultSpeed = 18
	}
}

// Transmitter gates, formats, times, and audits outbound CW. The guard
// state (cooldown, identification, listen clock, inhibit latch,
// watchdog) lives for the lifetime of the instance and persists across
// sends.
type Transmitter struct {
	dec Decoder
	cfg Config
	log *logrus.Entry

	// OnLogged receives one audit record per successful transmission.
	// OnIdentificationSent fires whenever a station ID went out.
	OnLogged             func(e LogEntry)
	OnIdentificationSent func(callsign string)

	sendMu sync.Mutex // serializes Send and CheckQRL end to end

	mu            sync.Mutex
	lastTxAt      time.Time
	lastIDAt      time.Time
	listenStartAt time.Time
	inhibited     bool
	qrlClearedHz  float64
	qrlCleared    bool
	watchdog      *time.Timer
}

// NewTransmitter creates a transmitter over the given decoder.
func NewTransmitter(dec Decoder, cfg Config, log *logrus.Entry) *Transmitter {
	cfg.applyDefaults()
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Transmitter{dec: dec, cfg: cfg, log: log}
}

// MarkListenStart records that the receiver began listening on the
// current frequency. The listen-before-transmit gate measures from the
// most recent call.
func (t *Transmitter) MarkListenStart() {
	t.mu.Lock()
	t.listenStartAt = time.Now()
	// A fresh listen period invalidates any earlier occupancy check.
	t.qrlCleared = false
	t.mu.Unlock()
}

// QRLClearedFor returns the frequency the last successful occupancy
// check found clear, and whether such a clearance is still current.
func (t *Transmitter) QRLClearedFor() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.qrlClearedHz, t.qrlCleared
}

// ClearInhibit releases the latch set by EmergencyStop.
func (t *Transmitter) ClearInhibit() {
	t.mu.Lock()
	t.inhibited = false
	t.mu.Unlock()
}

// Send formats and transmits text. detectedSpeed is the most recent
// receive speed in WPM, or zero when unknown; peer is required for
// IntentDirected. The returned Outcome carries the refusal reason when
// a gate failed; it never panics and never returns an error for
// expected preflight failures.
func (t *Transmitter) Send(ctx context.Context, text string, intent Intent, peer string, detectedSpeed int) Outcome {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if o := t.preflight(); !o.OK {
		return o
	}

	formatted, o := t.format(text, intent, peer)
	if o.Reason != ReasonNone {
		return o
	}

	return t.transmit(ctx, formatted, detectedSpeed)
}

// CheckQRL transmits the "is this frequency in use?" query and infers
// occupancy from whether the receive buffer grew during the wait. It is
// a transmission and passes the same preflight gates. clear is true
// when the frequency appears free.
func (t *Transmitter) CheckQRL(ctx context.Context) (clear bool, outcome Outcome) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if o := t.preflight(); !o.OK {
		return false, o
	}

	before, err := t.dec.RxLength(ctx)
	if err != nil {
		return false, Outcome{Reason: ReasonDecoderError, Err: err}
	}

	o := t.transmit(ctx, "QRL?", 0)
	if !o.OK {
		return false, o
	}

	if !sleepCtx(ctx, t.cfg.QRLWait) {
		return false, Outcome{Reason: ReasonDecoderError, Err: ctx.Err()}
	}

	after, err := t.dec.RxLength(ctx)
	if err != nil {
		return false, Outcome{Reason: ReasonDecoderError, Err: err}
	}

	clear = after <= before
	t.mu.Lock()
	t.qrlCleared = clear
	if clear {
		t.qrlClearedHz = t.cfg.FrequencyHz
	}
	t.mu.Unlock()
	return clear, o
}

// EmergencyStop cancels the watchdog, aborts any transmission in
// progress, returns the decoder to receive, and latches the inhibit
// flag. Decoder failures here are swallowed: the latch must be set no
// matter what.
func (t *Transmitter) EmergencyStop() {
	t.mu.Lock()
	t.stopWatchdogLocked()
	t.inhibited = true
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := t.dec.Abort(ctx); err != nil {
		t.log.WithError(err).Warn("emergency stop: abort failed")
	}
	if err := t.dec.StopTx(ctx); err != nil {
		t.log.WithError(err).Warn("emergency stop: return to receive failed")
	}
	t.log.Warn("emergency stop engaged, transmit inhibited")
}

// Destroy cancels any pending watchdog without touching decoder state.
// For shutdown.
func (t *Transmitter) Destroy() {
	t.mu.Lock()
	t.stopWatchdogLocked()
	t.mu.Unlock()
}

// preflight runs the ordered safety gates. The first failure wins.
func (t *Transmitter) preflight() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.cfg.Enabled {
		return refused(ReasonDisabled)
	}
	if t.inhibited {
		return refused(ReasonInhibited)
	}
	if t.cfg.Callsign == "" {
		return refused(ReasonNoCallsign)
	}
	if !t.lastTxAt.IsZero() && time.Since(t.lastTxAt) < t.cfg.MinGap {
		return refused(ReasonCooldown)
	}
	if t.listenStartAt.IsZero() || time.Since(t.listenStartAt) < t.cfg.MinListen {
		return refused(ReasonNotListening)
	}
	return Outcome{OK: true}
}

// format sanitizes and addresses the text for its intent.
func (t *Transmitter) format(text string, intent Intent, peer string) (string, Outcome) {
	s := morse.Sanitize(text)
	if s == "" {
		return "", refused(ReasonEmptyText)
	}

	call := strings.ToUpper(t.cfg.Callsign)
	peer = strings.ToUpper(strings.TrimSpace(peer))

	switch intent {
	case IntentDirected:
		if peer == "" {
			return "", refused(ReasonMissingPeer)
		}
		if !strings.HasPrefix(s, peer+" ") && s != peer {
			s = peer + " DE " + call + " " + s
		}
		if !morse.EndsWithClosingSignal(s) {
			s += " " + morse.ProsignKN
		}
	default:
		if !strings.HasPrefix(s, "CQ") {
			s = "CQ CQ CQ DE " + call + " " + s
		}
		if !morse.EndsWithClosingSignal(s) {
			s += " " + morse.ProsignK
		}
	}
	return s, Outcome{}
}

// transmit performs the decoder side of a send: speed match, mandatory
// identification, buffer write, keying, watchdog, audit. Callers hold
// sendMu and have already passed preflight.
func (t *Transmitter) transmit(ctx context.Context, text string, detectedSpeed int) Outcome {
	speed := MatchSpeed(detectedSpeed, t.cfg.DefaultSpeed)

	// Identification is appended whenever due, regardless of what the
	// caller asked for.
	t.mu.Lock()
	idDue := t.lastIDAt.IsZero() || time.Since(t.lastIDAt) >= t.cfg.IDInterval
	t.mu.Unlock()
	call := strings.ToUpper(t.cfg.Callsign)
	if idDue {
		text += " DE " + call
	}

	// The speed is written before every buffer write; it is never left
	// at a stale prior value.
	if err := t.dec.SetTxSpeed(ctx, speed); err != nil {
		return Outcome{Reason: ReasonDecoderError, Err: err}
	}
	if err := t.dec.AddTxText(ctx, text); err != nil {
		return Outcome{Reason: ReasonDecoderError, Err: err}
	}
	if err := t.dec.StartTx(ctx); err != nil {
		return Outcome{Reason: ReasonDecoderError, Err: err}
	}

	now := time.Now()
	t.mu.Lock()
	t.lastTxAt = now
	if idDue {
		t.lastIDAt = now
	}
	t.armWatchdogLocked()
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{
		"speed": speed,
		"chars": len(text),
	}).Info("transmission started")

	if t.OnLogged != nil {
		t.OnLogged(LogEntry{
			Timestamp:   now,
			Text:        text,
			Speed:       speed,
			FrequencyHz: t.cfg.FrequencyHz,
			Callsign:    call,
		})
	}
	if idDue && t.OnIdentificationSent != nil {
		t.OnIdentificationSent(call)
	}

	return Outcome{OK: true, Text: text}
}

// armWatchdogLocked starts the maximum-duration watchdog. If nobody
// ends the transmission first, it force-aborts and returns to receive;
// it fires even when the caller never calls back.
func (t *Transmitter) armWatchdogLocked() {
	t.stopWatchdogLocked()
	t.watchdog = time.AfterFunc(t.cfg.MaxDuration, t.watchdogExpired)
}

func (t *Transmitter) stopWatchdogLocked() {
	if t.watchdog != nil {
		t.watchdog.Stop()
		t.watchdog = nil
	}
}

func (t *Transmitter) watchdogExpired() {
	t.mu.Lock()
	t.watchdog = nil
	t.mu.Unlock()

	t.log.Warn("transmission exceeded maximum duration, aborting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.dec.Abort(ctx); err != nil {
		t.log.WithError(err).Error("watchdog abort failed")
	}
	if err := t.dec.StopTx(ctx); err != nil {
		t.log.WithError(err).Error("watchdog return to receive failed")
	}
}

// MatchSpeed computes the transmit speed from the detected receive
// speed: rounded down to the nearest even WPM and clamped to
// [MinSpeed, MaxSpeed]. Below the detection threshold the configured
// default applies unchanged.
func MatchSpeed(detected, fallback int) int {
	if detected < minDetectedSpeed {
		return fallback
	}
	speed := detected - detected%2
	if speed < MinSpeed {
		speed = MinSpeed
	}
	if speed > MaxSpeed {
		speed = MaxSpeed
	}
	return speed
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
