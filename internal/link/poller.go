// Package link owns the receive side of the decoder connection: the
// polling loop that drains new characters from the remote receive
// buffer, the framer feeding, peer inference, metadata sampling, and
// the reconnect-with-backoff lifecycle.
package link

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dbehnke/cwlink/internal/framer"
	"github.com/dbehnke/cwlink/internal/xmlrpc"
)

// State is the connection lifecycle state, reported through the OnState
// callback as a side effect of the poll loop, never polled.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Utterance is one complete framed message with the receive metadata
// sampled around the time it was decoded. Immutable once delivered.
type Utterance struct {
	Text          string
	Peer          string
	Timestamp     time.Time
	FrequencyHz   float64
	DetectedSpeed int
	SignalQuality float64
}

// Decoder is the slice of the decoder client the poller needs.
type Decoder interface {
	Version(ctx context.Context) (string, error)
	RxLength(ctx context.Context) (int, error)
	RxText(ctx context.Context, start, length int) (string, error)
	DetectedSpeed(ctx context.Context) (int, error)
	SignalQuality(ctx context.Context) (float64, error)
	Frequency(ctx context.Context) (float64, error)
}

// Config holds the poller's timing knobs. Zero values select the
// defaults.
type Config struct {
	PollInterval     time.Duration // how often to check for new text (default 250ms)
	SilenceTimeout   time.Duration // framer silence window (default 3s)
	MetadataInterval time.Duration // speed/quality sampling cadence (default 1s)
	ReconnectInitial time.Duration // first retry delay (default 1s)
	ReconnectMax     time.Duration // retry delay ceiling (default 30s)
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = framer.DefaultSilenceTimeout
	}
	if c.MetadataInterval <= 0 {
		c.MetadataInterval = time.Second
	}
	if c.ReconnectInitial <= 0 {
		c.ReconnectInitial = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
}

// Poller drives one decoder session. Create with NewPoller, wire the
// callbacks, then Start. The read cursor and framer live for one
// session and are discarded on Stop.
type Poller struct {
	dec Decoder
	cfg Config
	log *logrus.Entry

	// OnUtterance receives each framed message. OnState receives every
	// lifecycle transition. Both are invoked from the poller's
	// goroutines and must not block for long.
	OnUtterance func(u Utterance)
	OnState     func(s State)

	framer *framer.Framer

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	state    State
	cursor   int
	current  strings.Builder
	peer     string
	speed    int
	quality  float64
	freqHz   float64
	sampleAt time.Time
}

// NewPoller creates a poller over the given decoder.
func NewPoller(dec Decoder, cfg Config, log *logrus.Entry) *Poller {
	cfg.applyDefaults()
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Poller{
		dec:   dec,
		cfg:   cfg,
		log:   log,
		state: StateDisconnected,
		peer:  PeerUnknown,
	}
	p.framer = framer.New(cfg.SilenceTimeout, p.emitUtterance)
	return p
}

// Start launches the session goroutine. It returns an error only when
// the poller is already running; connect failures are handled inside
// the loop with backoff.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("link: poller already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
	return nil
}

// Stop tears down the session: the loop exits, pending timers are
// cancelled, and the framer is reset without emitting. Safe to call
// repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
	p.framer.Reset()
	p.setState(StateDisconnected)
}

// State returns the last reported lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := p.cfg.ReconnectInitial
	first := true

	for {
		if first {
			p.setState(StateConnecting)
			first = false
		} else {
			p.setState(StateReconnecting)
		}

		if err := p.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.WithError(err).WithField("retry_in", backoff).Warn("decoder connect failed")
			if xmlrpc.IsFault(err) {
				p.setState(StateError)
			} else {
				p.setState(StateReconnecting)
			}
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, p.cfg.ReconnectMax)
			continue
		}

		backoff = p.cfg.ReconnectInitial
		p.setState(StateConnected)
		p.log.Info("decoder connected")

		// Poll until an error or shutdown. Strictly one cycle in
		// flight: the next poll is scheduled only after this one
		// settles, so buffer reads can never overlap or arrive out of
		// order.
		for {
			if err := p.pollOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				// A completed-but-silence-pending utterance must not be
				// stranded while we tear the connection down.
				p.framer.Flush()
				p.log.WithError(err).Warn("poll failed, reconnecting")
				break
			}
			if !sleepCtx(ctx, p.cfg.PollInterval) {
				return
			}
		}
	}
}

// connect probes the decoder and synchronizes the read cursor to the
// remote buffer's current length, so only text decoded after this
// moment is ever delivered.
func (p *Poller) connect(ctx context.Context) error {
	version, err := p.dec.Version(ctx)
	if err != nil {
		return err
	}
	length, err := p.dec.RxLength(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.cursor = length
	p.current.Reset()
	p.peer = PeerUnknown
	p.sampleAt = time.Time{}
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"decoder": version,
		"cursor":  length,
	}).Debug("decoder session established")
	return nil
}

func (p *Poller) pollOnce(ctx context.Context) error {
	length, err := p.dec.RxLength(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	cursor := p.cursor
	p.mu.Unlock()

	switch {
	case length < cursor:
		// The remote buffer shrank: the decoder restarted. Text
		// accumulated before the restart is no longer contiguous with
		// what follows, so discard it.
		p.log.WithFields(logrus.Fields{
			"cursor": cursor,
			"length": length,
		}).Warn("decoder restart detected, resynchronizing")
		p.mu.Lock()
		p.cursor = length
		p.current.Reset()
		p.peer = PeerUnknown
		p.mu.Unlock()
		p.framer.Reset()

	case length > cursor:
		delta, err := p.dec.RxText(ctx, cursor, length-cursor)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.cursor = length
		if delta != "" {
			p.current.WriteString(delta)
			p.peer = ExtractPeer(p.current.String())
		}
		p.mu.Unlock()
		if delta != "" {
			p.framer.Push(delta)
		}
	}

	p.sampleMetadata(ctx)
	return nil
}

// sampleMetadata reads speed, quality, and frequency on its own slower
// cadence. Failures here are non-fatal; stale values are better than a
// torn-down connection.
func (p *Poller) sampleMetadata(ctx context.Context) {
	p.mu.Lock()
	due := p.sampleAt.IsZero() || time.Since(p.sampleAt) >= p.cfg.MetadataInterval
	if due {
		p.sampleAt = time.Now()
	}
	p.mu.Unlock()
	if !due {
		return
	}

	if speed, err := p.dec.DetectedSpeed(ctx); err == nil {
		p.mu.Lock()
		p.speed = speed
		p.mu.Unlock()
	}
	if quality, err := p.dec.SignalQuality(ctx); err == nil {
		p.mu.Lock()
		p.quality = quality
		p.mu.Unlock()
	}
	if freq, err := p.dec.Frequency(ctx); err == nil {
		p.mu.Lock()
		p.freqHz = freq
		p.mu.Unlock()
	}
}

// DetectedSpeed returns the most recently sampled receive speed in WPM,
// or zero when none has been observed this session.
func (p *Poller) DetectedSpeed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// emitUtterance is the framer sink. The peer is consumed and reset here
// so one utterance never inherits the peer inferred for the next.
func (p *Poller) emitUtterance(text string) {
	p.mu.Lock()
	u := Utterance{
		Text:          text,
		Peer:          p.peer,
		Timestamp:     time.Now(),
		FrequencyHz:   p.freqHz,
		DetectedSpeed: p.speed,
		SignalQuality: p.quality,
	}
	p.peer = PeerUnknown
	p.current.Reset()
	cb := p.OnUtterance
	p.mu.Unlock()

	if cb != nil {
		cb(u)
	}
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	changed := p.state != s
	p.state = s
	cb := p.OnState
	p.mu.Unlock()

	if changed && cb != nil {
		cb(s)
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// sleepCtx waits for d and reports false when ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
