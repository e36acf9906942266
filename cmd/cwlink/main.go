package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dbehnke/cwlink/internal/config"
	"github.com/dbehnke/cwlink/internal/decoder"
	"github.com/dbehnke/cwlink/internal/link"
	"github.com/dbehnke/cwlink/internal/logbook"
	"github.com/dbehnke/cwlink/internal/transmit"
	"github.com/dbehnke/cwlink/internal/xmlrpc"
)

const VERSION = "1.0.0"

// Gateway wires the decoder link together: poller on the receive side,
// transmitter on the send side, logbook hanging off the callbacks.
type Gateway struct {
	config      *config.Config
	log         *logrus.Logger
	dec         *decoder.Client
	poller      *link.Poller
	transmitter *transmit.Transmitter
	db          *logbook.DB
	repo        *logbook.Repository
}

// NewGateway creates a gateway from a configuration file
func NewGateway(configFile string) (*Gateway, error) {
	cfg := config.NewConfig(configFile)
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.GetLogLevel()); err == nil {
		log.SetLevel(level)
	}
	if path := cfg.GetLogFile(); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(f)
	}

	g := &Gateway{config: cfg, log: log}

	rpc := xmlrpc.NewClient(cfg.GetDecoderAddress(), int(cfg.GetDecoderPort()), cfg.GetDecoderTimeout())
	dec := decoder.NewClient(rpc)
	g.dec = dec

	g.poller = link.NewPoller(dec, link.Config{
		PollInterval:     cfg.GetPollInterval(),
		SilenceTimeout:   cfg.GetSilenceTimeout(),
		MetadataInterval: cfg.GetMetadataInterval(),
		ReconnectInitial: cfg.GetReconnectInitial(),
		ReconnectMax:     cfg.GetReconnectMax(),
	}, log.WithField("component", "link"))

	g.transmitter = transmit.NewTransmitter(dec, transmit.Config{
		Enabled:      cfg.GetTxEnabled(),
		Callsign:     cfg.GetCallsign(),
		DefaultSpeed: int(cfg.GetTxDefaultSpeed()),
		FrequencyHz:  cfg.GetFrequencyHz(),
		MinGap:       cfg.GetTxMinGap(),
		MinListen:    cfg.GetTxMinListen(),
		MaxDuration:  cfg.GetTxMaxDuration(),
		IDInterval:   cfg.GetTxIDInterval(),
		QRLWait:      cfg.GetTxQRLWait(),
	}, log.WithField("component", "transmit"))

	if cfg.GetLogbookEnabled() {
		db, err := logbook.NewDB(logbook.Config{Path: cfg.GetLogbookPath()}, log.WithField("component", "logbook"))
		if err != nil {
			return nil, fmt.Errorf("failed to open logbook: %w", err)
		}
		g.db = db
		g.repo = logbook.NewRepository(db.GetDB())
	}

	g.wireCallbacks()
	return g, nil
}

func (g *Gateway) wireCallbacks() {
	g.poller.OnState = func(s link.State) {
		g.log.WithField("state", s.String()).Info("link state changed")
		if s == link.StateConnected {
			g.applyStationSettings()
			// The listen clock starts when we begin hearing the
			// frequency, not when the process started.
			g.transmitter.MarkListenStart()
		}
	}

	g.poller.OnUtterance = func(u link.Utterance) {
		g.log.WithFields(logrus.Fields{
			"peer":    u.Peer,
			"speed":   u.DetectedSpeed,
			"quality": u.SignalQuality,
		}).Infof("RX: %s", u.Text)

		if g.repo != nil {
			err := g.repo.LogContact(&logbook.Contact{
				Timestamp:     u.Timestamp,
				Peer:          u.Peer,
				Text:          u.Text,
				FrequencyHz:   u.FrequencyHz,
				DetectedSpeed: u.DetectedSpeed,
				SignalQuality: u.SignalQuality,
			})
			if err != nil {
				g.log.WithError(err).Warn("failed to log contact")
			}
		}
	}

	g.transmitter.OnLogged = func(e transmit.LogEntry) {
		g.log.WithFields(logrus.Fields{
			"speed": e.Speed,
		}).Infof("TX: %s", e.Text)

		if g.repo != nil {
			err := g.repo.LogTransmission(&logbook.Transmission{
				Timestamp:   e.Timestamp,
				Callsign:    e.Callsign,
				Text:        e.Text,
				Speed:       e.Speed,
				FrequencyHz: e.FrequencyHz,
			})
			if err != nil {
				g.log.WithError(err).Warn("failed to log transmission")
			}
		}
	}

	g.transmitter.OnIdentificationSent = func(callsign string) {
		g.log.WithField("callsign", callsign).Info("station identification sent")
	}
}

// applyStationSettings pushes the configured mode and frequency to the
// decoder. Runs on every connect so a restarted decoder comes back in
// the configured state; failures are logged and left for the operator.
func (g *Gateway) applyStationSettings() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if mode := g.config.GetMode(); mode != "" {
		if err := g.dec.SetMode(ctx, mode); err != nil {
			g.log.WithError(err).WithField("mode", mode).Warn("failed to set decoder mode")
		}
	}
	if hz := g.config.GetFrequencyHz(); hz > 0 {
		if err := g.dec.SetFrequency(ctx, hz); err != nil {
			g.log.WithError(err).WithField("frequency", hz).Warn("failed to set decoder frequency")
		}
	}
}

// Run starts the gateway and blocks until a shutdown signal arrives
func (g *Gateway) Run() error {
	g.log.Infof("cwlink v%s starting, decoder at %s:%d",
		VERSION, g.config.GetDecoderAddress(), g.config.GetDecoderPort())

	if err := g.poller.Start(); err != nil {
		return fmt.Errorf("failed to start link poller: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	g.log.Info("received shutdown signal")

	g.Stop()
	return nil
}

// Stop gracefully shuts down the gateway
func (g *Gateway) Stop() {
	g.poller.Stop()
	g.transmitter.Destroy()
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			g.log.WithError(err).Warn("failed to close logbook")
		}
	}
	g.log.Info("cwlink stopped")
}

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "cwlink.ini", "Configuration file path")
	flag.Parse()

	gateway, err := NewGateway(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create gateway: %v\n", err)
		os.Exit(1)
	}

	if err := gateway.Run(); err != nil {
		gateway.log.WithError(err).Fatal("gateway error")
	}
}
