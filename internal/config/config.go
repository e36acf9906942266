package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the cwlink configuration
type Config struct {
	filename string

	// Decoder section
	decoderAddress string
	decoderPort    uint32
	decoderTimeout uint32 // ms

	// Link section
	pollInterval     uint32 // ms
	silenceTimeout   uint32 // ms
	metadataInterval uint32 // ms
	reconnectInitial uint32 // ms
	reconnectMax     uint32 // ms

	// Station section
	callsign    string
	frequencyHz float64
	mode        string

	// Transmit section
	txEnabled      bool
	txDefaultSpeed uint32
	txMinGap       uint32 // ms
	txMinListen    uint32 // ms
	txMaxDuration  uint32 // s
	txIDInterval   uint32 // minutes
	txQRLWait      uint32 // ms

	// Logbook section
	logbookEnabled bool
	logbookPath    string

	// Log section
	logLevel string
	logFile  string
}

// NewConfig creates a new configuration instance
func NewConfig(filename string) *Config {
	return &Config{
		filename: filename,
		// Set reasonable defaults
		decoderAddress: "127.0.0.1",
		decoderPort:    7362,
		decoderTimeout: 5000,

		pollInterval:     250,
		silenceTimeout:   3000,
		metadataInterval: 1000,
		reconnectInitial: 1000,
		reconnectMax:     30000,

		mode: "CW",

		txDefaultSpeed: 18,
		txMinGap:       500,
		txMinListen:    10000,
		txMaxDuration:  120,
		txIDInterval:   10,
		txQRLWait:      5000,

		logbookEnabled: false,
		logbookPath:    "data/cwlink.db",

		logLevel: "info",
	}
}

// Load loads configuration from the specified file
func (c *Config) Load() error {
	file, err := os.Open(c.filename)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %v", c.filename, err)
	}
	defer file.Close()

	return c.parseINIScanner(bufio.NewScanner(file))
}

// LoadFromString loads configuration from a string (useful for testing)
func (c *Config) LoadFromString(data string) error {
	return c.parseINIScanner(bufio.NewScanner(strings.NewReader(data)))
}

func (c *Config) parseINIScanner(scanner *bufio.Scanner) error {
	var currentSection string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		// Check for section header
		if line[0] == '[' && line[len(line)-1] == ']' {
			currentSection = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}

		// Parse key=value pairs
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Parse based on current section
		switch currentSection {
		case "Decoder":
			c.parseDecoderSection(key, value)
		case "Link":
			c.parseLinkSection(key, value)
		case "Station":
			c.parseStationSection(key, value)
		case "Transmit":
			c.parseTransmitSection(key, value)
		case "Logbook":
			c.parseLogbookSection(key, value)
		case "Log":
			c.parseLogSection(key, value)
		}
	}

	return scanner.Err()
}

func (c *Config) parseDecoderSection(key, value string) {
	switch key {
	case "Address":
		c.decoderAddress = value
	case "Port":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.decoderPort = uint32(v)
		}
	case "TimeoutMS":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.decoderTimeout = uint32(v)
		}
	}
}

func (c *Config) parseLinkSection(key, value string) {
	switch key {
	case "PollIntervalMS":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.pollInterval = uint32(v)
		}
	case "SilenceTimeoutMS":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.silenceTimeout = uint32(v)
		}
	case "MetadataIntervalMS":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.metadataInterval = uint32(v)
		}
	case "ReconnectInitialMS":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.reconnectInitial = uint32(v)
		}
	case "ReconnectMaxMS":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.reconnectMax = uint32(v)
		}
	}
}

func (c *Config) parseStationSection(key, value string) {
	switch key {
	case "Callsign":
		c.callsign = strings.ToUpper(value)
	case "FrequencyHz":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			c.frequencyHz = v
		}
	case "Mode":
		c.mode = value
	}
}

func (c *Config) parseTransmitSection(key, value string) {
	switch key {
	case "Enabled":
		c.txEnabled = c.parseBool(value)
	case "DefaultSpeed":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.txDefaultSpeed = uint32(v)
		}
	case "MinGapMS":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.txMinGap = uint32(v)
		}
	case "MinListenMS":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.txMinListen = uint32(v)
		}
	case "MaxDurationS":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.txMaxDuration = uint32(v)
		}
	case "IDIntervalMin":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.txIDInterval = uint32(v)
		}
	case "QRLWaitMS":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.txQRLWait = uint32(v)
		}
	}
}

func (c *Config) parseLogbookSection(key, value string) {
	switch key {
	case "Enabled":
		c.logbookEnabled = c.parseBool(value)
	case "Path":
		c.logbookPath = value
	}
}

func (c *Config) parseLogSection(key, value string) {
	switch key {
	case "Level":
		c.logLevel = strings.ToLower(value)
	case "File":
		c.logFile = value
	}
}

func (c *Config) parseBool(value string) bool {
	return value == "1" || strings.ToLower(value) == "true" || strings.ToLower(value) == "yes"
}

// Getter methods for Decoder section
func (c *Config) GetDecoderAddress() string { return c.decoderAddress }
func (c *Config) GetDecoderPort() uint32    { return c.decoderPort }
func (c *Config) GetDecoderTimeout() time.Duration {
	return time.Duration(c.decoderTimeout) * time.Millisecond
}

// Getter methods for Link section
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.pollInterval) * time.Millisecond
}
func (c *Config) GetSilenceTimeout() time.Duration {
	return time.Duration(c.silenceTimeout) * time.Millisecond
}
func (c *Config) GetMetadataInterval() time.Duration {
	return time.Duration(c.metadataInterval) * time.Millisecond
}
func (c *Config) GetReconnectInitial() time.Duration {
	return time.Duration(c.reconnectInitial) * time.Millisecond
}
func (c *Config) GetReconnectMax() time.Duration {
	return time.Duration(c.reconnectMax) * time.Millisecond
}

// Getter methods for Station section
func (c *Config) GetCallsign() string     { return c.callsign }
func (c *Config) GetFrequencyHz() float64 { return c.frequencyHz }
func (c *Config) GetMode() string         { return c.mode }

// Getter methods for Transmit section
func (c *Config) GetTxEnabled() bool        { return c.txEnabled }
func (c *Config) GetTxDefaultSpeed() uint32 { return c.txDefaultSpeed }
func (c *Config) GetTxMinGap() time.Duration {
	return time.Duration(c.txMinGap) * time.Millisecond
}
func (c *Config) GetTxMinListen() time.Duration {
	return time.Duration(c.txMinListen) * time.Millisecond
}
func (c *Config) GetTxMaxDuration() time.Duration {
	return time.Duration(c.txMaxDuration) * time.Second
}
func (c *Config) GetTxIDInterval() time.Duration {
	return time.Duration(c.txIDInterval) * time.Minute
}
func (c *Config) GetTxQRLWait() time.Duration {
	return time.Duration(c.txQRLWait) * time.Millisecond
}

// Getter methods for Logbook section
func (c *Config) GetLogbookEnabled() bool { return c.logbookEnabled }
func (c *Config) GetLogbookPath() string  { return c.logbookPath }

// Getter methods for Log section
func (c *Config) GetLogLevel() string { return c.logLevel }
func (c *Config) GetLogFile() string  { return c.logFile }
