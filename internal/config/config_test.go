package config

import (
	"os"
	"testing"
	"time"
)

func TestConfig_LoadFromFile(t *testing.T) {
	// Create a temporary config file for testing
	testConfig := `[Decoder]
Address=192.168.1.50
Port=7363
TimeoutMS=2500

[Link]
PollIntervalMS=100
SilenceTimeoutMS=4000
MetadataIntervalMS=500
ReconnectInitialMS=2000
ReconnectMaxMS=60000

[Station]
Callsign=pa3xyz
FrequencyHz=7030000
Mode=CW

[Transmit]
Enabled=1
DefaultSpeed=22
MinGapMS=750
MinListenMS=15000
MaxDurationS=90
IDIntervalMin=5
QRLWaitMS=4000

[Logbook]
Enabled=1
Path=/var/lib/cwlink/log.db

[Log]
Level=DEBUG
File=/var/log/cwlink.log`

	// Create temporary file
	tmpfile, err := os.CreateTemp("", "test_config_*.ini")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(testConfig)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}

	// Test loading the config
	config := NewConfig(tmpfile.Name())
	err = config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Test Decoder section
	if config.GetDecoderAddress() != "192.168.1.50" {
		t.Errorf("GetDecoderAddress() = %q, want %q", config.GetDecoderAddress(), "192.168.1.50")
	}
	if config.GetDecoderPort() != 7363 {
		t.Errorf("GetDecoderPort() = %d, want 7363", config.GetDecoderPort())
	}
	if config.GetDecoderTimeout() != 2500*time.Millisecond {
		t.Errorf("GetDecoderTimeout() = %v, want 2.5s", config.GetDecoderTimeout())
	}

	// Test Link section
	if config.GetPollInterval() != 100*time.Millisecond {
		t.Errorf("GetPollInterval() = %v, want 100ms", config.GetPollInterval())
	}
	if config.GetSilenceTimeout() != 4*time.Second {
		t.Errorf("GetSilenceTimeout() = %v, want 4s", config.GetSilenceTimeout())
	}
	if config.GetMetadataInterval() != 500*time.Millisecond {
		t.Errorf("GetMetadataInterval() = %v, want 500ms", config.GetMetadataInterval())
	}
	if config.GetReconnectInitial() != 2*time.Second {
		t.Errorf("GetReconnectInitial() = %v, want 2s", config.GetReconnectInitial())
	}
	if config.GetReconnectMax() != 60*time.Second {
		t.Errorf("GetReconnectMax() = %v, want 60s", config.GetReconnectMax())
	}

	// Test Station section; callsigns are uppercased on load
	if config.GetCallsign() != "PA3XYZ" {
		t.Errorf("GetCallsign() = %q, want %q", config.GetCallsign(), "PA3XYZ")
	}
	if config.GetFrequencyHz() != 7030000 {
		t.Errorf("GetFrequencyHz() = %f, want 7030000", config.GetFrequencyHz())
	}
	if config.GetMode() != "CW" {
		t.Errorf("GetMode() = %q, want %q", config.GetMode(), "CW")
	}

	// Test Transmit section
	if !config.GetTxEnabled() {
		t.Error("GetTxEnabled() = false, want true")
	}
	if config.GetTxDefaultSpeed() != 22 {
		t.Errorf("GetTxDefaultSpeed() = %d, want 22", config.GetTxDefaultSpeed())
	}
	if config.GetTxMinGap() != 750*time.Millisecond {
		t.Errorf("GetTxMinGap() = %v, want 750ms", config.GetTxMinGap())
	}
	if config.GetTxMinListen() != 15*time.Second {
		t.Errorf("GetTxMinListen() = %v, want 15s", config.GetTxMinListen())
	}
	if config.GetTxMaxDuration() != 90*time.Second {
		t.Errorf("GetTxMaxDuration() = %v, want 90s", config.GetTxMaxDuration())
	}
	if config.GetTxIDInterval() != 5*time.Minute {
		t.Errorf("GetTxIDInterval() = %v, want 5m", config.GetTxIDInterval())
	}
	if config.GetTxQRLWait() != 4*time.Second {
		t.Errorf("GetTxQRLWait() = %v, want 4s", config.GetTxQRLWait())
	}

	// Test Logbook section
	if !config.GetLogbookEnabled() {
		t.Error("GetLogbookEnabled() = false, want true")
	}
	if config.GetLogbookPath() != "/var/lib/cwlink/log.db" {
		t.Errorf("GetLogbookPath() = %q, want %q", config.GetLogbookPath(), "/var/lib/cwlink/log.db")
	}

	// Test Log section; levels are lowercased on load
	if config.GetLogLevel() != "debug" {
		t.Errorf("GetLogLevel() = %q, want %q", config.GetLogLevel(), "debug")
	}
	if config.GetLogFile() != "/var/log/cwlink.log" {
		t.Errorf("GetLogFile() = %q, want %q", config.GetLogFile(), "/var/log/cwlink.log")
	}
}

func TestConfig_LoadFromString(t *testing.T) {
	testConfig := `[Station]
Callsign=W1AW
FrequencyHz=14060000

[Transmit]
Enabled=0
DefaultSpeed=25`

	config := NewConfig("")
	err := config.LoadFromString(testConfig)
	if err != nil {
		t.Fatalf("LoadFromString() error = %v", err)
	}

	if config.GetCallsign() != "W1AW" {
		t.Errorf("GetCallsign() = %q, want %q", config.GetCallsign(), "W1AW")
	}
	if config.GetFrequencyHz() != 14060000 {
		t.Errorf("GetFrequencyHz() = %f, want 14060000", config.GetFrequencyHz())
	}
	if config.GetTxEnabled() {
		t.Error("GetTxEnabled() = true, want false")
	}
	if config.GetTxDefaultSpeed() != 25 {
		t.Errorf("GetTxDefaultSpeed() = %d, want 25", config.GetTxDefaultSpeed())
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	config := NewConfig("")

	// Test default values
	if config.GetDecoderAddress() != "127.0.0.1" {
		t.Errorf("GetDecoderAddress() default = %q, want 127.0.0.1", config.GetDecoderAddress())
	}
	if config.GetDecoderPort() != 7362 {
		t.Errorf("GetDecoderPort() default = %d, want 7362", config.GetDecoderPort())
	}
	if config.GetPollInterval() != 250*time.Millisecond {
		t.Errorf("GetPollInterval() default = %v, want 250ms", config.GetPollInterval())
	}
	if config.GetSilenceTimeout() != 3*time.Second {
		t.Errorf("GetSilenceTimeout() default = %v, want 3s", config.GetSilenceTimeout())
	}
	if config.GetMode() != "CW" {
		t.Errorf("GetMode() default = %q, want CW", config.GetMode())
	}
	if config.GetCallsign() != "" {
		t.Errorf("GetCallsign() default = %q, want empty string", config.GetCallsign())
	}
	if config.GetTxEnabled() {
		t.Error("GetTxEnabled() default = true, want false")
	}
	if config.GetTxDefaultSpeed() != 18 {
		t.Errorf("GetTxDefaultSpeed() default = %d, want 18", config.GetTxDefaultSpeed())
	}
	if config.GetTxIDInterval() != 10*time.Minute {
		t.Errorf("GetTxIDInterval() default = %v, want 10m", config.GetTxIDInterval())
	}
	if config.GetLogbookEnabled() {
		t.Error("GetLogbookEnabled() default = true, want false")
	}
	if config.GetLogbookPath() != "data/cwlink.db" {
		t.Errorf("GetLogbookPath() default = %q, want data/cwlink.db", config.GetLogbookPath())
	}
	if config.GetLogLevel() != "info" {
		t.Errorf("GetLogLevel() default = %q, want info", config.GetLogLevel())
	}
}

func TestConfig_PartialConfigKeepsDefaults(t *testing.T) {
	config := NewConfig("")
	err := config.LoadFromString("[Station]\nCallsign=W1AW")
	if err != nil {
		t.Fatalf("LoadFromString() error = %v", err)
	}

	if config.GetCallsign() != "W1AW" {
		t.Errorf("GetCallsign() = %q, want W1AW", config.GetCallsign())
	}
	if config.GetDecoderPort() != 7362 {
		t.Errorf("GetDecoderPort() = %d, want default 7362", config.GetDecoderPort())
	}
	if config.GetSilenceTimeout() != 3*time.Second {
		t.Errorf("GetSilenceTimeout() = %v, want default 3s", config.GetSilenceTimeout())
	}
}

func TestConfig_InvalidFile(t *testing.T) {
	config := NewConfig("/nonexistent/file.ini")
	err := config.Load()
	if err == nil {
		t.Error("Load() with nonexistent file should return error")
	}
}

func TestConfig_MalformedLines(t *testing.T) {
	testConfig := `[Decoder]
Port
Port=notanumber
=7000
# Port=9999`

	config := NewConfig("")
	err := config.LoadFromString(testConfig)
	if err != nil {
		t.Fatalf("LoadFromString() error = %v", err)
	}

	// Malformed lines are skipped and the default survives
	if config.GetDecoderPort() != 7362 {
		t.Errorf("GetDecoderPort() = %d, want default 7362", config.GetDecoderPort())
	}
}

func TestConfig_BooleanValues(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   bool
	}{
		{"true with 1", "[Transmit]\nEnabled=1", true},
		{"true with true", "[Transmit]\nEnabled=true", true},
		{"true with TRUE", "[Transmit]\nEnabled=TRUE", true},
		{"true with yes", "[Transmit]\nEnabled=yes", true},
		{"false with 0", "[Transmit]\nEnabled=0", false},
		{"false with false", "[Transmit]\nEnabled=false", false},
		{"false with no", "[Transmit]\nEnabled=no", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewConfig("")
			err := config.LoadFromString(tt.config)
			if err != nil {
				t.Fatalf("LoadFromString() error = %v", err)
			}

			if got := config.GetTxEnabled(); got != tt.want {
				t.Errorf("GetTxEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_CommentedLines(t *testing.T) {
	testConfig := `[Station]
Callsign=W1AW
# This is a comment
#Mode=COMMENTED
Mode=CW
# Another comment
FrequencyHz=7030000`

	config := NewConfig("")
	err := config.LoadFromString(testConfig)
	if err != nil {
		t.Fatalf("LoadFromString() error = %v", err)
	}

	if config.GetCallsign() != "W1AW" {
		t.Errorf("GetCallsign() = %q, want %q", config.GetCallsign(), "W1AW")
	}
	if config.GetMode() != "CW" {
		t.Errorf("GetMode() = %q, want %q", config.GetMode(), "CW")
	}
	if config.GetFrequencyHz() != 7030000 {
		t.Errorf("GetFrequencyHz() = %f, want 7030000", config.GetFrequencyHz())
	}
}

func TestConfig_MissingSection(t *testing.T) {
	testConfig := `[Nonexistent Section]
SomeKey=SomeValue`

	config := NewConfig("")
	err := config.LoadFromString(testConfig)
	if err != nil {
		t.Fatalf("LoadFromString() error = %v", err)
	}

	// Should return default values for missing sections
	if config.GetCallsign() != "" {
		t.Errorf("GetCallsign() with missing section = %q, want empty string", config.GetCallsign())
	}
}

// Benchmark tests
func BenchmarkConfig_Load(b *testing.B) {
	// Create a temporary config file
	testConfig := `[Station]
Callsign=W1AW
FrequencyHz=7030000

[Transmit]
Enabled=1
DefaultSpeed=22`

	tmpfile, err := os.CreateTemp("", "bench_config_*.ini")
	if err != nil {
		b.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(testConfig)); err != nil {
		b.Fatalf("Failed to write temp file: %v", err)
	}
	if err := tmpfile.Close(); err != nil {
		b.Fatalf("Failed to close temp file: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		config := NewConfig(tmpfile.Name())
		config.Load()
	}
}

func BenchmarkConfig_GetValues(b *testing.B) {
	config := NewConfig("")
	testConfig := `[Station]
Callsign=W1AW
FrequencyHz=7030000

[Transmit]
Enabled=1`

	config.LoadFromString(testConfig)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = config.GetCallsign()
		_ = config.GetFrequencyHz()
		_ = config.GetTxEnabled()
	}
}
