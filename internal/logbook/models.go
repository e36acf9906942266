package logbook

import (
	"fmt"
	"strings"
	"time"
)

// Contact represents one received utterance attributed to a peer station
type Contact struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	Timestamp     time.Time `gorm:"index" json:"timestamp"`
	Peer          string    `gorm:"index;size:20" json:"peer"`
	Text          string    `json:"text"`
	FrequencyHz   float64   `json:"frequency_hz"`
	DetectedSpeed int       `json:"detected_speed"`
	SignalQuality float64   `json:"signal_quality"`
}

// TableName specifies the table name for GORM
func (Contact) TableName() string {
	return "contacts"
}

// String returns a formatted string representation
func (c Contact) String() string {
	return fmt.Sprintf("%s %s: %s", c.Timestamp.Format("2006-01-02 15:04:05"), c.Peer, c.Text)
}

// SanitizePeer cleans up the peer callsign format
func (c *Contact) SanitizePeer() {
	c.Peer = strings.ToUpper(strings.TrimSpace(c.Peer))
}

// Transmission represents one outbound transmission audit record
type Transmission struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`
	Callsign    string    `gorm:"size:20" json:"callsign"`
	Text        string    `json:"text"`
	Speed       int       `json:"speed"`
	FrequencyHz float64   `json:"frequency_hz"`
}

// TableName specifies the table name for GORM
func (Transmission) TableName() string {
	return "transmissions"
}

// String returns a formatted string representation
func (t Transmission) String() string {
	return fmt.Sprintf("%s %s @%dwpm: %s", t.Timestamp.Format("2006-01-02 15:04:05"), t.Callsign, t.Speed, t.Text)
}
