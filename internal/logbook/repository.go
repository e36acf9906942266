package logbook

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Repository provides database operations for the contact and
// transmission logs
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository instance
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogContact appends one received utterance to the contact log
func (r *Repository) LogContact(contact *Contact) error {
	if contact == nil {
		return fmt.Errorf("contact cannot be nil")
	}
	if contact.Text == "" {
		return fmt.Errorf("contact text cannot be empty")
	}

	contact.SanitizePeer()
	if contact.Timestamp.IsZero() {
		contact.Timestamp = time.Now()
	}

	return r.db.Create(contact).Error
}

// LogTransmission appends one outbound transmission audit record
func (r *Repository) LogTransmission(tx *Transmission) error {
	if tx == nil {
		return fmt.Errorf("transmission cannot be nil")
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now()
	}

	return r.db.Create(tx).Error
}

// RecentContacts returns the most recent contacts, newest first
func (r *Repository) RecentContacts(limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 50
	}

	var contacts []Contact
	err := r.db.Order("timestamp DESC").Limit(limit).Find(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// ContactsWithPeer returns all logged contacts with the given callsign,
// newest first
func (r *Repository) ContactsWithPeer(callsign string) ([]Contact, error) {
	var contacts []Contact
	err := r.db.Where("peer = ?", callsign).Order("timestamp DESC").Find(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// Counts returns the number of logged contacts and transmissions
func (r *Repository) Counts() (contacts, transmissions int64, err error) {
	if err = r.db.Model(&Contact{}).Count(&contacts).Error; err != nil {
		return 0, 0, err
	}
	if err = r.db.Model(&Transmission{}).Count(&transmissions).Error; err != nil {
		return 0, 0, err
	}
	return contacts, transmissions, nil
}
