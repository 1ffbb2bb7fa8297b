package models

import (
	"time"
)

// ExpiryResult is the outcome of a single probe. A nil DaysRemaining means
// the probe failed; zero or negative days are valid (already expired).
type ExpiryResult struct {
	DaysRemaining *int      `json:"days_remaining"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	Err           error     `json:"-"`
}

// Days builds a successful result
func Days(days int, expiresAt time.Time) ExpiryResult {
	return ExpiryResult{DaysRemaining: &days, ExpiresAt: expiresAt}
}

// Failed builds an absent result carrying the cause
func Failed(err error) ExpiryResult {
	return ExpiryResult{Err: err}
}

// OK reports whether the probe produced a value
func (r ExpiryResult) OK() bool {
	return r.DaysRemaining != nil
}

// Days returns the remaining days and whether they are present
func (r ExpiryResult) Days() (int, bool) {
	if r.DaysRemaining == nil {
		return 0, false
	}
	return *r.DaysRemaining, true
}

// DomainReport holds both probe results for one domain
type DomainReport struct {
	Domain       string       `json:"domain"`
	Registration ExpiryResult `json:"registration"`
	Certificate  ExpiryResult `json:"certificate"`
}

// Report is one cycle's results, in configuration order
type Report struct {
	ID        string         `json:"id"`
	CheckedAt time.Time      `json:"checked_at"`
	Domains   []DomainReport `json:"domains"`
}

// Delivery is the outcome of sending a message to one recipient
type Delivery struct {
	Recipient  string `json:"recipient"`
	StatusCode int    `json:"status_code"`
	Err        error  `json:"-"`
}

// OK reports whether the messaging API accepted the message
func (d Delivery) OK() bool {
	return d.Err == nil
}

// Setting represents a configuration override row
type Setting struct {
	Key       string    `gorm:"primarykey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
