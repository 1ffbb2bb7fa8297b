package services

import (
	"errors"
	"fmt"
)

// ErrNoDomainsConfigured aborts a cycle before anything is sent
var ErrNoDomainsConfigured = errors.New("no domains configured")

// Probe names
const (
	ProbeRegistration = "registration"
	ProbeCertificate  = "certificate"
)

// ProbeError describes why a probe produced no expiry date
type ProbeError struct {
	Probe  string
	Domain string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s probe for %s: %v", e.Probe, e.Domain, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// DeliveryError describes a failed send to one recipient
type DeliveryError struct {
	Recipient  string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deliver to %s: %v", e.Recipient, e.Err)
	}
	return fmt.Sprintf("deliver to %s: messaging API returned status %d", e.Recipient, e.StatusCode)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
