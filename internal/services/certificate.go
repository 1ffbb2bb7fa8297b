package services

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"expiry-monitor/internal/models"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)


// CertService reads TLS certificate expiry dates
type CertService struct {
	Timeout time.Duration
	Port    string
	RootCAs *x509.CertPool // nil uses the system trust store

	logger *zap.Logger
	now    func() time.Time
}

// NewCertService creates a new certificate prober
func NewCertService(timeout time.Duration, logger *zap.Logger) *CertService {
	return &CertService{
		Timeout: timeout,
		Port:    "443",
		logger:  logger,
		now:     time.Now,
	}
}

// Probe connects to domain and returns the days left on its leaf
// certificate. Failures are logged and returned as an absent result.
func (s *CertService) Probe(ctx context.Context, domain string) models.ExpiryResult {
	notAfter, err := s.fetchNotAfter(ctx, domain)
	if err != nil {
		perr := &ProbeError{Probe: ProbeCertificate, Domain: domain, Err: err}
		s.logger.Error("Certificate probe failed", zap.String("domain", domain), zap.Error(err))
		return models.Failed(perr)
	}

	days := DaysRemaining(notAfter, s.now())
	s.logger.Info("Certificate checked",
		zap.String("domain", domain),
		zap.Time("not_after", notAfter),
		zap.Int("days_remaining", days),
	)
	return models.Days(days, notAfter)
}

func (s *CertService) fetchNotAfter(ctx context.Context, domain string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: s.Timeout},
		Config: &tls.Config{
			ServerName: domain,
			MinVersion: tls.VersionTLS12,
			RootCAs:    s.RootCAs,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(domain, s.Port))
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return time.Time{}, fmt.Errorf("connection timed out: %w", err)
		}
		return time.Time{}, fmt.Errorf("TLS handshake failed: %w", err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return time.Time{}, errors.New("no certificates found")
	}

	notAfter := state.PeerCertificates[0].NotAfter
	if notAfter.IsZero() {
		return time.Time{}, errors.New("certificate has no expiry date")
	}
	return notAfter, nil
}
