package services

import (
	"context"
	"expiry-monitor/internal/metrics"
	"expiry-monitor/internal/models"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Prober produces an expiry result for a domain; failures come back as an
// absent result, never as a panic or error
type Prober interface {
	Probe(ctx context.Context, domain string) models.ExpiryResult
}

// MonitorService builds the expiry digest and hands it to the notifier
type MonitorService struct {
	registration Prober
	certificate  Prober
	notifier     Notifier
	metrics      *metrics.Collector
	alertDays    int
	logger       *zap.Logger
	now          func() time.Time

	last atomic.Pointer[models.Report]
}

// NewMonitorService creates a new monitoring service. notifier may be nil
// for report-only use.
func NewMonitorService(registration, certificate Prober, notifier Notifier, collector *metrics.Collector, alertDays int, logger *zap.Logger) *MonitorService {
	return &MonitorService{
		registration: registration,
		certificate:  certificate,
		notifier:     notifier,
		metrics:      collector,
		alertDays:    alertDays,
		logger:       logger,
		now:          time.Now,
	}
}

// AlertDays returns the threshold used to flag items in the digest
func (s *MonitorService) AlertDays() int {
	return s.alertDays
}

// BuildReport probes every non-blank domain in order. It returns
// ErrNoDomainsConfigured when nothing is left to check.
func (s *MonitorService) BuildReport(ctx context.Context, domains []string) (*models.Report, error) {
	report := &models.Report{
		ID:        uuid.NewString(),
		CheckedAt: s.now(),
	}

	for _, domain := range domains {
		domain = strings.TrimSpace(domain)
		if domain == "" {
			continue
		}

		s.logger.Info("Checking domain", zap.String("domain", domain), zap.String("cycle_id", report.ID))
		d := models.DomainReport{
			Domain:       domain,
			Registration: s.registration.Probe(ctx, domain),
			Certificate:  s.certificate.Probe(ctx, domain),
		}
		s.metrics.ObserveDomain(d)
		report.Domains = append(report.Domains, d)
	}

	if len(report.Domains) == 0 {
		return nil, ErrNoDomainsConfigured
	}
	return report, nil
}

// RunCycle builds the digest and sends it to all recipients. Delivery
// failures are logged only; the cycle itself fails just when there is
// nothing to report.
func (s *MonitorService) RunCycle(ctx context.Context, domains []string) (*models.Report, error) {
	start := s.now()
	s.logger.Info("Starting domain check cycle", zap.Int("configured", len(domains)))

	report, err := s.BuildReport(ctx, domains)
	if err != nil {
		s.metrics.ObserveCycle("skipped")
		s.logger.Error("Domain check cycle skipped", zap.Error(err))
		return nil, err
	}
	s.last.Store(report)

	message := report.Render(s.alertDays)
	delivered, failed := 0, 0
	if s.notifier != nil {
		for _, d := range s.notifier.Send(ctx, message) {
			s.metrics.ObserveDelivery(d)
			if d.OK() {
				delivered++
			} else {
				failed++
			}
		}
	}

	s.metrics.ObserveCycle("completed")
	s.logger.Info("Domain check cycle completed",
		zap.String("cycle_id", report.ID),
		zap.Int("domains", len(report.Domains)),
		zap.Int("expiring", report.Expiring(s.alertDays)),
		zap.Int("delivered", delivered),
		zap.Int("failed", failed),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return report, nil
}

// LastReport returns the most recent report built by RunCycle, or nil
func (s *MonitorService) LastReport() *models.Report {
	return s.last.Load()
}
