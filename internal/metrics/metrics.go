package metrics

import (
	"expiry-monitor/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes the latest cycle's results. A nil Collector is valid and
// records nothing.
type Collector struct {
	registrationDaysLeft *prometheus.GaugeVec
	certificateDaysLeft  *prometheus.GaugeVec
	probeFailures        *prometheus.CounterVec
	notifications        *prometheus.CounterVec
	cycles               *prometheus.CounterVec
}

// NewCollector registers the monitor metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		registrationDaysLeft: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "expiry_monitor_registration_days_left",
				Help: "Days until the domain registration expires",
			},
			[]string{"domain"},
		),
		certificateDaysLeft: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "expiry_monitor_certificate_days_left",
				Help: "Days until the TLS leaf certificate expires",
			},
			[]string{"domain"},
		),
		probeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expiry_monitor_probe_failures_total",
				Help: "Probes that produced no expiry date",
			},
			[]string{"domain", "probe"}, // probe: registration/certificate
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expiry_monitor_notifications_total",
				Help: "Notification deliveries by outcome",
			},
			[]string{"status"},
		),
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expiry_monitor_cycles_total",
				Help: "Check cycles by outcome",
			},
			[]string{"result"},
		),
	}
}

// ObserveDomain records both probe results of a domain
func (c *Collector) ObserveDomain(d models.DomainReport) {
	if c == nil {
		return
	}
	observe(c, d.Domain, "registration", d.Registration, c.registrationDaysLeft)
	observe(c, d.Domain, "certificate", d.Certificate, c.certificateDaysLeft)
}

func observe(c *Collector, domain, probe string, res models.ExpiryResult, gauge *prometheus.GaugeVec) {
	days, ok := res.Days()
	if !ok {
		gauge.DeleteLabelValues(domain)
		c.probeFailures.WithLabelValues(domain, probe).Inc()
		return
	}
	gauge.WithLabelValues(domain).Set(float64(days))
}

// ObserveDelivery counts one notification attempt
func (c *Collector) ObserveDelivery(d models.Delivery) {
	if c == nil {
		return
	}
	status := "success"
	if !d.OK() {
		status = "failed"
	}
	c.notifications.WithLabelValues(status).Inc()
}

// ObserveCycle counts one finished cycle
func (c *Collector) ObserveCycle(result string) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(result).Inc()
}
