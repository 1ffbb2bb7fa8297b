package metrics

import (
	"errors"
	"expiry-monitor/internal/models"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDomain(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveDomain(models.DomainReport{
		Domain:       "example.com",
		Registration: models.Days(400, time.Time{}),
		Certificate:  models.Days(30, time.Time{}),
	})

	if got := testutil.ToFloat64(c.registrationDaysLeft.WithLabelValues("example.com")); got != 400 {
		t.Fatalf("registration gauge = %v", got)
	}
	if got := testutil.ToFloat64(c.certificateDaysLeft.WithLabelValues("example.com")); got != 30 {
		t.Fatalf("certificate gauge = %v", got)
	}

	c.ObserveDomain(models.DomainReport{
		Domain:       "example.com",
		Registration: models.Days(399, time.Time{}),
		Certificate:  models.Failed(errors.New("handshake")),
	})

	if got := testutil.CollectAndCount(c.certificateDaysLeft); got != 0 {
		t.Fatalf("expected stale certificate gauge removed, got %d series", got)
	}
	if got := testutil.ToFloat64(c.probeFailures.WithLabelValues("example.com", "certificate")); got != 1 {
		t.Fatalf("failure counter = %v", got)
	}
}

func TestObserveDeliveryAndCycle(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveDelivery(models.Delivery{Recipient: "1", StatusCode: 200})
	c.ObserveDelivery(models.Delivery{Recipient: "2", StatusCode: 500, Err: errors.New("status 500")})
	c.ObserveCycle("completed")

	if got := testutil.ToFloat64(c.notifications.WithLabelValues("success")); got != 1 {
		t.Fatalf("success = %v", got)
	}
	if got := testutil.ToFloat64(c.notifications.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed = %v", got)
	}
	if got := testutil.ToFloat64(c.cycles.WithLabelValues("completed")); got != 1 {
		t.Fatalf("cycles = %v", got)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveDomain(models.DomainReport{Domain: "x"})
	c.ObserveDelivery(models.Delivery{})
	c.ObserveCycle("completed")
}
