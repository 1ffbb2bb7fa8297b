package services

import (
	"context"
	"errors"
	"expiry-monitor/internal/models"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"go.uber.org/zap"
)

// Lookup fetches raw registration data for a domain
type Lookup func(ctx context.Context, domain string) (string, error)

// WhoisService handles WHOIS queries
type WhoisService struct {
	Timeout time.Duration

	lookup Lookup
	logger *zap.Logger
	now    func() time.Time
}

// NewWhoisService creates a new WHOIS service
func NewWhoisService(timeout time.Duration, logger *zap.Logger) *WhoisService {
	client := whois.NewClient().SetTimeout(timeout)

	return &WhoisService{
		Timeout: timeout,
		lookup: func(_ context.Context, domain string) (string, error) {
			return client.Whois(domain)
		},
		logger: logger,
		now:    time.Now,
	}
}

// Probe looks up domain and returns the days left on its registration.
// Failures are logged and returned as an absent result.
func (s *WhoisService) Probe(ctx context.Context, domain string) models.ExpiryResult {
	expiry, err := s.QueryExpiry(ctx, domain)
	if err != nil {
		perr := &ProbeError{Probe: ProbeRegistration, Domain: domain, Err: err}
		s.logger.Error("Registration probe failed", zap.String("domain", domain), zap.Error(err))
		return models.Failed(perr)
	}

	days := DaysRemaining(expiry, s.now())
	s.logger.Info("Registration checked",
		zap.String("domain", domain),
		zap.Time("expiry_date", expiry),
		zap.Int("days_remaining", days),
	)
	return models.Days(days, expiry)
}

// QueryExpiry returns the registration expiry date of domain
func (s *WhoisService) QueryExpiry(ctx context.Context, domain string) (time.Time, error) {
	raw, err := s.query(ctx, domain)
	if err != nil {
		return time.Time{}, err
	}

	expiry, ok := ExtractExpiry(raw)
	if !ok {
		return time.Time{}, errors.New("no expiration date in WHOIS response")
	}
	return expiry, nil
}

// query runs the lookup under a deadline; the whois client has its own
// timeout but the call site bounds it too.
func (s *WhoisService) query(ctx context.Context, domain string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	type result struct {
		raw string
		err error
	}
	done := make(chan result, 1)

	go func() {
		raw, err := s.lookup(ctx, domain)
		done <- result{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("whois lookup timed out: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("whois lookup failed: %w", r.err)
		}
		return r.raw, nil
	}
}

// expiryPrefixes are the line labels registries use for the expiration date
var expiryPrefixes = []string{
	"registry expiry date:",
	"registrar registration expiration date:",
	"expiration date:",
	"expiration time:",
	"expiry date:",
	"expires on:",
	"expires:",
	"expire:",
	"paid-till:",
	"renewal date:",
}

var whoisDateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"02-Jan-2006 15:04:05",
	"2006.01.02 15:04:05",
	"2006.01.02",
	"2006/01/02",
	"02.01.2006",
	"January 2 2006",
}

// ExtractExpiry finds the expiration date in a raw WHOIS response. Some
// registries report more than one; the earliest wins.
func ExtractExpiry(raw string) (time.Time, bool) {
	var candidates []time.Time

	if info, err := whoisparser.Parse(raw); err == nil && info.Domain != nil && info.Domain.ExpirationDate != "" {
		if t, err := parseWhoisDate(info.Domain.ExpirationDate); err == nil {
			candidates = append(candidates, t)
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		for _, prefix := range expiryPrefixes {
			if !strings.HasPrefix(lower, prefix) {
				continue
			}
			if t, err := parseWhoisDate(line[len(prefix):]); err == nil {
				candidates = append(candidates, t)
			}
			break
		}
	}

	if len(candidates) == 0 {
		return time.Time{}, false
	}

	earliest := candidates[0]
	for _, t := range candidates[1:] {
		if t.Before(earliest) {
			earliest = t
		}
	}
	return earliest, true
}

// parseWhoisDate tries to parse various date formats
func parseWhoisDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	// Some registries append a comment, e.g. "2025-01-01 (YYYY-MM-DD)"
	if i := strings.Index(dateStr, " ("); i > 0 {
		dateStr = dateStr[:i]
	}

	for _, format := range whoisDateFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
