package models

import (
	"fmt"
	"strings"
)

// FetchFailed marks a probe that produced no value
const FetchFailed = "fetch failed"

// Render formats the report as the digest text sent to recipients. Items at
// or below threshold days are flagged.
func (r *Report) Render(threshold int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🔔 Domain expiry report (%s)\n", r.CheckedAt.Format("2006-01-02 15:04"))

	for _, d := range r.Domains {
		fmt.Fprintf(&b, "\n%s\n", d.Domain)
		fmt.Fprintf(&b, "  Registration: %s\n", renderResult(d.Registration, threshold))
		fmt.Fprintf(&b, "  Certificate: %s\n", renderResult(d.Certificate, threshold))
	}

	return b.String()
}

// Expiring returns the number of items at or below threshold days
func (r *Report) Expiring(threshold int) int {
	count := 0
	for _, d := range r.Domains {
		for _, res := range []ExpiryResult{d.Registration, d.Certificate} {
			if days, ok := res.Days(); ok && days <= threshold {
				count++
			}
		}
	}
	return count
}

func renderResult(res ExpiryResult, threshold int) string {
	days, ok := res.Days()
	if !ok {
		return FetchFailed
	}

	var status string
	switch {
	case days < 0:
		status = " 🔴 expired"
	case days <= threshold:
		status = " ⚠️"
	}

	return fmt.Sprintf("%d days%s", days, status)
}
