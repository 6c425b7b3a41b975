package notify

import (
	"fmt"
	"strings"
	"time"
)

// ExpiryEntry is one line of the expiry section of a summary
type ExpiryEntry struct {
	Name       string
	Quantity   int
	ExpiryDate time.Time
	DaysLeft   int
	Band       string // "expired", "critical" or "warning"
}

// LowStockEntry is one line of the low-stock section of a summary
type LowStockEntry struct {
	Name     string
	Quantity int
	MinStock int
}

// Expiry bands used for message wording only; expiring and expired items
// materialize as distinct alert conditions regardless of band.
const (
	BandExpired  = "expired"
	BandCritical = "critical"
	BandWarning  = "warning"
)

// SummaryTitle is the title used for sweep notifications
const SummaryTitle = "Medicine Inventory Alerts"

// BuildSummary formats a single human-readable markdown summary covering the
// expiry and low-stock sections. Either slice may be empty.
func BuildSummary(expiry []ExpiryEntry, lowStock []LowStockEntry) string {
	var sections []string

	if len(expiry) > 0 {
		sections = append(sections, formatExpirySection(expiry))
	}
	if len(lowStock) > 0 {
		sections = append(sections, formatLowStockSection(lowStock))
	}

	return strings.Join(sections, "\n\n")
}

func formatExpirySection(entries []ExpiryEntry) string {
	var b strings.Builder
	b.WriteString("### Expiry Alerts\n\n")

	for i, e := range entries {
		var status string
		switch e.Band {
		case BandExpired:
			status = "EXPIRED"
		case BandCritical:
			status = fmt.Sprintf("expires in %d days (critical)", e.DaysLeft)
		default:
			status = fmt.Sprintf("expires in %d days", e.DaysLeft)
		}

		fmt.Fprintf(&b, "%d. **%s**\n", i+1, e.Name)
		fmt.Fprintf(&b, "   - Status: %s\n", status)
		fmt.Fprintf(&b, "   - Stock: %d\n", e.Quantity)
		fmt.Fprintf(&b, "   - Expiry date: %s\n\n", e.ExpiryDate.Format("2006-01-02"))
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatLowStockSection(entries []LowStockEntry) string {
	var b strings.Builder
	b.WriteString("### Low Stock Alerts\n\n")

	for i, e := range entries {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, e.Name)
		fmt.Fprintf(&b, "   - Current stock: %d\n", e.Quantity)
		fmt.Fprintf(&b, "   - Minimum stock: %d\n", e.MinStock)
		fmt.Fprintf(&b, "   - Shortfall: %d\n\n", e.MinStock-e.Quantity)
	}

	return strings.TrimRight(b.String(), "\n")
}
