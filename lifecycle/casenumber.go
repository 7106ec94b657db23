package lifecycle

import "fmt"

// DefaultCaseNumberPrefix is used when no prefix is configured
const DefaultCaseNumberPrefix = "RIT"

// CounterKey is the sequencer key case numbers for year are drawn from
func CounterKey(prefix string, year int) string {
	return fmt.Sprintf("%s-%d", prefix, year)
}

// FormatCaseNumber renders e.g. RIT-2024-000042
func FormatCaseNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}
