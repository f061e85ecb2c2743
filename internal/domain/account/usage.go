package account

import (
	"time"

	"github.com/google/uuid"
)

// UsageWindowDays is the length of the usage reporting window
const UsageWindowDays = 30

// UsageCacheTTL is how long a computed usage report stays fresh
const UsageCacheTTL = 5 * time.Minute

// UsageSeries is the daily call counts for a single token across the
// reporting window. Counts align index-for-index with UsageReport.Days.
type UsageSeries struct {
	TokenID   uuid.UUID `json:"token_id"`
	TokenName string    `json:"token_name"`
	Counts    []int64   `json:"counts"`
	Total     int64     `json:"total"`
}

// UsageReport is the aggregated API usage for an account over the
// reporting window. Every day in the window is present even when no
// calls were recorded. Total is the per-day sum across application
// tokens only; the development token is reported separately and
// excluded from it.
type UsageReport struct {
	Since       time.Time     `json:"since"`
	Days        []time.Time   `json:"days"`
	Tokens      []UsageSeries `json:"tokens"`
	Development *UsageSeries  `json:"development,omitempty"`
	Total       []int64       `json:"total"`
}

// UsageWindowStart returns the UTC start of the reporting window ending now
func UsageWindowStart(now time.Time) time.Time {
	return dateOnly(now.UTC()).AddDate(0, 0, -(UsageWindowDays - 1))
}

// BuildUsageReport assembles a zero-filled usage report from raw daily
// counts keyed by day then token ID. Days outside the window are ignored.
func BuildUsageReport(tokens TokenSet, counts map[time.Time]map[uuid.UUID]int64, since time.Time, days int) *UsageReport {
	since = dateOnly(since.UTC())

	report := &UsageReport{
		Since: since,
		Days:  make([]time.Time, days),
		Total: make([]int64, days),
	}
	for i := 0; i < days; i++ {
		report.Days[i] = since.AddDate(0, 0, i)
	}

	for i := range tokens {
		token := &tokens[i]
		series := UsageSeries{
			TokenID:   token.ID,
			TokenName: token.Name,
			Counts:    make([]int64, days),
		}

		for j, day := range report.Days {
			if byToken, ok := counts[day]; ok {
				series.Counts[j] = byToken[token.ID]
				series.Total += byToken[token.ID]
			}
		}

		if token.IsDevelopment() {
			dev := series
			report.Development = &dev
			continue
		}

		report.Tokens = append(report.Tokens, series)
		for j, c := range series.Counts {
			report.Total[j] += c
		}
	}

	return report
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// UsageCache is a computed usage report with its freshness conditions.
// A cached report is served only while it has not expired and the
// account's token count is unchanged since it was built.
type UsageCache struct {
	Report     *UsageReport
	TokenCount int
	ExpiresAt  time.Time
}

// NewUsageCache caches a report for the standard TTL
func NewUsageCache(report *UsageReport, tokenCount int, now time.Time) *UsageCache {
	return &UsageCache{
		Report:     report,
		TokenCount: tokenCount,
		ExpiresAt:  now.Add(UsageCacheTTL),
	}
}

// Valid reports whether the cached report may still be served
func (c *UsageCache) Valid(now time.Time, tokenCount int) bool {
	if c == nil || c.Report == nil {
		return false
	}
	if tokenCount != c.TokenCount {
		return false
	}
	return now.Before(c.ExpiresAt)
}
