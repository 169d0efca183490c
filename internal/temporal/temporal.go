// Package temporal detects time-sensitive queries and builds the
// current-date/quarter/fiscal-window context injected into the
// Generator stage (spec.md §4.2).
package temporal

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// timeSensitiveTokens is the closed token set spec.md §4.2 names.
var timeSensitiveTokens = []string{
	"latest", "recent", "current", "today", "now", "this week", "this month",
	"this year", "search", "news", "price", "release", "announced",
}

var isoDateRE = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

var tokenWordBoundaryRE = func() *regexp.Regexp {
	parts := make([]string, len(timeSensitiveTokens))
	for i, t := range timeSensitiveTokens {
		parts[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(parts, "|") + `)\b`)
}()

// Provider builds TemporalContext and classifies queries as
// time-sensitive or not. Clock is overridable for deterministic tests.
type Provider struct {
	Clock func() time.Time
	// FiscalPeriod maps a UTC time to a fiscal-period label; defaults to
	// the calendar quarter (spec.md §4.2 "configurable; default = calendar quarter").
	FiscalPeriod func(time.Time) string
}

func NewProvider() *Provider {
	return &Provider{
		Clock:        time.Now,
		FiscalPeriod: calendarQuarter,
	}
}

func calendarQuarter(t time.Time) string {
	return quarterLabel(t)
}

func quarterLabel(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("Q%d %d", q, t.Year())
}

// RequiresTemporalContext reports whether query mentions a
// time-sensitive token (word-boundary, case-insensitive) or an ISO date
// within ±2 years of the provider's clock.
func (p *Provider) RequiresTemporalContext(query string) bool {
	if tokenWordBoundaryRE.MatchString(query) {
		return true
	}

	now := p.now()
	for _, m := range isoDateRE.FindAllString(query, -1) {
		t, err := time.Parse("2006-01-02", m)
		if err != nil {
			continue
		}
		diff := t.Sub(now)
		if diff < 0 {
			diff = -diff
		}
		if diff <= 2*365*24*time.Hour {
			return true
		}
	}
	return false
}

func (p *Provider) now() time.Time {
	if p.Clock != nil {
		if t := p.Clock(); !t.IsZero() {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// Context is the built TemporalContext. Named to avoid colliding with
// domain.TemporalContext's package-qualified use at call sites; callers
// typically convert directly into domain.TemporalContext.
type Context struct {
	CurrentDate           string
	CurrentDateTime       string
	Quarter               string
	FiscalPeriod          string
	SearchInstruction     string
	TemporalAwarenessText string
}

// BuildCurrentContext is infallible: if the clock is somehow unusable it
// still returns a conservative, never-nil context (spec.md §4.2).
func (p *Provider) BuildCurrentContext() Context {
	now := p.now()
	if now.IsZero() {
		return epochZeroContext()
	}

	fiscal := quarterLabel(now)
	if p.FiscalPeriod != nil {
		fiscal = p.FiscalPeriod(now)
	}

	return Context{
		CurrentDate:     now.Format("2006-01-02"),
		CurrentDateTime: now.Format(time.RFC3339),
		Quarter:         quarterLabel(now),
		FiscalPeriod:    fiscal,
		SearchInstruction: fmt.Sprintf(
			"If this question depends on information that may have changed since training, "+
				"search for up-to-date sources and prefer results dated on or after %s.",
			now.Format("2006-01-02"),
		),
		TemporalAwarenessText: fmt.Sprintf(
			"Current date: %s\nCurrent quarter: %s\nFiscal period: %s\n"+
				"Treat any cached knowledge of \"latest\" or \"current\" facts as potentially stale.",
			now.Format("2006-01-02"), quarterLabel(now), fiscal,
		),
	}
}

func epochZeroContext() Context {
	epoch := time.Unix(0, 0).UTC()
	return Context{
		CurrentDate:           epoch.Format("2006-01-02"),
		CurrentDateTime:       epoch.Format(time.RFC3339),
		Quarter:               quarterLabel(epoch),
		FiscalPeriod:          quarterLabel(epoch),
		SearchInstruction:     "temporal context unavailable",
		TemporalAwarenessText: "temporal context unavailable",
	}
}
