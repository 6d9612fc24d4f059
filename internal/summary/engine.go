package summary

import (
	"fmt"
	"sort"
	"sync"

	"github.com/visionzero/backend/internal/domain"
)

// StatsPolicy decides what happens to the running stats between SummarizeNested calls
type StatsPolicy string

const (
	// StatsReset starts every SummarizeNested call from fresh stats
	StatsReset StatsPolicy = "reset"
	// StatsAccumulate keeps widening min/max across calls
	StatsAccumulate StatsPolicy = "accumulate"
)

// ParseStatsPolicy parses a policy name, defaulting to StatsReset
func ParseStatsPolicy(s string) (StatsPolicy, error) {
	switch StatsPolicy(s) {
	case "", StatsReset:
		return StatsReset, nil
	case StatsAccumulate:
		return StatsAccumulate, nil
	}
	return "", fmt.Errorf("summary: unknown stats policy %q", s)
}

// Engine aggregates incidents into yearly totals and nested year/month/hour breakdowns.
// Results replace the previous ones on every call; readers get copies of the slices' headers
// and must not modify them.
type Engine struct {
	policy StatsPolicy

	mu     sync.RWMutex
	yearly []domain.YearlySummary
	years  []int
	nested map[domain.ModeType]*domain.NestedSummary
	stats  domain.AllStats
}

// NewEngine creates an engine with the given stats policy
func NewEngine(policy StatsPolicy) *Engine {
	if policy == "" {
		policy = StatsReset
	}
	return &Engine{
		policy: policy,
		nested: make(map[domain.ModeType]*domain.NestedSummary),
		stats:  domain.NewAllStats(),
	}
}

// Policy returns the engine's stats policy
func (e *Engine) Policy() StatsPolicy {
	return e.policy
}

// Summarize counts incidents per year and mode type
func (e *Engine) Summarize(incidents []domain.Incident) ([]domain.YearlySummary, []int) {
	yearly, years := Yearly(incidents)

	e.mu.Lock()
	e.yearly = yearly
	e.years = years
	e.mu.Unlock()

	return yearly, years
}

// Yearly is the pure form of Summarize
func Yearly(incidents []domain.Incident) ([]domain.YearlySummary, []int) {
	byYear := make(map[int]*domain.YearlySummary)
	for _, d := range incidents {
		s, ok := byYear[d.Year]
		if !ok {
			s = &domain.YearlySummary{Year: d.Year, Name: d.Year}
			byYear[d.Year] = s
		}
		s.Add(d.ModeType)
	}

	years := sortedKeys(byYear)
	yearly := make([]domain.YearlySummary, 0, len(years))
	for _, y := range years {
		yearly = append(yearly, *byYear[y])
	}
	return yearly, years
}

// SummarizeNested builds the nested summary for "*" and then for every concrete mode
func (e *Engine) SummarizeNested(incidents []domain.Incident) map[domain.ModeType]*domain.NestedSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.policy == StatsReset {
		e.stats = domain.NewAllStats()
	}

	filters := append([]domain.ModeType{domain.ModeAll}, domain.Modes...)
	out := make(map[domain.ModeType]*domain.NestedSummary, len(filters))
	for _, f := range filters {
		out[f] = nest(incidents, f, &e.stats)
	}
	e.nested = out

	return out
}

// Yearly returns the last Summarize result
func (e *Engine) Yearly() ([]domain.YearlySummary, []int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.yearly, e.years
}

// Nested returns the last nested summary for mode, or nil before the first SummarizeNested
func (e *Engine) Nested(mode domain.ModeType) *domain.NestedSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nested[mode]
}

// Stats returns the running stats
func (e *Engine) Stats() domain.AllStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// nest groups the incidents passing filter by year, month and hour and flattens the roll-ups
func nest(incidents []domain.Incident, filter domain.ModeType, stats *domain.AllStats) *domain.NestedSummary {
	filtered := make([]domain.Incident, 0, len(incidents))
	for _, d := range incidents {
		if !filter.Matches(d.ModeType) {
			continue
		}
		// roll-ups are indexed by hour and month
		if d.Hour < 0 || d.Hour >= HoursPerDay || d.Month < 1 || d.Month > MonthsPerYear {
			continue
		}
		filtered = append(filtered, d)
	}

	type monthKey struct{ year, month int }
	type hourKey struct{ year, month, hour int }
	hours := make(map[hourKey][]domain.Incident)
	monthsOf := make(map[int]map[int]struct{})
	hoursOf := make(map[monthKey]map[int]struct{})
	for _, d := range filtered {
		hk := hourKey{d.Year, d.Month, d.Hour}
		hours[hk] = append(hours[hk], d)
		if monthsOf[d.Year] == nil {
			monthsOf[d.Year] = make(map[int]struct{})
		}
		monthsOf[d.Year][d.Month] = struct{}{}
		mk := monthKey{d.Year, d.Month}
		if hoursOf[mk] == nil {
			hoursOf[mk] = make(map[int]struct{})
		}
		hoursOf[mk][d.Hour] = struct{}{}
	}

	years := sortedKeys(monthsOf)
	groups := make([]domain.YearGroup, 0, len(years))
	for _, y := range years {
		yg := domain.YearGroup{Key: y}
		for _, m := range sortedKeys(monthsOf[y]) {
			mg := domain.MonthGroup{Key: m}
			for _, h := range sortedKeys(hoursOf[monthKey{y, m}]) {
				leaf := hours[hourKey{y, m, h}]
				stats.Hour.Observe(len(leaf))
				mg.Hours = append(mg.Hours, domain.HourGroup{Key: h, Total: len(leaf), Incidents: leaf})
				mg.Total += len(leaf)
			}
			stats.Month.Observe(mg.Total)
			yg.Months = append(yg.Months, mg)
			yg.Total += mg.Total
		}
		stats.Year.Observe(yg.Total)
		groups = append(groups, yg)
	}

	hourly := make([]domain.TotalStats, HoursPerDay)
	for i := range hourly {
		h := i
		hourly[i] = domain.TotalStats{
			Key:   HourLabel(i),
			Hour:  &h,
			Class: fmt.Sprintf("hour-total hour-%d", i),
		}
	}

	monthly := make([]domain.TotalStats, 0, len(groups)*MonthsPerYear)
	for _, yg := range groups {
		for i := 0; i < MonthsPerYear; i++ {
			monthly = append(monthly, domain.TotalStats{
				Year:  yg.Key,
				Month: i + 1,
				Key:   fmt.Sprintf("%s %d", MonthName(i+1), yg.Key),
				Class: fmt.Sprintf("month-total month-%d year-%d", i+1, yg.Key),
			})
		}
	}

	yearly := make([]domain.TotalStats, 0, len(groups))
	for y, yg := range groups {
		for _, mg := range yg.Months {
			for _, hg := range mg.Hours {
				hourly[hg.Key].Total += hg.Total
			}
			monthly[y*MonthsPerYear+mg.Key-1].Total = mg.Total
		}
		yearly = append(yearly, domain.TotalStats{
			Year:  yg.Key,
			Key:   fmt.Sprintf("%d", yg.Key),
			Class: fmt.Sprintf("year-total year-%d", yg.Key),
			Total: yg.Total,
		})
	}

	return &domain.NestedSummary{
		Mode:      filter,
		Incidents: filtered,
		Summary:   groups,
		Hourly:    hourly,
		Monthly:   monthly,
		Yearly:    yearly,
	}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
