package domain

import (
	"encoding/json"
	"math"
)

// YearlySummary counts incidents of one year per mode type
type YearlySummary struct {
	Year  int `json:"year"`
	Name  int `json:"name"`
	Total int `json:"total"`
	MV    int `json:"mv"`
	Ped   int `json:"ped"`
	Bike  int `json:"bike"`
}

// Add counts one incident of mode m
func (s *YearlySummary) Add(m ModeType) {
	switch m {
	case ModeMotorVehicle:
		s.MV++
	case ModePedestrian:
		s.Ped++
	case ModeBike:
		s.Bike++
	}
	s.Total++
}

// TotalStats is one row of a flattened roll-up table
type TotalStats struct {
	Year  int    `json:"year,omitempty"`
	Month int    `json:"month,omitempty"`
	Hour  *int   `json:"hour,omitempty"`
	Key   string `json:"key"`
	Class string `json:"class"`
	Total int    `json:"total"`
}

// HourGroup is the leaf level of a nested summary
type HourGroup struct {
	Key       int        `json:"key"`
	Total     int        `json:"total"`
	Incidents []Incident `json:"values,omitempty"`
}

// MonthGroup groups the hours of one month
type MonthGroup struct {
	Key   int         `json:"key"`
	Total int         `json:"total"`
	Hours []HourGroup `json:"values"`
}

// YearGroup groups the months of one year
type YearGroup struct {
	Key    int          `json:"key"`
	Total  int          `json:"total"`
	Months []MonthGroup `json:"values"`
}

// NestedSummary is the year -> month -> hour breakdown for one mode filter
type NestedSummary struct {
	Mode      ModeType     `json:"mode"`
	Incidents []Incident   `json:"incidents,omitempty"`
	Summary   []YearGroup  `json:"summary"`
	Hourly    []TotalStats `json:"hourly"`
	Monthly   []TotalStats `json:"monthly"`
	Yearly    []TotalStats `json:"yearly"`
}

// Stats tracks the range of group totals seen at one aggregation level
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Totals int     `json:"totals"`
}

// NewStats returns stats seeded so the first observation sets both bounds
func NewStats() Stats {
	return Stats{Min: math.Inf(1), Max: math.Inf(-1)}
}

// Observe widens the range to include total
func (s *Stats) Observe(total int) {
	t := float64(total)
	s.Min = math.Min(s.Min, t)
	s.Max = math.Max(s.Max, t)
	s.Totals += total
}

// Empty reports whether nothing was observed yet
func (s Stats) Empty() bool {
	return math.IsInf(s.Min, 1)
}

// MarshalJSON writes unobserved bounds as null
func (s Stats) MarshalJSON() ([]byte, error) {
	type bounds struct {
		Min    *float64 `json:"min"`
		Max    *float64 `json:"max"`
		Totals int      `json:"totals"`
	}
	out := bounds{Totals: s.Totals}
	if !s.Empty() {
		out.Min, out.Max = &s.Min, &s.Max
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null bounds back as unobserved
func (s *Stats) UnmarshalJSON(b []byte) error {
	var in struct {
		Min    *float64 `json:"min"`
		Max    *float64 `json:"max"`
		Totals int      `json:"totals"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = NewStats()
	s.Totals = in.Totals
	if in.Min != nil && in.Max != nil {
		s.Min, s.Max = *in.Min, *in.Max
	}
	return nil
}

// AllStats holds stats for every aggregation level
type AllStats struct {
	Year  Stats `json:"year"`
	Month Stats `json:"month"`
	Hour  Stats `json:"hour"`
}

// NewAllStats returns freshly seeded stats for every level
func NewAllStats() AllStats {
	return AllStats{Year: NewStats(), Month: NewStats(), Hour: NewStats()}
}
