package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ModeType is the category of a traffic incident
type ModeType string

const (
	ModeMotorVehicle ModeType = "mv"
	ModePedestrian   ModeType = "ped"
	ModeBike         ModeType = "bike"

	// ModeAll is the pseudo filter matching every incident
	ModeAll ModeType = "*"
)

// Modes lists the concrete mode types in dashboard column order
var Modes = []ModeType{ModeMotorVehicle, ModeBike, ModePedestrian}

// ModeTitles are the display titles used by the calendar view
var ModeTitles = map[ModeType]string{
	ModeMotorVehicle: "Motor Vehicles",
	ModeBike:         "Bikes",
	ModePedestrian:   "Pedestrians",
}

// Valid reports whether m is a concrete mode type
func (m ModeType) Valid() bool {
	switch m {
	case ModeMotorVehicle, ModePedestrian, ModeBike:
		return true
	}
	return false
}

// Matches reports whether an incident of mode other passes the filter m
func (m ModeType) Matches(other ModeType) bool {
	return m == ModeAll || m == other
}

// ParseMode parses a filter value; empty means ModeAll
func ParseMode(s string) (ModeType, error) {
	m := ModeType(strings.ToLower(strings.TrimSpace(s)))
	if m == "" || m == ModeAll || m == "all" {
		return ModeAll, nil
	}
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// Incident is a single traffic-safety incident
type Incident struct {
	ID        int64    `json:"id"`
	PeriodKey int      `json:"period_key"` // year*100 + month, shared by every incident in that month
	ModeType  ModeType `json:"mode_type"`
	Lat       float64  `json:"lat"`
	Long      float64  `json:"long"`
	Year      int      `json:"year"`
	Month     int      `json:"month"`
	Hour      int      `json:"hour"`
	X         float64  `json:"x,omitempty"`
	Y         float64  `json:"y,omitempty"`
	HasCoords bool     `json:"has_coords"`
}

// RawIncident is an incident row as it appears in the published dataset
type RawIncident struct {
	ModeType ModeType    `json:"mode_type"`
	Lat      LooseNumber `json:"lat"`
	Long     LooseNumber `json:"long"`
	Year     int         `json:"year"`
	Month    int         `json:"month"`
	Hour     int         `json:"hour"`
}

// IncidentEnvelope is the on-disk shape of vision_zero_ss.json
type IncidentEnvelope struct {
	Data   []RawIncident   `json:"data"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// Normalize converts raw rows into incidents. Rows with an unknown mode, a month
// outside 1..12 or an hour outside 0..23 are dropped and counted in skipped.
func Normalize(raw []RawIncident) (incidents []Incident, skipped int) {
	incidents = make([]Incident, 0, len(raw))
	var seq int64
	for _, r := range raw {
		if !r.ModeType.Valid() || r.Month < 1 || r.Month > 12 || r.Hour < 0 || r.Hour > 23 {
			skipped++
			continue
		}
		seq++
		lat, long := float64(r.Lat), float64(r.Long)
		located := ValidLatLong(lat, long)
		if !located {
			// NaN does not survive JSON encoding
			lat, long = 0, 0
		}
		incidents = append(incidents, Incident{
			ID:        seq,
			PeriodKey: r.Year*100 + r.Month,
			ModeType:  r.ModeType,
			Lat:       lat,
			Long:      long,
			Year:      r.Year,
			Month:     r.Month,
			Hour:      r.Hour,
			HasCoords: located,
		})
	}
	return incidents, skipped
}

// LooseNumber decodes a JSON number or a numeric string. Anything else decodes to NaN.
type LooseNumber float64

func (n *LooseNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = LooseNumber(math.NaN())
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = LooseNumber(math.NaN())
		return nil
	}
	*n = LooseNumber(f)
	return nil
}

// MarshalJSON writes NaN as null
func (n LooseNumber) MarshalJSON() ([]byte, error) {
	if !isFinite(float64(n)) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(n), 'f', -1, 64)), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ValidLatLong rejects non-finite values and anything off the globe
func ValidLatLong(lat, long float64) bool {
	return isFinite(lat) && isFinite(long) &&
		lat >= -90 && lat <= 90 && long >= -180 && long <= 180
}

// Options is the dashboard filter state
type Options struct {
	Month int      `json:"month"`
	Year  int      `json:"year"`
	Type  ModeType `json:"type"`
}

// DefaultOptions matches the dashboard's initial selection
func DefaultOptions() Options {
	return Options{Month: 1, Year: 2015, Type: ModeAll}
}
