package domain

import (
	"strings"
	"time"
)

// ObservationDateLayout is the date format used by both eBird and iNaturalist exports.
const ObservationDateLayout = "2006-01-02"

// Observation is the typed view of one dataset row that the rule engine needs.
type Observation struct {
	Species  string
	Date     time.Time
	Lat      float64
	Lon      float64
	Accepted bool
}

// Record pairs a dataset row with its parsed observation.
type Record struct {
	Line        int
	Fields      []string
	Observation Observation

	// Excluded marks rows the dataset filters out regardless of rules
	// (e.g. captive or cultivated iNaturalist observations).
	Excluded bool
}

// NotableRecord is the serialized form published for a matched observation.
type NotableRecord struct {
	Species     string            `json:"species"`
	Date        string            `json:"observation_date"`
	Lat         float64           `json:"latitude"`
	Lon         float64           `json:"longitude"`
	Accepted    bool              `json:"accepted"`
	Dataset     string            `json:"dataset"`
	Fields      map[string]string `json:"fields,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
}

// NewObservation parses date and builds an Observation.
func NewObservation(species, date string, lat, lon float64, accepted bool) (Observation, error) {
	d, err := ParseObservationDate(date)
	if err != nil {
		return Observation{}, err
	}
	return Observation{
		Species:  species,
		Date:     d,
		Lat:      lat,
		Lon:      lon,
		Accepted: accepted,
	}, nil
}

// ParseObservationDate parses a YYYY-MM-DD date.
func ParseObservationDate(s string) (time.Time, error) {
	d, err := time.Parse(ObservationDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &InvalidDateError{Value: s, Err: err}
	}
	return d, nil
}

// NormalizeSpecies returns the lookup key for a species name.
func NormalizeSpecies(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewNotableRecord builds the published form of a matched record. header names
// the row's fields; extra fields without a header are dropped.
func NewNotableRecord(dataset string, header []string, rec Record) NotableRecord {
	fields := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(rec.Fields) {
			fields[h] = rec.Fields[i]
		}
	}
	obs := rec.Observation
	return NotableRecord{
		Species:     strings.TrimSpace(obs.Species),
		Date:        obs.Date.Format(ObservationDateLayout),
		Lat:         obs.Lat,
		Lon:         obs.Lon,
		Accepted:    obs.Accepted,
		Dataset:     dataset,
		Fields:      fields,
		ProcessedAt: clock.Now(),
	}
}
