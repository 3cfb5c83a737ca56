// Package dataset reads eBird and iNaturalist exports into domain records.
//
// Column layouts differ per source and are described by a Profile. The
// built-in profiles match the eBird Basic Dataset (tab-delimited) and the
// iNaturalist CSV export; a YAML file can override any field of either.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Built-in profile names.
const (
	EBirdName       = "ebird"
	INaturalistName = "inat"
)

// SortKey orders output rows by a fixed column position.
type SortKey struct {
	Index   int  `yaml:"index"`
	Numeric bool `yaml:"numeric"`
}

// Profile describes the column layout of one dataset source.
type Profile struct {
	Name      string `yaml:"name"`
	Delimiter string `yaml:"delimiter"`

	SpeciesColumn   string `yaml:"species_column"`
	DateColumn      string `yaml:"date_column"`
	LatitudeColumn  string `yaml:"latitude_column"`
	LongitudeColumn string `yaml:"longitude_column"`

	// AcceptedColumn holds an integer review flag; non-zero means accepted.
	// When empty every observation counts as accepted.
	AcceptedColumn string `yaml:"accepted_column"`

	// ExcludeColumn holds a boolean; rows where it is true are never written.
	ExcludeColumn string `yaml:"exclude_column"`

	// CountyColumn is backfilled by reverse geocoding when empty.
	CountyColumn string `yaml:"county_column"`

	// OutputColumns is the filtered projection. Empty means write raw rows.
	OutputColumns []string `yaml:"output_columns"`

	Sort []SortKey `yaml:"sort"`
}

// EBird returns the eBird Basic Dataset profile.
func EBird() Profile {
	return Profile{
		Name:            EBirdName,
		Delimiter:       "\t",
		SpeciesColumn:   "COMMON NAME",
		DateColumn:      "OBSERVATION DATE",
		LatitudeColumn:  "LATITUDE",
		LongitudeColumn: "LONGITUDE",
		AcceptedColumn:  "APPROVED",
		CountyColumn:    "COUNTY",
		// TAXONOMIC ORDER, COUNTY CODE, TIME OBSERVATIONS STARTED, OBSERVER ID.
		Sort: []SortKey{
			{Index: 2, Numeric: true},
			{Index: 17},
			{Index: 28},
			{Index: 29},
		},
	}
}

// INaturalist returns the iNaturalist CSV export profile.
func INaturalist() Profile {
	return Profile{
		Name:            INaturalistName,
		Delimiter:       ",",
		SpeciesColumn:   "common_name",
		DateColumn:      "observed_on",
		LatitudeColumn:  "latitude",
		LongitudeColumn: "longitude",
		ExcludeColumn:   "captive_cultivated",
		CountyColumn:    "place_county_name",
		OutputColumns:   []string{"common_name", "observed_on", "latitude", "longitude", "place_county_name", "url"},
	}
}

// Lookup returns the built-in profile called name.
func Lookup(name string) (Profile, bool) {
	switch name {
	case EBirdName:
		return EBird(), true
	case INaturalistName:
		return INaturalist(), true
	default:
		return Profile{}, false
	}
}

// LoadProfile reads a YAML profile from path. Fields absent from the file are
// inherited from the built-in profile named by its "base" key, or from
// fallback when the key is missing.
func LoadProfile(path, fallback string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var head struct {
		Base string `yaml:"base"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	base := head.Base
	if base == "" {
		base = fallback
	}
	p, ok := Lookup(base)
	if !ok {
		return Profile{}, fmt.Errorf("profile %s: unknown base %q", path, base)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks that the profile names every column the engine needs.
func (p Profile) Validate() error {
	if _, err := p.Comma(); err != nil {
		return err
	}
	required := map[string]string{
		"species_column":   p.SpeciesColumn,
		"date_column":      p.DateColumn,
		"latitude_column":  p.LatitudeColumn,
		"longitude_column": p.LongitudeColumn,
	}
	for _, key := range []string{"species_column", "date_column", "latitude_column", "longitude_column"} {
		if required[key] == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	for _, k := range p.Sort {
		if k.Index < 0 {
			return fmt.Errorf("sort index %d is negative", k.Index)
		}
	}
	return nil
}

// Comma returns the field delimiter as a rune. "tab" is accepted as an alias.
func (p Profile) Comma() (rune, error) {
	d := p.Delimiter
	if d == "tab" {
		d = "\t"
	}
	if utf8.RuneCountInString(d) != 1 {
		return 0, errors.New("delimiter must be a single character")
	}
	r, _ := utf8.DecodeRuneInString(d)
	return r, nil
}

// Raw reports whether matched rows are written unmodified.
func (p Profile) Raw() bool {
	return len(p.OutputColumns) == 0
}
