package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Rules-source column positions.
const (
	colSpecies = iota
	colStartMonth
	colStartDay
	colEndMonth
	colEndDay
	colCoordinates

	requiredColumns = colCoordinates
)

// LoadRules reads and parses the rules file at path.
func LoadRules(path string) (*RuleIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()

	return ParseRules(f)
}

// ParseRules builds a RuleIndex from a rules source. The first row is a
// header. Any malformed row aborts parsing with a *MalformedRuleError.
func ParseRules(r io.Reader) (*RuleIndex, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return newRuleIndex(), nil
		}
		return nil, fmt.Errorf("read rules header: %w", err)
	}

	idx := newRuleIndex()
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			line := 0
			if errors.As(err, &perr) {
				line = perr.Line
			}
			return nil, &MalformedRuleError{Line: line, Reason: "unreadable row", Err: err}
		}
		line, _ := reader.FieldPos(0)

		rule, err := parseRule(line, fields)
		if err != nil {
			return nil, err
		}
		idx.add(rule)
	}
	return idx, nil
}

func parseRule(line int, fields []string) (Rule, error) {
	if len(fields) < requiredColumns {
		return Rule{}, &MalformedRuleError{
			Line:   line,
			Reason: fmt.Sprintf("expected at least %d fields, got %d", requiredColumns, len(fields)),
		}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	species := NormalizeSpecies(fields[colSpecies])
	if species == "" {
		return Rule{}, &MalformedRuleError{Line: line, Field: "common_name", Reason: "empty species name"}
	}

	var (
		w   DateWindow
		err error
	)
	if w.StartMonth, err = parseBound(line, "start_month", fields[colStartMonth], 12); err != nil {
		return Rule{}, err
	}
	if w.StartDay, err = parseBound(line, "start_day", fields[colStartDay], 31); err != nil {
		return Rule{}, err
	}
	if w.EndMonth, err = parseBound(line, "end_month", fields[colEndMonth], 12); err != nil {
		return Rule{}, err
	}
	if w.EndDay, err = parseBound(line, "end_day", fields[colEndDay], 31); err != nil {
		return Rule{}, err
	}

	for len(fields) > colCoordinates && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	var coords string
	if len(fields) > colCoordinates {
		// An unquoted coordinate list is split by the CSV reader; join it back.
		coords = strings.Join(fields[colCoordinates:], ",")
	}
	region, err := parseRegion(line, coords)
	if err != nil {
		return Rule{}, err
	}

	return Rule{Species: species, Window: w, Region: region, Line: line}, nil
}

// parseBound parses an optional 1..upper integer. Empty means absent (0).
func parseBound(line int, field, value string, upper int) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &MalformedRuleError{Line: line, Field: field, Reason: fmt.Sprintf("not an integer: %q", value), Err: err}
	}
	if n < 1 || n > upper {
		return 0, &MalformedRuleError{Line: line, Field: field, Reason: fmt.Sprintf("%d out of range 1-%d", n, upper)}
	}
	return n, nil
}

// parseRegion parses a pipe-delimited list of "lat,lon" pairs. An empty list
// means no region.
func parseRegion(line int, coords string) (*Region, error) {
	coords = strings.Trim(strings.TrimSpace(coords), `"`)
	if coords == "" {
		return nil, nil
	}

	segments := strings.Split(coords, "|")
	vertices := make([]orb.Point, 0, len(segments))
	for _, seg := range segments {
		parts := strings.Split(seg, ",")
		if len(parts) != 2 {
			return nil, &MalformedRuleError{
				Line: line, Field: "coordinates",
				Reason: fmt.Sprintf("vertex %q is not a lat,lon pair", seg),
			}
		}
		lat, err := parseCoordinate(parts[0])
		if err != nil {
			return nil, &MalformedRuleError{Line: line, Field: "coordinates", Reason: fmt.Sprintf("bad latitude in %q", seg), Err: err}
		}
		lon, err := parseCoordinate(parts[1])
		if err != nil {
			return nil, &MalformedRuleError{Line: line, Field: "coordinates", Reason: fmt.Sprintf("bad longitude in %q", seg), Err: err}
		}
		vertices = append(vertices, NewPoint(lat, lon))
	}

	region, err := NewRegion(vertices)
	if err != nil {
		return nil, &MalformedRuleError{Line: line, Field: "coordinates", Reason: "degenerate polygon", Err: err}
	}
	return region, nil
}

// parseCoordinate parses a finite decimal degree value.
func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}
