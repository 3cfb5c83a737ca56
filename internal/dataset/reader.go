package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/notable-obs-filter/internal/domain"
)

// RowError reports a dataset row that cannot be turned into an observation.
// It is recoverable: the reader can continue with the next row.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("row %d: %s: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Reason classifies the error for metrics labels.
func (e *RowError) Reason() string {
	var derr *domain.InvalidDateError
	switch {
	case errors.As(e.Err, &derr):
		return "invalid_date"
	case e.Column == "":
		return "malformed_row"
	default:
		return "invalid_field"
	}
}

// columns holds resolved header positions; -1 means the profile does not use it.
type columns struct {
	species, date, lat, lon int
	accepted, exclude       int
	county                  int
	width                   int
}

// Reader streams records from a delimited dataset export.
type Reader struct {
	csv     *csv.Reader
	closer  io.Closer
	profile Profile
	header  []string
	index   map[string]int
	cols    columns
}

// Open opens the dataset file at path.
func Open(path string, p Profile) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	r, err := NewReader(f, p)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads the header row from src and resolves the profile's columns.
func NewReader(src io.Reader, p Profile) (*Reader, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	comma, _ := p.Comma()

	cr := csv.NewReader(src)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty: missing header row")
		}
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	r := &Reader{csv: cr, profile: p, header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		if _, dup := r.index[h]; !dup {
			r.index[h] = i
		}
	}
	if err := r.resolve(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) resolve() error {
	var missing []string
	required := func(name string) int {
		i, ok := r.index[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}
	optional := func(name string) int {
		if i, ok := r.index[name]; ok && name != "" {
			return i
		}
		return -1
	}

	r.cols = columns{
		species:  required(r.profile.SpeciesColumn),
		date:     required(r.profile.DateColumn),
		lat:      required(r.profile.LatitudeColumn),
		lon:      required(r.profile.LongitudeColumn),
		accepted: optional(r.profile.AcceptedColumn),
		exclude:  optional(r.profile.ExcludeColumn),
		county:   optional(r.profile.CountyColumn),
	}
	if r.profile.AcceptedColumn != "" && r.cols.accepted < 0 {
		missing = append(missing, r.profile.AcceptedColumn)
	}
	if len(missing) > 0 {
		return fmt.Errorf("dataset header missing columns: %s", strings.Join(missing, ", "))
	}

	for _, i := range []int{r.cols.species, r.cols.date, r.cols.lat, r.cols.lon, r.cols.accepted, r.cols.exclude} {
		if i+1 > r.cols.width {
			r.cols.width = i + 1
		}
	}
	return nil
}

// Header returns the dataset's header row.
func (r *Reader) Header() []string { return r.header }

// Profile returns the profile the reader was built with.
func (r *Reader) Profile() Profile { return r.profile }

// Column returns the position of the named header column.
func (r *Reader) Column(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

// Next returns the next record. It returns io.EOF after the last row and a
// *RowError for rows that cannot be parsed.
func (r *Reader) Next() (domain.Record, error) {
	fields, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return domain.Record{}, io.EOF
	}
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return domain.Record{}, &RowError{Line: perr.Line, Err: perr.Err}
		}
		return domain.Record{}, fmt.Errorf("read dataset: %w", err)
	}
	line, _ := r.csv.FieldPos(0)
	return r.parse(line, fields)
}

func (r *Reader) parse(line int, fields []string) (domain.Record, error) {
	rec := domain.Record{Line: line, Fields: fields}
	if len(fields) < r.cols.width {
		return rec, &RowError{Line: line, Err: fmt.Errorf("expected at least %d fields, got %d", r.cols.width, len(fields))}
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[r.cols.lat]), 64)
	if err != nil {
		return rec, &RowError{Line: line, Column: r.profile.LatitudeColumn, Err: err}
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[r.cols.lon]), 64)
	if err != nil {
		return rec, &RowError{Line: line, Column: r.profile.LongitudeColumn, Err: err}
	}

	accepted := true
	if r.cols.accepted >= 0 {
		n, err := strconv.Atoi(strings.TrimSpace(fields[r.cols.accepted]))
		if err != nil {
			return rec, &RowError{Line: line, Column: r.profile.AcceptedColumn, Err: err}
		}
		accepted = n != 0
	}

	if r.cols.exclude >= 0 {
		excluded, err := parseBool(fields[r.cols.exclude])
		if err != nil {
			return rec, &RowError{Line: line, Column: r.profile.ExcludeColumn, Err: err}
		}
		rec.Excluded = excluded
	}

	obs, err := domain.NewObservation(fields[r.cols.species], fields[r.cols.date], lat, lon, accepted)
	if err != nil {
		return rec, &RowError{Line: line, Column: r.profile.DateColumn, Err: err}
	}
	rec.Observation = obs
	return rec, nil
}

// County returns the record's county field, or "" when the dataset has none.
func (r *Reader) County(rec domain.Record) string {
	if r.cols.county < 0 || r.cols.county >= len(rec.Fields) {
		return ""
	}
	return strings.TrimSpace(rec.Fields[r.cols.county])
}

// Close releases the underlying file when the reader was created with Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// parseBool accepts the truth values used in iNaturalist exports. Empty is false.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n", "no", "f", "false", "off", "0":
		return false, nil
	case "y", "yes", "t", "true", "on", "1":
		return true, nil
	default:
		return false, fmt.Errorf("invalid truth value %q", s)
	}
}
