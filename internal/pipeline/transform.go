package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/notable-obs-filter/internal/dataset"
	"github.com/couchcryptid/notable-obs-filter/internal/domain"
)

// RecordTransformer implements Transformer. It either copies the dataset
// row unchanged or projects the profile's output columns, and backfills an
// empty county through the geocoder when one is configured.
type RecordTransformer struct {
	header   []string
	project  []int // input positions per output column; nil copies the row
	county   int   // output position of the county column, -1 when absent
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer builds a RecordTransformer for a dataset with the given
// header. raw forces whole-row output even when the profile defines output
// columns. Pass a nil geocoder to disable county backfill.
func NewTransformer(p dataset.Profile, header []string, raw bool, geocoder domain.Geocoder, logger *slog.Logger) (*RecordTransformer, error) {
	t := &RecordTransformer{county: -1, geocoder: geocoder, logger: logger}

	if raw || p.Raw() {
		t.header = header
	} else {
		positions := make(map[string]int, len(header))
		for i, h := range header {
			if _, dup := positions[h]; !dup {
				positions[h] = i
			}
		}
		t.header = p.OutputColumns
		t.project = make([]int, len(p.OutputColumns))
		for i, col := range p.OutputColumns {
			pos, ok := positions[col]
			if !ok {
				return nil, fmt.Errorf("output column %q not in dataset header", col)
			}
			t.project[i] = pos
		}
	}

	if p.CountyColumn != "" {
		for i, h := range t.header {
			if h == p.CountyColumn {
				t.county = i
				break
			}
		}
	}
	return t, nil
}

// Header returns the output header row.
func (t *RecordTransformer) Header() []string { return t.header }

// Transform returns the output row for rec.
func (t *RecordTransformer) Transform(ctx context.Context, rec domain.Record) ([]string, error) {
	var row []string
	if t.project == nil {
		row = make([]string, len(rec.Fields))
		copy(row, rec.Fields)
	} else {
		row = make([]string, len(t.project))
		for i, pos := range t.project {
			if pos < len(rec.Fields) {
				row[i] = rec.Fields[pos]
			}
		}
	}

	if t.geocoder != nil && t.county >= 0 && t.county < len(row) && strings.TrimSpace(row[t.county]) == "" {
		row[t.county] = domain.ResolveCounty(ctx, "", rec.Observation, t.geocoder, t.logger)
	}
	return row, nil
}
