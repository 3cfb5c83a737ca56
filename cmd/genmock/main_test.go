package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/notable-obs-filter/internal/dataset"
	"github.com/couchcryptid/notable-obs-filter/internal/domain"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockRules = "common_name,start_month,start_day,end_month,end_day,coordinates\n" +
	"Snowy Owl,11,,2,,\n" +
	"rufous hummingbird,,,,,\"47,-123|47,-121|48,-121|48,-123\"\n" +
	"Ivory Gull,,,,,\n" +
	"Northern Hawk Owl,12,15,1,15,\n"

func TestRun_GeneratesExpectedOutcomes(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.csv")
	require.NoError(t, os.WriteFile(rulesPath, []byte(mockRules), 0o600))
	out := filepath.Join(dir, "mock", "ebird.txt")

	require.NoError(t, run([]string{"-rules", rulesPath, "-out", out, "-year", "2024"}, io.Discard))

	index, err := domain.LoadRules(rulesPath)
	require.NoError(t, err)

	r, err := dataset.Open(out, dataset.EBird())
	require.NoError(t, err)
	defer r.Close()

	comments, ok := r.Column("SPECIES COMMENTS")
	require.True(t, ok)

	var total, notable int
	names := map[string]bool{}
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		total++
		names[rec.Observation.Species] = true

		want := rec.Fields[comments] == expectNotable
		assert.Equal(t, want, domain.IsNotable(rec.Observation, index), "line %d", rec.Line)
		if want {
			notable++
		}
		assert.Equal(t, 2024, rec.Observation.Date.Year())
	}

	// Ivory Gull always matches, so it gets no ordinary row.
	assert.Equal(t, 7, total)
	assert.Equal(t, 4, notable)
	assert.True(t, names["Rufous Hummingbird"], "species names are title-cased")
}

func TestRun_MissingFlags(t *testing.T) {
	err := run([]string{"-rules", "rules.csv"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-out")
}

func TestDays(t *testing.T) {
	inside, outside := days(domain.DateWindow{StartMonth: 6, EndMonth: 6}, 2023)
	assert.Equal(t, "2023-06-16", inside.Format(domain.ObservationDateLayout))
	assert.False(t, outside.IsZero())
	assert.NotEqual(t, 6, int(outside.Month()))

	_, outside = days(domain.DateWindow{}, 2023)
	assert.True(t, outside.IsZero())
}

func TestPointInsideConcaveRegion(t *testing.T) {
	// U-shaped region whose bounding box center falls in the notch.
	var vertices []orb.Point
	for _, v := range [][2]float64{{0, 0}, {0, 3}, {3, 3}, {3, 2}, {1, 2}, {1, 1}, {3, 1}, {3, 0}} {
		vertices = append(vertices, domain.NewPoint(v[0], v[1]))
	}
	region, err := domain.NewRegion(vertices)
	require.NoError(t, err)
	require.False(t, region.Contains(1.5, 1.5))

	lat, lon := pointInside(region)
	assert.True(t, region.Contains(lat, lon))

	lat, lon = pointOutside(region)
	assert.False(t, region.Contains(lat, lon))
}

func TestEBirdSortColumns(t *testing.T) {
	var names []string
	for _, k := range dataset.EBird().Sort {
		names = append(names, ebirdColumns[k.Index])
	}
	assert.Equal(t, []string{"TAXONOMIC ORDER", "COUNTY CODE", "TIME OBSERVATIONS STARTED", "OBSERVER ID"}, names)
}
