package dataset

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/notable-obs-filter/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ebirdSample = "TAXONOMIC ORDER\tCOMMON NAME\tCOUNTY\tLATITUDE\tLONGITUDE\tOBSERVATION DATE\tAPPROVED\n" +
	"20186\tSnowy Owl\tKing\t47.6\t-122.3\t2020-01-15\t0\n" +
	"20186\tSnowy Owl\tKing\t47.6\t-122.3\t2020-02-30\t1\n" +
	"512\tAmerican Robin\t\tnorth\t-122.3\t2020-01-15\t1\n" +
	"512\tAmerican Robin\n" +
	"512\tAmerican Robin\tKing\t47.6\t-122.3\t2020-03-01\tyes\n"

func TestReader_EBird(t *testing.T) {
	r, err := NewReader(strings.NewReader(ebirdSample), EBird())
	require.NoError(t, err)

	assert.Equal(t, "TAXONOMIC ORDER", r.Header()[0])

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Line)
	assert.Equal(t, "Snowy Owl", rec.Observation.Species)
	assert.Equal(t, time.Date(2020, time.January, 15, 0, 0, 0, 0, time.UTC), rec.Observation.Date)
	assert.Equal(t, 47.6, rec.Observation.Lat)
	assert.Equal(t, -122.3, rec.Observation.Lon)
	assert.False(t, rec.Observation.Accepted)
	assert.Equal(t, "King", r.County(rec))
	assert.Len(t, rec.Fields, 7)

	_, err = r.Next()
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Line)
	assert.Equal(t, "OBSERVATION DATE", rowErr.Column)
	assert.Equal(t, "invalid_date", rowErr.Reason())
	var derr *domain.InvalidDateError
	assert.ErrorAs(t, err, &derr)

	_, err = r.Next()
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "LATITUDE", rowErr.Column)
	assert.Equal(t, "invalid_field", rowErr.Reason())

	_, err = r.Next()
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "malformed_row", rowErr.Reason())

	_, err = r.Next()
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "APPROVED", rowErr.Column)

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReader_INaturalist(t *testing.T) {
	src := "\ufeffid,common_name,observed_on,latitude,longitude,captive_cultivated,url\n" +
		"1,Snowy Owl,2021-12-01,45.1,-93.2,false,https://example.org/1\n" +
		"2,\"Owl, Snowy\",2021-12-02,45.1,-93.2,true,https://example.org/2\n" +
		"3,Snowy Owl,2021-12-03,45.1,-93.2,maybe,https://example.org/3\n"

	r, err := NewReader(strings.NewReader(src), INaturalist())
	require.NoError(t, err)
	assert.Equal(t, "id", r.Header()[0])

	rec, err := r.Next()
	require.NoError(t, err)
	assert.False(t, rec.Excluded)
	assert.True(t, rec.Observation.Accepted, "no review column means accepted")
	assert.Empty(t, r.County(rec), "no county column")

	rec, err = r.Next()
	require.NoError(t, err)
	assert.True(t, rec.Excluded)
	assert.Equal(t, "Owl, Snowy", rec.Observation.Species)

	_, err = r.Next()
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "captive_cultivated", rowErr.Column)
}

func TestReader_MissingColumns(t *testing.T) {
	_, err := NewReader(strings.NewReader("COMMON NAME\tLATITUDE\n"), EBird())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OBSERVATION DATE")
	assert.Contains(t, err.Error(), "APPROVED")
}

func TestReader_Empty(t *testing.T) {
	_, err := NewReader(strings.NewReader(""), EBird())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"", "false", "F", "no", "0", " off "} {
		v, err := parseBool(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
	for _, s := range []string{"true", "T", "yes", "1", "on", "Y"} {
		v, err := parseBool(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	_, err := parseBool("perhaps")
	assert.Error(t, err)
}
