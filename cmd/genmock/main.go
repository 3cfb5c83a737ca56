// Command genmock reads a rules file and generates an eBird Basic Dataset
// fixture with, for every rule, one observation the rule flags and one it
// does not. It evaluates each generated row with the real rule engine and
// records the expected outcome in SPECIES COMMENTS, so the fixture stays
// correct when several rules cover the same species.
//
// Usage:
//
//	go run ./cmd/genmock -rules rules.csv -out testdata/ebird_mock.txt -year 2023
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/notable-obs-filter/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ebirdColumns is the eBird Basic Dataset header.
var ebirdColumns = []string{
	"GLOBAL UNIQUE IDENTIFIER", "LAST EDITED DATE", "TAXONOMIC ORDER", "CATEGORY",
	"COMMON NAME", "SCIENTIFIC NAME", "SUBSPECIES COMMON NAME", "SUBSPECIES SCIENTIFIC NAME",
	"OBSERVATION COUNT", "BREEDING BIRD ATLAS CODE", "BREEDING BIRD ATLAS CATEGORY", "AGE/SEX",
	"COUNTRY", "COUNTRY CODE", "STATE", "STATE CODE", "COUNTY", "COUNTY CODE",
	"IBA CODE", "BCR CODE", "USFWS CODE", "ATLAS BLOCK",
	"LOCALITY", "LOCALITY ID", "LOCALITY TYPE", "LATITUDE", "LONGITUDE",
	"OBSERVATION DATE", "TIME OBSERVATIONS STARTED", "OBSERVER ID", "SAMPLING EVENT IDENTIFIER",
	"PROTOCOL TYPE", "PROTOCOL CODE", "PROJECT CODE", "DURATION MINUTES",
	"EFFORT DISTANCE KM", "EFFORT AREA HA", "NUMBER OBSERVERS", "ALL SPECIES REPORTED",
	"GROUP IDENTIFIER", "HAS MEDIA", "APPROVED", "REVIEWED", "REASON",
	"TRIP COMMENTS", "SPECIES COMMENTS",
}

const (
	expectNotable  = "expect:notable"
	expectOrdinary = "expect:ordinary"
)

// defaultPoint is used for rules without a region.
var defaultPoint = [2]float64{47.6062, -122.3321}

// mockRow is one generated observation before serialization.
type mockRow struct {
	rule     domain.Rule
	taxon    int
	date     time.Time
	lat, lon float64
	approved bool
	expect   string
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("genmock", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rulesPath := fs.String("rules", "", "rules CSV file")
	out := fs.String("out", "", "output path for the eBird fixture")
	year := fs.Int("year", 2023, "observation year")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rulesPath == "" || *out == "" {
		fs.Usage()
		return fmt.Errorf("missing required flags: -rules, -out")
	}

	// Fixed clock for reproducible LAST EDITED DATE values.
	clk := clockwork.NewFakeClockAt(time.Date(*year+1, time.January, 2, 10, 0, 0, 0, time.UTC))

	index, err := domain.LoadRules(*rulesPath)
	if err != nil {
		return err
	}

	rows := generate(index, *year)
	if err := writeTSV(*out, rows, clk); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}

	notable := 0
	for _, r := range rows {
		if r.expect == expectNotable {
			notable++
		}
	}
	logger := log.New(stderr, "", log.LstdFlags)
	logger.Printf("rules: %d across %d species", index.Len(), index.SpeciesCount())
	logger.Printf("wrote %d observations (%d notable) to %s", len(rows), notable, *out)
	return nil
}

func generate(index *domain.RuleIndex, year int) []mockRow {
	var rows []mockRow
	for i, species := range index.Species() {
		taxon := (i + 1) * 100
		for _, rule := range index.Rules(species) {
			inside, outside := days(rule.Window, year)
			lat, lon := pointInside(rule.Region)

			rows = append(rows, mockRow{rule: rule, taxon: taxon, date: inside, lat: lat, lon: lon})
			switch {
			case !outside.IsZero():
				rows = append(rows, mockRow{rule: rule, taxon: taxon, date: outside, lat: lat, lon: lon})
			case rule.Region != nil:
				olat, olon := pointOutside(rule.Region)
				rows = append(rows, mockRow{rule: rule, taxon: taxon, date: inside, lat: olat, lon: olon})
			}
		}
	}

	for i := range rows {
		r := &rows[i]
		r.approved = i%2 == 0
		obs := domain.Observation{Species: r.rule.Species, Date: r.date, Lat: r.lat, Lon: r.lon, Accepted: r.approved}
		r.expect = expectOrdinary
		if domain.IsNotable(obs, index) {
			r.expect = expectNotable
		}
	}
	return rows
}

// days returns the middle day of the year inside the window and the middle
// day outside it. outside is zero when the window covers the whole year.
func days(w domain.DateWindow, year int) (inside, outside time.Time) {
	var in, out []time.Time
	for d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
		if w.Contains(d) {
			in = append(in, d)
		} else {
			out = append(out, d)
		}
	}
	if len(in) > 0 {
		inside = in[len(in)/2]
	}
	if len(out) > 0 {
		outside = out[len(out)/2]
	}
	return inside, outside
}

func pointInside(region *domain.Region) (lat, lon float64) {
	if region == nil {
		return defaultPoint[0], defaultPoint[1]
	}
	b := region.Bound()
	c := b.Center()
	if region.Contains(c[0], c[1]) {
		return c[0], c[1]
	}
	const steps = 20
	for i := 1; i < steps; i++ {
		for j := 1; j < steps; j++ {
			lat := b.Min[0] + (b.Max[0]-b.Min[0])*float64(i)/steps
			lon := b.Min[1] + (b.Max[1]-b.Min[1])*float64(j)/steps
			if region.Contains(lat, lon) {
				return lat, lon
			}
		}
	}
	return b.Min[0], b.Min[1]
}

func pointOutside(region *domain.Region) (lat, lon float64) {
	b := region.Bound()
	lon = b.Center()[1]
	if b.Max[0]+0.5 <= 90 {
		return b.Max[0] + 0.5, lon
	}
	return b.Min[0] - 0.5, lon
}

func writeTSV(path string, rows []mockRow, clk clockwork.Clock) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	col := make(map[string]int, len(ebirdColumns))
	for i, c := range ebirdColumns {
		col[c] = i
	}
	title := cases.Title(language.English)
	edited := clk.Now().Format("2006-01-02 15:04:05")

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write(ebirdColumns); err != nil {
		return err
	}
	for i, r := range rows {
		rec := make([]string, len(ebirdColumns))
		set := func(name, value string) { rec[col[name]] = value }

		id := uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s:%d:%d", r.rule.Species, r.rule.Line, i))
		set("GLOBAL UNIQUE IDENTIFIER", "URN:CornellLabOfOrnithology:EBIRD:OBS"+id.String())
		set("LAST EDITED DATE", edited)
		set("TAXONOMIC ORDER", strconv.Itoa(r.taxon))
		set("CATEGORY", "species")
		set("COMMON NAME", title.String(r.rule.Species))
		set("OBSERVATION COUNT", "1")
		set("COUNTRY", "United States")
		set("COUNTRY CODE", "US")
		set("LOCALITY", fmt.Sprintf("Mock locality %d", i+1))
		set("LOCALITY ID", fmt.Sprintf("L%d", 1000+i))
		set("LOCALITY TYPE", "P")
		set("LATITUDE", strconv.FormatFloat(r.lat, 'f', 6, 64))
		set("LONGITUDE", strconv.FormatFloat(r.lon, 'f', 6, 64))
		set("OBSERVATION DATE", r.date.Format(domain.ObservationDateLayout))
		set("TIME OBSERVATIONS STARTED", "08:00:00")
		set("OBSERVER ID", "obsr0000001")
		set("SAMPLING EVENT IDENTIFIER", fmt.Sprintf("S%d", 100000+i))
		set("PROTOCOL TYPE", "Incidental")
		set("ALL SPECIES REPORTED", "0")
		set("HAS MEDIA", "0")
		set("APPROVED", boolFlag(r.approved))
		set("REVIEWED", boolFlag(!r.approved))
		set("SPECIES COMMENTS", r.expect)

		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
