// Package sink collects matched rows and writes them out in a stable order.
//
// Rows are spooled to a temporary file while the dataset is scanned, then
// sorted and written to the output in a single pass once every record has
// been evaluated.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/notable-obs-filter/internal/dataset"
	"github.com/couchcryptid/notable-obs-filter/internal/domain"
	"github.com/google/uuid"
)

// Options configures a Sink.
type Options struct {
	Path      string
	Header    []string
	Delimiter rune

	// Append adds rows to an existing output instead of truncating it. The
	// header is only written when the appended file is new or empty.
	Append bool

	// UnacceptedOnly keeps observations that have not been accepted by review.
	UnacceptedOnly bool

	SortKeys []dataset.SortKey

	// SpoolDir holds the temporary spool file. Defaults to the output directory.
	SpoolDir string
}

// Sink is the record sink for one filtering run.
type Sink struct {
	opts      Options
	logger    *slog.Logger
	spoolPath string
	spool     *os.File
	writer    *csv.Writer
	rows      int
}

// New creates the spool file for a run.
func New(opts Options, logger *slog.Logger) (*Sink, error) {
	if opts.Path == "" {
		return nil, errors.New("sink: output path is required")
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	dir := opts.SpoolDir
	if dir == "" {
		dir = filepath.Dir(opts.Path)
	}

	spoolPath := filepath.Join(dir, fmt.Sprintf("unsorted_obs_%s.txt", uuid.NewString()))
	f, err := os.OpenFile(spoolPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = opts.Delimiter

	logger.Debug("spool file created", "path", spoolPath)
	return &Sink{
		opts:      opts,
		logger:    logger,
		spoolPath: spoolPath,
		spool:     f,
		writer:    w,
	}, nil
}

// Accepts applies the review-status post-filter.
func (s *Sink) Accepts(obs domain.Observation) bool {
	return !s.opts.UnacceptedOnly || !obs.Accepted
}

// Add spools one output row.
func (s *Sink) Add(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("spool row: %w", err)
	}
	s.rows++
	return nil
}

// Len returns the number of spooled rows.
func (s *Sink) Len() int { return s.rows }

// SpoolPath returns the temporary file backing the sink.
func (s *Sink) SpoolPath() string { return s.spoolPath }

// Finalize sorts the spooled rows and writes them to the output. It returns
// the number of rows written. The spool file is removed in every case.
func (s *Sink) Finalize() (int, error) {
	defer s.removeSpool()

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.spool.Close()
		return 0, fmt.Errorf("flush spool: %w", err)
	}
	if err := s.spool.Close(); err != nil {
		return 0, fmt.Errorf("close spool: %w", err)
	}

	rows, err := readRows(s.spoolPath, s.opts.Delimiter)
	if err != nil {
		return 0, err
	}
	SortRows(rows, s.opts.SortKeys)

	if err := s.writeOutput(rows); err != nil {
		return 0, err
	}
	s.logger.Info("output written", "path", s.opts.Path, "rows", len(rows), "append", s.opts.Append)
	return len(rows), nil
}

// Abort discards the spool without touching the output.
func (s *Sink) Abort() {
	s.spool.Close()
	s.removeSpool()
}

func (s *Sink) writeOutput(rows [][]string) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if s.opts.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	out, err := os.OpenFile(s.opts.Path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer out.Close()

	writeHeader := !s.opts.Append
	if s.opts.Append {
		info, err := out.Stat()
		if err != nil {
			return fmt.Errorf("stat output: %w", err)
		}
		writeHeader = info.Size() == 0
	}

	w := csv.NewWriter(out)
	w.Comma = s.opts.Delimiter
	if writeHeader && len(s.opts.Header) > 0 {
		if err := w.Write(s.opts.Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return out.Close()
}

func (s *Sink) removeSpool() {
	if err := os.Remove(s.spoolPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("could not remove spool file", "path", s.spoolPath, "error", err)
	}
}

func readRows(path string, delimiter rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read spool: %w", err)
		}
		rows = append(rows, row)
	}
}
