package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"estate-sync/models"
)

// exportHeader is the spreadsheet column order.
var exportHeader = []string{
	"Property Name", "Price", "BHK", "Area", "Locality", "City", "Status",
	"Developer", "Property Type", "Furnishing", "RERA/Reg Date", "Source", "Link",
}

// CSVWriter writes listings as spreadsheet-friendly CSV.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	closer io.Closer
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	cw, err := newCSVWriter(f, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return cw, nil
}

// NewCSVStreamWriter writes CSV to w, e.g. an HTTP response. Close flushes
// but does not close w.
func NewCSVStreamWriter(w io.Writer) (*CSVWriter, error) {
	return newCSVWriter(w, nil)
}

func newCSVWriter(w io.Writer, closer io.Closer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	return &CSVWriter{closer: closer, writer: cw}, nil
}

// Export appends one row per listing. Empty fields are written as N/A.
func (c *CSVWriter) Export(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		if l == nil {
			continue
		}
		row := []string{
			orNA(l.PropertyName),
			orNA(l.Price),
			orNA(l.BHK),
			orNA(l.Area),
			orNA(l.Locality),
			orNA(l.City),
			orNA(l.Status),
			orNA(l.Developer),
			orNA(l.PropertyType),
			orNA(l.Furnishing),
			orNA(l.RegDate),
			orNA(l.Source),
			orNA(l.Link),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file, if the writer owns one.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if c.closer == nil {
		return c.writer.Error()
	}
	return c.closer.Close()
}

// ExportFileName returns "<scope>_properties_<YYYY-MM-DD>.csv".
func ExportFileName(scope string, at time.Time) string {
	return fmt.Sprintf("%s_properties_%s.csv", scope, at.Format("2006-01-02"))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
