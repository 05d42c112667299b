// Package report aggregates execution records and extracted fields into one
// CSV report per batch.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kplau1128/tools-n-utilies/internal/model"
)

type row struct {
	record model.ExecutionRecord
	fields model.ExtractedFields
}

// Builder is a builder pattern for the batch CSV report. Rows are appended in
// execution order and stay in memory until written, so a failed Write can be
// retried with a different path.
type Builder struct {
	fieldOrder []string
	rows       []row
}

// NewBuilder creates a Builder. fieldOrder is the declared result field name
// order from the pattern set; it fixes the column order of extracted fields.
func NewBuilder(fieldOrder []string) *Builder {
	return &Builder{
		fieldOrder: slices.Clone(fieldOrder),
	}
}

// Add appends one result row, preserving insertion order.
func (b *Builder) Add(record model.ExecutionRecord, fields model.ExtractedFields) *Builder {
	b.rows = append(b.rows, row{record: record, fields: fields})
	return b
}

// Len returns the number of accumulated rows.
func (b *Builder) Len() int {
	return len(b.rows)
}

// fixed execution columns, before the extracted field columns
var fixedHeader = []string{"script", "args", "exit_code", "started_at", "duration_ms", "diagnostic"}

// trailing error columns, after the extracted field columns
var errorHeader = []string{"error_detected", "errors"}

// fieldColumns returns every field name produced across all rows, in pattern
// declaration order. A declared field no row produced gets no column.
func (b *Builder) fieldColumns() []string {
	produced := make(map[string]struct{})
	for _, r := range b.rows {
		for name := range r.fields.Matches {
			produced[name] = struct{}{}
		}
	}

	columns := make([]string, 0, len(produced))
	for _, name := range b.fieldOrder {
		if _, ok := produced[name]; ok {
			columns = append(columns, name)
			delete(produced, name)
		}
	}
	// names outside the declared order cannot normally happen, keep them
	// deterministic anyway
	rest := make([]string, 0, len(produced))
	for name := range produced {
		rest = append(rest, name)
	}
	slices.Sort(rest)
	return append(columns, rest...)
}

// AsCSV encodes the accumulated rows as CSV: one header row, one data row per
// (script, argument combination) pair in insertion order. Rows missing a
// given field render as an empty cell, never a placeholder.
func (b *Builder) AsCSV(w io.Writer) error {
	fields := b.fieldColumns()

	header := make([]string, 0, len(fixedHeader)+len(fields)+len(errorHeader))
	header = append(header, fixedHeader...)
	header = append(header, fields...)
	header = append(header, errorHeader...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, r := range b.rows {
		if err := cw.Write(r.render(fields)); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// Write serializes all accumulated rows to a CSV file at path. On failure the
// rows are kept, the caller may retry with another path.
func (b *Builder) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := b.AsCSV(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func (r row) render(fields []string) []string {
	var diagnostic string
	if r.record.LaunchFailed() {
		diagnostic = r.record.Output
	}

	out := make([]string, 0, len(fixedHeader)+len(fields)+len(errorHeader))
	out = append(out,
		r.record.Script,
		strings.Join(r.record.Args, " "),
		strconv.Itoa(r.record.ExitCode),
		r.record.StartedAt.Format(time.RFC3339),
		strconv.FormatInt(r.record.Duration.Milliseconds(), 10),
		diagnostic,
	)
	for _, name := range fields {
		out = append(out, r.fields.Matches[name]) // absent fields render empty
	}
	out = append(out,
		strconv.FormatBool(r.fields.ErrorDetected),
		strings.Join(r.fields.ErrorNames, ";"),
	)
	return out
}
