package artifact

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Row is any record that renders itself as one CSV row.
type Row interface {
	CSVRow() []string
}

// CSVFile appends typed records to a CSV artifact. The header row is written
// once, when the file is created empty; reopening an existing artifact for
// resume leaves prior rows untouched.
type CSVFile[R Row] struct {
	file   *os.File
	writer *csv.Writer
	header []string
}

// OpenCSV opens (or creates) a CSV artifact for appending.
func OpenCSV[R Row](path string, header []string) (*CSVFile[R], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create artifact dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open csv artifact %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv artifact %s: %w", path, err)
	}

	c := &CSVFile[R]{file: f, writer: csv.NewWriter(f), header: header}
	if info.Size() == 0 {
		if err := c.writeRow(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return c, nil
}

// Append writes the records and syncs the file.
func (c *CSVFile[R]) Append(recs []R) error {
	for _, rec := range recs {
		row := rec.CSVRow()
		if len(row) != len(c.header) {
			return fmt.Errorf("csv row has %d fields, header has %d", len(row), len(c.header))
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("append csv row to %s: %w", c.file.Name(), err)
		}
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("flush csv rows to %s: %w", c.file.Name(), err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", c.file.Name(), err)
	}
	return nil
}

// Close closes the underlying file.
func (c *CSVFile[R]) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}

func (c *CSVFile[R]) writeRow(row []string) error {
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("write csv header to %s: %w", c.file.Name(), err)
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("flush csv header to %s: %w", c.file.Name(), err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", c.file.Name(), err)
	}
	return nil
}

// Table holds a parsed CSV artifact: the header and one map per data row.
type Table struct {
	Header []string
	Rows   []map[string]string
}

// ReadCSV loads a CSV artifact and verifies that every required column is
// present in the header.
func ReadCSV(path string, required []string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Table{}, fmt.Errorf("read header of %s: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return Table{}, fmt.Errorf("%s: missing required column %q", path, col)
		}
	}

	table := Table{Header: header}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row of %s: %w", path, err)
		}
		m := make(map[string]string, len(header))
		for col, i := range index {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		table.Rows = append(table.Rows, m)
	}
	return table, nil
}

// CopyFile copies src to dst byte for byte, creating parent directories.
// The orchestrator uses it for format-preserving stage handoff.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	return out.Close()
}
