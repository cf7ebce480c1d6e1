// Package export writes a quarterly frame to disk. Files are written to a
// temporary sibling and renamed into place, so a failed write never leaves a
// partial file behind.
package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"

	"ghanaoil/internal/model"
)

// Header returns the column names: the period index followed by the fields.
func Header(frame model.Frame, indexName string) []string {
	header := make([]string, 0, len(frame.Fields)+1)
	header = append(header, indexName)
	return append(header, frame.Fields...)
}

// Records renders every row with the period as an ISO date and values in
// their shortest round-trip form.
func Records(frame model.Frame) [][]string {
	records := make([][]string, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		record := make([]string, 0, len(row.Values)+1)
		record = append(record, row.Period.String())
		for _, value := range row.Values {
			record = append(record, strconv.FormatFloat(value, 'f', -1, 64))
		}
		records = append(records, record)
	}
	return records
}

func EncodeCSV(w io.Writer, frame model.Frame, indexName string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header(frame, indexName)); err != nil {
		return errors.Wrap(err, "write header")
	}
	for i, record := range Records(frame) {
		if err := writer.Write(record); err != nil {
			return errors.Wrapf(err, "write record %d", i)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSV replaces the file at path with the encoded frame.
func WriteCSV(path string, frame model.Frame, indexName string) error {
	staged, err := StageCSV(path, frame, indexName)
	if err != nil {
		return err
	}
	defer staged.Discard()
	return staged.Commit()
}

// StageCSV writes the encoded frame next to path without replacing it.
func StageCSV(path string, frame model.Frame, indexName string) (*Staged, error) {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, frame, indexName); err != nil {
		return nil, err
	}
	return stage(path, func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// Staged is a fully written temporary file waiting to be renamed onto its
// destination.
type Staged struct {
	path string
	tmp  string
}

func (s *Staged) Path() string {
	return s.path
}

// Commit renames the staged file onto its destination.
func (s *Staged) Commit() error {
	if s.tmp == "" {
		return errors.Newf("%s is already committed or discarded", s.path)
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		return errors.Wrapf(err, "rename into %s", s.path)
	}
	s.tmp = ""
	return nil
}

// Discard removes the staged file. It is a no-op after Commit.
func (s *Staged) Discard() {
	if s == nil || s.tmp == "" {
		return
	}
	_ = os.Remove(s.tmp)
	s.tmp = ""
}

func stage(path string, write func(io.Writer) error) (*Staged, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "create temp file")
	}
	staged := &Staged{path: path, tmp: tmp.Name()}

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		staged.Discard()
		return nil, errors.Wrapf(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		staged.Discard()
		return nil, errors.Wrapf(err, "close %s", path)
	}
	if err := os.Chmod(staged.tmp, 0o644); err != nil {
		staged.Discard()
		return nil, errors.Wrapf(err, "chmod %s", path)
	}
	return staged, nil
}
