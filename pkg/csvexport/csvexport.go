// Package csvexport writes spreadsheet-friendly CSV files.
package csvexport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// BOM is the UTF-8 byte-order mark. Excel needs it to detect the encoding.
const BOM = "\uFEFF"

// ContentType is the MIME type used when serving exports.
const ContentType = "text/csv; charset=utf-8"

// Write emits BOM followed by records. Fields containing commas, quotes or
// newlines are quoted and embedded quotes doubled.
func Write(w io.Writer, records [][]string) error {
	if _, err := io.WriteString(w, BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Bytes is Write into a buffer.
func Bytes(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename returns prefix_YYYY-MM-DD.csv for the given day.
func Filename(prefix string, day time.Time) string {
	return fmt.Sprintf("%s_%s.csv", prefix, day.Format("2006-01-02"))
}

// Read parses data produced by Write, tolerating the BOM and ragged rows.
func Read(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte(BOM))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	return r.ReadAll()
}
