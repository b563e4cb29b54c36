// Package export renders record lists as CSV or XLSX downloads.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"intakeflow/api/internal/store"
	"intakeflow/api/internal/workflow"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat indicates the requested format is not csv or xlsx.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Result contains the export output ready to stream to the client.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var columns = []string{"Client Name", "Email", "Phone", "Status", "Created Date", "Submitted Date"}

func row(rec store.Record) []string {
	return []string{
		rec.ClientName,
		fieldString(rec, "contactEmail"),
		fieldString(rec, "contactPhone"),
		workflow.Label(rec.Status),
		rec.CreatedAt.Format("2006-01-02"),
		formatOptionalDate(rec.SubmittedAt),
	}
}

// Records renders the given records in the requested format.
func Records(records []store.Record, format Format) (*Result, error) {
	switch format {
	case FormatCSV:
		return exportCSV(records)
	case FormatXLSX:
		return exportXLSX(records)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func exportCSV(records []store.Record) (*Result, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(row(rec)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: exportFilename("csv"),
		MimeType: "text/csv",
	}, nil
}

func exportXLSX(records []store.Record) (*Result, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Records"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, fmt.Errorf("set header cell: %w", err)
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("style header row: %w", err)
	}

	for i, rec := range records {
		for col, value := range row(rec) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("set cell: %w", err)
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", lastCol, 22); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: exportFilename("xlsx"),
		MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}, nil
}

func exportFilename(ext string) string {
	return fmt.Sprintf("intake-records-%s.%s", time.Now().Format("2006-01-02"), ext)
}

func fieldString(rec store.Record, name string) string {
	if rec.Fields == nil {
		return ""
	}
	if value, ok := rec.Fields[name].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
