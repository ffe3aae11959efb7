package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Tabular is anything that renders as a header plus string records.
type Tabular interface {
	Header() []string
	Records() [][]string
}

// Keyed tables report how many leading columns are identifiers. Those cells
// stay text in spreadsheets even when they look numeric.
type Keyed interface {
	KeyColumns() int
}

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json; charset=utf-8"
	}
}

// Write renders table in a file format. JSON is not a file format here.
func Write(w io.Writer, format Format, table Tabular, sheet string) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, table)
	case FormatXLSX:
		return WriteXLSX(w, table, sheet)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func WriteCSV(w io.Writer, table Tabular) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Header()); err != nil {
		return err
	}
	if err := writer.WriteAll(table.Records()); err != nil {
		return err
	}
	return writer.Error()
}

const defaultSheet = "Report"

// WriteXLSX writes a single-sheet workbook with a bold, frozen header row.
func WriteXLSX(w io.Writer, table Tabular, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet = sheetName(sheet)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}

	header := table.Header()
	if err := setRow(f, sheet, 1, toCells(header, len(header))); err != nil {
		return err
	}
	if len(header) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return err
		}
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return err
		}
	}

	keyColumns := 0
	if keyed, ok := table.(Keyed); ok {
		keyColumns = keyed.KeyColumns()
	}
	for i, record := range table.Records() {
		if err := setRow(f, sheet, i+2, toCells(record, keyColumns)); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

// toCells converts numeric values after the key columns so spreadsheets can
// sum them.
func toCells(values []string, keyColumns int) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
		if i < keyColumns {
			continue
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cells[i] = n
		} else if x, err := strconv.ParseFloat(v, 64); err == nil {
			cells[i] = x
		}
	}
	return cells
}

func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return defaultSheet
	}
	if len([]rune(name)) > 31 {
		name = string([]rune(name)[:31])
	}
	return name
}
