// Package workbook converts xlsx files to and from a generic header-keyed row form.
//
// Only the first sheet (by position) is read. Row 1 is the header; every later
// non-blank row becomes a Row keyed by header label. Cell values are kept as
// the formatted strings excelize reports, so rows written back are byte
// identical to what was read.
package workbook

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet = "Sheet1"
	emptyHeader  = "__EMPTY"
)

var ErrNoSheets = errors.New("workbook has no sheets")

type Row map[string]string

type Sheet struct {
	Name    string
	Columns []string
	Rows    []Row
}

func Decode(data []byte) (Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Sheet{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return Sheet{}, ErrNoSheets
	}

	raw, err := f.GetRows(names[0])
	if err != nil {
		return Sheet{}, fmt.Errorf("read sheet %q: %w", names[0], err)
	}
	return FromRows(names[0], raw), nil
}

// FromRows builds a Sheet from a header row followed by data rows. Blank rows
// are dropped and empty cells are left out of the row maps.
func FromRows(name string, raw [][]string) Sheet {
	s := Sheet{Name: name}
	if len(raw) == 0 {
		return s
	}

	width := 0
	for _, r := range raw {
		if len(r) > width {
			width = len(r)
		}
	}
	s.Columns = headerLabels(raw[0], width)

	for _, r := range raw[1:] {
		if blank(r) {
			continue
		}
		row := Row{}
		for i, v := range r {
			if v == "" {
				continue
			}
			row[s.Columns[i]] = v
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

// headerLabels pads the header to width and makes every label unique:
// blank cells become __EMPTY, repeats get _1, _2, ... suffixes.
func headerLabels(header []string, width int) []string {
	labels := make([]string, width)
	seen := map[string]bool{}
	for i := 0; i < width; i++ {
		base := ""
		if i < len(header) {
			base = header[i]
		}
		if base == "" {
			base = emptyHeader
		}
		label := base
		for n := 1; seen[label]; n++ {
			label = base + "_" + strconv.Itoa(n)
		}
		seen[label] = true
		labels[i] = label
	}
	return labels
}

func blank(r []string) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Append adds row at the end. Labels missing from Columns are added in the
// given order; any remaining unknown keys follow, sorted.
func (s *Sheet) Append(row Row, order []string) {
	known := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		known[c] = true
	}
	for _, c := range order {
		if _, ok := row[c]; ok && !known[c] {
			s.Columns = append(s.Columns, c)
			known[c] = true
		}
	}
	var rest []string
	for k := range row {
		if !known[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	s.Columns = append(s.Columns, rest...)
	s.Rows = append(s.Rows, row)
}

// Encode writes the sheet as a single-sheet workbook.
func Encode(s Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	name := s.Name
	if name == "" {
		name = defaultSheet
	}
	if name != defaultSheet {
		if err := f.SetSheetName(defaultSheet, name); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}

	if len(s.Columns) > 0 {
		header := make([]interface{}, len(s.Columns))
		for i, c := range s.Columns {
			header[i] = c
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, r := range s.Rows {
		values := make([]interface{}, len(s.Columns))
		for j, c := range s.Columns {
			values[j] = r[c]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteCSV writes the header and rows in column order.
func (s Sheet) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Columns); err != nil {
		return err
	}
	for _, r := range s.Rows {
		rec := make([]string, len(s.Columns))
		for i, c := range s.Columns {
			rec[i] = r[c]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
