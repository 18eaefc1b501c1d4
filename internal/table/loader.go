package table

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Options controls how a file is turned into a Table.
type Options struct {
	Name      string   // dataset name; defaults to the file base name
	IDColumn  string   // gene ID column; defaults to the first column
	Columns   []string // numeric columns to keep; empty keeps all but the ID column
	Sheet     string   // worksheet for .xlsx input; defaults to the first sheet
	Delimiter rune     // 0 selects ',' for .csv and '\t' otherwise
}

// Records holds the raw string cells of a file.
type Records struct {
	Path   string
	Header []string
	Rows   [][]string
}

// ParseError describes a malformed input file.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("table parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("table parse error in %s: %s", e.Path, e.Message)
}

// Cell values treated as missing.
var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"nan":  true,
	"n/a":  true,
	"null": true,
	"-":    true,
}

// LoadFile reads a delimited (optionally gzipped) or .xlsx file into a Table.
func LoadFile(path string, opts Options) (*Table, error) {
	rec, err := ReadRecords(path, opts)
	if err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = baseName(path)
	}
	return FromRecords(rec, opts)
}

// ReadRecords reads the raw header and rows of a file.
func ReadRecords(path string, opts Options) (*Records, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSX(path, opts.Sheet)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br

	// Check for gzip magic number (0x1f, 0x8b)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = detectDelimiter(path)
	}
	rec, err := ReadDelimited(r, delim)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	rec.Path = path
	return rec, nil
}

// ReadDelimited reads delimited text. Lines starting with '#' are skipped
// and the first remaining line is the header.
func ReadDelimited(r io.Reader, delim rune) (*Records, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{Message: "no header line found"}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rec := &Records{Header: header}
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var ce *csv.ParseError
			if errors.As(err, &ce) {
				return nil, &ParseError{Line: ce.Line, Message: ce.Err.Error()}
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		rec.Rows = append(rec.Rows, fields)
	}
	return rec, nil
}

func readXLSX(path, sheet string) (*Records, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &ParseError{Path: path, Message: "workbook has no sheets"}
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, &ParseError{Path: path, Message: fmt.Sprintf("sheet %s is empty", sheet)}
	}

	header := rows[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return &Records{Path: path, Header: header, Rows: rows[1:]}, nil
}

// FromRecords converts raw records into a numeric Table.
func FromRecords(rec *Records, opts Options) (*Table, error) {
	idCol := 0
	if opts.IDColumn != "" {
		idCol = indexOf(rec.Header, opts.IDColumn)
		if idCol == -1 {
			return nil, &ParseError{Path: rec.Path, Message: fmt.Sprintf("id column %q not found in header", opts.IDColumn)}
		}
	}
	if len(rec.Header) == 0 {
		return nil, &ParseError{Path: rec.Path, Message: "empty header"}
	}

	var columns []string
	var colPos []int
	if len(opts.Columns) > 0 {
		for _, c := range opts.Columns {
			j := indexOf(rec.Header, c)
			if j == -1 {
				return nil, &ParseError{Path: rec.Path, Message: fmt.Sprintf("column %q not found in header", c)}
			}
			columns = append(columns, c)
			colPos = append(colPos, j)
		}
	} else {
		for j, c := range rec.Header {
			if j == idCol {
				continue
			}
			columns = append(columns, c)
			colPos = append(colPos, j)
		}
	}

	ids := make([]string, 0, len(rec.Rows))
	values := make([][]float64, 0, len(rec.Rows))
	for n, fields := range rec.Rows {
		// header is line 1
		line := n + 2
		if idCol >= len(fields) {
			return nil, &ParseError{Path: rec.Path, Line: line, Message: "missing id column"}
		}
		id := strings.TrimSpace(fields[idCol])
		if id == "" {
			continue
		}

		row := make([]float64, len(colPos))
		for k, j := range colPos {
			cell := ""
			if j < len(fields) {
				cell = fields[j]
			}
			v, err := parseCell(cell)
			if err != nil {
				return nil, &ParseError{
					Path:    rec.Path,
					Line:    line,
					Message: fmt.Sprintf("invalid value %q in column %s", cell, columns[k]),
				}
			}
			row[k] = v
		}
		ids = append(ids, id)
		values = append(values, row)
	}

	return New(opts.Name, columns, ids, values)
}

// parseCell parses a numeric cell; missing tokens become NaN.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if missingTokens[strings.ToLower(s)] {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func detectDelimiter(path string) rune {
	lower := strings.TrimSuffix(strings.ToLower(path), ".gz")
	if strings.HasSuffix(lower, ".csv") {
		return ','
	}
	return '\t'
}

func baseName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
