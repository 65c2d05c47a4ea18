package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	enc "github.com/babyresell/babyresell/internal/encoding"
	"github.com/babyresell/babyresell/internal/item"
)

const sniffLines = 5

// Row is one parsed listing. Line is the 1-based CSV record number, counting
// the header and any preamble (blank lines are not counted).
type Row struct {
	Line   int
	Params item.CreateParams
}

// Result separates importable rows from rows that were rejected.
type Result struct {
	Profile string
	Rows    []Row
	Errors  []RowError
}

type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse reads a listing spreadsheet in any supported encoding, with either a
// comma or semicolon delimiter, and matches its header to a known profile.
func (p *Parser) Parse(r io.Reader) (*Result, error) {
	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	if len(rows) == 0 {
		return &Result{}, nil
	}

	profile, cols, headerIdx := detectProfile(rows)
	if profile == nil {
		return nil, fmt.Errorf("no matching listing format found: need at least title and price columns")
	}

	res := parseRows(profile, cols, rows[headerIdx+1:], headerIdx+1)
	res.Profile = profile.Name

	return res, nil
}

// sniffDelimiter picks ';' when the first few lines hold more semicolons
// than commas. Exports often start with a title line, so one line is not enough.
func sniffDelimiter(data []byte) rune {
	var semis, commas int

	for i, line := range bytes.SplitN(data, []byte("\n"), sniffLines+1) {
		if i == sniffLines {
			break
		}

		semis += bytes.Count(line, []byte(";"))
		commas += bytes.Count(line, []byte(","))
	}

	if semis > commas {
		return ';'
	}

	return ','
}

type colIndex map[string]int

func detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.ToLower(strings.TrimSpace(cell))
			if name != "" {
				cols[name] = i
			}
		}

		for i := range profiles {
			if matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[strings.ToLower(name)]; !ok {
			return false
		}
	}

	return true
}

func parseRows(p *Profile, cols colIndex, rows [][]string, headerRowNum int) *Result {
	res := &Result{}

	for i, row := range rows {
		line := headerRowNum + i + 1

		if blank(row) {
			continue
		}

		title := cell(row, cols, p.TitleCol)
		if title == "" {
			res.Errors = append(res.Errors, RowError{Line: line, Reason: "missing title"})
			continue
		}

		price, err := parsePrice(cell(row, cols, p.PriceCol))
		if err != nil || price == 0 {
			res.Errors = append(res.Errors, RowError{Line: line, Reason: "invalid price"})
			continue
		}

		res.Rows = append(res.Rows, Row{
			Line: line,
			Params: item.CreateParams{
				Title:       title,
				Description: cell(row, cols, p.DescCol),
				Category:    cell(row, cols, p.CategoryCol),
				Condition:   p.Conditions[strings.ToLower(cell(row, cols, p.CondCol))],
				Price:       price,
				ImageURLs:   splitURLs(cell(row, cols, p.ImagesCol)),
			},
		})
	}

	return res
}

func cell(row []string, cols colIndex, name string) string {
	if name == "" {
		return ""
	}

	idx, ok := cols[strings.ToLower(name)]
	if !ok || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}

func splitURLs(s string) []string {
	if s == "" {
		return nil
	}

	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ' '
	})
}
