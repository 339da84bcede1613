package student

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/gradebook/core"
)

var (
	ErrEmptyFile   = core.NewFieldError("file", "file is empty")
	ErrNoValidRows = core.NewFieldError("file", "no valid rows found")
	ErrUnsupported = core.NewFieldError("file", "only .csv and .xlsx files are supported")
)

// ImportResult reports the outcome of an import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ParseFile parses a CSV or XLSX roster, picking the format from the file name.
// Rows missing an LRN, a name or a gender are skipped.
func ParseFile(filename string, r io.Reader) ([]Student, int, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	}
	return nil, 0, ErrUnsupported
}

func ParseCSV(r io.Reader) ([]Student, int, error) {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1 // tolerate ragged rows
	rdr.TrimLeadingSpace = true

	records, err := rdr.ReadAll()
	if err != nil {
		return nil, 0, core.NewFieldError("file", fmt.Sprintf("invalid CSV: %v", err))
	}
	return parseRecords(records)
}

// ParseXLSX reads the first sheet of the workbook, its first row being the header.
func ParseXLSX(r io.Reader) ([]Student, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, core.NewFieldError("file", "invalid XLSX file")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, ErrEmptyFile
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, 0, errors.Wrap(err, "reading rows")
	}
	return parseRecords(records)
}

func parseRecords(records [][]string) ([]Student, int, error) {
	if len(records) < 2 { // header only
		return nil, 0, ErrEmptyFile
	}

	header := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		header[NormalizeHeader(col)] = i
	}
	get := func(rec []string, col string) string {
		if i, ok := header[col]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	students := make([]Student, 0, len(records)-1)
	var skipped int
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		st := Student{
			LRN:           get(rec, "lrn"),
			Name:          core.CleanName(get(rec, "name")),
			Gender:        NormalizeGender(get(rec, "gender")),
			DateOfBirth:   validDate(NormalizeDate(get(rec, "date_of_birth"))),
			ContactNumber: get(rec, "contact_number"),
			Address:       get(rec, "address"),
			FatherName:    core.CleanName(get(rec, "father_name")),
			FatherContact: get(rec, "father_contact"),
			MotherName:    core.CleanName(get(rec, "mother_name")),
			MotherContact: get(rec, "mother_contact"),
		}
		if st.LRN == "" || st.Name == "" || st.Gender == "" {
			skipped++
			continue
		}
		if !validLRN(st.LRN) || (st.Gender != GenderMale && st.Gender != GenderFemale) {
			skipped++
			continue
		}
		students = append(students, st)
	}

	if len(students) == 0 {
		return nil, skipped, ErrNoValidRows
	}
	return students, skipped, nil
}

// NormalizeHeader strips the BOM, trims & lowercases a column name and replaces its spaces with underscores.
func NormalizeHeader(col string) string {
	col = strings.ReplaceAll(col, "\ufeff", "")
	col = strings.ToLower(strings.TrimSpace(col))
	return strings.Join(strings.Fields(col), "_")
}

// NormalizeDate converts M/D/YYYY dates to YYYY-MM-DD. Other values are returned trimmed.
func NormalizeDate(val string) string {
	val = strings.TrimSpace(val)
	if !strings.Contains(val, "/") {
		return val
	}
	parts := strings.Split(val, "/")
	if len(parts) != 3 {
		return val
	}
	m, d, y := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	return fmt.Sprintf("%s-%s-%s", y, leftPad(m), leftPad(d))
}

// validDate returns "" when val is not a YYYY-MM-DD date.
func validDate(val string) string {
	if _, err := time.Parse(core.DateLayout, val); err != nil {
		return ""
	}
	return val
}

func leftPad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
