package student

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	csvData := "\ufeffLRN , Name,Gender,Date of Birth,Contact Number,Father Name\n" +
		"123456789012,Juan  Dela Cruz,Male,3/7/2012,09171234567,Pedro Dela Cruz\n" +
		",No Lrn,Female,1/1/2012,,\n" +
		"123456789013,,Female,1/1/2012,,\n" +
		"123456789014,No Gender,,1/1/2012,,\n" +
		"123456789015,Maria Santos,f,2012-11-23,,\n" +
		",,,,,\n"

	students, skipped, err := ParseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseCSV() failed: %v", err)
	}
	assert.Equal(t, 3, skipped)
	if assert.Len(t, students, 2) {
		assert.Equal(t, "123456789012", students[0].LRN)
		assert.Equal(t, "Juan Dela Cruz", students[0].Name)
		assert.Equal(t, GenderMale, students[0].Gender)
		assert.Equal(t, "2012-03-07", students[0].DateOfBirth)
		assert.Equal(t, "09171234567", students[0].ContactNumber)
		assert.Equal(t, "Pedro Dela Cruz", students[0].FatherName)

		assert.Equal(t, "Maria Santos", students[1].Name)
		assert.Equal(t, GenderFemale, students[1].Gender)
		assert.Equal(t, "2012-11-23", students[1].DateOfBirth)
	}
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "empty", data: "", wantErr: ErrEmptyFile},
		{name: "header only", data: "lrn,name,gender\n", wantErr: ErrEmptyFile},
		{name: "no valid rows", data: "lrn,name,gender\n,Ana,Female\n123456789012,,Male\n", wantErr: ErrNoValidRows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseCSV(strings.NewReader(tt.data))
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"LRN", "Name", "Gender", "Date of Birth"},
		{"123456789012", "Jose Rizal", "M", "6/19/2011"},
		{"123456789013", "Andres", "", "1/1/2011"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow() failed: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	students, skipped, err := ParseFile("roster.XLSX", &buf)
	if err != nil {
		t.Fatalf("ParseFile() failed: %v", err)
	}
	assert.Equal(t, 1, skipped)
	if assert.Len(t, students, 1) {
		assert.Equal(t, "Jose Rizal", students[0].Name)
		assert.Equal(t, GenderMale, students[0].Gender)
		assert.Equal(t, "2011-06-19", students[0].DateOfBirth)
	}
}

func TestParseFile_Unsupported(t *testing.T) {
	_, _, err := ParseFile("roster.pdf", strings.NewReader("lol"))
	assert.Equal(t, ErrUnsupported, err)
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"\ufeffLRN":        "lrn",
		" Date of  Birth ": "date_of_birth",
		"father_contact":   "father_contact",
		"MOTHER NAME":      "mother_name",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHeader(in), in)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"3/7/2012":   "2012-03-07",
		"12/25/2010": "2010-12-25",
		"2012-03-07": "2012-03-07",
		" ":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeDate(in), in)
	}
}

func TestDedupeByLRN(t *testing.T) {
	got := dedupeByLRN([]Student{
		{LRN: "1", Name: "A"},
		{LRN: "2", Name: "B"},
		{LRN: "1", Name: "C"},
	})
	assert.Equal(t, []Student{{LRN: "1", Name: "C"}, {LRN: "2", Name: "B"}}, got)
}
