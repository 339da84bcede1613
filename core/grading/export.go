package grading

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// WriteGradebookXLSX writes the gradebook as a workbook: one row per student, four quarter columns
// and an average per subject, then the general average.
func WriteGradebookXLSX(w io.Writer, gb Gradebook, title string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Gradebook"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	header := []interface{}{"LRN", "Name", "Gender"}
	for _, subject := range gb.Subjects {
		for _, q := range Quarters {
			header = append(header, subject+" "+q)
		}
		header = append(header, subject+" Avg")
	}
	header = append(header, "General Average")

	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return errors.Wrap(err, "writing title")
	}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for i, row := range gb.Rows {
		vals := []interface{}{row.LRN, row.Name, row.Gender}
		for _, sg := range row.Subjects {
			for _, q := range Quarters {
				vals = append(vals, cellValue(sg.Quarters[q]))
			}
			vals = append(vals, cellValue(sg.Average))
		}
		vals = append(vals, row.GeneralAverage)

		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(sheet, cell, &vals); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}

	if err := styleHeader(f, sheet, len(header)); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

// WriteClassRecordXLSX writes a class record: scores per activity, category percentages, final grade and remarks.
func WriteClassRecordXLSX(w io.Writer, rec ClassRecord, title string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := rec.Quarter
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	header := []interface{}{"LRN", "Name"}
	for _, act := range rec.Activities {
		header = append(header, act.Name)
	}
	header = append(header, "WW %", "PT %", "QA %", "Final Grade", "Remarks")

	maxRow := []interface{}{"", "Max score"}
	for _, act := range rec.Activities {
		maxRow = append(maxRow, act.MaxScore)
	}

	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return errors.Wrap(err, "writing title")
	}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if err := f.SetSheetRow(sheet, "A3", &maxRow); err != nil {
		return errors.Wrap(err, "writing max scores")
	}

	for i, row := range rec.Rows {
		vals := []interface{}{row.LRN, row.Name}
		for _, act := range rec.Activities {
			vals = append(vals, cellValue(row.Scores[act.Name]))
		}
		vals = append(vals, row.WrittenWork, row.PerformanceTask, row.QuarterlyAssessment, row.FinalGrade, row.Remarks)

		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(sheet, cell, &vals); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}

	if err := styleHeader(f, sheet, len(header)); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

func styleHeader(f *excelize.File, sheet string, cols int) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	last, err := excelize.CoordinatesToCellName(cols, 2)
	if err != nil {
		return err
	}
	if err = f.SetCellStyle(sheet, "A2", last, style); err != nil {
		return errors.Wrap(err, "styling header")
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 2, TopLeftCell: "A3", ActivePane: "bottomLeft"})
}

func cellValue(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
