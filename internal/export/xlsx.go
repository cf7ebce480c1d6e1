package export

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"

	"ghanaoil/internal/model"
)

const sheetName = "quarterly"

// WriteXLSX writes the frame as a single-sheet workbook. Periods are stored as
// text and values as numbers.
func WriteXLSX(path string, frame model.Frame, indexName string) error {
	staged, err := StageXLSX(path, frame, indexName)
	if err != nil {
		return err
	}
	defer staged.Discard()
	return staged.Commit()
}

// StageXLSX builds the workbook next to path without replacing it.
func StageXLSX(path string, frame model.Frame, indexName string) (*Staged, error) {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, errors.Wrap(err, "rename sheet")
	}

	header := Header(frame, indexName)
	for col, name := range header {
		if err := setCell(book, col, 1, name); err != nil {
			return nil, err
		}
	}
	for r, row := range frame.Rows {
		if err := setCell(book, 0, r+2, row.Period.String()); err != nil {
			return nil, err
		}
		for f, value := range row.Values {
			if err := setCell(book, f+1, r+2, value); err != nil {
				return nil, err
			}
		}
	}
	if err := book.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, errors.Wrap(err, "freeze header")
	}

	return stage(path, func(w io.Writer) error {
		return book.Write(w)
	})
}

func setCell(book *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return errors.Wrap(err, "cell name")
	}
	if err := book.SetCellValue(sheetName, cell, value); err != nil {
		return errors.Wrapf(err, "set %s", cell)
	}
	return nil
}
