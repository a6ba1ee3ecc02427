package quotation

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirinyoku/stagekit/internal/domain"
)

const sheetName = "Quotation"

var header = []any{"ID", "Description", "Quantity", "Unit price", "Amount"}

// WriteXLSX writes q as a single-sheet workbook with a totals row.
func WriteXLSX(w io.Writer, q domain.Quotation) error {
	const op = "quotation.WriteXLSX"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	for i, it := range q.Items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		row := []any{it.ID, it.Description, it.Quantity, it.UnitPrice, it.Amount}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
	}

	totalRow := len(q.Items) + 2
	if err := f.SetCellValue(sheetName, fmt.Sprintf("D%d", totalRow), "Total"); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	if err := f.SetCellValue(sheetName, fmt.Sprintf("E%d", totalRow), q.Total); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := f.SetColWidth(sheetName, "B", "B", 48); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
