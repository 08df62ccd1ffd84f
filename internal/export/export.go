// Package export writes records and payments to an xlsx workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/rollbook/internal/ledger"
	"github.com/roach88/rollbook/internal/model"
)

// Sheet names.
const (
	RecordsSheet  = "Records"
	PaymentsSheet = "Payments"
)

// RecordsHeader is the first row of the Records sheet.
var RecordsHeader = []string{
	"ID", "Name", "Mobile", "Father Name", "Father Mobile", "Relative Name",
	"Relative Mobile", "Spouse Name", "Spouse Mobile", "ID Number", "B Number",
	"S ID Number", "V Number", "Admission Date", "Validity Date",
	"Total Amount", "Received", "Remaining", "Created At",
}

// PaymentsHeader is the first row of the Payments sheet.
var PaymentsHeader = []string{"ID", "Record ID", "Record Name", "Amount", "Payment Date", "Created At"}

// Workbook builds a workbook from records and all payments. The caller
// closes the returned file.
func Workbook(records []model.Record, payments []model.Payment) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", RecordsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	if _, err := f.NewSheet(PaymentsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet %s: %w", PaymentsSheet, err)
	}

	byRecord := make(map[int64][]model.Payment, len(records))
	names := make(map[int64]string, len(records))
	for _, p := range payments {
		byRecord[p.RecordID] = append(byRecord[p.RecordID], p)
	}

	recordRows := make([][]any, 0, len(records))
	for _, r := range records {
		names[r.ID] = r.Name
		bal := ledger.BalanceOf(r.TotalAmount, byRecord[r.ID])
		recordRows = append(recordRows, []any{
			r.ID, r.Name, r.Mobile, r.FatherName, r.FatherMobile, r.RelativeName,
			r.RelativeMobile, r.SpouseName, r.SpouseMobile, r.IDNumber, r.BNumber,
			r.SIDNumber, r.VNumber, r.AdmissionDate, r.ValidityDate,
			bal.Total.InexactFloat64(), bal.Received.InexactFloat64(), bal.Remaining.InexactFloat64(),
			formatTime(r),
		})
	}

	paymentRows := make([][]any, 0, len(payments))
	for _, p := range payments {
		created := ""
		if !p.CreatedAt.IsZero() {
			created = p.CreatedAt.UTC().Format(model.TimeLayout)
		}
		paymentRows = append(paymentRows, []any{
			p.ID, p.RecordID, names[p.RecordID], p.Amount, p.PaymentDate, created,
		})
	}

	if err := writeSheet(f, RecordsSheet, RecordsHeader, recordRows); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, PaymentsSheet, PaymentsHeader, paymentRows); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteFile builds the workbook and saves it to path.
func WriteFile(path string, records []model.Record, payments []model.Payment) error {
	f, err := Workbook(records, payments)
	if err != nil {
		return model.NewPersistenceError("export.write", err)
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return model.NewPersistenceError("export.write", fmt.Errorf("save %s: %w", path, err))
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("set header %s!%s: %w", sheet, cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, bold); err != nil {
			return fmt.Errorf("style header %s!%s: %w", sheet, cell, err)
		}
	}

	for i, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func formatTime(r model.Record) string {
	if r.CreatedAt.IsZero() {
		return ""
	}
	return r.CreatedAt.UTC().Format(model.TimeLayout)
}
