package reports

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
)

type PayrollRow struct {
	EmployeeName  string
	Role          string
	DaysWorked    int
	DaysAbsent    int
	LateCount     int
	WorkedHours   float64
	OvertimeHours float64
	GrossPay      float64
}

type PayrollReportData struct {
	CafeName    string
	PeriodStart string
	PeriodEnd   string
	GeneratedAt string
	Rows        []PayrollRow
	TotalGross  float64
}

// RenderPayrollPDF lays out a payroll run as a one-page-per-run A4 report.
func RenderPayrollPDF(data PayrollReportData) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, data.CafeName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Payroll %s - %s", data.PeriodStart, data.PeriodEnd), "", 1, "C", false, 0, "")
	if data.GeneratedAt != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Generated: %s", data.GeneratedAt), "", 1, "C", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(48, 6, "Employee", "B", 0, "L", false, 0, "")
	pdf.CellFormat(22, 6, "Role", "B", 0, "L", false, 0, "")
	pdf.CellFormat(16, 6, "Days", "B", 0, "R", false, 0, "")
	pdf.CellFormat(16, 6, "Absent", "B", 0, "R", false, 0, "")
	pdf.CellFormat(16, 6, "Late", "B", 0, "R", false, 0, "")
	pdf.CellFormat(20, 6, "Hours", "B", 0, "R", false, 0, "")
	pdf.CellFormat(20, 6, "OT hrs", "B", 0, "R", false, 0, "")
	pdf.CellFormat(28, 6, "Gross pay", "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		pdf.CellFormat(48, 6, row.EmployeeName, "", 0, "L", false, 0, "")
		pdf.CellFormat(22, 6, row.Role, "", 0, "L", false, 0, "")
		pdf.CellFormat(16, 6, fmt.Sprintf("%d", row.DaysWorked), "", 0, "R", false, 0, "")
		pdf.CellFormat(16, 6, fmt.Sprintf("%d", row.DaysAbsent), "", 0, "R", false, 0, "")
		pdf.CellFormat(16, 6, fmt.Sprintf("%d", row.LateCount), "", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%.2f", row.WorkedHours), "", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%.2f", row.OvertimeHours), "", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, formatMoney(row.GrossPay), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(158, 7, "Total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(28, 7, formatMoney(data.TotalGross), "T", 1, "R", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func formatMoney(v float64) string {
	whole := int64(v)
	s := fmt.Sprintf("%d", whole)
	if whole < 0 {
		return s
	}
	out := ""
	for len(s) > 3 {
		out = "." + s[len(s)-3:] + out
		s = s[:len(s)-3]
	}
	return s + out
}
