package reports

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
)

type StockRow struct {
	Ingredient        string
	Unit              string
	CurrentStock      float64
	DailyRate         float64
	DaysUntilStockout int
	Risk              string
	RecommendedQty    float64
}

type StockReportData struct {
	CafeName    string
	GeneratedAt string
	HorizonDays int
	Rows        []StockRow
}

// RenderStockPDF lays out the consumption forecast and reorder advice as a
// printable report for the purchasing run.
func RenderStockPDF(data StockReportData) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, data.CafeName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Stock forecast, %d-day horizon", data.HorizonDays), "", 1, "C", false, 0, "")
	if data.GeneratedAt != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Generated: %s", data.GeneratedAt), "", 1, "C", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(52, 6, "Ingredient", "B", 0, "L", false, 0, "")
	pdf.CellFormat(24, 6, "On hand", "B", 0, "R", false, 0, "")
	pdf.CellFormat(24, 6, "Daily use", "B", 0, "R", false, 0, "")
	pdf.CellFormat(26, 6, "Days left", "B", 0, "R", false, 0, "")
	pdf.CellFormat(24, 6, "Risk", "B", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, "Order qty", "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		daysLeft := "-"
		if row.DaysUntilStockout >= 0 {
			daysLeft = fmt.Sprintf("%d", row.DaysUntilStockout)
		}
		orderQty := "-"
		if row.RecommendedQty > 0 {
			orderQty = fmt.Sprintf("%.2f %s", row.RecommendedQty, row.Unit)
		}
		pdf.CellFormat(52, 6, row.Ingredient, "", 0, "L", false, 0, "")
		pdf.CellFormat(24, 6, fmt.Sprintf("%.2f %s", row.CurrentStock, row.Unit), "", 0, "R", false, 0, "")
		pdf.CellFormat(24, 6, fmt.Sprintf("%.2f", row.DailyRate), "", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, daysLeft, "", 0, "R", false, 0, "")
		pdf.CellFormat(24, 6, row.Risk, "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, orderQty, "", 1, "R", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
