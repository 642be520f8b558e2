// Package report renders the alert history as a PDF.
package report

import (
	"bytes"
	"fmt"
	"time"

	"GapWatchAPI/internal/models"

	"github.com/jung-kurt/gofpdf"
)

type column struct {
	title string
	width float64
}

var columns = []column{
	{"Monitor", 45},
	{"Message", 70},
	{"Quiet since", 32},
	{"Raised", 32},
	{"Status", 18},
}

const rowHeight = 7

// AlertReport lists alerts newest first with the monitor name resolved from
// monitors. Unknown monitor IDs are printed as is.
func AlertReport(monitors []*models.Monitor, alerts []models.Alert, generatedAt time.Time) ([]byte, error) {
	names := make(map[string]string, len(monitors))
	for _, m := range monitors {
		names[m.ID] = m.Name
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("GapWatch alert report", false)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range columns {
			pdf.CellFormat(c.width, rowHeight, c.title, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "GapWatch alert report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s - %d monitors, %d alerts",
		generatedAt.UTC().Format(time.RFC3339), len(monitors), len(alerts)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if len(alerts) == 0 {
		pdf.CellFormat(0, 8, "No alerts recorded.", "", 1, "L", false, 0, "")
	} else {
		header()
	}

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()

	for _, a := range alerts {
		if pdf.GetY()+rowHeight > pageHeight-bottom-10 {
			pdf.AddPage()
			header()
		}

		name := names[a.MonitorID]
		if name == "" {
			name = a.MonitorID
		}

		cells := []string{
			truncate(name, 28),
			truncate(a.Message, 46),
			time.Unix(a.GapStartedAt, 0).UTC().Format("2006-01-02 15:04"),
			a.CreatedAt.UTC().Format("2006-01-02 15:04"),
			a.Status,
		}
		for i, c := range columns {
			pdf.CellFormat(c.width, rowHeight, tr(cells[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render alert report: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "~"
}
