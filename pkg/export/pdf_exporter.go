package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const fontFamily = "body"

// PDFExporter renders datasets as one labelled block per row, which suits
// long free-text fields better than a fixed-width table.
type PDFExporter struct {
	fontPath string
}

// NewPDFExporter constructs a PDF exporter. fontPath points at a UTF-8 TTF
// font; without it the core Arial font is used and non-Latin text degrades.
func NewPDFExporter(fontPath string) *PDFExporter {
	return &PDFExporter{fontPath: fontPath}
}

// ContentType reports the MIME type of rendered output.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Extension reports the file extension of rendered output.
func (e *PDFExporter) Extension() string { return "pdf" }

// Render creates a PDF document with the dataset title and one block per row.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 15, 12)
	pdf.SetAutoPageBreak(true, 15)

	family := "Arial"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if e.fontPath != "" {
		pdf.AddUTF8Font(fontFamily, "", e.fontPath)
		pdf.AddUTF8Font(fontFamily, "B", e.fontPath)
		family = fontFamily
		tr = func(s string) string { return s }
	}
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont(family, "B", 14)
		pdf.CellFormat(0, 10, tr(data.Title), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	for i, row := range data.Rows {
		if len(row) != len(data.Headers) {
			return nil, fmt.Errorf("pdf row %d has %d values, want %d", i, len(row), len(data.Headers))
		}
		for j, header := range data.Headers {
			if row[j] == "" {
				continue
			}
			pdf.SetFont(family, "B", 9)
			pdf.CellFormat(35, 6, tr(header), "", 0, "", false, 0, "")
			pdf.SetFont(family, "", 9)
			pdf.MultiCell(0, 6, tr(row[j]), "", "", false)
		}
		pdf.Ln(2)
		x, y := pdf.GetXY()
		pdf.Line(x, y, 198, y)
		pdf.Ln(3)
	}

	if pdf.Err() {
		return nil, fmt.Errorf("render pdf: %w", pdf.Error())
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
