package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/LovationAdmin/gst-api/models"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNotPDF  = errors.New("file is not a PDF")
	ErrNoRates = errors.New("no GST rates found in PDF")
)

var (
	rateCellRegex   = regexp.MustCompile(`\d+(\.\d+)?\s*%?`)
	hsnRegex        = regexp.MustCompile(`\b\d{2,6}\b`)
	hsnListRegex    = regexp.MustCompile(`^\d[\d\s,\.]+$`)
	serialRegex     = regexp.MustCompile(`^\d+\.?$`)
	bareRateRegex   = regexp.MustCompile(`^\d+(\.\d+)?\s*%?$`)
	nonNumericRegex = regexp.MustCompile(`[^\d.]`)
	textLineRegex   = regexp.MustCompile(`(\d{2,6})\s+(.{10,200}?)\s+(\d+(\.\d+)?)\s*%?$`)
)

// PDFParser extracts (HSN, description, rate) rows from GST rate schedules.
type PDFParser struct {
	// Horizontal gap, in font-size units, that separates two table cells.
	CellGap float64
}

func NewPDFParser() *PDFParser {
	return &PDFParser{CellGap: 1.5}
}

// ParseFile parses the PDF at path.
func (p *PDFParser) ParseFile(path string) ([]models.ParsedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat pdf: %w", err)
	}
	return p.Parse(f, info.Size())
}

// Parse parses a PDF held by r.
func (p *PDFParser) Parse(r io.ReaderAt, size int64) (rows []models.ParsedRow, err error) {
	if !IsPDF(io.NewSectionReader(r, 0, 8)) {
		return nil, ErrNotPDF
	}

	// The pdf package panics on some malformed documents.
	defer func() {
		if rec := recover(); rec != nil {
			rows = nil
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		textRows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}

		cells := make([][]string, 0, len(textRows))
		for _, row := range textRows {
			cells = append(cells, p.groupCells(row.Content))
		}
		rows = append(rows, ParsePage(cells)...)
	}

	return rows, nil
}

// IsPDF checks the %PDF- magic header.
func IsPDF(r io.Reader) bool {
	head := make([]byte, 5)
	if _, err := io.ReadFull(r, head); err != nil {
		return false
	}
	return bytes.Equal(head, []byte("%PDF-"))
}

// groupCells joins the text runs of one row into cells, starting a new cell
// wherever the horizontal gap is wider than CellGap font sizes.
func (p *PDFParser) groupCells(texts []pdf.Text) []string {
	if len(texts) == 0 {
		return nil
	}
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var cells []string
	var current strings.Builder
	prevEnd := sorted[0].X
	for i, t := range sorted {
		size := t.FontSize
		if size <= 0 {
			size = 10
		}
		gap := t.X - prevEnd
		if i > 0 && gap > p.CellGap*size {
			cells = append(cells, strings.TrimSpace(current.String()))
			current.Reset()
		} else if i > 0 && gap > 0.2*size && !strings.HasSuffix(current.String(), " ") {
			current.WriteByte(' ')
		}
		current.WriteString(t.S)
		prevEnd = math.Max(prevEnd, t.X+t.W)
	}
	cells = append(cells, strings.TrimSpace(current.String()))
	return cells
}

// ParsePage applies the table heuristics when the page has multi-cell rows,
// otherwise it falls back to matching each line as free text.
func ParsePage(rows [][]string) []models.ParsedRow {
	var out []models.ParsedRow

	tabular := false
	for _, cells := range rows {
		if len(cells) >= 2 {
			tabular = true
			break
		}
	}

	for _, cells := range rows {
		if tabular {
			if len(cells) < 2 {
				continue
			}
			if row, ok := ParseTableRow(cells); ok {
				out = append(out, row)
			}
			continue
		}
		if row, ok := ParseTextLine(strings.Join(cells, " ")); ok {
			out = append(out, row)
		}
	}
	return out
}

// ParseTableRow reads one table row. The rate is the right-most numeric
// cell, the HSN the first 2-6 digit code, the description the first cell
// that is real text.
func ParseTableRow(raw []string) (models.ParsedRow, bool) {
	cells := make([]string, len(raw))
	for i, c := range raw {
		cells[i] = strings.TrimSpace(c)
	}

	rateText := ""
	for i := len(cells) - 1; i >= 0; i-- {
		if cells[i] != "" && rateCellRegex.MatchString(cells[i]) {
			rateText = nonNumericRegex.ReplaceAllString(cells[i], "")
			break
		}
	}

	hsn := ""
	for _, c := range cells {
		if m := hsnRegex.FindString(c); m != "" {
			hsn = m
			break
		}
	}

	desc := ""
	for _, c := range cells {
		if len(c) <= 5 {
			continue
		}
		if hsnListRegex.MatchString(c) || serialRegex.MatchString(c) || bareRateRegex.MatchString(c) {
			continue
		}
		desc = c
		break
	}
	if desc == "" {
		longest := -1
		for _, c := range cells {
			if len(c) > longest {
				longest = len(c)
				desc = c
			}
		}
	}

	if rateText == "" || desc == "" {
		return models.ParsedRow{}, false
	}
	rate, ok := parseRate(rateText)
	if !ok {
		return models.ParsedRow{}, false
	}
	return models.ParsedRow{HSN: hsn, Description: desc, Rate: rate}, true
}

// ParseTextLine matches "<hsn> <description> <rate>[%]" lines.
func ParseTextLine(line string) (models.ParsedRow, bool) {
	m := textLineRegex.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return models.ParsedRow{}, false
	}
	rate, ok := parseRate(m[3])
	if !ok {
		return models.ParsedRow{}, false
	}
	return models.ParsedRow{HSN: m[1], Description: strings.TrimSpace(m[2]), Rate: rate}, true
}

// parseRate rejects values that cannot be a percentage, such as years or
// tariff numbers that landed in the rate column.
func parseRate(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}
