package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/scribo/internal/models"
)

// Core-font page geometry in millimetres (A4 portrait).
const (
	pageMargin     = 12.0
	contentWidth   = 186.0 // 210 - 2*margin
	pageBreakGuard = 285.0 // A4 height minus bottom margin
	bodyFontSize   = 9.5
	tableFontSize  = 8.0
	tableLineH     = 4.2
	tableMaxLines  = 8
)

// coreFontPDF paginates the Markdown body directly with the built-in fonts.
// Polish glyphs are mapped through the cp1250 code page, so the engine needs
// no font files and no browser. It is the guaranteed render path.
func (s *Service) coreFontPDF(body string, meta *models.DocMeta) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	if meta != nil && meta.Title != "" {
		pdf.SetTitle(meta.Title, true)
	}
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", bodyFontSize)

	source := []byte(body)
	doc := s.pdfMD.Parser().Parse(text.NewReader(source))

	w := &coreFontWalker{
		pdf:       pdf,
		source:    source,
		translate: pdf.UnicodeTranslatorFromDescriptor("cp1250"),
		font:      "Helvetica",
		size:      bodyFontSize,
	}
	if err := ast.Walk(doc, w.walk); err != nil {
		return nil, fmt.Errorf("failed to paginate document: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF output: %w", err)
	}
	return buf.Bytes(), nil
}

// coreFontWalker renders the goldmark AST onto fpdf pages. State mirrors the
// inline style stack the walk passes through.
type coreFontWalker struct {
	pdf       *fpdf.Fpdf
	source    []byte
	translate func(string) string
	font      string
	size      float64
	bold      bool
	italic    bool
	listDepth int
}

func (w *coreFontWalker) restoreFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont(w.font, style, w.size)
}

func (w *coreFontWalker) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		return w.heading(node, entering)
	case *ast.Paragraph:
		if !entering {
			w.pdf.Ln(6)
		}
	case *ast.Text:
		if entering {
			w.pdf.Write(5, w.translate(string(node.Text(w.source))))
			if node.HardLineBreak() || node.SoftLineBreak() {
				w.pdf.Ln(5)
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.restoreFont()
	case *ast.CodeSpan:
		return w.codeSpan(node, entering)
	case *ast.FencedCodeBlock:
		if entering {
			w.codeBlock(node.Lines())
			return ast.WalkSkipChildren, nil
		}
	case *ast.CodeBlock:
		if entering {
			w.codeBlock(node.Lines())
			return ast.WalkSkipChildren, nil
		}
	case *ast.List:
		if entering {
			w.listDepth++
		} else {
			w.listDepth--
			if w.listDepth == 0 {
				w.pdf.Ln(3)
			}
		}
	case *ast.ListItem:
		if entering {
			w.pdf.Ln(5)
			w.pdf.SetX(pageMargin + float64(w.listDepth)*4)
			w.pdf.Write(5, "- ")
		}
	case *ast.ThematicBreak:
		if entering {
			w.pdf.Ln(3)
			y := w.pdf.GetY()
			w.pdf.Line(pageMargin, y, pageMargin+contentWidth, y)
			w.pdf.Ln(3)
		}
	case *extast.Table:
		if entering {
			w.table(node)
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (w *coreFontWalker) heading(n *ast.Heading, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.pdf.Ln(5)
		size := 10.5
		switch n.Level {
		case 1:
			size = 14
		case 2:
			size = 12
		case 3:
			size = 10.5
		}
		w.pdf.SetFont(w.font, "B", size)
	} else {
		w.pdf.Ln(6)
		w.restoreFont()
	}
	return ast.WalkContinue, nil
}

func (w *coreFontWalker) codeSpan(n *ast.CodeSpan, entering bool) (ast.WalkStatus, error) {
	if !entering {
		w.restoreFont()
		return ast.WalkContinue, nil
	}
	w.pdf.SetFont("Courier", "", w.size)
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			w.pdf.Write(5, w.translate(string(t.Segment.Value(w.source))))
		}
	}
	return ast.WalkSkipChildren, nil
}

func (w *coreFontWalker) codeBlock(lines *text.Segments) {
	w.pdf.Ln(2)
	w.pdf.SetFont("Courier", "", 8.5)
	w.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		w.pdf.MultiCell(0, 4.5, w.translate(string(line.Value(w.source))), "", "L", true)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.restoreFont()
	w.pdf.Ln(2)
}

// table lays a pipe table out with measured column widths, wrapped cells and
// a page break between rows when one would cross the bottom margin.
func (w *coreFontWalker) table(n *extast.Table) {
	// TableHeader and TableRow are both rows of TableCell children.
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *extast.TableHeader, *extast.TableRow:
			rows = append(rows, w.rowCells(child))
		}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	cols := len(rows[0])
	widths := w.columnWidths(rows, cols)

	w.pdf.Ln(2)
	for i, row := range rows {
		if i == 0 {
			w.pdf.SetFont(w.font, "B", tableFontSize)
		} else {
			w.pdf.SetFont(w.font, "", tableFontSize)
		}

		lines := 1
		for j, cell := range row {
			if j >= cols {
				break
			}
			if n := w.wrapCount(cell, widths[j]-2); n > lines {
				lines = n
			}
		}
		if lines > tableMaxLines {
			lines = tableMaxLines
		}
		rowHeight := float64(lines)*tableLineH + 2

		startX := pageMargin
		startY := w.pdf.GetY()
		if startY+rowHeight > pageBreakGuard {
			w.pdf.AddPage()
			startY = w.pdf.GetY()
		}

		x := startX
		for j, cell := range row {
			if j >= cols {
				break
			}
			if i == 0 {
				w.pdf.SetFillColor(232, 235, 238)
				w.pdf.Rect(x, startY, widths[j], rowHeight, "FD")
			} else {
				w.pdf.Rect(x, startY, widths[j], rowHeight, "D")
			}
			w.pdf.SetXY(x+1, startY+1)
			w.cellText(cell, widths[j]-2, lines)
			x += widths[j]
		}
		w.pdf.SetXY(startX, startY+rowHeight)
	}
	w.pdf.Ln(3)
	w.restoreFont()
}

func (w *coreFontWalker) rowCells(n ast.Node) []string {
	var row []string
	for cell := n.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			row = append(row, string(cell.Text(w.source)))
		}
	}
	return row
}

// columnWidths measures every cell and distributes the content width,
// clamping narrow and dominant columns before scaling to fit the page.
func (w *coreFontWalker) columnWidths(rows [][]string, cols int) []float64 {
	widths := make([]float64, cols)
	w.pdf.SetFont(w.font, "B", tableFontSize)
	for _, row := range rows {
		for i, cell := range row {
			if i >= cols {
				break
			}
			if cw := w.pdf.GetStringWidth(w.translate(cell)) + 4; cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	const minWidth = 11.0
	maxWidth := contentWidth / 2.5
	total := 0.0
	for i := range widths {
		if widths[i] < minWidth {
			widths[i] = minWidth
		}
		if widths[i] > maxWidth {
			widths[i] = maxWidth
		}
		total += widths[i]
	}

	scale := contentWidth / total
	if scale > 1.4 {
		scale = 1.4
	}
	for i := range widths {
		widths[i] *= scale
	}
	return widths
}

func (w *coreFontWalker) wrapCount(cell string, width float64) int {
	lines := w.wrapWords(cell, width)
	if len(lines) == 0 {
		return 1
	}
	return len(lines)
}

func (w *coreFontWalker) wrapWords(cell string, width float64) []string {
	words := splitWords(w.translate(cell))
	if len(words) == 0 {
		return nil
	}

	spaceWidth := w.pdf.GetStringWidth(" ")
	var lines []string
	current := ""
	currentWidth := 0.0
	for _, word := range words {
		wordWidth := w.pdf.GetStringWidth(word)
		switch {
		case current == "":
			current, currentWidth = word, wordWidth
		case currentWidth+spaceWidth+wordWidth <= width:
			current += " " + word
			currentWidth += spaceWidth + wordWidth
		default:
			lines = append(lines, current)
			current, currentWidth = word, wordWidth
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func (w *coreFontWalker) cellText(cell string, width float64, maxLines int) {
	lines := w.wrapWords(cell, width)
	for i := 0; i < len(lines) && i < maxLines; i++ {
		line := lines[i]
		if i == maxLines-1 && len(lines) > maxLines {
			for w.pdf.GetStringWidth(line+"...") > width && len(line) > 3 {
				line = line[:len(line)-1]
			}
			line += "..."
		}
		w.pdf.CellFormat(width, tableLineH, line, "", 2, "L", false, 0, "")
	}
}

func splitWords(s string) []string {
	var words []string
	current := ""
	for _, c := range s {
		if c == ' ' || c == '\t' || c == '\n' || c == '\u00a0' {
			if current != "" {
				words = append(words, current)
				current = ""
			}
		} else {
			current += string(c)
		}
	}
	if current != "" {
		words = append(words, current)
	}
	return words
}
