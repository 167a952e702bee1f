package render

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

const (
	defaultPDFTimeout = 30 * time.Second

	// The contents block is emitted only for documents with enough section
	// headings to make navigation worthwhile.
	tocMinEntries = 3
	tocMaxLevel   = 3
)

// Config holds renderer settings.
type Config struct {
	// BrowserPath overrides browser discovery; empty probes common names.
	BrowserPath string

	// DisableBrowser forces the core-font engine even when a browser exists.
	DisableBrowser bool

	// PDFTimeout bounds one browser print. Zero means 30 s.
	PDFTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PDFTimeout: defaultPDFTimeout}
}

// Service converts generated Markdown to HTML fragments, full styled pages
// and paginated PDFs. Two engines back the PDF path: a headless browser
// printing the styled page when one is installed, and a core-font paginator
// that needs nothing beyond the process itself.
type Service struct {
	config Config
	logger arbor.ILogger

	// md carries the full extension set for HTML output; pdfMD is the leaner
	// pipeline the core-font engine walks.
	md    goldmark.Markdown
	pdfMD goldmark.Markdown

	browserOnce sync.Once
	browserPath string
}

var _ interfaces.RenderService = (*Service)(nil)

// NewService creates a renderer.
func NewService(config Config, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		logger: logger,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
				parser.WithAttribute(),
			),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		pdfMD: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

// RenderHTML converts Markdown to an HTML fragment. A leading YAML
// frontmatter block is parsed into DocMeta and stripped from the output.
func (s *Service) RenderHTML(markdown string) (string, *models.DocMeta, error) {
	meta, body := s.parseMeta(markdown)

	var buf bytes.Buffer
	if err := s.md.Convert([]byte(body), &buf); err != nil {
		return "", nil, fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), meta, nil
}

// RenderDocument wraps the rendered fragment in a complete styled HTML page
// with a contents block when the document has enough section headings.
func (s *Service) RenderDocument(markdown string, styleName string) (string, *models.DocMeta, error) {
	meta, body := s.parseMeta(markdown)
	source := []byte(body)

	doc := s.md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	if err := s.md.Renderer().Render(&buf, source, doc); err != nil {
		return "", nil, fmt.Errorf("failed to render markdown: %w", err)
	}

	title := meta.Title
	if title == "" {
		title = documentTitle(doc, source)
	}
	if title == "" {
		title = "Dokument"
	}

	page := fmt.Sprintf(documentShell,
		stdhtml.EscapeString(title),
		Stylesheet(styleName),
		buildTOC(doc, source),
		buf.String(),
	)
	return page, meta, nil
}

const documentShell = `<!DOCTYPE html>
<html lang="pl">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
%s</style>
</head>
<body>
%s%s</body>
</html>
`

// parseMeta splits and decodes the frontmatter block. A malformed block is
// kept as document content so nothing silently disappears.
func (s *Service) parseMeta(markdown string) (*models.DocMeta, string) {
	block, body := common.SplitFrontmatter(markdown)
	if block == "" {
		return &models.DocMeta{}, body
	}

	var meta models.DocMeta
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		s.logger.Warn().Err(err).Msg("Malformed document frontmatter, keeping it as content")
		return &models.DocMeta{}, markdown
	}
	return &meta, strings.TrimLeft(body, "\n")
}

// documentTitle returns the text of the first top-level heading.
func documentTitle(doc ast.Node, source []byte) string {
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			return string(h.Text(source))
		}
	}
	return ""
}

// buildTOC renders the contents block from level 2 and 3 headings. Heading
// ids come from the parser, so anchors match the rendered fragment exactly.
func buildTOC(doc ast.Node, source []byte) string {
	type tocEntry struct {
		level int
		title string
		id    string
	}

	var entries []tocEntry
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level < 2 || h.Level > tocMaxLevel {
			continue
		}
		attr, found := h.AttributeString("id")
		if !found {
			continue
		}
		id, ok := attr.([]byte)
		if !ok || len(id) == 0 {
			continue
		}
		entries = append(entries, tocEntry{level: h.Level, title: string(h.Text(source)), id: string(id)})
	}
	if len(entries) < tocMinEntries {
		return ""
	}

	var b strings.Builder
	b.WriteString("<nav class=\"toc\">\n<h2>Spis treści</h2>\n<ul>\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "<li class=\"toc-level-%d\"><a href=\"#%s\">%s</a></li>\n",
			e.level, e.id, stdhtml.EscapeString(e.title))
	}
	b.WriteString("</ul>\n</nav>\n")
	return b.String()
}
