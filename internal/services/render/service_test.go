package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func createTestService() *Service {
	return NewService(Config{DisableBrowser: true}, arbor.NewLogger())
}

func TestRenderHTML_TablesAndFootnotes(t *testing.T) {
	s := createTestService()

	markdown := `# Rejestr kosztów

| Pozycja | Kwota |
|---------|-------|
| Licencja | 12 000,00 zł |

Koszt kwalifikowany[^1].

[^1]: Źródło: [total_gross](http://localhost:81/api/project/p1/variable/expenses_summary/total_gross)
`

	html, meta, err := s.RenderHTML(markdown)
	require.NoError(t, err)
	assert.True(t, meta.Empty())
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>12 000,00 zł</td>")
	assert.Contains(t, html, "footnote")
}

func TestRenderHTML_FrontmatterParsedAndStripped(t *testing.T) {
	s := createTestService()

	markdown := `---
title: Karta projektu B+R
project: PRJ-001
fiscal_year: 2025
generated_at: 2025-03-01T10:00:00Z
---

# Karta projektu B+R
`

	html, meta, err := s.RenderHTML(markdown)
	require.NoError(t, err)
	assert.Equal(t, "Karta projektu B+R", meta.Title)
	assert.Equal(t, "PRJ-001", meta.ProjectID)
	assert.Equal(t, 2025, meta.FiscalYear)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), meta.GeneratedAt)
	assert.NotContains(t, html, "fiscal_year")
}

func TestRenderHTML_MalformedFrontmatterKeptAsContent(t *testing.T) {
	s := createTestService()

	markdown := "---\n: not yaml [\n---\n\n# Dokument\n"
	html, meta, err := s.RenderHTML(markdown)
	require.NoError(t, err)
	assert.True(t, meta.Empty())
	assert.Contains(t, html, "Dokument")
	assert.Contains(t, html, "not yaml")
}

func TestRenderDocument_FullPageWithTOC(t *testing.T) {
	s := createTestService()

	markdown := `# Karta projektu B+R

## 1. Opis projektu

Treść.

## 2. Charakter innowacji

Treść.

## 3. Metodyka

Treść.
`

	page, _, err := s.RenderDocument(markdown, StyleBRDocument)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, `<html lang="pl">`)
	assert.Contains(t, page, "<title>Karta projektu B+R</title>")
	assert.Contains(t, page, "Spis treści")
	assert.Contains(t, page, `<nav class="toc">`)
	assert.Contains(t, page, "1. Opis projektu")
}

func TestRenderDocument_NoTOCForShortDocuments(t *testing.T) {
	s := createTestService()

	page, _, err := s.RenderDocument("# Tytuł\n\n## Jedna sekcja\n\nTreść.\n", "minimal")
	require.NoError(t, err)
	assert.NotContains(t, page, "Spis treści")
}

func TestStylesheet_UnknownFallsBackToDefault(t *testing.T) {
	assert.Equal(t, styleDefault, Stylesheet("no_such_style"))
	assert.Equal(t, styleDefault, Stylesheet(""))
	assert.Equal(t, styleBRDocument, Stylesheet("BR_Document"))
	assert.Equal(t, styleMinimal, Stylesheet("minimal"))
}

func TestRenderPDF_CoreFontEngine(t *testing.T) {
	s := createTestService()

	markdown := `# Karta projektu B+R: Przykład

**Podmiot:** Spółka Sp. z o.o. (NIP: 588-191-86-62)

## Koszty kwalifikowane

| Kategoria | Kwota brutto | Odliczenie |
|-----------|--------------|------------|
| Wynagrodzenia pracowników | 120 000,00 zł | 240 000,00 zł |
| Materiały i surowce | 8 500,00 zł | 8 500,00 zł |

Łączne odliczenie: **248 500,00 zł**.

---

## Przypisy źródłowe

[^1]: Źródło: [total_gross](http://localhost:81/api/project/p1/variable/expenses_summary)
`

	pdf, err := s.RenderPDF(context.Background(), markdown, StyleBRDocument)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
	assert.Greater(t, len(pdf), 500)
}

func TestRenderPDF_CoreFontCodeBlock(t *testing.T) {
	s := createTestService()

	markdown := "# Ewidencja\n\nZapis księgowy:\n\n```\nKonto 550-01  Wn  71 800,00\nKonto 202-03  Ma  71 800,00\n```\n"

	pdf, err := s.RenderPDF(context.Background(), markdown, "default")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
}

func TestRenderPDF_CancelledContext(t *testing.T) {
	s := createTestService()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RenderPDF(ctx, "# Dokument\n", "default")
	assert.Error(t, err)
}

func TestWriteFile_Atomic(t *testing.T) {
	s := createTestService()
	dir := t.TempDir()
	target := filepath.Join(dir, "out", "doc.pdf")

	require.NoError(t, s.WriteFile(target, []byte("%PDF-1.4 test")))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(data))

	// no temp leftovers
	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
