package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// RenderPDF produces the paginated PDF for a document. The browser engine is
// preferred when one is installed; otherwise the core-font engine paginates
// the Markdown directly. Output is validated and page-counted before it is
// returned, so callers never commit a broken artifact.
func (s *Service) RenderPDF(ctx context.Context, markdown string, styleName string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, body := s.parseMeta(markdown)

	var pdf []byte
	if binary := s.browserBinary(); binary != "" {
		page, _, err := s.RenderDocument(markdown, styleName)
		if err != nil {
			return nil, err
		}
		pdf, err = s.browserPDF(ctx, binary, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn().Err(err).Msg("Browser PDF engine failed, using core-font engine")
			pdf = nil
		}
	}

	if pdf == nil {
		var err error
		pdf, err = s.coreFontPDF(body, meta)
		if err != nil {
			return nil, err
		}
	}

	pages, err := s.validatePDF(pdf)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("pages", pages).
		Int("bytes", len(pdf)).
		Str("style", styleName).
		Msg("PDF rendered")
	return pdf, nil
}

// validatePDF runs the output through pdfcpu and returns the page count.
func (s *Service) validatePDF(pdf []byte) (int, error) {
	pdfCtx, err := api.ReadContext(bytes.NewReader(pdf), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF output: %w", err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return 0, fmt.Errorf("PDF output failed validation: %w", err)
	}
	return pdfCtx.PageCount, nil
}

// WriteFile writes bytes atomically: a temp file in the target directory is
// renamed over the destination, so readers never observe a partial artifact.
func (s *Service) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
