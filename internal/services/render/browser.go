package render

import (
	"context"
	"os/exec"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// browserCandidates are probed in order when no explicit path is configured.
var browserCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
}

// A4 paper size in inches for the print-to-PDF call.
const (
	a4WidthIn  = 8.27
	a4HeightIn = 11.69
)

// browserBinary resolves the browser executable once per process. Empty
// means no browser is reachable and the core-font engine handles every
// render for the process lifetime.
func (s *Service) browserBinary() string {
	s.browserOnce.Do(func() {
		if s.config.DisableBrowser {
			return
		}

		candidates := browserCandidates
		if s.config.BrowserPath != "" {
			candidates = []string{s.config.BrowserPath}
		}
		for _, name := range candidates {
			if path, err := exec.LookPath(name); err == nil {
				s.browserPath = path
				s.logger.Debug().Str("browser", path).Msg("PDF browser engine available")
				return
			}
		}
	})
	return s.browserPath
}

// browserPDF prints a full HTML document to PDF through a headless browser.
func (s *Service) browserPDF(ctx context.Context, binary string, html string) ([]byte, error) {
	timeout := s.config.PDFTimeout
	if timeout <= 0 {
		timeout = defaultPDFTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(binary),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthIn).
				WithPaperHeight(a4HeightIn).
				WithMarginTop(0.6).
				WithMarginBottom(0.6).
				WithMarginLeft(0.55).
				WithMarginRight(0.55).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}
