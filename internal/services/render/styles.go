package render

import "strings"

// Style names recognised by the renderer. Unknown names resolve to the
// default preset so callers can pass user input straight through.
const (
	StyleDefault    = "default"
	StyleBRDocument = "br_document"
	StyleMinimal    = "minimal"
)

// Stylesheet resolves a stylesheet preset by name.
func Stylesheet(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StyleBRDocument:
		return styleBRDocument
	case StyleMinimal:
		return styleMinimal
	default:
		return styleDefault
	}
}

const styleDefault = `body {
  font-family: "Segoe UI", "Helvetica Neue", Arial, sans-serif;
  font-size: 11pt;
  line-height: 1.5;
  color: #1a1a1a;
  max-width: 48em;
  margin: 0 auto;
  padding: 1em;
}
h1 { font-size: 1.6em; border-bottom: 2px solid #2c3e50; padding-bottom: 0.2em; }
h2 { font-size: 1.3em; margin-top: 1.4em; }
h3 { font-size: 1.1em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; font-size: 0.95em; }
th, td { border: 1px solid #b0b0b0; padding: 0.35em 0.6em; text-align: left; }
th { background: #eef1f4; }
code { font-family: "Consolas", monospace; background: #f4f4f4; padding: 0 0.2em; }
pre { background: #f4f4f4; padding: 0.8em; overflow-x: auto; }
nav.toc { background: #f8f9fa; border: 1px solid #d9dde1; padding: 0.8em 1.2em; margin-bottom: 1.5em; }
nav.toc h2 { margin: 0 0 0.4em 0; font-size: 1.05em; }
nav.toc ul { margin: 0; padding-left: 1.2em; list-style: none; }
nav.toc li.toc-level-3 { padding-left: 1.2em; }
.footnotes { font-size: 0.85em; color: #444; border-top: 1px solid #ccc; margin-top: 2em; }
`

// styleBRDocument is the formal preset for filings: serif text, numbered
// feel, print margins and visible table grids.
const styleBRDocument = `@page { size: A4; margin: 2cm 1.8cm; }
body {
  font-family: "Times New Roman", Georgia, serif;
  font-size: 11pt;
  line-height: 1.45;
  color: #000;
  margin: 0 auto;
  max-width: 46em;
  text-align: justify;
}
h1 {
  font-size: 1.45em;
  text-align: center;
  text-transform: uppercase;
  letter-spacing: 0.03em;
  border-bottom: 3px double #000;
  padding-bottom: 0.35em;
}
h2 { font-size: 1.2em; margin-top: 1.5em; border-bottom: 1px solid #555; padding-bottom: 0.15em; }
h3 { font-size: 1.05em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; font-size: 0.92em; text-align: left; }
th, td { border: 1px solid #000; padding: 0.3em 0.55em; }
th { background: #e8e8e8; }
td { vertical-align: top; }
strong { letter-spacing: 0.01em; }
blockquote { border-left: 3px solid #888; margin-left: 0; padding-left: 1em; font-style: italic; }
nav.toc { border: 1px solid #000; padding: 0.8em 1.2em; margin-bottom: 1.8em; }
nav.toc h2 { margin: 0 0 0.4em 0; font-size: 1.05em; border: none; }
nav.toc ul { margin: 0; padding-left: 1.2em; list-style: none; }
nav.toc li.toc-level-3 { padding-left: 1.2em; }
.footnotes { font-size: 0.82em; border-top: 1px solid #000; margin-top: 2.5em; }
.footnotes a { color: #000; }
`

const styleMinimal = `body { font-family: sans-serif; font-size: 11pt; margin: 1em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 0.25em 0.5em; }
`
