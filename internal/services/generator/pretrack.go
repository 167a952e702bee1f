package generator

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/tracker"
)

// trackOrigin names one derived scalar worth a verification footnote and how
// to render it for the literal search. keys are variable names to try in
// order; multi-row fetches derive sum_ aggregates instead of plain totals.
type trackOrigin struct {
	source string
	field  string
	keys   []string
	format func(interface{}) (string, bool)
}

// trackOrigins lists the scalars annotated in generated documents. Only
// values that actually appear verbatim in the document get a footnote.
var trackOrigins = []trackOrigin{
	{source: "expenses_summary", field: "total_gross", keys: []string{"total_gross"}, format: amountLiteral},
	{source: "expenses_summary", field: "total_net", keys: []string{"total_net"}, format: amountLiteral},
	{source: "expenses_summary", field: "total_deduction", keys: []string{"total_deduction"}, format: amountLiteral},
	{source: "timesheet_summary", field: "total_hours", keys: []string{"total_hours", "sum_hours"}, format: hoursLiteral},
	{source: "nexus_calculation", field: "nexus", keys: []string{"nexus"}, format: nexusLiteral},
}

type trackHit struct {
	origin    trackOrigin
	value     string
	pos       int
	invoiceID string
}

// annotate inserts footnote markers after the first occurrence of each
// tracked scalar and registers the footnote with the tracker. Markers are
// assigned in document order so ordinals read top to bottom.
func (s *Service) annotate(markdown string, trk *tracker.Tracker, results *models.SourceResults, req *models.GenerateRequest) string {
	var hits []trackHit

	if results != nil {
		for _, origin := range trackOrigins {
			result, ok := results.Get(origin.source)
			if !ok || !result.OK() {
				continue
			}
			raw, ok := originValue(result, origin)
			if !ok {
				continue
			}
			literal, ok := origin.format(raw)
			if !ok {
				continue
			}
			pos := strings.Index(markdown, literal)
			if pos < 0 {
				continue
			}
			hits = append(hits, trackHit{origin: origin, value: literal, pos: pos})
		}
	}

	if req.Expense != nil && req.Expense.ID != "" {
		for _, field := range []struct {
			name  string
			value float64
		}{
			{"gross_amount", req.Expense.GrossAmount},
			{"net_amount", req.Expense.NetAmount},
		} {
			literal, ok := amountLiteral(field.value)
			if !ok {
				continue
			}
			pos := strings.Index(markdown, literal)
			if pos < 0 {
				continue
			}
			hits = append(hits, trackHit{
				origin:    trackOrigin{source: "invoice", field: field.name},
				value:     literal,
				pos:       pos,
				invoiceID: req.Expense.ID,
			})
		}
	}

	if len(hits) == 0 {
		return markdown
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	// markers are assigned in document order, then inserted back to front so
	// earlier positions stay valid
	markers := make([]string, len(hits))
	for i, hit := range hits {
		if hit.invoiceID != "" {
			markers[i] = trk.TrackInvoice(hit.origin.field, hit.value, hit.invoiceID, hit.origin.field)
		} else {
			markers[i] = trk.Track(hit.origin.field, hit.value, hit.origin.source, hit.origin.field)
		}
	}
	for i := len(hits) - 1; i >= 0; i-- {
		markdown = insertMarker(markdown, hits[i].pos, len(hits[i].value), markers[i])
	}
	return markdown
}

// originValue resolves the scalar behind an origin, preferring derived
// variables and falling back to the first payload row.
func originValue(result *models.DataSourceResult, origin trackOrigin) (interface{}, bool) {
	for _, key := range origin.keys {
		if v, ok := result.Variable(key); ok {
			return v, true
		}
	}
	if row := result.FirstRow(); row != nil {
		if v, ok := row[origin.field]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// insertMarker places a footnote reference after the value occurrence. A
// currency suffix belongs to the displayed amount, so the marker goes after
// it; when the value sits inside bold delimiters the marker goes after the
// closing asterisks so the emphasis stays intact.
func insertMarker(markdown string, pos, length int, marker string) string {
	end := pos + length
	if strings.HasPrefix(markdown[end:], " zł") {
		end += len(" zł")
	}
	if strings.HasPrefix(markdown[end:], "**") && pos >= 2 && markdown[pos-2:pos] == "**" {
		end += 2
	}
	return markdown[:end] + marker + markdown[end:]
}

// amountLiteral renders a monetary value the way FormatAmount prints it in
// the document body.
func amountLiteral(v interface{}) (string, bool) {
	f, ok := floatValue(v)
	if !ok || f == 0 {
		return "", false
	}
	return common.FormatAmount(f), true
}

// hoursLiteral renders an hour total to one decimal, matching round(1).
func hoursLiteral(v interface{}) (string, bool) {
	f, ok := floatValue(v)
	if !ok || f == 0 {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', 1, 64), true
}

// nexusLiteral renders the Nexus indicator to four decimals, matching round(4).
func nexusLiteral(v interface{}) (string, bool) {
	f, ok := floatValue(v)
	if !ok || f == 0 {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', 4, 64), true
}
