package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const defaultRESTTimeout = 30 * time.Second

// RESTSource pulls a REST endpoint. {name} placeholders substitute into the
// URL template; leftover params become query-string entries for GET and the
// JSON body for POST. HTML payloads are converted to Markdown, optionally
// narrowed to a CSS selector first.
type RESTSource struct {
	URLTemplate string
	Method      string            // GET unless set
	Headers     map[string]string
	Selector    string            // optional CSS selector applied to HTML payloads
	Timeout     time.Duration     // defaultRESTTimeout unless set
	Limiter     *rate.Limiter     // optional, for external endpoints
}

// Run executes the HTTP call with a short-lived client, so retried fetches
// never share keep-alive connections.
func (s *RESTSource) Run(ctx context.Context, params map[string]interface{}) (interface{}, string, error) {
	endpoint, leftover := substituteURL(s.URLTemplate, params)

	method := strings.ToUpper(s.Method)
	if method == "" {
		method = http.MethodGet
	}
	descriptor := method + " " + endpoint

	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, descriptor, err
		}
	}

	var body io.Reader
	switch method {
	case http.MethodGet:
		if len(leftover) > 0 {
			q := url.Values{}
			for name, value := range leftover {
				q.Set(name, paramString(value))
			}
			separator := "?"
			if strings.Contains(endpoint, "?") {
				separator = "&"
			}
			endpoint += separator + q.Encode()
			descriptor = method + " " + endpoint
		}
	case http.MethodPost:
		if len(leftover) > 0 {
			encoded, err := json.Marshal(leftover)
			if err != nil {
				return nil, descriptor, fmt.Errorf("failed to encode body: %w", err)
			}
			body = bytes.NewReader(encoded)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, descriptor, fmt.Errorf("invalid request: %w", err)
	}
	for name, value := range s.Headers {
		req.Header.Set(name, value)
	}
	if method == http.MethodPost && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultRESTTimeout
	}
	client := &http.Client{Timeout: timeout}

	resp, err := client.Do(req)
	if err != nil {
		return nil, descriptor, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, descriptor, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, descriptor, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	payload, err := s.parsePayload(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return nil, descriptor, err
	}
	return payload, descriptor, nil
}

func (s *RESTSource) parsePayload(contentType string, raw []byte) (interface{}, error) {
	switch {
	case strings.Contains(contentType, "application/json"):
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("invalid JSON payload: %w", err)
		}
		return normalizeJSON(decoded), nil

	case strings.Contains(contentType, "text/html"):
		html := string(raw)
		if s.Selector != "" {
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
			if err != nil {
				return nil, fmt.Errorf("failed to parse HTML: %w", err)
			}
			selection := doc.Find(s.Selector).First()
			if selection.Length() == 0 {
				return nil, fmt.Errorf("selector '%s' matched nothing", s.Selector)
			}
			selected, err := goquery.OuterHtml(selection)
			if err != nil {
				return nil, fmt.Errorf("failed to extract selection: %w", err)
			}
			html = selected
		}
		converter := md.NewConverter("", true, nil)
		markdown, err := converter.ConvertString(html)
		if err != nil {
			return nil, fmt.Errorf("HTML conversion failed: %w", err)
		}
		return strings.TrimSpace(markdown), nil

	default:
		return strings.TrimSpace(string(raw)), nil
	}
}

// substituteURL replaces {name} placeholders and returns the params that
// were not consumed by the template.
func substituteURL(template string, params map[string]interface{}) (string, map[string]interface{}) {
	leftover := make(map[string]interface{}, len(params))
	for name, value := range params {
		leftover[name] = value
	}

	result := template
	for name, value := range params {
		placeholder := "{" + name + "}"
		if strings.Contains(result, placeholder) {
			result = strings.ReplaceAll(result, placeholder, url.PathEscape(paramString(value)))
			delete(leftover, name)
		}
	}
	return result, leftover
}

func paramString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02")
	case float64:
		// Whole-valued floats come from JSON decoding of integers
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// normalizeJSON converts []interface{} of objects into []map for the row
// helpers on DataSourceResult.
func normalizeJSON(v interface{}) interface{} {
	list, ok := v.([]interface{})
	if !ok {
		return v
	}
	rows := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		row, ok := item.(map[string]interface{})
		if !ok {
			return v
		}
		rows = append(rows, row)
	}
	return rows
}
