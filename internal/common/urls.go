package common

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// JoinPath safely joins URL path segments, preventing duplicate slashes
func JoinPath(segments ...string) string {
	result := ""
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if result == "" {
			result = seg
		} else if result[len(result)-1] == '/' {
			if seg[0] == '/' {
				result += seg[1:]
			} else {
				result += seg
			}
		} else {
			if seg[0] == '/' {
				result += seg
			} else {
				result += "/" + seg
			}
		}
	}
	return result
}

// NormalizeBaseURL parses and normalizes a base URL to scheme://host[path]
// with any trailing slash removed. Returns an empty string for unparseable input.
func NormalizeBaseURL(baseURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	result := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	path := strings.TrimSuffix(parsed.Path, "/")
	if path != "" {
		result += path
	}
	return result
}

// ProjectVariableURL builds the verification URL for a project-scoped variable.
// With a field path:    {base}/api/project/{projectID}/variable/{source}/{fieldPath}
// Without a field path: {base}/api/project/{projectID}/variable/{source}
func ProjectVariableURL(baseURL, projectID, source, fieldPath string) string {
	if fieldPath == "" {
		return JoinPath(baseURL, "api", "project", projectID, "variable", source)
	}
	return JoinPath(baseURL, "api", "project", projectID, "variable", source, fieldPath)
}

// InvoiceVariableURL builds the verification URL for an invoice-scoped variable:
// {base}/api/invoice/{invoiceID}/variable/{fieldPath}
func InvoiceVariableURL(baseURL, invoiceID, fieldPath string) string {
	return JoinPath(baseURL, "api", "invoice", invoiceID, "variable", fieldPath)
}

// ProjectNexusURL builds the verification URL for a project nexus breakdown:
// {base}/api/project/{projectID}/nexus
func ProjectNexusURL(baseURL, projectID string) string {
	return JoinPath(baseURL, "api", "project", projectID, "nexus")
}

// NBPRateURL builds the NBP table A exchange-rate endpoint for a currency and date:
// {base}/exchangerates/rates/a/{code}/{date}/?format=json
func NBPRateURL(baseURL, currency string, date time.Time) string {
	code := strings.ToLower(strings.TrimSpace(currency))
	return JoinPath(baseURL, "exchangerates", "rates", "a", code, date.Format("2006-01-02")) + "/?format=json"
}
