package models

import "time"

// DataSourceKind identifies how a data source is executed
type DataSourceKind string

const (
	SourceKindSQL  DataSourceKind = "sql"
	SourceKindREST DataSourceKind = "rest"
	SourceKindCurl DataSourceKind = "curl"
)

// ResultField documents one field a data source returns.
type ResultField struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"` // "numeric", "text", "date"
	Description string `json:"description,omitempty"`
}

// DataSourceDescriptor declares a named pull source. Descriptors are
// stateless; registration happens once at startup.
type DataSourceDescriptor struct {
	Name        string            `json:"name"`
	Kind        DataSourceKind    `json:"kind"`
	Description string            `json:"description,omitempty"`
	Params      map[string]string `json:"params,omitempty"` // parameter name -> human description
	Fields      []ResultField     `json:"fields,omitempty"`
}

// SourceFetchConfig names one source plus its parameters for a fan-out fetch.
type SourceFetchConfig struct {
	Source string                 `json:"source"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// DataSourceResult is the envelope every fetch returns. A transport or parse
// failure populates Error and leaves the payload empty; callers never see a
// raw transport error.
type DataSourceResult struct {
	Source    string                 `json:"source"`
	Kind      DataSourceKind         `json:"kind"`
	Query     string                 `json:"query,omitempty"` // descriptor string for diagnostics
	Payload   interface{}            `json:"payload"`         // scalar, map, or ordered []map
	Variables map[string]interface{} `json:"variables,omitempty"`
	FetchedAt time.Time              `json:"fetched_at"`
	Error     string                 `json:"error,omitempty"`
}

// OK reports whether the result is usable.
func (r *DataSourceResult) OK() bool {
	return r != nil && r.Error == ""
}

// Rows returns the payload as a row list. A single map payload yields one
// row; scalar payloads yield none.
func (r *DataSourceResult) Rows() []map[string]interface{} {
	if r == nil {
		return nil
	}
	switch p := r.Payload.(type) {
	case []map[string]interface{}:
		return p
	case map[string]interface{}:
		return []map[string]interface{}{p}
	}
	return nil
}

// FirstRow returns the first payload row, or nil.
func (r *DataSourceResult) FirstRow() map[string]interface{} {
	rows := r.Rows()
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// Variable returns a derived scalar by name.
func (r *DataSourceResult) Variable(name string) (interface{}, bool) {
	if r == nil || r.Variables == nil {
		return nil, false
	}
	v, ok := r.Variables[name]
	return v, ok
}

// SourceResults collects fan-out results keyed by source name, preserving
// the order sources were requested in.
type SourceResults struct {
	order   []string
	results map[string]*DataSourceResult
}

// NewSourceResults returns an empty ordered result set.
func NewSourceResults() *SourceResults {
	return &SourceResults{results: make(map[string]*DataSourceResult)}
}

// Add stores a result. The first Add of a name fixes its position.
func (s *SourceResults) Add(name string, result *DataSourceResult) {
	if _, exists := s.results[name]; !exists {
		s.order = append(s.order, name)
	}
	s.results[name] = result
}

// Get returns the result for a source name.
func (s *SourceResults) Get(name string) (*DataSourceResult, bool) {
	r, ok := s.results[name]
	return r, ok
}

// Names returns source names in request order.
func (s *SourceResults) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of collected results.
func (s *SourceResults) Len() int {
	return len(s.order)
}

// Failed returns the names of sources whose fetch produced an error.
func (s *SourceResults) Failed() []string {
	var failed []string
	for _, name := range s.order {
		if r := s.results[name]; r != nil && !r.OK() {
			failed = append(failed, name)
		}
	}
	return failed
}
