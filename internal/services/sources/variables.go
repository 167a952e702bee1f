package sources

import (
	"reflect"

	"github.com/ternarybob/scribo/internal/models"
)

// knownScalarKeys are copied into the variable map when a fetch yields
// exactly one row.
var knownScalarKeys = []string{"total_gross", "total_net", "nexus", "total_hours"}

// numericSumFields get sum_/count_ aggregates when a fetch yields multiple rows.
var numericSumFields = []string{"gross_amount", "net_amount", "hours", "total_hours"}

// deriveVariables extracts the trackable scalar map from a fetched payload.
// Failed results and scalar payloads produce no variables.
func deriveVariables(result *models.DataSourceResult) {
	rows := result.Rows()
	switch {
	case len(rows) == 1:
		for _, key := range knownScalarKeys {
			if value, ok := rows[0][key]; ok && value != nil {
				setVariable(result, key, value)
			}
		}

	case len(rows) > 1:
		for _, field := range numericSumFields {
			sum := 0.0
			count := 0
			for _, row := range rows {
				if f, ok := numericValue(row[field]); ok {
					sum += f
					count++
				}
			}
			if count > 0 {
				setVariable(result, "sum_"+field, sum)
				setVariable(result, "count_"+field, count)
			}
		}
	}
}

func setVariable(result *models.DataSourceResult, name string, value interface{}) {
	if result.Variables == nil {
		result.Variables = make(map[string]interface{})
	}
	result.Variables[name] = value
}

func numericValue(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}
