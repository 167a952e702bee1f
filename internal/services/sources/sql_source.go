package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSource executes a named-placeholder query against the shared read-model
// pool. Placeholders use the :name form; '::' type casts pass through.
type SQLSource struct {
	pool  *pgxpool.Pool
	query string
}

// NewSQLSource binds a query to the pool.
func NewSQLSource(pool *pgxpool.Pool, query string) *SQLSource {
	return &SQLSource{pool: pool, query: query}
}

// Run translates the named placeholders, executes the query, and returns
// the rows as maps. One row collapses to a single map payload.
func (s *SQLSource) Run(ctx context.Context, params map[string]interface{}) (interface{}, string, error) {
	if s.pool == nil {
		return nil, s.query, fmt.Errorf("database not configured")
	}

	sql, args, err := translateNamedQuery(s.query, params)
	if err != nil {
		return nil, s.query, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.query, fmt.Errorf("query failed: %w", err)
	}
	result, err := rowsToMaps(rows)
	if err != nil {
		return nil, s.query, fmt.Errorf("row scan failed: %w", err)
	}

	if len(result) == 1 {
		return result[0], s.query, nil
	}
	return result, s.query, nil
}

// translateNamedQuery rewrites :name placeholders into positional $N
// arguments, reusing the same ordinal for repeated names. Every referenced
// name must be present in params.
func translateNamedQuery(query string, params map[string]interface{}) (string, []interface{}, error) {
	var (
		b        strings.Builder
		args     []interface{}
		ordinals = map[string]int{}
	)

	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != ':' {
			b.WriteRune(r)
			continue
		}
		// '::' is a Postgres cast, not a placeholder
		if i+1 < len(runes) && runes[i+1] == ':' {
			b.WriteString("::")
			i++
			continue
		}
		if i+1 >= len(runes) || !isIdentStart(runes[i+1]) {
			b.WriteRune(r)
			continue
		}

		j := i + 1
		for j < len(runes) && isIdentRune(runes[j]) {
			j++
		}
		name := string(runes[i+1 : j])

		n, seen := ordinals[name]
		if !seen {
			value, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("missing parameter '%s'", name)
			}
			args = append(args, value)
			n = len(args)
			ordinals[name] = n
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
		i = j - 1
	}

	return b.String(), args, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentRune(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func rowsToMaps(rows pgx.Rows) ([]map[string]interface{}, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
