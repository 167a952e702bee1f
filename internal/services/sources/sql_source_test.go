package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateNamedQuery(t *testing.T) {
	sql, args, err := translateNamedQuery(
		"SELECT * FROM invoices WHERE project_id = :project_id AND status = :status",
		map[string]interface{}{"project_id": "prj-1", "status": "processed"},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM invoices WHERE project_id = $1 AND status = $2", sql)
	assert.Equal(t, []interface{}{"prj-1", "processed"}, args)
}

func TestTranslateNamedQueryRepeatedName(t *testing.T) {
	sql, args, err := translateNamedQuery(
		"SELECT :year AS y1, :year AS y2 WHERE fiscal_year = :year",
		map[string]interface{}{"year": 2025},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT $1 AS y1, $1 AS y2 WHERE fiscal_year = $1", sql)
	require.Len(t, args, 1)
	assert.Equal(t, 2025, args[0])
}

func TestTranslateNamedQueryCastPassthrough(t *testing.T) {
	sql, args, err := translateNamedQuery(
		"SELECT sum(hours)::float8 FROM time_entries WHERE project_id = :project_id",
		map[string]interface{}{"project_id": "prj-1"},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT sum(hours)::float8 FROM time_entries WHERE project_id = $1", sql)
	assert.Len(t, args, 1)
}

func TestTranslateNamedQueryMissingParam(t *testing.T) {
	_, _, err := translateNamedQuery(
		"SELECT * FROM projects WHERE id = :project_id",
		map[string]interface{}{},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing parameter 'project_id'")
}

func TestTranslateNamedQueryColonBeforeDigit(t *testing.T) {
	// A colon followed by a digit is not a placeholder (time literals etc.)
	sql, args, err := translateNamedQuery(
		"SELECT '10:30' AS slot WHERE id = :id",
		map[string]interface{}{"id": 7},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT '10:30' AS slot WHERE id = $1", sql)
	assert.Len(t, args, 1)
}

func TestTranslateNamedQueryTrailingColon(t *testing.T) {
	sql, args, err := translateNamedQuery("SELECT ':' AS sep, name FROM t WHERE x = :x, y = :",
		map[string]interface{}{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "SELECT ':' AS sep, name FROM t WHERE x = $1, y = :", sql)
	assert.Len(t, args, 1)
}

func TestSQLSourceNilPool(t *testing.T) {
	src := NewSQLSource(nil, "SELECT 1")
	_, query, err := src.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not configured")
	assert.Equal(t, "SELECT 1", query)
}
