package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

func TestFinalCleanDocument(t *testing.T) {
	content := "# Dokument rozliczeniowy\n\nNIP: 588-191-86-62, rok podatkowy 2025."
	vctx := models.NewValidationContext(content, models.DocTypeGeneric)
	vctx.CompanyNIP = "5881918662"
	vctx.FiscalYear = 2025

	result, err := NewFinalValidator().Validate(context.Background(), vctx)

	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 1.0, result.Score)
	assert.Empty(t, result.Issues)
	assert.Equal(t, "final", result.Stage)
}

func TestFinalLeftoverPlaceholders(t *testing.T) {
	content := `# Karta projektu

**Podmiot:** {{ company.name }}
**Projekt:** {{ company.name }} realizuje {{ project.name }}

{% for e in expenses %}
`
	vctx := models.NewValidationContext(content, models.DocTypeGeneric)

	result, err := NewFinalValidator().Validate(context.Background(), vctx)

	require.NoError(t, err)
	// Repeated placeholders report once; three distinct ones remain.
	require.Len(t, result.Issues, 3)
	for _, issue := range result.Issues {
		assert.Equal(t, pkgmodels.CodeMissingField, issue.Code)
		assert.Equal(t, pkgmodels.SeverityError, issue.Severity)
	}
	assert.Contains(t, result.Issues[0].Message, "{{ company.name }}")
	assert.Contains(t, result.Issues[1].Message, "{{ project.name }}")
	assert.Contains(t, result.Issues[2].Message, "{% for e in expenses %}")
	assert.False(t, result.Valid)
	assert.InDelta(t, 0.4, result.Score, 0.001)
}

func TestFinalCompanyNIPPresence(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		vctx := models.NewValidationContext("# Dokument\n\nTreść bez identyfikatora podmiotu.", models.DocTypeGeneric)
		vctx.CompanyNIP = "5881918662"

		result, err := NewFinalValidator().Validate(context.Background(), vctx)

		require.NoError(t, err)
		issue := findIssue(t, result.Issues, pkgmodels.CodeMissingField)
		assert.Equal(t, pkgmodels.SeverityWarning, issue.Severity)
		assert.Contains(t, issue.Message, "NIP")
	})

	t.Run("bare form found", func(t *testing.T) {
		vctx := models.NewValidationContext("# Dokument\n\nNIP 5881918662 w nagłówku.", models.DocTypeGeneric)
		vctx.CompanyNIP = "588-191-86-62"

		result, err := NewFinalValidator().Validate(context.Background(), vctx)

		require.NoError(t, err)
		assert.Empty(t, result.Issues)
	})

	t.Run("formatted form found", func(t *testing.T) {
		vctx := models.NewValidationContext("# Dokument\n\nNIP 588-191-86-62 w nagłówku.", models.DocTypeGeneric)
		vctx.CompanyNIP = "5881918662"

		result, err := NewFinalValidator().Validate(context.Background(), vctx)

		require.NoError(t, err)
		assert.Empty(t, result.Issues)
	})

	t.Run("unset skips the check", func(t *testing.T) {
		vctx := models.NewValidationContext("# Dokument\n\nTreść bez identyfikatora podmiotu.", models.DocTypeGeneric)

		result, err := NewFinalValidator().Validate(context.Background(), vctx)

		require.NoError(t, err)
		assert.Empty(t, result.Issues)
	})
}

func TestFinalFiscalYearPresence(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		vctx := models.NewValidationContext("# Dokument\n\nRozliczenie za rok 2024.", models.DocTypeGeneric)
		vctx.FiscalYear = 2025

		result, err := NewFinalValidator().Validate(context.Background(), vctx)

		require.NoError(t, err)
		issue := findIssue(t, result.Issues, pkgmodels.CodeMissingField)
		assert.Equal(t, pkgmodels.SeverityWarning, issue.Severity)
		assert.Contains(t, issue.Message, "2025")
	})

	t.Run("unset skips the check", func(t *testing.T) {
		vctx := models.NewValidationContext("# Dokument\n\nRozliczenie bez wskazania roku.", models.DocTypeGeneric)

		result, err := NewFinalValidator().Validate(context.Background(), vctx)

		require.NoError(t, err)
		assert.Empty(t, result.Issues)
	})
}
