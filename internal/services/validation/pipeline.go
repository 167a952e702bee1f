package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// Stage names in execution order.
const (
	StageStructure   = "structure"
	StageLegal       = "legal"
	StageFinancial   = "financial"
	StageModelReview = "model_review"
	StageFinal       = "final"
)

// Service runs the staged validation pipeline. Stages share one
// ValidationContext and only ever append to it, so running them in order
// yields the same issues as running each alone and concatenating.
type Service struct {
	stages []interfaces.Validator
	logger arbor.ILogger
}

var _ interfaces.ValidationService = (*Service)(nil)

// NewService wires the standard five-stage pipeline. A nil chain leaves the
// model review stage permanently skipped.
func NewService(chain interfaces.ModelService, logger arbor.ILogger) *Service {
	return NewPipeline(logger,
		NewStructureValidator(),
		NewLegalValidator(),
		NewFinancialValidator(),
		NewModelReviewValidator(chain, logger),
		NewFinalValidator(),
	)
}

// NewPipeline builds a pipeline over an explicit stage list.
func NewPipeline(logger arbor.ILogger, stages ...interfaces.Validator) *Service {
	return &Service{stages: stages, logger: logger}
}

func (s *Service) Stages() []string {
	names := make([]string, len(s.stages))
	for i, stage := range s.stages {
		names[i] = stage.Name()
	}
	return names
}

func (s *Service) Validate(ctx context.Context, vctx *models.ValidationContext, opts models.ValidationOptions) (*models.PipelineReport, error) {
	if vctx == nil {
		return nil, fmt.Errorf("validation context is nil")
	}

	start := len(vctx.Issues)
	executed := make([]pkgmodels.ValidationResult, 0, len(s.stages))

	for _, stage := range s.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := stage.Name()
		if opts.SkipModelReview && name == StageModelReview {
			continue
		}

		vctx.CurrentStage = name
		result, err := stage.Validate(ctx, vctx)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		if result == nil {
			s.logger.Debug().Str("stage", name).Msg("Stage skipped")
			continue
		}
		if result.Stage == "" {
			result.Stage = name
		}
		if result.ValidatedAt.IsZero() {
			result.ValidatedAt = time.Now()
		}

		executed = append(executed, *result)
		vctx.StageResults = append(vctx.StageResults, *result)
		s.logger.Debug().
			Str("stage", name).
			Int("errors", result.ErrorCount()).
			Int("warnings", result.WarningCount()).
			Float64("score", result.Score).
			Msg("Validation stage complete")

		if opts.StopOnError && result.ErrorCount() > 0 {
			s.logger.Warn().Str("stage", name).Msg("Validation stopped on first error")
			break
		}
	}
	vctx.CurrentStage = ""

	valid := true
	total := 0.0
	for _, result := range executed {
		valid = valid && result.Valid
		total += result.Score
	}
	divisor := len(executed)
	if divisor == 0 {
		divisor = 1
	}

	report := &models.PipelineReport{
		Valid:       valid,
		Score:       total / float64(divisor),
		Stages:      executed,
		Issues:      append([]pkgmodels.ValidationIssue(nil), vctx.Issues[start:]...),
		ValidatedAt: time.Now(),
	}
	s.logger.Info().
		Bool("valid", report.Valid).
		Float64("score", report.Score).
		Int("issues", len(report.Issues)).
		Msg("Validation pipeline finished")
	return report, nil
}
