package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// Job names of the default maintenance set.
const (
	JobFXRefresh    = "fx_refresh"
	JobVersionPrune = "version_prune"
	JobSummaryRegen = "summary_regen"
)

// KV keys the jobs read and write.
const (
	fxCurrenciesKey = "fx_currencies"          // comma-separated ISO codes
	fxRatePrefix    = "fx_rate_"               // fx_rate_EUR -> mid rate
	regenInputKey   = "schedule_project_input" // ProjectInput JSON for the monthly regen
)

// defaultCurrencies are warmed when fx_currencies is not set. EUR and USD
// cover the foreign invoices the expense registry sees in practice.
var defaultCurrencies = []string{"EUR", "USD"}

// JobDeps collects what the default jobs operate on. Nil members disable
// the jobs that need them.
type JobDeps struct {
	Sources      interfaces.DataSourceService
	KV           interfaces.KeyValueStorage
	Versions     interfaces.VersionService
	Records      interfaces.GenerationStorage
	Orchestrator interfaces.OrchestratorService
}

// RegisterDefaultJobs installs the maintenance jobs with the schedules from
// configuration: the NBP rate-cache refresh, the nightly version-store
// prune and the monthly summary regeneration.
func RegisterDefaultJobs(s *Service, config *common.Config, deps JobDeps) error {
	if deps.Sources != nil && deps.KV != nil {
		err := s.RegisterJob(JobFXRefresh, config.Schedule.FXRefresh,
			"Refresh cached NBP table A exchange rates",
			func() error { return refreshFXRates(deps.Sources, deps.KV) })
		if err != nil {
			return err
		}
	}

	if deps.Versions != nil && deps.Records != nil {
		keep := config.Schedule.VersionPruneKeep
		err := s.RegisterJob(JobVersionPrune, config.Schedule.VersionPrune,
			fmt.Sprintf("Prune artifact revisions beyond the newest %d", keep),
			func() error { return pruneVersions(deps.Versions, deps.Records, keep) })
		if err != nil {
			return err
		}
	}

	if deps.Orchestrator != nil && deps.KV != nil {
		err := s.RegisterJob(JobSummaryRegen, config.Schedule.SummaryRegen,
			"Regenerate the annual summary from the stored project input",
			func() error { return regenerateSummary(deps.Orchestrator, deps.KV) })
		if err != nil {
			return err
		}
	}

	return nil
}

// refreshFXRates warms the KV rate cache for each configured currency. A
// rate that is still current per the NBP publication calendar is kept.
func refreshFXRates(sources interfaces.DataSourceService, kv interfaces.KeyValueStorage) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	currencies := defaultCurrencies
	if raw, err := kv.Get(ctx, fxCurrenciesKey); err == nil && raw != "" {
		currencies = nil
		for _, c := range strings.Split(raw, ",") {
			if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
				currencies = append(currencies, c)
			}
		}
	}

	now := time.Now()
	var failed []string
	for _, currency := range currencies {
		if cached, err := kv.Get(ctx, fxRatePrefix+currency+"_date"); err == nil && cached != "" {
			if cachedDate, err := time.Parse("2006-01-02", cached); err == nil {
				if check := common.CheckRateStaleness(cachedDate, now); !check.IsStale {
					continue
				}
			}
		}

		result := sources.Fetch(ctx, "nbp_exchange_rate", map[string]interface{}{
			"currency": currency,
			"date":     lastBusinessDay(now),
		})
		if !result.OK() {
			failed = append(failed, fmt.Sprintf("%s: %s", currency, result.Error))
			continue
		}

		mid, effectiveDate, ok := extractMidRate(result.FirstRow())
		if !ok {
			failed = append(failed, fmt.Sprintf("%s: no mid rate in response", currency))
			continue
		}

		if err := kv.Set(ctx, fxRatePrefix+currency, strconv.FormatFloat(mid, 'f', 4, 64),
			"NBP table A mid rate"); err != nil {
			return err
		}
		if err := kv.Set(ctx, fxRatePrefix+currency+"_date", effectiveDate,
			"Effective date of the cached NBP rate"); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("FX refresh incomplete: %s", strings.Join(failed, "; "))
	}
	return nil
}

// extractMidRate pulls the newest quote from an NBP rates payload row.
func extractMidRate(row map[string]interface{}) (float64, string, bool) {
	if row == nil {
		return 0, "", false
	}
	rates, ok := row["rates"].([]interface{})
	if !ok || len(rates) == 0 {
		return 0, "", false
	}
	quote, ok := rates[len(rates)-1].(map[string]interface{})
	if !ok {
		return 0, "", false
	}
	mid, ok := quote["mid"].(float64)
	if !ok {
		return 0, "", false
	}
	date, _ := quote["effectiveDate"].(string)
	return mid, date, true
}

// lastBusinessDay walks back from now to the most recent NBP business day.
func lastBusinessDay(now time.Time) string {
	day := now
	for i := 0; i < 7 && !common.IsNBPBusinessDay(day); i++ {
		day = day.AddDate(0, 0, -1)
	}
	return day.Format("2006-01-02")
}

// pruneVersions trims revision history for every artifact of every project
// the generation records know about, plus the unassigned directory.
func pruneVersions(store interfaces.VersionService, records interfaces.GenerationStorage, keep int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rows, err := records.ListRecords(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list generation records: %w", err)
	}

	projects := map[string]bool{"unassigned": true}
	for _, row := range rows {
		if row.ProjectID != "" {
			projects[row.ProjectID] = true
		}
	}

	var errs []string
	for projectID := range projects {
		artifacts, err := store.ListArtifacts(projectID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", projectID, err))
			continue
		}
		for _, artifact := range artifacts {
			if _, err := store.Prune(projectID+"/"+artifact.Path, keep); err != nil {
				errs = append(errs, fmt.Sprintf("%s/%s: %v", projectID, artifact.Path, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("prune incomplete: %s", strings.Join(errs, "; "))
	}
	return nil
}

// regenerateSummary reruns the annual summary for the project input stored
// under schedule_project_input. Without a stored input the job is a no-op.
func regenerateSummary(orch interfaces.OrchestratorService, kv interfaces.KeyValueStorage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	raw, err := kv.Get(ctx, regenInputKey)
	if err != nil || raw == "" {
		return nil
	}

	var input pkgmodels.ProjectInput
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return fmt.Errorf("stored project input is malformed: %w", err)
	}

	result, err := orch.GenerateDocumentation(ctx, &input, interfaces.OrchestratorOptions{
		MaxIterations: -1,
	})
	if err != nil {
		return err
	}
	if result.Status == pkgmodels.GenerationFailed {
		return fmt.Errorf("scheduled regeneration failed: %s", result.Error)
	}
	return nil
}
