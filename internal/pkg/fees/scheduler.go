package fees

import (
	"context"
	"slices"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// RuleOutcome is the result of generating one rule during a sweep.
type RuleOutcome struct {
	RuleID       uint   `json:"rule_id"`
	PeriodBucket string `json:"period_bucket"`
	Created      int    `json:"created"`
	Skipped      int    `json:"skipped"`
	Error        string `json:"error,omitempty"`
	// Err keeps the classified failure behind Error.
	Err error `json:"-"`
}

func (o *RuleOutcome) fail(err error) {
	o.Err = err
	o.Error = err.Error()
}

// SweepReport summarizes one scheduler invocation.
type SweepReport struct {
	AsOf      time.Time     `json:"as_of"`
	Activated []uint        `json:"activated"`
	Rules     []RuleOutcome `json:"rules"`
	Created   int           `json:"created"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Overdue   int64         `json:"overdue"`
}

// Scheduler activates scheduled rules, runs generation for active rules
// and flags overdue applications.
type Scheduler struct {
	rules        repository.FeeRuleRepository
	runs         repository.FeeRuleRunRepository
	applications repository.FeeApplicationRepository
	settings     repository.SettingRepository
	generator    *Generator
	now          func() time.Time
}

func NewScheduler(repos *repository.Repositories, generator *Generator, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		rules:        repos.FeeRule,
		runs:         repos.FeeRuleRun,
		applications: repos.FeeApplication,
		settings:     repos.Setting,
		generator:    generator,
		now:          now,
	}
}

// ActivateScheduledRules moves every scheduled rule whose effective date is
// on or before today to active and returns the activated IDs.
func (s *Scheduler) ActivateScheduledRules(ctx context.Context, today time.Time) ([]uint, error) {
	due, err := s.rules.ListDueForActivation(ctx, today)
	if err != nil {
		return nil, errors.Wrap(err, "list scheduled fee rules")
	}

	activated := make([]uint, 0, len(due))
	for _, rule := range due {
		ok, err := s.rules.ActivateIfScheduled(ctx, rule.ID, s.now())
		if err != nil {
			log.Errorf("[FeeScheduler] Failed to activate fee rule %d: %v", rule.ID, err)
			continue
		}
		if ok {
			log.Infof("[FeeScheduler] Activated fee rule %d (%s), effective %s", rule.ID, rule.Name, rule.EffectiveDate.Format(time.DateOnly))
			activated = append(activated, rule.ID)
		}
	}
	return activated, nil
}

// GenerateRule runs the generator for one rule and records the attempt in
// the run log and on the rule itself. Non-active rules yield an empty
// outcome and leave no log entry.
func (s *Scheduler) GenerateRule(ctx context.Context, rule *models.FeeRule, asOf time.Time, trigger string) RuleOutcome {
	outcome := RuleOutcome{RuleID: rule.ID}
	if !rule.IsActive() {
		return outcome
	}
	bucket, err := PeriodBucket(rule, asOf)
	if err != nil {
		outcome.fail(err)
		return outcome
	}
	outcome.PeriodBucket = bucket

	run := &models.FeeRuleRun{
		FeeRuleID:    rule.ID,
		AsOf:         DateOnly(asOf),
		PeriodBucket: bucket,
		Trigger:      trigger,
		StartedAt:    s.now(),
	}

	var result GenerationResult
	var pc panics.Catcher
	pc.Try(func() {
		result, err = s.generator.Generate(ctx, rule, asOf)
	})
	if recovered := pc.Recovered(); recovered != nil {
		err = recovered.AsError()
	}
	outcome.Created = result.Created
	outcome.Skipped = result.Skipped
	if err != nil {
		outcome.fail(err)
	}

	finished := s.now()
	run.Created = result.Created
	run.Skipped = result.Skipped
	run.Error = outcome.Error
	run.FinishedAt = &finished

	// Bookkeeping uses a fresh context so a cancelled sweep still leaves a trace.
	bookkeeping, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runs.Create(bookkeeping, run); err != nil {
		log.Errorf("[FeeScheduler] Failed to write run log for fee rule %d: %v", rule.ID, err)
	}
	if outcome.Error == "" {
		if err := s.rules.RecordRun(bookkeeping, rule.ID, finished, bucket); err != nil {
			log.Errorf("[FeeScheduler] Failed to record last run for fee rule %d: %v", rule.ID, err)
		}
	}
	return outcome
}

// MarkOverdue flips pending applications whose due date lies before today.
func (s *Scheduler) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	n, err := s.applications.MarkOverdue(ctx, DateOnly(today))
	if err != nil {
		return 0, errors.Wrap(err, "mark overdue fee applications")
	}
	if n > 0 {
		log.Infof("[FeeScheduler] Marked %d fee applications as overdue", n)
	}
	return n, nil
}

// RunSweep performs activation, then generation for every active rule, then
// the overdue check. Rules are generated in parallel; a failing rule is
// reported and does not stop the others.
func (s *Scheduler) RunSweep(ctx context.Context, today time.Time, trigger string) (*SweepReport, error) {
	report := &SweepReport{AsOf: DateOnly(today), Activated: []uint{}, Rules: []RuleOutcome{}}

	activated, err := s.ActivateScheduledRules(ctx, today)
	if err != nil {
		return report, err
	}
	report.Activated = activated

	active, err := s.rules.ListByStatus(ctx, models.FeeRuleStatusActive)
	if err != nil {
		return report, errors.Wrap(err, "list active fee rules")
	}

	p := pool.NewWithResults[RuleOutcome]().WithMaxGoroutines(s.workers())
	for i := range active {
		rule := active[i]
		p.Go(func() RuleOutcome {
			if err := ctx.Err(); err != nil {
				outcome := RuleOutcome{RuleID: rule.ID}
				outcome.fail(err)
				return outcome
			}
			return s.GenerateRule(ctx, &rule, today, trigger)
		})
	}
	outcomes := p.Wait()
	slices.SortFunc(outcomes, func(a, b RuleOutcome) int { return int(a.RuleID) - int(b.RuleID) })

	for _, o := range outcomes {
		report.Created += o.Created
		report.Skipped += o.Skipped
		if o.Error != "" {
			report.Failed++
			log.Errorf("[FeeScheduler] Fee rule %d failed: %s", o.RuleID, o.Error)
		}
	}
	report.Rules = outcomes

	if err := ctx.Err(); err != nil {
		return report, errors.Wrap(err, "fee sweep interrupted")
	}

	overdue, err := s.MarkOverdue(ctx, today)
	if err != nil {
		return report, err
	}
	report.Overdue = overdue

	log.Infof("[FeeScheduler] Sweep %s: activated=%d rules=%d created=%d skipped=%d failed=%d overdue=%d",
		report.AsOf.Format(time.DateOnly), len(report.Activated), len(report.Rules),
		report.Created, report.Skipped, report.Failed, report.Overdue)
	return report, nil
}

func (s *Scheduler) workers() int {
	if s.settings != nil {
		if cfg, err := s.settings.Get(); err == nil && cfg != nil {
			return cfg.GetFeeGenerationWorkers()
		}
	}
	return models.DefaultFeeGenerationWorkers
}
