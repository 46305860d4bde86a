package fees

import (
	"context"
	"strings"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

const defaultRunListLimit = 50

// FeeRuleInput carries the admin editable fields of a fee rule.
type FeeRuleInput struct {
	Name          string
	Description   string
	Type          string
	Frequency     string
	Amount        decimal.Decimal
	ApplicableTo  string
	TargetRole    string
	TargetUnitID  *uint
	TargetZoneID  *uint
	EffectiveDate time.Time
	// Status is honoured on create only (draft or scheduled).
	Status    string
	GraceDays *int
}

// Actor identifies the caller of member facing operations.
type Actor struct {
	MemberID uint
	Admin    bool
}

// PaymentDetails describes a recorded payment.
type PaymentDetails struct {
	PaidAt    *time.Time
	Reference string
	Notes     string
}

// Service is the entry point for admin and member fee operations.
type Service struct {
	repos     *repository.Repositories
	resolver  *Resolver
	generator *Generator
	scheduler *Scheduler
	now       func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repos *repository.Repositories, opts ...Option) *Service {
	s := &Service{repos: repos, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = NewResolver(repos.Member)
	s.generator = NewGenerator(s.resolver, repos.FeeApplication, repos.Setting)
	s.scheduler = NewScheduler(repos, s.generator, s.now)
	return s
}

func (s *Service) today() time.Time {
	return DateOnly(s.now())
}

// Resolver exposes the applicability resolver.
func (s *Service) Resolver() *Resolver { return s.resolver }

// Scheduler exposes the sweep scheduler.
func (s *Service) Scheduler() *Scheduler { return s.scheduler }

// CreateFeeRule validates and stores a new rule in draft or scheduled status.
func (s *Service) CreateFeeRule(ctx context.Context, createdBy uint, in FeeRuleInput) (*models.FeeRule, error) {
	status := in.Status
	if status == "" {
		status = models.FeeRuleStatusDraft
	}
	if status != models.FeeRuleStatusDraft && status != models.FeeRuleStatusScheduled {
		return nil, validationError("new fee rules must be draft or scheduled, got %q", status)
	}

	rule := &models.FeeRule{Status: status, CreatedBy: createdBy}
	applyInput(rule, in)
	if err := s.validateRule(ctx, rule, true); err != nil {
		return nil, err
	}

	if err := s.repos.FeeRule.Create(ctx, rule); err != nil {
		return nil, translate(err, "fee rule")
	}
	log.Infof("[FeeService] Created fee rule %d (%s, %s) status=%s", rule.ID, rule.Name, rule.Type, rule.Status)
	return rule, nil
}

// UpdateFeeRule changes a rule. Active rules accept name and description
// changes only; existing applications are never rewritten.
func (s *Service) UpdateFeeRule(ctx context.Context, id uint, in FeeRuleInput) (*models.FeeRule, error) {
	rule, err := s.GetFeeRule(ctx, id)
	if err != nil {
		return nil, err
	}

	candidate := *rule
	applyInput(&candidate, in)
	if !rule.IsEditable() && !sameBilling(rule, &candidate) {
		return nil, invalidStateError("fee rule %d is active: only name and description may change", id)
	}
	if err := s.validateRule(ctx, &candidate, !sameBilling(rule, &candidate)); err != nil {
		return nil, err
	}

	if err := s.persistRule(ctx, &candidate, rule.Status); err != nil {
		return nil, err
	}
	return s.GetFeeRule(ctx, id)
}

// DeleteFeeRule soft-deletes a rule that never produced applications.
func (s *Service) DeleteFeeRule(ctx context.Context, id uint) error {
	if _, err := s.GetFeeRule(ctx, id); err != nil {
		return err
	}
	count, err := s.repos.FeeApplication.CountByRule(ctx, id)
	if err != nil {
		return translate(err, "fee applications")
	}
	if count > 0 {
		return invalidStateError("fee rule %d has %d applications, deactivate it instead", id, count)
	}
	if err := s.repos.FeeRule.Delete(ctx, id); err != nil {
		return translate(err, "fee rule")
	}
	log.Infof("[FeeService] Deleted fee rule %d", id)
	return nil
}

func (s *Service) GetFeeRule(ctx context.Context, id uint) (*models.FeeRule, error) {
	rule, err := s.repos.FeeRule.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "fee rule")
	}
	return rule, nil
}

func (s *Service) ListFeeRules(ctx context.Context, filter repository.FeeRuleFilter) ([]models.FeeRule, error) {
	if filter.Status != "" && !isRuleStatus(filter.Status) {
		return nil, validationError("unknown fee rule status %q", filter.Status)
	}
	rules, err := s.repos.FeeRule.List(ctx, filter)
	if err != nil {
		return nil, translate(err, "fee rules")
	}
	return rules, nil
}

// ScheduleFeeRule sets the effective date and moves the rule to scheduled.
// Draft, scheduled and inactive rules may be scheduled.
func (s *Service) ScheduleFeeRule(ctx context.Context, id uint, effectiveDate time.Time) (*models.FeeRule, error) {
	rule, err := s.GetFeeRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.IsActive() {
		return nil, invalidStateError("fee rule %d is already active", id)
	}
	if effectiveDate.IsZero() {
		return nil, validationError("effective_date is required")
	}
	if !sameDayOrAfter(effectiveDate, s.today()) {
		return nil, validationError("effective_date %s lies in the past", effectiveDate.Format(time.DateOnly))
	}

	previous := rule.Status
	rule.EffectiveDate = DateOnly(effectiveDate)
	rule.Status = models.FeeRuleStatusScheduled
	if err := s.persistRule(ctx, rule, previous); err != nil {
		return nil, err
	}
	log.Infof("[FeeService] Scheduled fee rule %d for %s", id, rule.EffectiveDate.Format(time.DateOnly))
	return s.GetFeeRule(ctx, id)
}

// ActivateFeeRule activates a scheduled rule immediately.
func (s *Service) ActivateFeeRule(ctx context.Context, id uint) (*models.FeeRule, error) {
	rule, err := s.GetFeeRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Status != models.FeeRuleStatusScheduled {
		return nil, invalidStateError("fee rule %d is %s, only scheduled rules can be activated", id, rule.Status)
	}
	ok, err := s.repos.FeeRule.ActivateIfScheduled(ctx, id, s.now())
	if err != nil {
		return nil, translate(err, "fee rule")
	}
	if !ok {
		return nil, invalidStateError("fee rule %d changed status concurrently", id)
	}
	log.Infof("[FeeService] Activated fee rule %d", id)
	return s.GetFeeRule(ctx, id)
}

// DeactivateFeeRule stops generation. Existing applications are unaffected.
func (s *Service) DeactivateFeeRule(ctx context.Context, id uint) (*models.FeeRule, error) {
	rule, err := s.GetFeeRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Status != models.FeeRuleStatusActive && rule.Status != models.FeeRuleStatusScheduled {
		return nil, invalidStateError("fee rule %d is %s and cannot be deactivated", id, rule.Status)
	}
	previous := rule.Status
	rule.Status = models.FeeRuleStatusInactive
	if err := s.persistRule(ctx, rule, previous); err != nil {
		return nil, err
	}
	log.Infof("[FeeService] Deactivated fee rule %d", id)
	return s.GetFeeRule(ctx, id)
}

// ApplyFeeRule generates applications for one rule as of the given day.
// Non-active rules and dates before the effective date yield an empty result.
func (s *Service) ApplyFeeRule(ctx context.Context, id uint, asOf time.Time) (GenerationResult, error) {
	return s.applyFeeRule(ctx, id, asOf, models.FeeRunTriggerManual)
}

// ApplyFeeRuleFromJob is ApplyFeeRule for the asynchronous job path.
func (s *Service) ApplyFeeRuleFromJob(ctx context.Context, id uint, asOf time.Time) (GenerationResult, error) {
	return s.applyFeeRule(ctx, id, asOf, models.FeeRunTriggerJob)
}

func (s *Service) applyFeeRule(ctx context.Context, id uint, asOf time.Time, trigger string) (GenerationResult, error) {
	rule, err := s.GetFeeRule(ctx, id)
	if err != nil {
		return GenerationResult{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	outcome := s.scheduler.GenerateRule(ctx, rule, asOf, trigger)
	result := GenerationResult{Created: outcome.Created, Skipped: outcome.Skipped}
	if outcome.Err != nil {
		return result, errors.Wrapf(outcome.Err, "apply fee rule %d", id)
	}
	return result, nil
}

// ActivateScheduledRules activates every scheduled rule due by today.
func (s *Service) ActivateScheduledRules(ctx context.Context, today time.Time) ([]uint, error) {
	if today.IsZero() {
		today = s.today()
	}
	return s.scheduler.ActivateScheduledRules(ctx, today)
}

// RunSweep runs activation, generation and the overdue check for today.
func (s *Service) RunSweep(ctx context.Context, today time.Time) (*SweepReport, error) {
	if today.IsZero() {
		today = s.today()
	}
	return s.scheduler.RunSweep(ctx, today, models.FeeRunTriggerSweep)
}

// MarkOverdue flags pending applications past their due date.
func (s *Service) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	if today.IsZero() {
		today = s.today()
	}
	return s.scheduler.MarkOverdue(ctx, today)
}

func (s *Service) ListFeeRuleRuns(ctx context.Context, id uint, limit int) ([]models.FeeRuleRun, error) {
	if _, err := s.GetFeeRule(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	runs, err := s.repos.FeeRuleRun.ListByRule(ctx, id, limit)
	if err != nil {
		return nil, translate(err, "fee rule runs")
	}
	return runs, nil
}

func (s *Service) ListApplicationsForRule(ctx context.Context, id uint) ([]models.FeeApplication, error) {
	if _, err := s.GetFeeRule(ctx, id); err != nil {
		return nil, err
	}
	apps, err := s.repos.FeeApplication.ListByRule(ctx, id)
	if err != nil {
		return nil, translate(err, "fee applications")
	}
	return apps, nil
}

// CancelFeeApplication cancels a pending or overdue application.
func (s *Service) CancelFeeApplication(ctx context.Context, id uint, reason string) (*models.FeeApplication, error) {
	app, err := s.repos.FeeApplication.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "fee application")
	}
	if !app.CanTransitionTo(models.FeeApplicationStatusCancelled) {
		return nil, invalidStateError("fee application %d is %s and cannot be cancelled", id, app.Status)
	}

	previous := app.Status
	app.MarkAsCancelled(s.now(), strings.TrimSpace(reason))
	if err := s.persistTransition(ctx, app, previous); err != nil {
		return nil, err
	}
	log.Infof("[FeeService] Cancelled fee application %d", id)
	return app, nil
}

func (s *Service) ListFeeApplications(ctx context.Context, memberID uint, filter repository.FeeApplicationFilter) ([]models.FeeApplication, error) {
	if filter.Status != "" && !isApplicationStatus(filter.Status) {
		return nil, validationError("unknown fee application status %q", filter.Status)
	}
	apps, err := s.repos.FeeApplication.ListByMember(ctx, memberID, filter)
	if err != nil {
		return nil, translate(err, "fee applications")
	}
	return apps, nil
}

// GetFeeApplication returns an application visible to actor. Applications
// of other members are reported as missing.
func (s *Service) GetFeeApplication(ctx context.Context, actor Actor, id uint) (*models.FeeApplication, error) {
	app, err := s.repos.FeeApplication.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "fee application")
	}
	if !actor.Admin && app.MemberID != actor.MemberID {
		return nil, notFoundError("fee application %d not found", id)
	}
	return app, nil
}

// RecordPayment marks a pending or overdue application as paid.
func (s *Service) RecordPayment(ctx context.Context, actor Actor, id uint, details PaymentDetails) (*models.FeeApplication, error) {
	reference := strings.TrimSpace(details.Reference)
	if len(reference) > 100 {
		return nil, validationError("payment reference must be at most 100 characters")
	}
	now := s.now()
	paidAt := now
	if details.PaidAt != nil {
		if details.PaidAt.After(now) {
			return nil, validationError("paid_at lies in the future")
		}
		paidAt = *details.PaidAt
	}

	app, err := s.GetFeeApplication(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !app.IsPayable() {
		return nil, invalidStateError("fee application %d is %s and cannot be paid", id, app.Status)
	}

	previous := app.Status
	app.MarkAsPaid(paidAt, reference, strings.TrimSpace(details.Notes))
	if err := s.persistTransition(ctx, app, previous); err != nil {
		return nil, err
	}
	log.Infof("[FeeService] Recorded payment for fee application %d (member %d)", id, app.MemberID)
	return app, nil
}

// persistRule writes rule unless its stored status moved away from previous
// since it was read.
func (s *Service) persistRule(ctx context.Context, rule *models.FeeRule, previous string) error {
	ok, err := s.repos.FeeRule.UpdateIfStatus(ctx, rule, previous)
	if err != nil {
		return translate(err, "fee rule")
	}
	if !ok {
		return invalidStateError("fee rule %d changed status concurrently", rule.ID)
	}
	return nil
}

func (s *Service) persistTransition(ctx context.Context, app *models.FeeApplication, previous string) error {
	ok, err := s.repos.FeeApplication.UpdateIfStatus(ctx, app, previous)
	if err != nil {
		return translate(err, "fee application")
	}
	if !ok {
		return invalidStateError("fee application %d changed concurrently", app.ID)
	}
	return nil
}

// validateRule runs model validation plus the checks that need the clock
// or the database. Target existence is only checked when billing changes.
func (s *Service) validateRule(ctx context.Context, rule *models.FeeRule, checkBilling bool) error {
	if err := rule.Validate(); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid fee rule"), ErrValidation)
	}
	if !checkBilling {
		return nil
	}
	if rule.Status == models.FeeRuleStatusScheduled && !sameDayOrAfter(rule.EffectiveDate, s.today()) {
		return validationError("scheduled fee rules need an effective_date of today or later")
	}

	switch rule.ApplicableTo {
	case models.FeeApplicableUnit:
		exists, err := s.repos.Unit.Exists(ctx, *rule.TargetUnitID)
		if err != nil {
			return translate(err, "unit")
		}
		if !exists {
			return validationError("target unit %d does not exist", *rule.TargetUnitID)
		}
	case models.FeeApplicableZone:
		exists, err := s.repos.Zone.Exists(ctx, *rule.TargetZoneID)
		if err != nil {
			return translate(err, "zone")
		}
		if !exists {
			return validationError("target zone %d does not exist", *rule.TargetZoneID)
		}
	}
	return nil
}

func applyInput(rule *models.FeeRule, in FeeRuleInput) {
	rule.Name = strings.TrimSpace(in.Name)
	rule.Description = strings.TrimSpace(in.Description)
	rule.Type = in.Type
	rule.Frequency = in.Frequency
	rule.Amount = in.Amount
	rule.ApplicableTo = in.ApplicableTo
	rule.TargetRole = in.TargetRole
	rule.TargetUnitID = in.TargetUnitID
	rule.TargetZoneID = in.TargetZoneID
	if !in.EffectiveDate.IsZero() {
		rule.EffectiveDate = DateOnly(in.EffectiveDate)
	} else {
		rule.EffectiveDate = time.Time{}
	}
	rule.GraceDays = in.GraceDays
}

// sameBilling reports whether two rules bill identically.
func sameBilling(a, b *models.FeeRule) bool {
	return a.Type == b.Type &&
		a.Frequency == b.Frequency &&
		a.Amount.Equal(b.Amount) &&
		a.ApplicableTo == b.ApplicableTo &&
		a.TargetRole == b.TargetRole &&
		equalUintPtr(a.TargetUnitID, b.TargetUnitID) &&
		equalUintPtr(a.TargetZoneID, b.TargetZoneID) &&
		a.EffectiveDate.Format(time.DateOnly) == b.EffectiveDate.Format(time.DateOnly) &&
		equalIntPtr(a.GraceDays, b.GraceDays)
}

func equalUintPtr(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func isRuleStatus(status string) bool {
	switch status {
	case models.FeeRuleStatusDraft, models.FeeRuleStatusScheduled, models.FeeRuleStatusActive, models.FeeRuleStatusInactive:
		return true
	}
	return false
}

func isApplicationStatus(status string) bool {
	switch status {
	case models.FeeApplicationStatusPending, models.FeeApplicationStatusPaid,
		models.FeeApplicationStatusOverdue, models.FeeApplicationStatusCancelled:
		return true
	}
	return false
}
