package fees

import (
	"context"
	"testing"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput(today time.Time) FeeRuleInput {
	return FeeRuleInput{
		Name:          "Annual membership",
		Type:          models.FeeTypeRecurring,
		Frequency:     models.FeeFrequencyAnnual,
		Amount:        decimal.NewFromInt(250),
		ApplicableTo:  models.FeeApplicableAll,
		EffectiveDate: today,
	}
}

func TestCreateFeeRuleValidation(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	zone := f.addZone(t, 1)
	unit := f.addUnit(t, 7, zone)

	tests := []struct {
		name   string
		mutate func(in *FeeRuleInput)
		valid  bool
	}{
		{"Valid recurring", func(in *FeeRuleInput) {}, true},
		{"Valid unit target", func(in *FeeRuleInput) {
			in.ApplicableTo = models.FeeApplicableUnit
			in.TargetUnitID = uintPtr(unit)
		}, true},
		{"Valid scheduled today", func(in *FeeRuleInput) { in.Status = models.FeeRuleStatusScheduled }, true},
		{"Draft in the past", func(in *FeeRuleInput) { in.EffectiveDate = day(2020, time.January, 1) }, true},
		{"Zero amount", func(in *FeeRuleInput) { in.Amount = decimal.Zero }, false},
		{"Negative amount", func(in *FeeRuleInput) { in.Amount = decimal.NewFromInt(-5) }, false},
		{"Recurring without frequency", func(in *FeeRuleInput) { in.Frequency = "" }, false},
		{"One-time with frequency", func(in *FeeRuleInput) { in.Type = models.FeeTypeOneTime }, false},
		{"Missing effective date", func(in *FeeRuleInput) { in.EffectiveDate = time.Time{} }, false},
		{"Scheduled in the past", func(in *FeeRuleInput) {
			in.Status = models.FeeRuleStatusScheduled
			in.EffectiveDate = day(2024, time.May, 9)
		}, false},
		{"Created active", func(in *FeeRuleInput) { in.Status = models.FeeRuleStatusActive }, false},
		{"Unknown unit", func(in *FeeRuleInput) {
			in.ApplicableTo = models.FeeApplicableUnit
			in.TargetUnitID = uintPtr(99)
		}, false},
		{"Unknown zone", func(in *FeeRuleInput) {
			in.ApplicableTo = models.FeeApplicableZone
			in.TargetZoneID = uintPtr(99)
		}, false},
		{"Admin role target", func(in *FeeRuleInput) {
			in.ApplicableTo = models.FeeApplicableRole
			in.TargetRole = models.ROLE_ADMIN
		}, false},
		{"Role target without role", func(in *FeeRuleInput) { in.ApplicableTo = models.FeeApplicableRole }, false},
		{"Target on all", func(in *FeeRuleInput) { in.TargetUnitID = uintPtr(unit) }, false},
		{"Short name", func(in *FeeRuleInput) { in.Name = "ab" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput(today)
			tt.mutate(&in)
			rule, err := f.svc.CreateFeeRule(context.Background(), 1, in)
			if tt.valid {
				require.NoError(t, err)
				assert.NotZero(t, rule.ID)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestCreateFeeRuleDefaults(t *testing.T) {
	f := newFixture(t, day(2024, time.May, 10))
	rule, err := f.svc.CreateFeeRule(context.Background(), 42, validInput(day(2024, time.May, 10)))
	require.NoError(t, err)
	assert.Equal(t, models.FeeRuleStatusDraft, rule.Status)
	assert.Equal(t, uint(42), rule.CreatedBy)
	assert.Equal(t, "2024-05-10", rule.EffectiveDate.Format(time.DateOnly))
}

func TestUpdateFeeRule(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()

	rule, err := f.svc.CreateFeeRule(ctx, 1, validInput(today))
	require.NoError(t, err)

	in := validInput(today)
	in.Amount = decimal.NewFromInt(300)
	updated, err := f.svc.UpdateFeeRule(ctx, rule.ID, in)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(updated.Amount))

	_, err = f.svc.ScheduleFeeRule(ctx, rule.ID, today)
	require.NoError(t, err)
	_, err = f.svc.ActivateFeeRule(ctx, rule.ID)
	require.NoError(t, err)

	in.Amount = decimal.NewFromInt(350)
	_, err = f.svc.UpdateFeeRule(ctx, rule.ID, in)
	assert.True(t, IsInvalidState(err))

	in.Amount = decimal.NewFromInt(300)
	in.Name = "Annual membership 2024"
	in.Description = "Covers the season"
	updated, err = f.svc.UpdateFeeRule(ctx, rule.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Annual membership 2024", updated.Name)
	assert.Equal(t, models.FeeRuleStatusActive, updated.Status)

	_, err = f.svc.UpdateFeeRule(ctx, 999, in)
	assert.True(t, IsNotFound(err))
}

// sweepAfterRead lets a sweep run between the service reading a rule and
// writing it back.
type sweepAfterRead struct {
	repository.FeeRuleRepository
	sweep func()
}

func (r *sweepAfterRead) GetByID(ctx context.Context, id uint) (*models.FeeRule, error) {
	rule, err := r.FeeRuleRepository.GetByID(ctx, id)
	if r.sweep != nil {
		sweep := r.sweep
		r.sweep = nil
		sweep()
	}
	return rule, err
}

func newInterleavedService(t *testing.T, f *fixture, today time.Time) (*Service, *sweepAfterRead) {
	t.Helper()
	repos := f.stores.Repositories()
	rules := &sweepAfterRead{FeeRuleRepository: repos.FeeRule}
	repos.FeeRule = rules
	svc := NewService(repos, WithClock(f.clock.Now))
	rules.sweep = func() {
		_, err := svc.RunSweep(context.Background(), today)
		require.NoError(t, err)
	}
	return svc, rules
}

func TestUpdateFeeRuleRacingActivation(t *testing.T) {
	today := day(2024, time.June, 1)
	f := newFixture(t, today)
	ctx := context.Background()
	f.addMember(t, models.ROLE_MEMBER, nil)
	rule := f.addRule(t, models.FeeRule{Status: models.FeeRuleStatusScheduled, EffectiveDate: DateOnly(today)})
	svc, _ := newInterleavedService(t, f, today)

	in := FeeRuleInput{
		Name:          rule.Name,
		Type:          models.FeeTypeOneTime,
		Amount:        decimal.NewFromInt(999),
		ApplicableTo:  models.FeeApplicableAll,
		EffectiveDate: today,
	}
	_, err := svc.UpdateFeeRule(ctx, rule.ID, in)
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))

	stored, err := f.stores.Rules.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeRuleStatusActive, stored.Status)
	assert.NotNil(t, stored.ActivatedAt)
	assert.True(t, decimal.NewFromInt(100).Equal(stored.Amount))

	apps := f.stores.Applications.All()
	require.Len(t, apps, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(apps[0].Amount))
}

func TestScheduleFeeRuleRacingActivation(t *testing.T) {
	today := day(2024, time.June, 1)
	f := newFixture(t, today)
	ctx := context.Background()
	f.addMember(t, models.ROLE_MEMBER, nil)
	rule := f.addRule(t, models.FeeRule{Status: models.FeeRuleStatusScheduled, EffectiveDate: DateOnly(today)})
	svc, _ := newInterleavedService(t, f, today)

	_, err := svc.ScheduleFeeRule(ctx, rule.ID, day(2024, time.July, 1))
	assert.True(t, IsInvalidState(err))

	stored, err := f.stores.Rules.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeRuleStatusActive, stored.Status)
	assert.Equal(t, "2024-06-01", stored.EffectiveDate.Format(time.DateOnly))
}

func TestRuleWritesKeepSchedulingState(t *testing.T) {
	today := day(2024, time.June, 1)
	f := newFixture(t, today)
	ctx := context.Background()
	f.addMember(t, models.ROLE_MEMBER, nil)
	rule := f.addRule(t, models.FeeRule{Status: models.FeeRuleStatusActive})
	_, err := f.svc.ApplyFeeRule(ctx, rule.ID, today)
	require.NoError(t, err)

	in := FeeRuleInput{
		Name:          "Renamed fee",
		Type:          rule.Type,
		Amount:        rule.Amount,
		ApplicableTo:  rule.ApplicableTo,
		EffectiveDate: rule.EffectiveDate,
	}
	updated, err := f.svc.UpdateFeeRule(ctx, rule.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Renamed fee", updated.Name)
	assert.NotNil(t, updated.LastRunAt)
	assert.NotEmpty(t, updated.LastRunPeriod)

	deactivated, err := f.svc.DeactivateFeeRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeRuleStatusInactive, deactivated.Status)
	assert.NotNil(t, deactivated.LastRunAt)
}

func TestDeleteFeeRule(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()
	f.addMember(t, models.ROLE_MEMBER, nil)

	unused, err := f.svc.CreateFeeRule(ctx, 1, validInput(today))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteFeeRule(ctx, unused.ID))
	_, err = f.svc.GetFeeRule(ctx, unused.ID)
	assert.True(t, IsNotFound(err))

	used := f.addRule(t, models.FeeRule{Status: models.FeeRuleStatusActive})
	_, err = f.svc.ApplyFeeRule(ctx, used.ID, today)
	require.NoError(t, err)
	err = f.svc.DeleteFeeRule(ctx, used.ID)
	assert.True(t, IsInvalidState(err))
}

func TestFeeRuleLifecycle(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()

	rule, err := f.svc.CreateFeeRule(ctx, 1, validInput(today))
	require.NoError(t, err)

	_, err = f.svc.ActivateFeeRule(ctx, rule.ID)
	assert.True(t, IsInvalidState(err), "draft rules must be scheduled first")

	_, err = f.svc.DeactivateFeeRule(ctx, rule.ID)
	assert.True(t, IsInvalidState(err))

	_, err = f.svc.ScheduleFeeRule(ctx, rule.ID, day(2024, time.May, 1))
	assert.True(t, IsValidation(err))

	scheduled, err := f.svc.ScheduleFeeRule(ctx, rule.ID, day(2024, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, models.FeeRuleStatusScheduled, scheduled.Status)

	activated, err := f.svc.ActivateFeeRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeRuleStatusActive, activated.Status)
	assert.NotNil(t, activated.ActivatedAt)

	_, err = f.svc.ScheduleFeeRule(ctx, rule.ID, day(2024, time.July, 1))
	assert.True(t, IsInvalidState(err))

	inactive, err := f.svc.DeactivateFeeRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeRuleStatusInactive, inactive.Status)

	rescheduled, err := f.svc.ScheduleFeeRule(ctx, rule.ID, day(2024, time.July, 1))
	require.NoError(t, err)
	assert.Equal(t, models.FeeRuleStatusScheduled, rescheduled.Status)
}

func TestDeactivationKeepsApplications(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()
	f.addMember(t, models.ROLE_MEMBER, nil)
	rule := f.addRule(t, models.FeeRule{
		Type:      models.FeeTypeRecurring,
		Frequency: models.FeeFrequencyMonthly,
		Status:    models.FeeRuleStatusActive,
	})

	_, err := f.svc.RunSweep(ctx, today)
	require.NoError(t, err)
	_, err = f.svc.DeactivateFeeRule(ctx, rule.ID)
	require.NoError(t, err)

	report, err := f.svc.RunSweep(ctx, day(2024, time.June, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)

	apps, err := f.svc.ListApplicationsForRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestApplyFeeRule(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()
	f.addMember(t, models.ROLE_MEMBER, nil)
	f.addMember(t, models.ROLE_UNIT_LEADER, nil)

	draft := f.addRule(t, models.FeeRule{Status: models.FeeRuleStatusDraft})
	result, err := f.svc.ApplyFeeRule(ctx, draft.ID, today)
	require.NoError(t, err)
	assert.Equal(t, GenerationResult{}, result)

	active := f.addRule(t, models.FeeRule{
		Status:       models.FeeRuleStatusActive,
		ApplicableTo: models.FeeApplicableRole,
		TargetRole:   models.ROLE_UNIT_LEADER,
	})
	result, err = f.svc.ApplyFeeRule(ctx, active.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, GenerationResult{Created: 1}, result)

	_, err = f.svc.ApplyFeeRule(ctx, 404, today)
	assert.True(t, IsNotFound(err))

	broken := f.addRule(t, models.FeeRule{
		Status:    models.FeeRuleStatusActive,
		Type:      models.FeeTypeRecurring,
		Frequency: "weekly",
	})
	_, err = f.svc.ApplyFeeRule(ctx, broken.ID, today)
	require.Error(t, err)
	assert.True(t, IsValidation(err), "classification survives the wrap")
	assert.Contains(t, err.Error(), "apply fee rule")
}

func TestActivateScheduledRules(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()
	past := f.addRule(t, models.FeeRule{Status: models.FeeRuleStatusScheduled, EffectiveDate: DateOnly(day(2024, time.May, 1))})
	f.addRule(t, models.FeeRule{Status: models.FeeRuleStatusScheduled, EffectiveDate: DateOnly(day(2024, time.May, 20))})

	activated, err := f.svc.ActivateScheduledRules(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []uint{past.ID}, activated)

	activated, err = f.svc.ActivateScheduledRules(ctx, today)
	require.NoError(t, err)
	assert.Empty(t, activated)
}

func generateOne(t *testing.T, f *fixture, memberID uint) *models.FeeApplication {
	t.Helper()
	ctx := context.Background()
	rule := f.addRule(t, models.FeeRule{Status: models.FeeRuleStatusActive})
	_, err := f.svc.ApplyFeeRule(ctx, rule.ID, f.clock.Now())
	require.NoError(t, err)
	apps, err := f.svc.ListFeeApplications(ctx, memberID, repository.FeeApplicationFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, apps)
	return &apps[0]
}

func TestRecordPayment(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()
	member := f.addMember(t, models.ROLE_MEMBER, nil)
	app := generateOne(t, f, member)

	paid, err := f.svc.RecordPayment(ctx, Actor{MemberID: member}, app.ID, PaymentDetails{Reference: " MPESA-7781 ", Notes: "paid at unit office"})
	require.NoError(t, err)
	assert.Equal(t, models.FeeApplicationStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidDate)
	assert.Equal(t, today, *paid.PaidDate)
	assert.Equal(t, "MPESA-7781", paid.PaymentReference)

	_, err = f.svc.RecordPayment(ctx, Actor{MemberID: member}, app.ID, PaymentDetails{Reference: "again"})
	assert.True(t, IsInvalidState(err))

	stored, err := f.svc.GetFeeApplication(ctx, Actor{MemberID: member}, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "MPESA-7781", stored.PaymentReference)
}

func TestRecordPaymentOwnership(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()
	owner := f.addMember(t, models.ROLE_MEMBER, nil)
	stranger := f.addMember(t, models.ROLE_MEMBER, nil)
	app := generateOne(t, f, owner)

	_, err := f.svc.GetFeeApplication(ctx, Actor{MemberID: stranger}, app.ID)
	assert.True(t, IsNotFound(err))

	_, err = f.svc.RecordPayment(ctx, Actor{MemberID: stranger}, app.ID, PaymentDetails{})
	assert.True(t, IsNotFound(err))

	paidAt := day(2024, time.May, 9)
	paid, err := f.svc.RecordPayment(ctx, Actor{MemberID: stranger, Admin: true}, app.ID, PaymentDetails{PaidAt: &paidAt})
	require.NoError(t, err)
	assert.Equal(t, paidAt, *paid.PaidDate)
}

func TestRecordPaymentRules(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()
	member := f.addMember(t, models.ROLE_MEMBER, nil)
	app := generateOne(t, f, member)
	actor := Actor{MemberID: member}

	future := day(2024, time.May, 11)
	_, err := f.svc.RecordPayment(ctx, actor, app.ID, PaymentDetails{PaidAt: &future})
	assert.True(t, IsValidation(err))

	_, err = f.svc.MarkOverdue(ctx, day(2024, time.June, 1))
	require.NoError(t, err)

	late, err := f.svc.RecordPayment(ctx, actor, app.ID, PaymentDetails{Reference: "late"})
	require.NoError(t, err)
	assert.Equal(t, models.FeeApplicationStatusPaid, late.Status)

	_, err = f.svc.RecordPayment(ctx, actor, 999, PaymentDetails{})
	assert.True(t, IsNotFound(err))
}

func TestCancelFeeApplication(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()
	member := f.addMember(t, models.ROLE_MEMBER, nil)
	app := generateOne(t, f, member)

	cancelled, err := f.svc.CancelFeeApplication(ctx, app.ID, "member left the cooperative")
	require.NoError(t, err)
	assert.Equal(t, models.FeeApplicationStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Contains(t, cancelled.Notes, "member left the cooperative")

	_, err = f.svc.CancelFeeApplication(ctx, app.ID, "twice")
	assert.True(t, IsInvalidState(err))

	_, err = f.svc.RecordPayment(ctx, Actor{MemberID: member}, app.ID, PaymentDetails{})
	assert.True(t, IsInvalidState(err))
}

func TestListFeeApplicationsFilter(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()
	member := f.addMember(t, models.ROLE_MEMBER, nil)
	first := generateOne(t, f, member)
	generateOne(t, f, member)

	_, err := f.svc.RecordPayment(ctx, Actor{MemberID: member}, first.ID, PaymentDetails{})
	require.NoError(t, err)

	all, err := f.svc.ListFeeApplications(ctx, member, repository.FeeApplicationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := f.svc.ListFeeApplications(ctx, member, repository.FeeApplicationFilter{Status: models.FeeApplicationStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = f.svc.ListFeeApplications(ctx, member, repository.FeeApplicationFilter{Status: "unknown"})
	assert.True(t, IsValidation(err))
}

func TestListFeeRules(t *testing.T) {
	today := day(2024, time.May, 10)
	f := newFixture(t, today)
	ctx := context.Background()
	f.addRule(t, models.FeeRule{Status: models.FeeRuleStatusActive})
	f.addRule(t, models.FeeRule{Status: models.FeeRuleStatusDraft})
	f.addRule(t, models.FeeRule{Status: models.FeeRuleStatusActive})

	active, err := f.svc.ListFeeRules(ctx, repository.FeeRuleFilter{Status: models.FeeRuleStatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := f.svc.ListFeeRules(ctx, repository.FeeRuleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.svc.ListFeeRules(ctx, repository.FeeRuleFilter{Status: "paused"})
	assert.True(t, IsValidation(err))
}
