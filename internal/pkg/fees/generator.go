package fees

import (
	"context"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/cockroachdb/errors"
)

// GenerationResult counts the outcome of one generation pass over a rule.
type GenerationResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Add sums two results.
func (r GenerationResult) Add(o GenerationResult) GenerationResult {
	return GenerationResult{Created: r.Created + o.Created, Skipped: r.Skipped + o.Skipped}
}

// Generator creates fee applications for the members a rule targets.
type Generator struct {
	resolver     *Resolver
	applications repository.FeeApplicationRepository
	settings     repository.SettingRepository
}

func NewGenerator(resolver *Resolver, applications repository.FeeApplicationRepository, settings repository.SettingRepository) *Generator {
	return &Generator{
		resolver:     resolver,
		applications: applications,
		settings:     settings,
	}
}

// Generate creates one pending application per targeted member for the
// billing period containing asOf. Members that already have an application
// for the period are skipped, so repeated calls are harmless. Only active
// rules on or after their effective date generate anything.
//
// When ctx is cancelled between members the partial result is returned
// together with the context error; rows already inserted stay valid.
func (g *Generator) Generate(ctx context.Context, rule *models.FeeRule, asOf time.Time) (GenerationResult, error) {
	var result GenerationResult
	if !rule.IsActive() || !sameDayOrAfter(asOf, rule.EffectiveDate) {
		return result, nil
	}

	bucket, err := PeriodBucket(rule, asOf)
	if err != nil {
		return result, err
	}

	memberIDs, err := g.resolver.ResolveTargets(ctx, rule)
	if err != nil {
		return result, err
	}
	if len(memberIDs) == 0 {
		return result, nil
	}

	due := DueDate(asOf, g.graceDays(rule))
	for _, memberID := range memberIDs {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrapf(err, "generation of fee rule %d interrupted", rule.ID)
		}

		app := &models.FeeApplication{
			FeeRuleID:    rule.ID,
			MemberID:     memberID,
			PeriodBucket: bucket,
			Amount:       rule.Amount,
			DueDate:      due,
			Status:       models.FeeApplicationStatusPending,
		}
		created, err := g.applications.CreateIfNotExists(ctx, app)
		if err != nil {
			err = translate(err, "fee application")
			if IsConcurrencyConflict(err) {
				result.Skipped++
				continue
			}
			return result, errors.Wrapf(err, "create fee application for member %d", memberID)
		}
		if created {
			result.Created++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func (g *Generator) graceDays(rule *models.FeeRule) int {
	if rule.GraceDays != nil && *rule.GraceDays >= 0 {
		return *rule.GraceDays
	}
	if g.settings != nil {
		if s, err := g.settings.Get(); err == nil && s != nil {
			return s.GetFeeGraceDays()
		}
	}
	return models.DefaultFeeGraceDays
}
