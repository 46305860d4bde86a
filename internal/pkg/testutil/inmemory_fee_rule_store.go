package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// InMemoryFeeRuleStore implements repository.FeeRuleRepository
type InMemoryFeeRuleStore struct {
	mu      sync.RWMutex
	rules   map[uint]models.FeeRule
	deleted map[uint]bool
	nextID  uint
}

func NewInMemoryFeeRuleStore() *InMemoryFeeRuleStore {
	return &InMemoryFeeRuleStore{
		rules:   make(map[uint]models.FeeRule),
		deleted: make(map[uint]bool),
	}
}

func (s *InMemoryFeeRuleStore) Create(_ context.Context, rule *models.FeeRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rule.ID = s.nextID
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.rules[rule.ID] = *rule
	return nil
}

func (s *InMemoryFeeRuleStore) GetByID(_ context.Context, id uint) (*models.FeeRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok || s.deleted[id] {
		return nil, gorm.ErrRecordNotFound
	}
	return &r, nil
}

func (s *InMemoryFeeRuleStore) UpdateIfStatus(_ context.Context, rule *models.FeeRule, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[rule.ID]
	if !ok || s.deleted[rule.ID] || r.Status != expected {
		return false, nil
	}
	r.Name = rule.Name
	r.Description = rule.Description
	r.Type = rule.Type
	r.Frequency = rule.Frequency
	r.Amount = rule.Amount
	r.ApplicableTo = rule.ApplicableTo
	r.TargetRole = rule.TargetRole
	r.TargetUnitID = rule.TargetUnitID
	r.TargetZoneID = rule.TargetZoneID
	r.EffectiveDate = rule.EffectiveDate
	r.Status = rule.Status
	r.GraceDays = rule.GraceDays
	r.UpdatedAt = time.Now()
	s.rules[rule.ID] = r
	return true, nil
}

func (s *InMemoryFeeRuleStore) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[id] = true
	return nil
}

// snapshot returns live rules sorted by ID.
func (s *InMemoryFeeRuleStore) snapshot(match func(models.FeeRule) bool) []models.FeeRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := lo.Filter(lo.Values(s.rules), func(r models.FeeRule, _ int) bool {
		return !s.deleted[r.ID] && match(r)
	})
	slices.SortFunc(rules, func(a, b models.FeeRule) int { return int(a.ID) - int(b.ID) })
	return rules
}

func (s *InMemoryFeeRuleStore) List(_ context.Context, filter repository.FeeRuleFilter) ([]models.FeeRule, error) {
	rules := s.snapshot(func(r models.FeeRule) bool {
		return filter.Status == "" || r.Status == filter.Status
	})
	slices.Reverse(rules)
	if filter.Limit > 0 {
		rules = lo.Subset(rules, filter.Offset, uint(filter.Limit))
	}
	return rules, nil
}

func (s *InMemoryFeeRuleStore) ListByStatus(_ context.Context, status string) ([]models.FeeRule, error) {
	return s.snapshot(func(r models.FeeRule) bool { return r.Status == status }), nil
}

func (s *InMemoryFeeRuleStore) ListDueForActivation(_ context.Context, today time.Time) ([]models.FeeRule, error) {
	day := today.Format(time.DateOnly)
	return s.snapshot(func(r models.FeeRule) bool {
		return r.Status == models.FeeRuleStatusScheduled && r.EffectiveDate.Format(time.DateOnly) <= day
	}), nil
}

func (s *InMemoryFeeRuleStore) ActivateIfScheduled(_ context.Context, id uint, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok || s.deleted[id] || r.Status != models.FeeRuleStatusScheduled {
		return false, nil
	}
	r.Status = models.FeeRuleStatusActive
	r.ActivatedAt = &at
	s.rules[id] = r
	return true, nil
}

func (s *InMemoryFeeRuleStore) RecordRun(_ context.Context, id uint, at time.Time, periodBucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.LastRunAt = &at
	r.LastRunPeriod = periodBucket
	s.rules[id] = r
	return nil
}

// InMemoryFeeRuleRunStore implements repository.FeeRuleRunRepository
type InMemoryFeeRuleRunStore struct {
	mu     sync.RWMutex
	runs   []models.FeeRuleRun
	nextID uint
}

func NewInMemoryFeeRuleRunStore() *InMemoryFeeRuleRunStore {
	return &InMemoryFeeRuleRunStore{}
}

func (s *InMemoryFeeRuleRunStore) Create(_ context.Context, run *models.FeeRuleRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	run.ID = s.nextID
	s.runs = append(s.runs, *run)
	return nil
}

func (s *InMemoryFeeRuleRunStore) ListByRule(_ context.Context, ruleID uint, limit int) ([]models.FeeRuleRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := lo.Filter(s.runs, func(r models.FeeRuleRun, _ int) bool { return r.FeeRuleID == ruleID })
	slices.Reverse(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
