package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type applicationKey struct {
	ruleID   uint
	memberID uint
	period   string
}

// InMemoryFeeApplicationStore implements repository.FeeApplicationRepository.
// It enforces the (fee_rule_id, member_id, period_bucket) uniqueness the
// MySQL schema guarantees.
type InMemoryFeeApplicationStore struct {
	mu       sync.RWMutex
	apps     map[uint]models.FeeApplication
	keys     map[applicationKey]uint
	nextID   uint
	failures map[uint]error
}

func NewInMemoryFeeApplicationStore() *InMemoryFeeApplicationStore {
	return &InMemoryFeeApplicationStore{
		apps:     make(map[uint]models.FeeApplication),
		keys:     make(map[applicationKey]uint),
		failures: make(map[uint]error),
	}
}

// FailForRule makes every insert for ruleID return err.
func (s *InMemoryFeeApplicationStore) FailForRule(ruleID uint, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[ruleID] = err
}

func (s *InMemoryFeeApplicationStore) CreateIfNotExists(_ context.Context, app *models.FeeApplication) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[app.FeeRuleID]; err != nil {
		return false, err
	}
	key := applicationKey{ruleID: app.FeeRuleID, memberID: app.MemberID, period: app.PeriodBucket}
	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.nextID++
	app.ID = s.nextID
	now := time.Now()
	app.CreatedAt = now
	app.UpdatedAt = now
	s.apps[app.ID] = *app
	s.keys[key] = app.ID
	return true, nil
}

func (s *InMemoryFeeApplicationStore) GetByID(_ context.Context, id uint) (*models.FeeApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (s *InMemoryFeeApplicationStore) UpdateIfStatus(_ context.Context, app *models.FeeApplication, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.apps[app.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	stored.Status = app.Status
	stored.PaidDate = app.PaidDate
	stored.PaymentReference = app.PaymentReference
	stored.Notes = app.Notes
	stored.CancelledAt = app.CancelledAt
	stored.UpdatedAt = time.Now()
	s.apps[app.ID] = stored
	return true, nil
}

func (s *InMemoryFeeApplicationStore) filter(match func(models.FeeApplication) bool) []models.FeeApplication {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(lo.Values(s.apps), func(a models.FeeApplication, _ int) bool { return match(a) })
}

func (s *InMemoryFeeApplicationStore) ListByMember(_ context.Context, memberID uint, filter repository.FeeApplicationFilter) ([]models.FeeApplication, error) {
	apps := s.filter(func(a models.FeeApplication) bool {
		return a.MemberID == memberID && (filter.Status == "" || a.Status == filter.Status)
	})
	slices.SortFunc(apps, func(a, b models.FeeApplication) int {
		if c := b.DueDate.Compare(a.DueDate); c != 0 {
			return c
		}
		return int(b.ID) - int(a.ID)
	})
	if filter.Limit > 0 {
		apps = lo.Subset(apps, filter.Offset, uint(filter.Limit))
	}
	return apps, nil
}

func (s *InMemoryFeeApplicationStore) ListByRule(_ context.Context, ruleID uint) ([]models.FeeApplication, error) {
	apps := s.filter(func(a models.FeeApplication) bool { return a.FeeRuleID == ruleID })
	slices.SortFunc(apps, func(a, b models.FeeApplication) int {
		if c := strings.Compare(a.PeriodBucket, b.PeriodBucket); c != 0 {
			return c
		}
		return int(a.MemberID) - int(b.MemberID)
	})
	return apps, nil
}

func (s *InMemoryFeeApplicationStore) CountByRule(ctx context.Context, ruleID uint) (int64, error) {
	apps, _ := s.ListByRule(ctx, ruleID)
	return int64(len(apps)), nil
}

func (s *InMemoryFeeApplicationStore) MarkOverdue(_ context.Context, today time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := today.Format(time.DateOnly)
	var n int64
	for id, a := range s.apps {
		if a.Status == models.FeeApplicationStatusPending && a.DueDate.Format(time.DateOnly) < day {
			a.Status = models.FeeApplicationStatusOverdue
			s.apps[id] = a
			n++
		}
	}
	return n, nil
}

// All returns every stored application ordered by ID.
func (s *InMemoryFeeApplicationStore) All() []models.FeeApplication {
	apps := s.filter(func(models.FeeApplication) bool { return true })
	slices.SortFunc(apps, func(a, b models.FeeApplication) int { return int(a.ID) - int(b.ID) })
	return apps
}
