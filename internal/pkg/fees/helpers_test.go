package fees

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	stores *testutil.Stores
	svc    *Service
	clock  *testClock
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	clock := &testClock{now: now}
	stores := testutil.NewStores()
	return &fixture{
		stores: stores,
		svc:    NewService(stores.Repositories(), WithClock(clock.Now)),
		clock:  clock,
	}
}

func (f *fixture) addZone(t *testing.T, id uint) uint {
	t.Helper()
	zone := &models.Zone{ID: id, Name: "Zone"}
	require.NoError(t, f.stores.Zones.Create(context.Background(), zone))
	return zone.ID
}

func (f *fixture) addUnit(t *testing.T, id, zoneID uint) uint {
	t.Helper()
	unit := &models.Unit{ID: id, Name: "Unit", ZoneID: zoneID}
	require.NoError(t, f.stores.Units.Create(context.Background(), unit))
	return unit.ID
}

func (f *fixture) addMember(t *testing.T, role string, unitID *uint) uint {
	t.Helper()
	member := &models.Member{
		Name:   "Farmer",
		Email:  "farmer@example.com",
		Role:   role,
		Status: models.STATUS_ACTIVE,
		UnitID: unitID,
	}
	require.NoError(t, f.stores.Members.Create(context.Background(), member))
	return member.ID
}

// addRule stores a rule directly, bypassing service validation, so tests
// can start from any status.
func (f *fixture) addRule(t *testing.T, rule models.FeeRule) *models.FeeRule {
	t.Helper()
	if rule.Name == "" {
		rule.Name = "Membership fee"
	}
	if rule.Type == "" {
		rule.Type = models.FeeTypeOneTime
	}
	if rule.ApplicableTo == "" {
		rule.ApplicableTo = models.FeeApplicableAll
	}
	if rule.Amount.IsZero() {
		rule.Amount = decimal.NewFromInt(100)
	}
	if rule.EffectiveDate.IsZero() {
		rule.EffectiveDate = DateOnly(day(2024, time.January, 1))
	}
	require.NoError(t, f.stores.Rules.Create(context.Background(), &rule))
	return &rule
}

func uintPtr(v uint) *uint { return &v }

func intPtr(v int) *int { return &v }
