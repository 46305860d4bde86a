package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// InMemoryMemberStore implements repository.MemberRepository
type InMemoryMemberStore struct {
	mu      sync.RWMutex
	members map[uint]models.Member
	nextID  uint
	units   *InMemoryUnitStore
}

func NewInMemoryMemberStore(units *InMemoryUnitStore) *InMemoryMemberStore {
	return &InMemoryMemberStore{
		members: make(map[uint]models.Member),
		units:   units,
	}
}

func (s *InMemoryMemberStore) Create(_ context.Context, member *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if member.ID == 0 {
		s.nextID++
		member.ID = s.nextID
	} else if member.ID > s.nextID {
		s.nextID = member.ID
	}
	if member.Status == "" {
		member.Status = models.STATUS_ACTIVE
	}
	if member.Role == "" {
		member.Role = models.ROLE_MEMBER
	}
	s.members[member.ID] = *member
	return nil
}

func (s *InMemoryMemberStore) GetByID(_ context.Context, id uint) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (s *InMemoryMemberStore) GetByAPIKeyHash(_ context.Context, hash string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if hash == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, m := range s.members {
		if m.APIKeyHash == hash {
			return &m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *InMemoryMemberStore) TouchAPIKey(_ context.Context, id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil
	}
	m.APIKeyLastUsedAt = &at
	s.members[id] = m
	return nil
}

func (s *InMemoryMemberStore) Update(_ context.Context, member *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[member.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.members[member.ID] = *member
	return nil
}

func (s *InMemoryMemberStore) listActive(match func(models.Member) bool) []uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := lo.FilterMap(lo.Values(s.members), func(m models.Member, _ int) (uint, bool) {
		return m.ID, m.IsActive() && match(m)
	})
	slices.Sort(ids)
	return ids
}

func (s *InMemoryMemberStore) ListActiveIDs(_ context.Context) ([]uint, error) {
	return s.listActive(func(models.Member) bool { return true }), nil
}

func (s *InMemoryMemberStore) ListActiveIDsByRole(_ context.Context, role string) ([]uint, error) {
	return s.listActive(func(m models.Member) bool { return m.Role == role }), nil
}

func (s *InMemoryMemberStore) ListActiveIDsByUnit(_ context.Context, unitID uint) ([]uint, error) {
	if s.units == nil {
		return []uint{}, nil
	}
	if _, ok := s.units.zoneOf(unitID); !ok {
		return []uint{}, nil
	}
	return s.listActive(func(m models.Member) bool { return m.UnitID != nil && *m.UnitID == unitID }), nil
}

func (s *InMemoryMemberStore) ListActiveIDsByZone(_ context.Context, zoneID uint) ([]uint, error) {
	return s.listActive(func(m models.Member) bool {
		if m.UnitID == nil || s.units == nil {
			return false
		}
		zone, ok := s.units.zoneOf(*m.UnitID)
		return ok && zone == zoneID
	}), nil
}

// SetStatus changes a member's status in place.
func (s *InMemoryMemberStore) SetStatus(id uint, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[id]; ok {
		m.Status = status
		s.members[id] = m
	}
}

// MoveToUnit reassigns a member to another unit, nil removes the assignment.
func (s *InMemoryMemberStore) MoveToUnit(id uint, unitID *uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[id]; ok {
		m.UnitID = unitID
		s.members[id] = m
	}
}

// InMemoryUnitStore implements repository.UnitRepository
type InMemoryUnitStore struct {
	mu     sync.RWMutex
	units  map[uint]models.Unit
	nextID uint
}

func NewInMemoryUnitStore() *InMemoryUnitStore {
	return &InMemoryUnitStore{units: make(map[uint]models.Unit)}
}

func (s *InMemoryUnitStore) Create(_ context.Context, unit *models.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if unit.ID == 0 {
		s.nextID++
		unit.ID = s.nextID
	} else if unit.ID > s.nextID {
		s.nextID = unit.ID
	}
	s.units[unit.ID] = *unit
	return nil
}

func (s *InMemoryUnitStore) GetByID(_ context.Context, id uint) (*models.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (s *InMemoryUnitStore) Exists(_ context.Context, id uint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.units[id]
	return ok, nil
}

// Remove deletes a unit, leaving members pointing at a stale reference.
func (s *InMemoryUnitStore) Remove(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.units, id)
}

func (s *InMemoryUnitStore) zoneOf(unitID uint) (uint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[unitID]
	return u.ZoneID, ok
}

// InMemoryZoneStore implements repository.ZoneRepository
type InMemoryZoneStore struct {
	mu     sync.RWMutex
	zones  map[uint]models.Zone
	nextID uint
}

func NewInMemoryZoneStore() *InMemoryZoneStore {
	return &InMemoryZoneStore{zones: make(map[uint]models.Zone)}
}

func (s *InMemoryZoneStore) Create(_ context.Context, zone *models.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if zone.ID == 0 {
		s.nextID++
		zone.ID = s.nextID
	} else if zone.ID > s.nextID {
		s.nextID = zone.ID
	}
	s.zones[zone.ID] = *zone
	return nil
}

func (s *InMemoryZoneStore) GetByID(_ context.Context, id uint) (*models.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &z, nil
}

func (s *InMemoryZoneStore) Exists(_ context.Context, id uint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.zones[id]
	return ok, nil
}
