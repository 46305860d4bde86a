package testutil

import (
	"sync"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/app/repository"
)

// InMemorySettingStore implements repository.SettingRepository
type InMemorySettingStore struct {
	mu       sync.RWMutex
	settings *models.AppSettings
	values   map[string]string
}

func NewInMemorySettingStore() *InMemorySettingStore {
	return &InMemorySettingStore{
		settings: models.DefaultAppSettings(),
		values:   make(map[string]string),
	}
}

func (s *InMemorySettingStore) Get() (*models.AppSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *InMemorySettingStore) Save(settings *models.AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *InMemorySettingStore) GetValue(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *InMemorySettingStore) SetValue(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Stores bundles the concrete in-memory stores so tests can reach their helpers.
type Stores struct {
	Members      *InMemoryMemberStore
	Units        *InMemoryUnitStore
	Zones        *InMemoryZoneStore
	Rules        *InMemoryFeeRuleStore
	Applications *InMemoryFeeApplicationStore
	Runs         *InMemoryFeeRuleRunStore
	Settings     *InMemorySettingStore
}

// NewStores creates an empty set of in-memory stores.
func NewStores() *Stores {
	units := NewInMemoryUnitStore()
	return &Stores{
		Members:      NewInMemoryMemberStore(units),
		Units:        units,
		Zones:        NewInMemoryZoneStore(),
		Rules:        NewInMemoryFeeRuleStore(),
		Applications: NewInMemoryFeeApplicationStore(),
		Runs:         NewInMemoryFeeRuleRunStore(),
		Settings:     NewInMemorySettingStore(),
	}
}

// Repositories exposes the stores through the repository interfaces.
func (s *Stores) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Member:         s.Members,
		Unit:           s.Units,
		Zone:           s.Zones,
		FeeRule:        s.Rules,
		FeeApplication: s.Applications,
		FeeRuleRun:     s.Runs,
		Setting:        s.Settings,
	}
}
