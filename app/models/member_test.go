package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberAPIKey(t *testing.T) {
	m := &Member{Name: "Amina", Email: "amina@example.com", Role: ROLE_MEMBER, Status: STATUS_ACTIVE}

	raw, err := m.IssueAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "ac_"))
	assert.Len(t, raw, 3+64)
	assert.Equal(t, HashAPIKey(raw), m.APIKeyHash)
	assert.Equal(t, raw[:8], m.APIKeyPrefix)
	assert.Equal(t, HashAPIKey(raw), HashAPIKey("  "+raw+"\n"))

	m.RevokeAPIKey()
	assert.Empty(t, m.APIKeyHash)
	assert.Empty(t, m.APIKeyPrefix)
}

func TestMemberValidate(t *testing.T) {
	m := &Member{Name: "Amina", Email: "amina@example.com", Role: ROLE_ZONE_LEADER, Status: STATUS_ACTIVE}
	assert.NoError(t, m.Validate())
	assert.True(t, m.IsActive())
	assert.False(t, m.IsAdmin())

	m.Role = "chairman"
	assert.Error(t, m.Validate())

	m.Role = ROLE_ADMIN
	m.Status = STATUS_SUSPENDED
	assert.NoError(t, m.Validate())
	assert.True(t, m.IsAdmin())
	assert.False(t, m.IsActive())
}

func TestIsTargetableRole(t *testing.T) {
	assert.True(t, IsTargetableRole(ROLE_MEMBER))
	assert.True(t, IsTargetableRole(ROLE_UNIT_LEADER))
	assert.True(t, IsTargetableRole(ROLE_ZONE_LEADER))
	assert.False(t, IsTargetableRole(ROLE_ADMIN))
	assert.False(t, IsTargetableRole(""))
}

func TestAppSettingsDefaults(t *testing.T) {
	s := DefaultAppSettings()
	require.NoError(t, s.Validate())
	assert.Equal(t, 15, s.GetFeeGraceDays())
	assert.Equal(t, 4, s.GetFeeGenerationWorkers())
	assert.Equal(t, 3, s.GetJobQueueWorkerCount())
	assert.Equal(t, "24h0m0s", s.GetFeeSweepInterval().String())
	assert.Equal(t, "1h0m0s", s.GetFeeOverdueCheckInterval().String())

	applySetting(s, "fee_grace_days", "30")
	applySetting(s, "fee_generation_workers", "not-a-number")
	assert.Equal(t, 30, s.GetFeeGraceDays())
	assert.Equal(t, 4, s.GetFeeGenerationWorkers())

	s.FeeGenerationWorkers = 0
	assert.Error(t, s.Validate())
	assert.Equal(t, DefaultFeeGenerationWorkers, s.GetFeeGenerationWorkers())
}

func TestSettingType(t *testing.T) {
	assert.Equal(t, "integer", SettingType("fee_grace_days"))
	assert.Equal(t, "integer", SettingType("job_queue_worker_count"))
	assert.Equal(t, "string", SettingType("site_title"))
	assert.Equal(t, "string", SettingType("unknown"))
	assert.True(t, IsIntegerSetting("fee_sweep_interval_minutes"))
	assert.False(t, IsIntegerSetting("site_title"))
}
