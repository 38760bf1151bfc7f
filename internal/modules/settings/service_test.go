package settings

import (
	"errors"
	"testing"

	testingpkg "github.com/aristath/dreamengine/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "config")
	t.Cleanup(cleanup)
	return NewService(NewRepository(db.Conn(), zerolog.Nop()), zerolog.Nop())
}

func TestDefaultsHaveDescriptions(t *testing.T) {
	for key := range SettingDefaults {
		assert.NotEmpty(t, SettingDescriptions[key], "missing description for %s", key)
	}
}

func TestRepository_TypedAccessors(t *testing.T) {
	repo := newTestService(t).Repository()

	v, err := repo.GetFloat("max_cost_per_day", 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	require.NoError(t, repo.SetFloat("max_cost_per_day", 2.5))
	v, err = repo.GetFloat("max_cost_per_day", 10)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	require.NoError(t, repo.Set("retest_interval_days", "12.0", nil))
	n, err := repo.GetInt("retest_interval_days", 30)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	require.NoError(t, repo.Set("retest_interval_days", "soon", nil))
	n, err = repo.GetInt("retest_interval_days", 30)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	desc := "note"
	require.NoError(t, repo.Set("custom", "x", &desc))
	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Equal(t, "x", all["custom"])

	require.NoError(t, repo.Delete("custom"))
	require.NoError(t, repo.Delete("custom"))
	missing, err := repo.Get("custom")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestService_SetAndGet(t *testing.T) {
	svc := newTestService(t)

	s, err := svc.Get("max_cost_per_day")
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.Value)
	assert.False(t, s.Overridden)

	s, err = svc.Set("max_cost_per_day", 4.25)
	require.NoError(t, err)
	assert.Equal(t, 4.25, s.Value)
	assert.Equal(t, 10.0, s.Default)
	assert.True(t, s.Overridden)

	s, err = svc.Set("retest_interval_days", "14")
	require.NoError(t, err)
	assert.Equal(t, 14.0, s.Value)

	raw, err := svc.Repository().Get("retest_interval_days")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "14", *raw)
}

func TestService_SetRejectsBadInput(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name  string
		key   string
		value interface{}
		want  error
	}{
		{"unknown key", "trading_mode", 1.0, ErrUnknownSetting},
		{"negative", "max_cost_per_day", -1.0, ErrInvalidValue},
		{"not a number", "max_cost_per_day", "lots", ErrInvalidValue},
		{"missing value", "max_cost_per_day", nil, ErrInvalidValue},
		{"fractional integer", "retest_candidate_limit", 2.5, ErrInvalidValue},
		{"wrong type", "max_cost_per_day", true, ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Set(tt.key, tt.value)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestService_ResetAndRestore(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Set("priority_threshold_high", 90.0)
	require.NoError(t, err)

	s, err := svc.Reset("priority_threshold_high")
	require.NoError(t, err)
	assert.Equal(t, 75.0, s.Value)
	assert.False(t, s.Overridden)

	prev := "80"
	require.NoError(t, svc.Restore("priority_threshold_high", &prev))
	s, err = svc.Get("priority_threshold_high")
	require.NoError(t, err)
	assert.Equal(t, 80.0, s.Value)

	require.NoError(t, svc.Restore("priority_threshold_high", nil))
	s, err = svc.Get("priority_threshold_high")
	require.NoError(t, err)
	assert.False(t, s.Overridden)
}

func TestService_GetAllSorted(t *testing.T) {
	svc := newTestService(t)
	all, err := svc.GetAll()
	require.NoError(t, err)
	require.Len(t, all, len(SettingDefaults))
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Key, all[i].Key)
	}
}
