package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Nil(t, cfg.Enrollment.WaitlistMaxLength)
	assert.Equal(t, 10.0, cfg.Enrollment.PreferenceWeight)
	assert.Equal(t, 1.0, cfg.Enrollment.PriorityWeight)
	assert.Equal(t, 72, cfg.Workflow.SLAHoursNormal)
	assert.Equal(t, 24, cfg.Workflow.SLAHoursUrgent)
	assert.Equal(t, 5*time.Minute, cfg.Workflow.SweepInterval)
	assert.Equal(t, "enrollment.events", cfg.Notifications.Channel)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
}

func TestFromViperWaitlistMaxLength(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("WAITLIST_MAX_LENGTH", "0")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	require.NotNil(t, cfg.Enrollment.WaitlistMaxLength)
	assert.Equal(t, 0, *cfg.Enrollment.WaitlistMaxLength)

	v.Set("WAITLIST_MAX_LENGTH", "abc")
	_, err = fromViper(v)
	require.Error(t, err)

	v.Set("WAITLIST_MAX_LENGTH", "-2")
	_, err = fromViper(v)
	require.Error(t, err)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Hour, parseDuration("", time.Hour))
	assert.Equal(t, time.Hour, parseDuration("soon", time.Hour))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Hour))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}
