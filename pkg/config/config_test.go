package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaultsMatchEnginePolicy(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, 6, cfg.Policy.MaxDailyWorkload)
	assert.Equal(t, 3, cfg.Policy.SubstituteDailyCap)
	assert.Equal(t, 2, cfg.Policy.RegularDailyCap)
	assert.Equal(t, 10, cfg.Policy.DefaultGradeLevel)
	assert.Equal(t, 8, cfg.Policy.FallbackMaxTargetGrade)
	assert.Equal(t, 9, cfg.Policy.FallbackMinGradeLevel)
	assert.Len(t, cfg.Policy.ClassSlots, 15)
	assert.InDelta(t, 0.92, cfg.Matching.Threshold, 1e-9)
	assert.Equal(t, StoreDriverFile, cfg.Store.Driver)
	assert.Equal(t, LockDriverMemory, cfg.Lock.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Lock.TTL)
}

func TestClassSlotsOverride(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("CLASS_SLOTS", " 5A, 5B ,,6A")
	v.Set("LOCK_TTL", "not-a-duration")

	cfg := fromViper(v)
	assert.Equal(t, []string{"5A", "5B", "6A"}, cfg.Policy.ClassSlots)
	assert.Equal(t, 2*time.Minute, cfg.Lock.TTL)
}
