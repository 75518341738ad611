package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSecurityMonitor(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := NewSecurityMonitor(zap.New(core))
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ip := "203.0.113.7"

	t.Run("BelowThreshold", func(t *testing.T) {
		for i := 0; i < failureThreshold-1; i++ {
			m.TrackFailure(ip, FailureCaptcha)
		}
		assert.Empty(t, m.RecentAlerts())
	})

	t.Run("ThresholdAlerts", func(t *testing.T) {
		m.TrackFailure(ip, FailureCaptcha)

		alerts := m.RecentAlerts()
		require.Len(t, alerts, 1)
		assert.Equal(t, ip, alerts[0].IP)
		assert.Equal(t, FailureCaptcha, alerts[0].Kind)
		assert.Equal(t, failureThreshold, alerts[0].Failures)
		assert.Equal(t, 1, logs.FilterField(zap.String("ip", ip)).Len())
	})

	t.Run("AlertCooldown", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			m.TrackFailure(ip, FailureCaptcha)
		}
		assert.Len(t, m.RecentAlerts(), 1)
	})

	t.Run("KindsAreSeparate", func(t *testing.T) {
		for i := 0; i < failureThreshold; i++ {
			m.TrackFailure(ip, FailureAdminAuth)
		}
		alerts := m.RecentAlerts()
		require.Len(t, alerts, 2)
		assert.Equal(t, FailureAdminAuth, alerts[0].Kind, "newest first")
	})

	t.Run("OldFailuresExpire", func(t *testing.T) {
		other := "198.51.100.1"
		for i := 0; i < failureThreshold-1; i++ {
			m.TrackFailure(other, FailureCaptcha)
		}
		now = now.Add(failureWindow + time.Second)
		m.TrackFailure(other, FailureCaptcha)
		assert.Len(t, m.RecentAlerts(), 2)
	})

	t.Run("Sweep", func(t *testing.T) {
		now = now.Add(2 * alertCooldown)
		m.Sweep()

		m.mu.Lock()
		defer m.mu.Unlock()
		assert.Empty(t, m.failures)
		assert.Empty(t, m.alerted)
		assert.Len(t, m.alerts, 2, "history is kept")
	})
}

func TestSecurityMonitorCapsHistory(t *testing.T) {
	m := NewSecurityMonitor(nil)
	for i := 0; i < maxAlerts+10; i++ {
		ip := "10.0.0." + string(rune('a'+i%26)) + string(rune('a'+i/26))
		for j := 0; j < failureThreshold; j++ {
			m.TrackFailure(ip, FailureCaptcha)
		}
	}
	assert.Len(t, m.RecentAlerts(), maxAlerts)
}
