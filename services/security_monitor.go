package services

import (
	"sync"
	"time"

	"land_leads_app_go/metrics"

	"go.uber.org/zap"
)

// Failure kinds tracked by SecurityMonitor
const (
	FailureCaptcha   = "captcha"
	FailureAdminAuth = "admin_auth"
)

const (
	failureWindow    = 10 * time.Minute
	failureThreshold = 5
	alertCooldown    = time.Hour
	maxAlerts        = 100
)

// SecurityMonitor aggregates failed captcha checks and admin logins per IP and raises alerts
type SecurityMonitor struct {
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	failures map[string][]time.Time // kind|ip -> failure timestamps
	alerted  map[string]time.Time   // kind|ip -> last alert time
	alerts   []SecurityAlert        // newest first
}

// SecurityAlert represents a triggered security alert
type SecurityAlert struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Kind      string    `json:"kind"`
	Failures  int       `json:"failures"`
}

// NewSecurityMonitor creates an empty monitor
func NewSecurityMonitor(logger *zap.Logger) *SecurityMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityMonitor{
		logger:   logger.Named("security"),
		now:      time.Now,
		failures: make(map[string][]time.Time),
		alerted:  make(map[string]time.Time),
	}
}

// TrackFailure records one failure of kind from ip and alerts once the threshold is hit
func (m *SecurityMonitor) TrackFailure(ip, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := kind + "|" + ip

	windowStart := now.Add(-failureWindow)
	recent := m.failures[key][:0]
	for _, t := range m.failures[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	m.failures[key] = recent

	if len(recent) >= failureThreshold {
		m.alertLocked(key, ip, kind, len(recent), now)
	}
}

// alertLocked raises at most one alert per hour per ip and kind
func (m *SecurityMonitor) alertLocked(key, ip, kind string, failures int, now time.Time) {
	if last, ok := m.alerted[key]; ok && now.Sub(last) < alertCooldown {
		return
	}
	m.alerted[key] = now

	alert := SecurityAlert{Timestamp: now, IP: ip, Kind: kind, Failures: failures}
	m.alerts = append([]SecurityAlert{alert}, m.alerts...)
	if len(m.alerts) > maxAlerts {
		m.alerts = m.alerts[:maxAlerts]
	}

	metrics.SecurityAlerts.WithLabelValues(kind).Inc()
	m.logger.Warn("repeated failures from one address",
		zap.String("ip", ip),
		zap.String("kind", kind),
		zap.Int("failures", failures),
	)
}

// RecentAlerts returns a copy of the alert history, newest first
func (m *SecurityMonitor) RecentAlerts() []SecurityAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SecurityAlert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Sweep drops stale failure counts and expired alert cooldowns
func (m *SecurityMonitor) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, attempts := range m.failures {
		if len(attempts) == 0 || now.Sub(attempts[len(attempts)-1]) > failureWindow {
			delete(m.failures, key)
		}
	}
	for key, last := range m.alerted {
		if now.Sub(last) > alertCooldown {
			delete(m.alerted, key)
		}
	}
}
