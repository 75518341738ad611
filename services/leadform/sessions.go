package leadform

import (
	"sync"
	"time"

	"land_leads_app_go/metrics"
)

// DefaultSessionTTL is how long an untouched form instance is kept
const DefaultSessionTTL = 30 * time.Minute

type sessionKey struct {
	campaign string
	formID   string
}

type sessionEntry struct {
	form     *Form
	lastSeen time.Time
}

// Sessions holds the live form instances of an HTTP API, one per (campaign, form id).
// Each instance keeps its own single-flight guard and auto-reset timer.
type Sessions struct {
	ttl   time.Duration
	dwell time.Duration
	now   func() time.Time

	mu    sync.Mutex
	forms map[sessionKey]*sessionEntry
}

// NewSessions creates an empty session set; forms it creates use dwell for the auto-reset
func NewSessions(ttl, dwell time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if dwell <= 0 {
		dwell = DefaultResetDwell
	}
	return &Sessions{
		ttl:   ttl,
		dwell: dwell,
		now:   time.Now,
		forms: make(map[sessionKey]*sessionEntry),
	}
}

// Form returns the form instance for campaign/formID, creating it from schema on first use.
// A reloaded schema is rebound onto the existing instance.
func (s *Sessions) Form(campaign, formID string, schema *Schema) *Form {
	key := sessionKey{campaign: campaign, formID: formID}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.forms[key]
	if !ok {
		entry = &sessionEntry{form: NewForm(schema, WithDwell(s.dwell))}
		s.forms[key] = entry
		metrics.ActiveForms.Set(float64(len(s.forms)))
	} else {
		entry.form.Rebind(schema)
	}
	entry.lastSeen = s.now()
	return entry.form
}

// Lookup returns an existing form instance without creating one
func (s *Sessions) Lookup(campaign, formID string) (*Form, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.forms[sessionKey{campaign: campaign, formID: formID}]
	if !ok {
		return nil, false
	}
	return entry.form, true
}

// Len returns the number of live form instances
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.forms)
}

// Sweep drops idle instances that are not mid-submission and returns how many went
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for key, entry := range s.forms {
		if entry.lastSeen.After(cutoff) || entry.form.State() == StateSubmitting {
			continue
		}
		entry.form.Close()
		delete(s.forms, key)
		removed++
	}
	metrics.ActiveForms.Set(float64(len(s.forms)))
	return removed
}

// Close stops every pending auto-reset and forgets all instances
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.forms {
		entry.form.Close()
		delete(s.forms, key)
	}
	metrics.ActiveForms.Set(0)
}
