package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Reserved keys of the persisted record shape. Form fields may not use them.
const (
	RecordKeyID          = "id"
	RecordKeyCampaign    = "campaign"
	RecordKeySubmittedAt = "submittedAt"
)

// IsReservedRecordKey reports whether name collides with a persisted record key
func IsReservedRecordKey(name string) bool {
	switch name {
	case RecordKeyID, RecordKeyCampaign, RecordKeySubmittedAt:
		return true
	}
	return false
}

// SubmissionRecord is one completed, validated lead submission.
// Records are created once by the submission pipeline and never updated.
type SubmissionRecord struct {
	ID          string
	Campaign    string
	Fields      map[string]string
	SubmittedAt time.Time
}

// NewSubmissionRecord builds a record that owns its own copy of fields
func NewSubmissionRecord(id, campaign string, fields map[string]string, submittedAt time.Time) SubmissionRecord {
	return SubmissionRecord{
		ID:          id,
		Campaign:    campaign,
		Fields:      maps.Clone(fields),
		SubmittedAt: submittedAt.UTC(),
	}
}

// Clone returns a deep copy so callers can never alias the stored field map
func (r SubmissionRecord) Clone() SubmissionRecord {
	r.Fields = maps.Clone(r.Fields)
	return r
}

// MarshalJSON flattens the record into {id, campaign, submittedAt, ...fields}
func (r SubmissionRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[RecordKeyID] = r.ID
	out[RecordKeyCampaign] = r.Campaign
	out[RecordKeySubmittedAt] = r.SubmittedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// UnmarshalJSON reads the flattened persisted shape back into a record
func (r *SubmissionRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode submission record: %w", err)
	}

	submittedAt, err := time.Parse(time.RFC3339Nano, raw[RecordKeySubmittedAt])
	if err != nil {
		return fmt.Errorf("invalid submittedAt %q: %w", raw[RecordKeySubmittedAt], err)
	}

	r.ID = raw[RecordKeyID]
	r.Campaign = raw[RecordKeyCampaign]
	r.SubmittedAt = submittedAt
	r.Fields = make(map[string]string, len(raw))
	for k, v := range raw {
		if IsReservedRecordKey(k) {
			continue
		}
		r.Fields[k] = v
	}
	return nil
}
