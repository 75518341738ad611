package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionRecordJSONShape(t *testing.T) {
	submittedAt := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	rec := NewSubmissionRecord("rec-1", "texas-land", map[string]string{
		"firstName": "Jane",
		"email":     "jane@example.com",
	}, submittedAt)

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var flat map[string]string
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, map[string]string{
		"id":          "rec-1",
		"campaign":    "texas-land",
		"submittedAt": "2026-03-14T15:09:26Z",
		"firstName":   "Jane",
		"email":       "jane@example.com",
	}, flat)

	var back SubmissionRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, rec.Campaign, back.Campaign)
	assert.True(t, rec.SubmittedAt.Equal(back.SubmittedAt))
	assert.Equal(t, rec.Fields, back.Fields)
}

func TestSubmissionRecordUnmarshalRejectsBadTimestamp(t *testing.T) {
	var rec SubmissionRecord
	err := json.Unmarshal([]byte(`{"id":"x","campaign":"c","submittedAt":"yesterday"}`), &rec)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid submittedAt")
}

func TestNewSubmissionRecordCopiesFields(t *testing.T) {
	fields := map[string]string{"firstName": "Jane"}
	rec := NewSubmissionRecord("rec-1", "c", fields, time.Now())

	fields["firstName"] = "Mallory"
	assert.Equal(t, "Jane", rec.Fields["firstName"])

	clone := rec.Clone()
	clone.Fields["firstName"] = "Eve"
	assert.Equal(t, "Jane", rec.Fields["firstName"])
}

func TestInquiryRoundTrip(t *testing.T) {
	rec := NewSubmissionRecord("rec-2", "ohio-land", map[string]string{"phone": "555-123-4567"}, time.Now())
	row := NewInquiry("ohio-land_inquiries", 7, rec)

	assert.Equal(t, "ohio-land_inquiries", row.QueueKey)
	assert.Equal(t, int64(7), row.Seq)
	assert.Equal(t, "inquiries", row.TableName())

	back := row.Record()
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, rec.Fields, back.Fields)
}
