package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Inquiry is the durable row behind a campaign's submission queue.
// Seq grows per queue key; the newest inquiry has the highest Seq.
type Inquiry struct {
	ID          string            `gorm:"type:uuid;primarykey" json:"id"`
	QueueKey    string            `gorm:"not null;index:idx_inquiries_queue_seq,priority:1" json:"queue_key"`
	Seq         int64             `gorm:"not null;index:idx_inquiries_queue_seq,priority:2" json:"seq"`
	Campaign    string            `gorm:"not null;index" json:"campaign"`
	SubmittedAt time.Time         `gorm:"not null" json:"submitted_at"`
	Fields      map[string]string `gorm:"type:text;not null;serializer:json" json:"fields"`
	CreatedAt   time.Time         `json:"created_at"`
}

// BeforeCreate hook to generate UUID
func (i *Inquiry) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for Inquiry model
func (Inquiry) TableName() string {
	return "inquiries"
}

// NewInquiry converts a submission record into a queue row
func NewInquiry(queueKey string, seq int64, rec SubmissionRecord) Inquiry {
	rec = rec.Clone()
	return Inquiry{
		ID:          rec.ID,
		QueueKey:    queueKey,
		Seq:         seq,
		Campaign:    rec.Campaign,
		SubmittedAt: rec.SubmittedAt,
		Fields:      rec.Fields,
	}
}

// Record converts the row back into a submission record
func (i Inquiry) Record() SubmissionRecord {
	return NewSubmissionRecord(i.ID, i.Campaign, i.Fields, i.SubmittedAt)
}
