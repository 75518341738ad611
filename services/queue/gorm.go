package queue

import (
	"context"
	"fmt"

	"land_leads_app_go/models"

	"gorm.io/gorm"
)

// GormBackend stores queues in the inquiries table through GORM (SQLite or libSQL)
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend uses an already migrated *gorm.DB
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

// Append inserts rec with the next sequence number of its queue in one transaction
func (g *GormBackend) Append(ctx context.Context, key string, rec models.SubmissionRecord) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int64
		if err := tx.Model(&models.Inquiry{}).
			Where("queue_key = ?", key).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&last).Error; err != nil {
			return fmt.Errorf("failed to read queue head: %w", err)
		}

		row := models.NewInquiry(key, last+1, rec)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert inquiry: %w", err)
		}
		return nil
	})
}

// ReadAll returns the queue newest first
func (g *GormBackend) ReadAll(ctx context.Context, key string) ([]models.SubmissionRecord, error) {
	var rows []models.Inquiry
	if err := g.db.WithContext(ctx).
		Where("queue_key = ?", key).
		Order("seq DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch inquiries: %w", err)
	}

	records := make([]models.SubmissionRecord, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return records, nil
}

// Campaigns lists every campaign that has at least one inquiry
func (g *GormBackend) Campaigns(ctx context.Context) ([]string, error) {
	var campaigns []string
	if err := g.db.WithContext(ctx).
		Model(&models.Inquiry{}).
		Distinct("campaign").
		Order("campaign").
		Pluck("campaign", &campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}
