package storage

import (
	"context"
	"fmt"
)

// SaveReviewRecord appends one review fetch to the audit trail.
func (d *Database) SaveReviewRecord(ctx context.Context, rec *ReviewRecord) error {
	if err := d.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save review record: %w", err)
	}
	return nil
}

// ListReviewRecords returns the most recent review fetches, newest first.
func (d *Database) ListReviewRecords(ctx context.Context, limit int) ([]ReviewRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []ReviewRecord
	err := d.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list review records: %w", err)
	}
	return records, nil
}
