package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/difflens/difflens/internal/azuredevops"
)

// GetCapability implements azuredevops.CapabilityStore. A missing origin
// is not an error; it just means the prober has work to do.
func (d *Database) GetCapability(ctx context.Context, origin string) (*azuredevops.Capability, error) {
	var row ServerCapability
	err := d.db.WithContext(ctx).Where("origin = ?", origin).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load capability for %s: %w", origin, err)
	}
	return &azuredevops.Capability{
		Origin:       row.Origin,
		APIVersion:   row.APIVersion,
		VersionLabel: row.VersionLabel,
		DetectedAt:   row.DetectedAt,
	}, nil
}

// SaveCapability implements azuredevops.CapabilityStore, upserting on the
// origin so a re-probe replaces the stale entry.
func (d *Database) SaveCapability(ctx context.Context, cap *azuredevops.Capability) error {
	row := ServerCapability{
		Origin:       cap.Origin,
		APIVersion:   cap.APIVersion,
		VersionLabel: cap.VersionLabel,
		DetectedAt:   cap.DetectedAt,
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "origin"}},
		DoUpdates: clause.AssignmentColumns([]string{"api_version", "version_label", "detected_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save capability for %s: %w", cap.Origin, err)
	}
	return nil
}
