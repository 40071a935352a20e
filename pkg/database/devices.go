package database

import (
	"context"
	"time"

	"netmon/pkg/models"

	"gorm.io/gorm"
)

// DeviceStore wraps the generic repository with device-specific queries.
type DeviceStore struct {
	*GormRepository[models.Device]
}

func NewDeviceStore(db *gorm.DB) *DeviceStore {
	return &DeviceStore{GormRepository: NewGormRepository[models.Device](db)}
}

// ListEligible returns devices that participate in scheduled passes:
// active and warning devices with a credential reference. Inactive devices
// stay out until an operator reactivates them.
func (store *DeviceStore) ListEligible(ctx context.Context) ([]*models.Device, error) {
	var devices []*models.Device
	result := store.DB().WithContext(ctx).
		Where("status IN ?", []string{models.DeviceActive, models.DeviceWarning}).
		Where("credential_profile_id > 0").
		Find(&devices)
	return devices, result.Error
}

// SetStatus updates only the operational status of a device.
func (store *DeviceStore) SetStatus(ctx context.Context, deviceID int64, status string) error {
	return store.DB().WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", deviceID).
		Update("status", status).Error
}

// ResultStore provides queries over persisted command results.
type ResultStore struct {
	*GormRepository[models.CommandResult]
}

func NewResultStore(db *gorm.DB) *ResultStore {
	return &ResultStore{GormRepository: NewGormRepository[models.CommandResult](db)}
}

// ListByDevice returns the most recent results for a device, newest first.
// A non-zero since restricts the lookback window.
func (store *ResultStore) ListByDevice(ctx context.Context, deviceID int64, limit int, since time.Time) ([]*models.CommandResult, error) {
	var results []*models.CommandResult
	query := store.DB().WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("captured_at DESC")
	if !since.IsZero() {
		query = query.Where("captured_at >= ?", since)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&results).Error
	return results, err
}

// AlertStore provides queries over alerts.
type AlertStore struct {
	*GormRepository[models.Alert]
}

func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{GormRepository: NewGormRepository[models.Alert](db)}
}

// ListByResolved returns alerts filtered by resolved state, newest first.
func (store *AlertStore) ListByResolved(ctx context.Context, resolved bool) ([]*models.Alert, error) {
	var alerts []*models.Alert
	err := store.DB().WithContext(ctx).
		Where("resolved = ?", resolved).
		Order("created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

// HasUnresolved reports whether an unresolved alert with the same dedup key
// already exists for the device.
func (store *AlertStore) HasUnresolved(ctx context.Context, deviceID int64, dedupKey string) (bool, error) {
	var count int64
	err := store.DB().WithContext(ctx).
		Model(&models.Alert{}).
		Where("device_id = ? AND dedup_key = ? AND resolved = false", deviceID, dedupKey).
		Count(&count).Error
	return count > 0, err
}
