package repository

import (
	"context"
	"errors"
	"time"

	"example.com/backstage/services/repeater/internal/database"
	"example.com/backstage/services/repeater/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxWindowRows bounds how many rows a single aggregation window query may
// pull back. Listing queries are bounded separately by their limit argument.
const maxWindowRows = 100000

// Repository provides data access methods
type Repository interface {
	// Transaction support
	WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error

	// RepeaterDevice operations
	FindDevice(ctx context.Context, id string) (*models.RepeaterDevice, error)
	GetOrCreateDevice(ctx context.Context, id string) (*models.RepeaterDevice, bool, error)
	SaveDevice(ctx context.Context, device *models.RepeaterDevice) error
	ListDevices(ctx context.Context) ([]*models.RepeaterDevice, error)

	// RepeaterActivity operations
	CreateActivity(ctx context.Context, activity *models.RepeaterActivity) error
	ListActivities(ctx context.Context, device string, limit, offset int) ([]models.RepeaterActivity, error)
	CountActivities(ctx context.Context, device string) (int64, error)
	ListActivitiesInWindow(ctx context.Context, device string, start, end time.Time) ([]models.RepeaterActivity, error)

	// RepeaterStatus operations
	GetStatus(ctx context.Context, device string) (*models.RepeaterStatus, error)
	ListStatuses(ctx context.Context) ([]models.RepeaterStatus, error)
	SaveStatus(ctx context.Context, status *models.RepeaterStatus) error

	// APIKey operations
	CreateAPIKey(ctx context.Context, apiKey *models.APIKey) error
	GetAPIKeyByKey(ctx context.Context, key string) (*models.APIKey, error)
	UpdateAPIKey(ctx context.Context, apiKey *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	DeleteAPIKey(ctx context.Context, id uint) error
}

// repo is an implementation of the Repository interface
type repo struct {
	db database.DB
}

// Helper type for transaction support
type dbWrapper struct {
	db *gorm.DB
}

func (w *dbWrapper) DB() (*gorm.DB, error) {
	return w.db, nil
}

func (w *dbWrapper) Close() error {
	return nil
}

// NewRepository creates a new repository instance
func NewRepository(db database.DB) Repository {
	return &repo{
		db: db,
	}
}

// WithTransaction executes the given function within a database transaction
func (r *repo) WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.Transaction(func(tx *gorm.DB) error {
		txRepo := &repo{
			db: &dbWrapper{db: tx},
		}
		return fn(ctx, txRepo)
	})
}

// RepeaterDevice operations implementation

func (r *repo) FindDevice(ctx context.Context, id string) (*models.RepeaterDevice, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var device models.RepeaterDevice
	if err := gormDB.WithContext(ctx).First(&device, "device = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &device, nil
}

// GetOrCreateDevice returns the device row for id, creating an enabled open
// device (no API key) when none exists. The second return value reports
// whether a new row was created.
func (r *repo) GetOrCreateDevice(ctx context.Context, id string) (*models.RepeaterDevice, bool, error) {
	device, err := r.FindDevice(ctx, id)
	if err == nil {
		return device, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	gormDB, err := r.db.DB()
	if err != nil {
		return nil, false, err
	}

	device = &models.RepeaterDevice{
		Device:  id,
		Enabled: true,
	}
	if err := gormDB.WithContext(ctx).Create(device).Error; err != nil {
		return nil, false, err
	}

	return device, true, nil
}

// SaveDevice upserts a device row keyed by its id
func (r *repo) SaveDevice(ctx context.Context, device *models.RepeaterDevice) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device"}},
			UpdateAll: true,
		}).
		Create(device).Error
}

func (r *repo) ListDevices(ctx context.Context) ([]*models.RepeaterDevice, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var devices []*models.RepeaterDevice
	if err := gormDB.WithContext(ctx).Order("device ASC").Find(&devices).Error; err != nil {
		return nil, err
	}

	return devices, nil
}

// RepeaterActivity operations implementation

func (r *repo) CreateActivity(ctx context.Context, activity *models.RepeaterActivity) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Create(activity).Error
}

// ListActivities returns a newest-first page of activity rows. An empty
// device id lists across all devices.
func (r *repo) ListActivities(ctx context.Context, device string, limit, offset int) ([]models.RepeaterActivity, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	query := gormDB.WithContext(ctx).Order("timestamp DESC, id DESC")
	if device != "" {
		query = query.Where("device = ?", device)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var activities []models.RepeaterActivity
	if err := query.Find(&activities).Error; err != nil {
		return nil, err
	}

	return activities, nil
}

func (r *repo) CountActivities(ctx context.Context, device string) (int64, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return 0, err
	}

	query := gormDB.WithContext(ctx).Model(&models.RepeaterActivity{})
	if device != "" {
		query = query.Where("device = ?", device)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

// ListActivitiesInWindow returns all activity rows with start <= timestamp
// <= end, oldest first. An empty device id spans all devices.
func (r *repo) ListActivitiesInWindow(ctx context.Context, device string, start, end time.Time) ([]models.RepeaterActivity, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	query := gormDB.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp ASC, id ASC").
		Limit(maxWindowRows)
	if device != "" {
		query = query.Where("device = ?", device)
	}

	var activities []models.RepeaterActivity
	if err := query.Find(&activities).Error; err != nil {
		return nil, err
	}

	return activities, nil
}

// RepeaterStatus operations implementation

func (r *repo) GetStatus(ctx context.Context, device string) (*models.RepeaterStatus, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var status models.RepeaterStatus
	if err := gormDB.WithContext(ctx).First(&status, "device = ?", device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &status, nil
}

func (r *repo) ListStatuses(ctx context.Context) ([]models.RepeaterStatus, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var statuses []models.RepeaterStatus
	if err := gormDB.WithContext(ctx).Order("device ASC").Find(&statuses).Error; err != nil {
		return nil, err
	}

	return statuses, nil
}

// SaveStatus upserts the per-device snapshot row
func (r *repo) SaveStatus(ctx context.Context, status *models.RepeaterStatus) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device"}},
			UpdateAll: true,
		}).
		Create(status).Error
}

// APIKey operations implementation

func (r *repo) CreateAPIKey(ctx context.Context, apiKey *models.APIKey) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Create(apiKey).Error
}

func (r *repo) GetAPIKeyByKey(ctx context.Context, key string) (*models.APIKey, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var apiKey models.APIKey
	if err := gormDB.WithContext(ctx).Where("key = ?", key).First(&apiKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &apiKey, nil
}

func (r *repo) UpdateAPIKey(ctx context.Context, apiKey *models.APIKey) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Save(apiKey).Error
}

func (r *repo) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var apiKeys []*models.APIKey
	if err := gormDB.WithContext(ctx).Find(&apiKeys).Error; err != nil {
		return nil, err
	}

	return apiKeys, nil
}

func (r *repo) DeleteAPIKey(ctx context.Context, id uint) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Delete(&models.APIKey{}, id).Error
}
