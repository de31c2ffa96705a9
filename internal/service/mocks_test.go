package service

import (
	"context"
	"time"

	"example.com/backstage/services/repeater/internal/models"
	"example.com/backstage/services/repeater/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a testify mock of repository.Repository
type MockRepository struct {
	mock.Mock
}

// WithTransaction runs the callback against the mock itself
func (m *MockRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo repository.Repository) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx, m)
}

func (m *MockRepository) FindDevice(ctx context.Context, id string) (*models.RepeaterDevice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RepeaterDevice), args.Error(1)
}

func (m *MockRepository) GetOrCreateDevice(ctx context.Context, id string) (*models.RepeaterDevice, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.RepeaterDevice), args.Bool(1), args.Error(2)
}

func (m *MockRepository) SaveDevice(ctx context.Context, device *models.RepeaterDevice) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

func (m *MockRepository) ListDevices(ctx context.Context) ([]*models.RepeaterDevice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RepeaterDevice), args.Error(1)
}

func (m *MockRepository) CreateActivity(ctx context.Context, activity *models.RepeaterActivity) error {
	args := m.Called(ctx, activity)
	return args.Error(0)
}

func (m *MockRepository) ListActivities(ctx context.Context, device string, limit, offset int) ([]models.RepeaterActivity, error) {
	args := m.Called(ctx, device, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RepeaterActivity), args.Error(1)
}

func (m *MockRepository) CountActivities(ctx context.Context, device string) (int64, error) {
	args := m.Called(ctx, device)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) ListActivitiesInWindow(ctx context.Context, device string, start, end time.Time) ([]models.RepeaterActivity, error) {
	args := m.Called(ctx, device, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RepeaterActivity), args.Error(1)
}

func (m *MockRepository) GetStatus(ctx context.Context, device string) (*models.RepeaterStatus, error) {
	args := m.Called(ctx, device)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RepeaterStatus), args.Error(1)
}

func (m *MockRepository) ListStatuses(ctx context.Context) ([]models.RepeaterStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RepeaterStatus), args.Error(1)
}

func (m *MockRepository) SaveStatus(ctx context.Context, status *models.RepeaterStatus) error {
	args := m.Called(ctx, status)
	return args.Error(0)
}

func (m *MockRepository) CreateAPIKey(ctx context.Context, apiKey *models.APIKey) error {
	args := m.Called(ctx, apiKey)
	return args.Error(0)
}

func (m *MockRepository) GetAPIKeyByKey(ctx context.Context, key string) (*models.APIKey, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *MockRepository) UpdateAPIKey(ctx context.Context, apiKey *models.APIKey) error {
	args := m.Called(ctx, apiKey)
	return args.Error(0)
}

func (m *MockRepository) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.APIKey), args.Error(1)
}

func (m *MockRepository) DeleteAPIKey(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestService(repo *MockRepository) *service {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &service{
		repo: repo,
		log:  log,
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
