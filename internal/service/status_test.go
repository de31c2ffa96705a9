package service

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/services/repeater/internal/models"
	"example.com/backstage/services/repeater/internal/repository"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var statusNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestStatusOnlineWithinWindow(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	mockRepo.On("GetStatus", mock.Anything, "RPT001").Return(&models.RepeaterStatus{
		Device:   "RPT001",
		LastSeen: statusNow.Add(-119 * time.Second),
	}, nil)

	views, err := svc.Status(context.Background(), "RPT001", statusNow)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.True(t, views[0].Online)
}

func TestStatusOfflineAtExactBoundary(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	mockRepo.On("GetStatus", mock.Anything, "RPT001").Return(&models.RepeaterStatus{
		Device:   "RPT001",
		LastSeen: statusNow.Add(-120 * time.Second),
	}, nil)

	views, err := svc.Status(context.Background(), "RPT001", statusNow)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.False(t, views[0].Online)
}

func TestStatusSuccessRate(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	mockRepo.On("GetStatus", mock.Anything, "RPT001").Return(&models.RepeaterStatus{
		Device:   "RPT001",
		LastSeen: statusNow,
		RxTotal:  127,
		TxTotal:  125,
		Failed:   2,
	}, nil)

	views, err := svc.Status(context.Background(), "RPT001", statusNow)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, 98.4, views[0].Stats.SuccessRate)
}

func TestStatusSuccessRateZeroReceived(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	mockRepo.On("GetStatus", mock.Anything, "RPT001").Return(&models.RepeaterStatus{
		Device:   "RPT001",
		LastSeen: statusNow,
		TxTotal:  5,
	}, nil)

	views, err := svc.Status(context.Background(), "RPT001", statusNow)
	require.NoError(t, err)
	require.Equal(t, 0.0, views[0].Stats.SuccessRate)
}

func TestStatusUnknownDeviceYieldsEmpty(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	mockRepo.On("GetStatus", mock.Anything, "NOPE").Return(nil, repository.ErrNotFound)

	views, err := svc.Status(context.Background(), "NOPE", statusNow)
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestStatusFleetListing(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	mockRepo.On("ListStatuses", mock.Anything).Return([]models.RepeaterStatus{
		{Device: "RPT001", LastSeen: statusNow.Add(-time.Minute), UptimeSeconds: 240},
		{Device: "RPT002", LastSeen: statusNow.Add(-time.Hour)},
	}, nil)

	views, err := svc.Status(context.Background(), "", statusNow)
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.True(t, views[0].Online)
	require.Equal(t, 240, views[0].UptimeSeconds)
	require.False(t, views[1].Online)
}
