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

var historyBase = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func activity(id uint64, device string, msgID int, action models.ActivityAction, at time.Time) models.RepeaterActivity {
	return models.RepeaterActivity{
		ID:        id,
		Device:    device,
		MsgID:     msgID,
		Message:   "payload",
		Action:    action,
		Timestamp: at,
	}
}

func TestHistoryPairsReceivedAndRetransmitted(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	page := []models.RepeaterActivity{
		activity(2, "RPT001", 42, models.ActionRetransmitted, historyBase.Add(1500*time.Millisecond)),
		activity(1, "RPT001", 42, models.ActionReceived, historyBase),
	}

	mockRepo.On("FindDevice", mock.Anything, "RPT001").Return(&models.RepeaterDevice{Device: "RPT001"}, nil)
	mockRepo.On("CountActivities", mock.Anything, "RPT001").Return(int64(2), nil)
	mockRepo.On("ListActivities", mock.Anything, "RPT001", 50, 0).Return(page, nil)

	view, err := svc.History(context.Background(), "RPT001", 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), view.Total)
	require.Len(t, view.History, 1)

	tx := view.History[0]
	require.Equal(t, 42, tx.MsgID)
	require.Equal(t, models.RelayStatusSuccess, tx.Status)
	require.NotNil(t, tx.RelayTimeMs)
	require.Equal(t, int64(1500), *tx.RelayTimeMs)
	require.Equal(t, historyBase, *tx.ReceivedAt)

	mockRepo.AssertExpectations(t)
}

func TestHistoryReceivedOnlyIsPending(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	page := []models.RepeaterActivity{
		activity(1, "RPT001", 7, models.ActionReceived, historyBase),
	}

	mockRepo.On("FindDevice", mock.Anything, "RPT001").Return(&models.RepeaterDevice{Device: "RPT001"}, nil)
	mockRepo.On("CountActivities", mock.Anything, "RPT001").Return(int64(1), nil)
	mockRepo.On("ListActivities", mock.Anything, "RPT001", 50, 0).Return(page, nil)

	view, err := svc.History(context.Background(), "RPT001", 0, 0)
	require.NoError(t, err)
	require.Len(t, view.History, 1)
	require.Equal(t, models.RelayStatusPending, view.History[0].Status)
	require.Nil(t, view.History[0].RelayTimeMs)
	require.Nil(t, view.History[0].RetransmittedAt)
}

func TestHistoryRetransmittedOnlyIsUnknown(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	page := []models.RepeaterActivity{
		activity(9, "RPT001", 7, models.ActionRetransmitted, historyBase),
	}

	mockRepo.On("FindDevice", mock.Anything, "RPT001").Return(&models.RepeaterDevice{Device: "RPT001"}, nil)
	mockRepo.On("CountActivities", mock.Anything, "RPT001").Return(int64(2), nil)
	mockRepo.On("ListActivities", mock.Anything, "RPT001", 1, 0).Return(page, nil)

	view, err := svc.History(context.Background(), "RPT001", 1, 0)
	require.NoError(t, err)
	require.Len(t, view.History, 1)
	require.Equal(t, models.RelayStatusUnknown, view.History[0].Status)
	require.Nil(t, view.History[0].ReceivedAt)
	require.Nil(t, view.History[0].RelayTimeMs)
}

func TestHistoryInvertedPairStaysPending(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	// Retransmission timestamp precedes the reception: clock anomaly
	page := []models.RepeaterActivity{
		activity(1, "RPT001", 5, models.ActionRetransmitted, historyBase),
		activity(2, "RPT001", 5, models.ActionReceived, historyBase.Add(2*time.Second)),
	}

	mockRepo.On("FindDevice", mock.Anything, "RPT001").Return(&models.RepeaterDevice{Device: "RPT001"}, nil)
	mockRepo.On("CountActivities", mock.Anything, "RPT001").Return(int64(2), nil)
	mockRepo.On("ListActivities", mock.Anything, "RPT001", 50, 0).Return(page, nil)

	view, err := svc.History(context.Background(), "RPT001", 0, 0)
	require.NoError(t, err)
	require.Len(t, view.History, 1)
	require.Equal(t, models.RelayStatusPending, view.History[0].Status)
	require.Nil(t, view.History[0].RelayTimeMs)
	require.NotNil(t, view.History[0].ReceivedAt)
	require.NotNil(t, view.History[0].RetransmittedAt)
}

func TestHistoryFirstEventWinsPerAction(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	page := []models.RepeaterActivity{
		activity(1, "RPT001", 3, models.ActionReceived, historyBase),
		activity(2, "RPT001", 3, models.ActionReceived, historyBase.Add(time.Second)),
		activity(3, "RPT001", 3, models.ActionRetransmitted, historyBase.Add(2*time.Second)),
		activity(4, "RPT001", 3, models.ActionRetransmitted, historyBase.Add(3*time.Second)),
	}

	mockRepo.On("FindDevice", mock.Anything, "RPT001").Return(&models.RepeaterDevice{Device: "RPT001"}, nil)
	mockRepo.On("CountActivities", mock.Anything, "RPT001").Return(int64(4), nil)
	mockRepo.On("ListActivities", mock.Anything, "RPT001", 50, 0).Return(page, nil)

	view, err := svc.History(context.Background(), "RPT001", 0, 0)
	require.NoError(t, err)
	require.Len(t, view.History, 1)

	tx := view.History[0]
	require.Equal(t, uint64(1), tx.ID)
	require.Equal(t, historyBase, *tx.ReceivedAt)
	require.Equal(t, historyBase.Add(2*time.Second), *tx.RetransmittedAt)
	require.Equal(t, int64(2000), *tx.RelayTimeMs)
}

func TestHistoryNewestTransactionFirst(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	page := []models.RepeaterActivity{
		activity(1, "RPT001", 1, models.ActionReceived, historyBase),
		activity(2, "RPT001", 1, models.ActionRetransmitted, historyBase.Add(time.Second)),
		activity(3, "RPT001", 2, models.ActionReceived, historyBase.Add(time.Minute)),
	}

	mockRepo.On("FindDevice", mock.Anything, "RPT001").Return(&models.RepeaterDevice{Device: "RPT001"}, nil)
	mockRepo.On("CountActivities", mock.Anything, "RPT001").Return(int64(3), nil)
	mockRepo.On("ListActivities", mock.Anything, "RPT001", 50, 0).Return(page, nil)

	view, err := svc.History(context.Background(), "RPT001", 0, 0)
	require.NoError(t, err)
	require.Len(t, view.History, 2)
	require.Equal(t, 2, view.History[0].MsgID)
	require.Equal(t, 1, view.History[1].MsgID)
}

func TestHistoryTelemetryPrefersReceivedEvent(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	received := activity(1, "RPT001", 8, models.ActionReceived, historyBase)
	received.Voltage = floatPtr(12.4)
	retransmitted := activity(2, "RPT001", 8, models.ActionRetransmitted, historyBase.Add(time.Second))
	retransmitted.Voltage = floatPtr(11.0)
	retransmitted.SignalStrength = intPtr(70)

	page := []models.RepeaterActivity{received, retransmitted}

	mockRepo.On("FindDevice", mock.Anything, "RPT001").Return(&models.RepeaterDevice{Device: "RPT001"}, nil)
	mockRepo.On("CountActivities", mock.Anything, "RPT001").Return(int64(2), nil)
	mockRepo.On("ListActivities", mock.Anything, "RPT001", 50, 0).Return(page, nil)

	view, err := svc.History(context.Background(), "RPT001", 0, 0)
	require.NoError(t, err)
	require.Len(t, view.History, 1)

	tx := view.History[0]
	require.Equal(t, 12.4, *tx.Voltage)
	// Missing on the received event, so the retransmitted value fills in
	require.Equal(t, 70, *tx.SignalStrength)
}

func TestHistoryUnknownDevice(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	mockRepo.On("FindDevice", mock.Anything, "NOPE").Return(nil, repository.ErrNotFound)

	_, err := svc.History(context.Background(), "NOPE", 0, 0)
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestHistoryLimitClamping(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	mockRepo.On("FindDevice", mock.Anything, "RPT001").Return(&models.RepeaterDevice{Device: "RPT001"}, nil)
	mockRepo.On("CountActivities", mock.Anything, "RPT001").Return(int64(0), nil)
	mockRepo.On("ListActivities", mock.Anything, "RPT001", maxHistoryLimit, 0).Return([]models.RepeaterActivity{}, nil)

	view, err := svc.History(context.Background(), "RPT001", 9999, -5)
	require.NoError(t, err)
	require.Empty(t, view.History)
	mockRepo.AssertExpectations(t)
}
