package service

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/services/repeater/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var metricsNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestMetricsSummaryCounts(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	events := []models.RepeaterActivity{
		activity(1, "RPT001", 1, models.ActionReceived, metricsNow.Add(-30*time.Minute)),
		activity(2, "RPT001", 1, models.ActionRetransmitted, metricsNow.Add(-30*time.Minute).Add(time.Second)),
		activity(3, "RPT001", 2, models.ActionReceived, metricsNow.Add(-10*time.Minute)),
	}
	events[2].Failed = 4

	mockRepo.On("ListActivitiesInWindow", mock.Anything, "RPT001", metricsNow.Add(-time.Hour), metricsNow).
		Return(events, nil)

	view, err := svc.Metrics(context.Background(), "RPT001", "1h", metricsNow)
	require.NoError(t, err)
	require.Equal(t, "1h", view.Period)
	require.Equal(t, 2, view.Metrics.MessagesReceived)
	require.Equal(t, 1, view.Metrics.MessagesRetransmitted)
	require.Equal(t, 4, view.Metrics.MessagesFailed)
	require.Equal(t, 50.0, view.Metrics.SuccessRate)
	require.Nil(t, view.Metrics.AvgRelayTimeMs)
}

func TestMetricsZeroReceivedSuccessRate(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	events := []models.RepeaterActivity{
		activity(1, "RPT001", 1, models.ActionRetransmitted, metricsNow.Add(-time.Minute)),
	}

	mockRepo.On("ListActivitiesInWindow", mock.Anything, "RPT001", mock.Anything, mock.Anything).
		Return(events, nil)

	view, err := svc.Metrics(context.Background(), "RPT001", "1h", metricsNow)
	require.NoError(t, err)
	require.Equal(t, 0.0, view.Metrics.SuccessRate)
}

func TestMetricsEmptyWindow(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	mockRepo.On("ListActivitiesInWindow", mock.Anything, "RPT001", mock.Anything, mock.Anything).
		Return([]models.RepeaterActivity{}, nil)

	view, err := svc.Metrics(context.Background(), "RPT001", "1h", metricsNow)
	require.NoError(t, err)
	require.Empty(t, view.Timeline)
	require.Equal(t, 0.0, view.Metrics.UptimePercentage)
	require.Equal(t, 0, view.Metrics.MessagesReceived)
	require.Nil(t, view.Metrics.AvgVoltage)
}

func TestMetricsPeriodFallback(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	mockRepo.On("ListActivitiesInWindow", mock.Anything, "RPT001", metricsNow.Add(-24*time.Hour), metricsNow).
		Return([]models.RepeaterActivity{}, nil)

	view, err := svc.Metrics(context.Background(), "RPT001", "fortnight", metricsNow)
	require.NoError(t, err)
	require.Equal(t, "24h", view.Period)
	mockRepo.AssertExpectations(t)
}

func TestMetricsMinuteBuckets(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	events := []models.RepeaterActivity{
		activity(1, "RPT001", 1, models.ActionReceived, metricsNow.Add(-10*time.Minute).Add(12*time.Second)),
		activity(2, "RPT001", 1, models.ActionRetransmitted, metricsNow.Add(-10*time.Minute).Add(40*time.Second)),
		activity(3, "RPT001", 2, models.ActionReceived, metricsNow.Add(-2*time.Minute)),
	}

	mockRepo.On("ListActivitiesInWindow", mock.Anything, "RPT001", mock.Anything, mock.Anything).
		Return(events, nil)

	view, err := svc.Metrics(context.Background(), "RPT001", "1h", metricsNow)
	require.NoError(t, err)
	require.Len(t, view.Timeline, 2)

	first := view.Timeline[0]
	require.Equal(t, metricsNow.Add(-10*time.Minute), first.Timestamp)
	require.Equal(t, 1, first.Received)
	require.Equal(t, 1, first.Retransmitted)

	second := view.Timeline[1]
	require.Equal(t, metricsNow.Add(-2*time.Minute), second.Timestamp)
	require.Equal(t, 1, second.Received)
	require.Equal(t, 0, second.Retransmitted)
}

func TestMetricsHourBucketsForLongPeriods(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	events := []models.RepeaterActivity{
		activity(1, "RPT001", 1, models.ActionReceived, metricsNow.Add(-3*time.Hour).Add(17*time.Minute)),
		activity(2, "RPT001", 2, models.ActionReceived, metricsNow.Add(-3*time.Hour).Add(45*time.Minute)),
	}

	mockRepo.On("ListActivitiesInWindow", mock.Anything, "RPT001", mock.Anything, mock.Anything).
		Return(events, nil)

	view, err := svc.Metrics(context.Background(), "RPT001", "7d", metricsNow)
	require.NoError(t, err)
	require.Len(t, view.Timeline, 1)
	require.Equal(t, metricsNow.Add(-3*time.Hour), view.Timeline[0].Timestamp)
	require.Equal(t, 2, view.Timeline[0].Received)
}

func TestMetricsFailedLatestPerDevice(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	a1 := activity(1, "RPT001", 1, models.ActionReceived, metricsNow.Add(-40*time.Minute))
	a1.Failed = 10
	a2 := activity(2, "RPT001", 2, models.ActionReceived, metricsNow.Add(-5*time.Minute))
	a2.Failed = 12
	b1 := activity(3, "RPT002", 1, models.ActionReceived, metricsNow.Add(-20*time.Minute))
	b1.Failed = 3

	mockRepo.On("ListActivitiesInWindow", mock.Anything, "", mock.Anything, mock.Anything).
		Return([]models.RepeaterActivity{a1, a2, b1}, nil)

	view, err := svc.Metrics(context.Background(), "", "1h", metricsNow)
	require.NoError(t, err)
	require.Equal(t, 15, view.Metrics.MessagesFailed)
}

func TestMetricsTelemetryAverages(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	a1 := activity(1, "RPT001", 1, models.ActionReceived, metricsNow.Add(-5*time.Minute))
	a1.Voltage = floatPtr(12.0)
	a1.SignalStrength = intPtr(80)
	a2 := activity(2, "RPT001", 2, models.ActionReceived, metricsNow.Add(-4*time.Minute))
	a2.Voltage = floatPtr(13.0)
	a3 := activity(3, "RPT001", 3, models.ActionReceived, metricsNow.Add(-3*time.Minute))

	mockRepo.On("ListActivitiesInWindow", mock.Anything, "RPT001", mock.Anything, mock.Anything).
		Return([]models.RepeaterActivity{a1, a2, a3}, nil)

	view, err := svc.Metrics(context.Background(), "RPT001", "1h", metricsNow)
	require.NoError(t, err)
	require.NotNil(t, view.Metrics.AvgVoltage)
	require.Equal(t, 12.5, *view.Metrics.AvgVoltage)
	require.NotNil(t, view.Metrics.AvgSignalStrength)
	require.Equal(t, 80.0, *view.Metrics.AvgSignalStrength)
	require.Nil(t, view.Metrics.AvgTxPower)
}

func TestMetricsUptimePercentage(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := newTestService(mockRepo)

	// Three emitted buckets, all with activity: 100%
	events := []models.RepeaterActivity{
		activity(1, "RPT001", 1, models.ActionReceived, metricsNow.Add(-30*time.Minute)),
		activity(2, "RPT001", 2, models.ActionReceived, metricsNow.Add(-20*time.Minute)),
		activity(3, "RPT001", 3, models.ActionReceived, metricsNow.Add(-10*time.Minute)),
	}

	mockRepo.On("ListActivitiesInWindow", mock.Anything, "RPT001", mock.Anything, mock.Anything).
		Return(events, nil)

	view, err := svc.Metrics(context.Background(), "RPT001", "1h", metricsNow)
	require.NoError(t, err)
	require.Equal(t, 100.0, view.Metrics.UptimePercentage)
}
