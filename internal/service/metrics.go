package service

import (
	"context"
	"math"
	"sort"
	"time"

	"example.com/backstage/services/repeater/internal/models"
)

const defaultPeriod = "24h"

// minuteBucketCutoff is the longest window still bucketed per minute;
// anything longer switches to hourly buckets.
const minuteBucketCutoff = 6 * time.Hour

var periodDurations = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// MetricsSummary holds the period-level statistics.
//
// MessagesFailed sums the most recent cumulative `failed` counter per device
// seen in the window. It approximates failures observed, it is not a
// failures-within-window delta. AvgRelayTimeMs is always null: per-message
// latency lives in the history view and is not reducible here without
// re-running correlation over the whole window.
type MetricsSummary struct {
	MessagesReceived      int      `json:"messages_received"`
	MessagesRetransmitted int      `json:"messages_retransmitted"`
	MessagesFailed        int      `json:"messages_failed"`
	SuccessRate           float64  `json:"success_rate"`
	AvgRelayTimeMs        *float64 `json:"avg_relay_time_ms"`
	AvgVoltage            *float64 `json:"avg_voltage"`
	AvgSignalStrength     *float64 `json:"avg_signal_strength"`
	AvgTxPower            *float64 `json:"avg_tx_power"`
	UptimePercentage      float64  `json:"uptime_percentage"`
}

// TimelineBucket is one non-empty fixed-width slice of the window. Empty
// buckets are omitted entirely rather than zero-filled.
type TimelineBucket struct {
	Timestamp      time.Time `json:"timestamp"`
	Received       int       `json:"received"`
	Retransmitted  int       `json:"retransmitted"`
	Failed         int       `json:"failed"`
	Voltage        *float64  `json:"voltage"`
	SignalStrength *int      `json:"signal_strength"`
}

// MetricsView is the aggregated metrics response
type MetricsView struct {
	Device   string           `json:"device,omitempty"`
	Period   string           `json:"period"`
	Metrics  MetricsSummary   `json:"metrics"`
	Timeline []TimelineBucket `json:"timeline"`
}

// Metrics computes time-windowed statistics over [now - period, now] for one
// device, or fleet-wide when device is empty. Unrecognized period tokens
// silently fall back to 24h.
func (s *service) Metrics(ctx context.Context, device, period string, now time.Time) (*MetricsView, error) {
	period, window := normalizePeriod(period)
	start := now.Add(-window)

	events, err := s.repo.ListActivitiesInWindow(ctx, device, start, now)
	if err != nil {
		return nil, err
	}

	timeline := buildTimeline(events, bucketWidth(window))

	return &MetricsView{
		Device:   device,
		Period:   period,
		Metrics:  summarize(events, timeline),
		Timeline: timeline,
	}, nil
}

func normalizePeriod(period string) (string, time.Duration) {
	if d, ok := periodDurations[period]; ok {
		return period, d
	}
	return defaultPeriod, periodDurations[defaultPeriod]
}

func bucketWidth(window time.Duration) time.Duration {
	if window <= minuteBucketCutoff {
		return time.Minute
	}
	return time.Hour
}

func summarize(events []models.RepeaterActivity, timeline []TimelineBucket) MetricsSummary {
	summary := MetricsSummary{}

	var voltageSum float64
	var voltageN int
	var signalSum, signalN int
	var txPowerSum, txPowerN int

	// Most recent event per device, for the failed-counter approximation
	latestByDevice := make(map[string]*models.RepeaterActivity)

	for i := range events {
		event := &events[i]

		switch event.Action {
		case models.ActionReceived:
			summary.MessagesReceived++
		case models.ActionRetransmitted:
			summary.MessagesRetransmitted++
		}

		if event.Voltage != nil {
			voltageSum += *event.Voltage
			voltageN++
		}
		if event.SignalStrength != nil {
			signalSum += *event.SignalStrength
			signalN++
		}
		if event.TxPower != nil {
			txPowerSum += *event.TxPower
			txPowerN++
		}

		latest, ok := latestByDevice[event.Device]
		if !ok || event.Timestamp.After(latest.Timestamp) ||
			(event.Timestamp.Equal(latest.Timestamp) && event.ID > latest.ID) {
			latestByDevice[event.Device] = event
		}
	}

	for _, latest := range latestByDevice {
		summary.MessagesFailed += latest.Failed
	}

	if summary.MessagesReceived > 0 {
		summary.SuccessRate = round1(float64(summary.MessagesRetransmitted) / float64(summary.MessagesReceived) * 100)
	}

	if voltageN > 0 {
		avg := voltageSum / float64(voltageN)
		summary.AvgVoltage = &avg
	}
	if signalN > 0 {
		avg := float64(signalSum) / float64(signalN)
		summary.AvgSignalStrength = &avg
	}
	if txPowerN > 0 {
		avg := float64(txPowerSum) / float64(txPowerN)
		summary.AvgTxPower = &avg
	}

	// Uptime proxy: share of emitted buckets with any activity. With no
	// buckets at all the result is defined as 0.0, never an error.
	if len(timeline) > 0 {
		active := 0
		for _, bucket := range timeline {
			if bucket.Received > 0 || bucket.Retransmitted > 0 {
				active++
			}
		}
		summary.UptimePercentage = round1(float64(active) / float64(len(timeline)) * 100)
	}

	return summary
}

// buildTimeline truncates each event's timestamp down to its bucket boundary
// and aggregates per non-empty bucket, oldest first.
func buildTimeline(events []models.RepeaterActivity, width time.Duration) []TimelineBucket {
	type accum struct {
		received      int
		retransmitted int
		failedSum     int
		failedN       int
		voltageSum    float64
		voltageN      int
		signalSum     int
		signalN       int
	}

	buckets := make(map[time.Time]*accum)
	for i := range events {
		event := &events[i]
		key := event.Timestamp.Truncate(width)

		bucket, ok := buckets[key]
		if !ok {
			bucket = &accum{}
			buckets[key] = bucket
		}

		switch event.Action {
		case models.ActionReceived:
			bucket.received++
		case models.ActionRetransmitted:
			bucket.retransmitted++
		}
		bucket.failedSum += event.Failed
		bucket.failedN++
		if event.Voltage != nil {
			bucket.voltageSum += *event.Voltage
			bucket.voltageN++
		}
		if event.SignalStrength != nil {
			bucket.signalSum += *event.SignalStrength
			bucket.signalN++
		}
	}

	timestamps := make([]time.Time, 0, len(buckets))
	for ts := range buckets {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	timeline := make([]TimelineBucket, 0, len(timestamps))
	for _, ts := range timestamps {
		bucket := buckets[ts]
		entry := TimelineBucket{
			Timestamp:     ts,
			Received:      bucket.received,
			Retransmitted: bucket.retransmitted,
		}
		if bucket.failedN > 0 {
			entry.Failed = int(math.Round(float64(bucket.failedSum) / float64(bucket.failedN)))
		}
		if bucket.voltageN > 0 {
			avg := bucket.voltageSum / float64(bucket.voltageN)
			entry.Voltage = &avg
		}
		if bucket.signalN > 0 {
			avg := int(math.Round(float64(bucket.signalSum) / float64(bucket.signalN)))
			entry.SignalStrength = &avg
		}
		timeline = append(timeline, entry)
	}

	return timeline
}
