package service

import (
	"context"
	"errors"
	"time"

	"example.com/backstage/services/repeater/internal/models"
	"example.com/backstage/services/repeater/internal/repository"
)

// onlineWindow is how recently a device must have reported to count as
// online. It is a hair over the expected reporting interval so one missed
// report does not flap the flag.
const onlineWindow = 120 * time.Second

// StatusStats is the cumulative counter block of a status view
type StatusStats struct {
	RxTotal     int     `json:"rx_total"`
	TxTotal     int     `json:"tx_total"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// StatusView is the derived health snapshot for one device
type StatusView struct {
	Device         string      `json:"device"`
	Online         bool        `json:"online"`
	LastSeen       time.Time   `json:"last_seen"`
	Voltage        *float64    `json:"voltage"`
	SignalStrength *int        `json:"signal_strength"`
	TxPower        *int        `json:"tx_power"`
	Stats          StatusStats `json:"stats"`
	UptimeSeconds  int         `json:"uptime_seconds"`
}

// Status returns derived health snapshots, for one device or the whole fleet
// when device is empty. A device with no status row simply yields an empty
// result, not an error: it has never reported anything to derive from.
func (s *service) Status(ctx context.Context, device string, now time.Time) ([]StatusView, error) {
	if device != "" {
		status, err := s.repo.GetStatus(ctx, device)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return []StatusView{}, nil
			}
			return nil, err
		}
		return []StatusView{deriveStatus(status, now)}, nil
	}

	statuses, err := s.repo.ListStatuses(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]StatusView, 0, len(statuses))
	for i := range statuses {
		views = append(views, deriveStatus(&statuses[i], now))
	}
	return views, nil
}

func deriveStatus(status *models.RepeaterStatus, now time.Time) StatusView {
	view := StatusView{
		Device:         status.Device,
		Online:         now.Sub(status.LastSeen) < onlineWindow,
		LastSeen:       status.LastSeen,
		Voltage:        status.Voltage,
		SignalStrength: status.SignalStrength,
		TxPower:        status.TxPower,
		Stats: StatusStats{
			RxTotal: status.RxTotal,
			TxTotal: status.TxTotal,
			Failed:  status.Failed,
		},
		UptimeSeconds: status.UptimeSeconds,
	}

	if status.RxTotal > 0 {
		view.Stats.SuccessRate = round1(float64(status.TxTotal) / float64(status.RxTotal) * 100)
	}

	return view
}
