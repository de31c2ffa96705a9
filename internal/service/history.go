package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"example.com/backstage/services/repeater/internal/models"
	"example.com/backstage/services/repeater/internal/repository"
)

// RelayTransaction is the derived pairing of a received/retransmitted event
// pair for one message id. It is computed on read and never stored.
type RelayTransaction struct {
	ID              uint64             `json:"id"`
	MsgID           int                `json:"msg_id"`
	Message         string             `json:"message"`
	ReceivedAt      *time.Time         `json:"received_at"`
	RetransmittedAt *time.Time         `json:"retransmitted_at"`
	RelayTimeMs     *int64             `json:"relay_time_ms"`
	Voltage         *float64           `json:"voltage"`
	SignalStrength  *int               `json:"signal_strength"`
	TxPower         *int               `json:"tx_power"`
	Status          models.RelayStatus `json:"status"`
}

// HistoryView is the correlated history page for one device.
//
// Total counts raw events for the device, not reconstructed transactions;
// the two numbers are not comparable. Dashboards rely on this for paging
// through the underlying event stream.
type HistoryView struct {
	Device  string             `json:"device"`
	Total   int64              `json:"total"`
	History []RelayTransaction `json:"history"`
}

// History returns the relay transactions reconstructed from one page of a
// device's events.
//
// Pairing is page-local: it only sees the fetched window of events, so a
// transaction whose received event falls outside the page surfaces as
// status "unknown". Fixing that would require unbounded lookback per page,
// which the legacy dashboard never had either.
func (s *service) History(ctx context.Context, device string, limit, offset int) (*HistoryView, error) {
	limit = clampLimit(limit, maxHistoryLimit)
	if offset < 0 {
		offset = 0
	}

	if _, err := s.repo.FindDevice(ctx, device); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	total, err := s.repo.CountActivities(ctx, device)
	if err != nil {
		return nil, err
	}

	page, err := s.repo.ListActivities(ctx, device, limit, offset)
	if err != nil {
		return nil, err
	}

	return &HistoryView{
		Device:  device,
		Total:   total,
		History: pairActivities(page),
	}, nil
}

// pairActivities groups one page of events by message id and derives relay
// transactions. Within a group the first received and first retransmitted
// event in ascending time order win; later duplicates are ignored.
func pairActivities(page []models.RepeaterActivity) []RelayTransaction {
	events := make([]models.RepeaterActivity, len(page))
	copy(events, page)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].ID < events[j].ID
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	type pair struct {
		received      *models.RepeaterActivity
		retransmitted *models.RepeaterActivity
	}
	byMsg := make(map[int]*pair)
	var order []int

	for i := range events {
		event := &events[i]
		p, ok := byMsg[event.MsgID]
		if !ok {
			p = &pair{}
			byMsg[event.MsgID] = p
			order = append(order, event.MsgID)
		}
		switch event.Action {
		case models.ActionReceived:
			if p.received == nil {
				p.received = event
			}
		case models.ActionRetransmitted:
			if p.retransmitted == nil {
				p.retransmitted = event
			}
		}
	}

	history := make([]RelayTransaction, 0, len(order))
	for _, msgID := range order {
		p := byMsg[msgID]
		if p.received == nil && p.retransmitted == nil {
			continue
		}
		history = append(history, buildTransaction(msgID, p.received, p.retransmitted))
	}

	// Newest first, keyed by received time when present
	sort.SliceStable(history, func(i, j int) bool {
		ti, iOK := orderingKey(history[i])
		tj, jOK := orderingKey(history[j])
		if !iOK {
			return false
		}
		if !jOK {
			return true
		}
		return ti.After(tj)
	})

	return history
}

// buildTransaction derives one transaction from the winning event pair.
// Message and telemetry fields prefer the received event, falling back to
// the retransmitted one.
//
// A pair where the retransmission timestamp precedes the reception (clock
// anomaly) stays pending with no relay time; negative latencies are never
// reported.
func buildTransaction(msgID int, received, retransmitted *models.RepeaterActivity) RelayTransaction {
	tx := RelayTransaction{
		MsgID:  msgID,
		Status: models.RelayStatusPending,
	}

	if received != nil {
		ts := received.Timestamp
		tx.ReceivedAt = &ts
		tx.ID = received.ID
		tx.Message = received.Message
	}
	if retransmitted != nil {
		ts := retransmitted.Timestamp
		tx.RetransmittedAt = &ts
		if received == nil {
			tx.ID = retransmitted.ID
			tx.Message = retransmitted.Message
		}
	}

	tx.Voltage = pickFloat(received, retransmitted, func(a *models.RepeaterActivity) *float64 { return a.Voltage })
	tx.SignalStrength = pickInt(received, retransmitted, func(a *models.RepeaterActivity) *int { return a.SignalStrength })
	tx.TxPower = pickInt(received, retransmitted, func(a *models.RepeaterActivity) *int { return a.TxPower })

	switch {
	case received != nil && retransmitted != nil && !retransmitted.Timestamp.Before(received.Timestamp):
		ms := retransmitted.Timestamp.Sub(received.Timestamp).Milliseconds()
		tx.RelayTimeMs = &ms
		tx.Status = models.RelayStatusSuccess
	case received != nil && retransmitted == nil:
		tx.Status = models.RelayStatusPending
	case retransmitted != nil && received == nil:
		tx.Status = models.RelayStatusUnknown
	}

	return tx
}

func orderingKey(tx RelayTransaction) (time.Time, bool) {
	if tx.ReceivedAt != nil {
		return *tx.ReceivedAt, true
	}
	if tx.RetransmittedAt != nil {
		return *tx.RetransmittedAt, true
	}
	return time.Time{}, false
}

func pickFloat(received, retransmitted *models.RepeaterActivity, get func(*models.RepeaterActivity) *float64) *float64 {
	if received != nil && get(received) != nil {
		return get(received)
	}
	if retransmitted != nil {
		return get(retransmitted)
	}
	return nil
}

func pickInt(received, retransmitted *models.RepeaterActivity, get func(*models.RepeaterActivity) *int) *int {
	if received != nil && get(received) != nil {
		return get(received)
	}
	if retransmitted != nil {
		return get(retransmitted)
	}
	return nil
}
