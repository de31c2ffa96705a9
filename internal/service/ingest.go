package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"example.com/backstage/services/repeater/internal/keys"
	"example.com/backstage/services/repeater/internal/models"
	"example.com/backstage/services/repeater/internal/repository"
)

// uptimeQuantumSeconds is added to a device's uptime counter per ingested
// event. It assumes one event per polling interval and is an approximation,
// not a measured duration.
const uptimeQuantumSeconds = 2

const (
	maxDeviceIDLength = 20
	deviceCacheTTL    = 5 * time.Minute
	deviceCachePrefix = "repeater:device:"
)

// IngestResult reports the outcome of a successful ingestion
type IngestResult struct {
	ActivityID    uint64    `json:"activity_id"`
	Timestamp     time.Time `json:"timestamp"`
	DeviceCreated bool      `json:"device_created"`
}

// ActivityPage is one page of raw activity rows
type ActivityPage struct {
	Device string                    `json:"device,omitempty"`
	Total  int64                     `json:"total"`
	Items  []models.RepeaterActivity `json:"items"`
}

// AuthorizeDevice checks a presented device key for an ingestion request.
// Unknown devices pass: they are auto-created open on first ingest. Known
// devices must be enabled and, when a key hash is stored, present a matching
// key.
func (s *service) AuthorizeDevice(ctx context.Context, deviceID, presentedKey string) error {
	device, err := s.lookupDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	if !device.Enabled {
		return ErrDeviceDisabled
	}
	if !keys.Verify(device.APIKeyHash, device.Salt, presentedKey) {
		return ErrInvalidDeviceKey
	}

	return nil
}

// lookupDevice fetches a device record, going through the cache when one is
// configured. The auth path runs on every ingestion, so a short TTL keeps
// key rotations effective without hammering the database.
func (s *service) lookupDevice(ctx context.Context, deviceID string) (*models.RepeaterDevice, error) {
	cacheKey := deviceCachePrefix + deviceID

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			var device models.RepeaterDevice
			if err := json.Unmarshal([]byte(cached), &device); err == nil {
				return &device, nil
			}
		}
	}

	device, err := s.repo.FindDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(device); err == nil {
			s.cache.Set(ctx, cacheKey, string(data), deviceCacheTTL)
		}
	}

	return device, nil
}

// IngestActivity validates and appends one activity event, upserting the
// device's status snapshot in the same transaction. The event row and the
// snapshot update are durable together or not at all.
func (s *service) IngestActivity(ctx context.Context, payload *models.ActivityPayload, now time.Time) (*IngestResult, error) {
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	activity := &models.RepeaterActivity{
		Device:         payload.Device,
		MsgID:          *payload.MsgID,
		Message:        payload.Message,
		Action:         models.ActivityAction(strings.ToLower(payload.Action)),
		Voltage:        payload.Voltage,
		SignalStrength: payload.SignalStrength,
		TxPower:        payload.TxPower,
		RxTotal:        *payload.Stats.RxTotal,
		TxTotal:        *payload.Stats.TxTotal,
		Failed:         *payload.Stats.Failed,
		Timestamp:      now,
	}

	var created bool
	err := s.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		_, deviceCreated, err := tx.GetOrCreateDevice(ctx, payload.Device)
		if err != nil {
			return fmt.Errorf("failed to resolve device: %w", err)
		}
		created = deviceCreated

		if err := tx.CreateActivity(ctx, activity); err != nil {
			return fmt.Errorf("failed to create activity: %w", err)
		}

		return s.upsertStatus(ctx, tx, payload, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishActivity(ctx, activity)

	return &IngestResult{
		ActivityID:    activity.ID,
		Timestamp:     activity.Timestamp,
		DeviceCreated: created,
	}, nil
}

// upsertStatus applies one event to the device's snapshot row. Telemetry
// fields are a partial update (absent fields keep their prior values);
// counters are overwritten unconditionally from the event.
func (s *service) upsertStatus(ctx context.Context, tx repository.Repository, payload *models.ActivityPayload, now time.Time) error {
	status, err := tx.GetStatus(ctx, payload.Device)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to load status: %w", err)
		}
		status = &models.RepeaterStatus{Device: payload.Device}
	}

	status.LastSeen = now
	if payload.Voltage != nil {
		status.Voltage = payload.Voltage
	}
	if payload.SignalStrength != nil {
		status.SignalStrength = payload.SignalStrength
	}
	if payload.TxPower != nil {
		status.TxPower = payload.TxPower
	}
	status.RxTotal = *payload.Stats.RxTotal
	status.TxTotal = *payload.Stats.TxTotal
	status.Failed = *payload.Stats.Failed
	status.UptimeSeconds += uptimeQuantumSeconds

	if err := tx.SaveStatus(ctx, status); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

// publishActivity forwards a committed event to the bus and the search index.
// Both are best-effort: downstream consumers poll the store of record anyway.
func (s *service) publishActivity(ctx context.Context, activity *models.RepeaterActivity) {
	if s.messaging != nil {
		if err := s.messaging.SendMessage(ctx, activity, activity.Device); err != nil {
			s.log.WithError(err).WithField("device", activity.Device).
				Warn("Failed to publish activity to service bus")
		}
	}

	if s.search != nil {
		doc, err := json.Marshal(activity)
		if err == nil {
			err = s.search.IndexActivity(ctx, strconv.FormatUint(activity.ID, 10), doc)
		}
		if err != nil {
			s.log.WithError(err).WithField("device", activity.Device).
				Warn("Failed to index activity")
		}
	}
}

// ListActivities returns a newest-first page of raw events
func (s *service) ListActivities(ctx context.Context, device string, limit, offset int) (*ActivityPage, error) {
	limit = clampLimit(limit, maxListingLimit)
	if offset < 0 {
		offset = 0
	}

	if device != "" {
		if _, err := s.repo.FindDevice(ctx, device); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrDeviceNotFound
			}
			return nil, err
		}
	}

	total, err := s.repo.CountActivities(ctx, device)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListActivities(ctx, device, limit, offset)
	if err != nil {
		return nil, err
	}

	return &ActivityPage{
		Device: device,
		Total:  total,
		Items:  items,
	}, nil
}

// validatePayload enforces the fixed ingestion schema. Out-of-range telemetry
// is rejected, never clamped.
func validatePayload(payload *models.ActivityPayload) error {
	fields := map[string]string{}

	if payload == nil {
		return &ValidationError{Fields: map[string]string{"payload": "required"}}
	}

	if strings.TrimSpace(payload.Device) == "" {
		fields["device"] = "required"
	} else if len(payload.Device) > maxDeviceIDLength {
		fields["device"] = fmt.Sprintf("must be at most %d characters", maxDeviceIDLength)
	}

	if payload.MsgID == nil {
		fields["msg_id"] = "required"
	}

	switch models.ActivityAction(strings.ToLower(payload.Action)) {
	case models.ActionReceived, models.ActionRetransmitted:
	default:
		fields["action"] = "must be one of 'received' or 'retransmitted'"
	}

	if payload.SignalStrength != nil && (*payload.SignalStrength < 0 || *payload.SignalStrength > 100) {
		fields["signal_strength"] = "must be between 0 and 100"
	}
	if payload.TxPower != nil && (*payload.TxPower < 0 || *payload.TxPower > 100) {
		fields["tx_power"] = "must be between 0 and 100"
	}

	if payload.Stats == nil {
		fields["stats"] = "required"
	} else {
		if payload.Stats.RxTotal == nil {
			fields["stats.rx_total"] = "required"
		}
		if payload.Stats.TxTotal == nil {
			fields["stats.tx_total"] = "required"
		}
		if payload.Stats.Failed == nil {
			fields["stats.failed"] = "required"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
