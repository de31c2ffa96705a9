package models

import (
	"time"
)

// ActivityAction is an enum for the two recognized repeater actions
type ActivityAction string

const (
	// ActionReceived represents a message received by a repeater
	ActionReceived ActivityAction = "received"
	// ActionRetransmitted represents a message retransmitted by a repeater
	ActionRetransmitted ActivityAction = "retransmitted"
)

// RelayStatus is an enum for derived relay transaction states
type RelayStatus string

const (
	// RelayStatusSuccess means both events exist and the retransmission followed the reception
	RelayStatusSuccess RelayStatus = "success"
	// RelayStatusPending means only the received event has arrived so far
	RelayStatusPending RelayStatus = "pending"
	// RelayStatusUnknown means the received event is missing (lost or outside the fetched page)
	RelayStatusUnknown RelayStatus = "unknown"
)

// AuthorizationLevel represents the level of access for an API key
type AuthorizationLevel int

const (
	// NoAuthLevel represents public access with no authentication
	NoAuthLevel AuthorizationLevel = 0
	// ViewerAuthLevel represents read-only access
	ViewerAuthLevel AuthorizationLevel = 1
	// WriterAuthLevel represents read-write access
	WriterAuthLevel AuthorizationLevel = 2
	// SudoAuthLevel represents administrative access
	SudoAuthLevel AuthorizationLevel = 3
)

// APIKey represents an API token with associated access level
type APIKey struct {
	ID                 uint               `json:"id" gorm:"primarykey"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Key                string             `json:"key" gorm:"uniqueIndex;Column:key"`
	Name               string             `json:"name" gorm:"Column:name"`
	AuthorizationLevel AuthorizationLevel `json:"authorization_level" gorm:"Column:authorization_level"`
	ExpiresAt          *time.Time         `json:"expires_at" gorm:"Column:expires_at"`
	LastUsedAt         *time.Time         `json:"last_used_at" gorm:"Column:last_used_at"`
}

// RepeaterDevice model represents a physical relay unit
type RepeaterDevice struct {
	Device       string    `json:"device" gorm:"primaryKey;size:20;Column:device"`
	FriendlyName string    `json:"friendly_name" gorm:"size:64;Column:friendly_name"`
	Enabled      bool      `json:"enabled" gorm:"Column:enabled"`
	APIKeyHash   string    `json:"-" gorm:"size:128;Column:api_key_hash"`
	Salt         string    `json:"-" gorm:"size:32;Column:salt"`
	Latitude     *float64  `json:"latitude" gorm:"Column:latitude"`
	Longitude    *float64  `json:"longitude" gorm:"Column:longitude"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName overrides the default table name
func (RepeaterDevice) TableName() string {
	return "repeater_device"
}

// RepeaterStatus is the mutable latest-state snapshot, one row per device.
//
// UptimeSeconds is a heuristic: it is bumped by a fixed quantum on every
// ingested event (one assumed polling interval), not measured wall time.
type RepeaterStatus struct {
	Device         string    `json:"device" gorm:"primaryKey;size:20;Column:device"`
	LastSeen       time.Time `json:"last_seen" gorm:"Column:last_seen"`
	Voltage        *float64  `json:"voltage" gorm:"Column:voltage"`
	SignalStrength *int      `json:"signal_strength" gorm:"Column:signal_strength"`
	TxPower        *int      `json:"tx_power" gorm:"Column:tx_power"`
	RxTotal        int       `json:"rx_total" gorm:"Column:rx_total"`
	TxTotal        int       `json:"tx_total" gorm:"Column:tx_total"`
	Failed         int       `json:"failed" gorm:"Column:failed"`
	UptimeSeconds  int       `json:"uptime_seconds" gorm:"Column:uptime_seconds"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName overrides the default table name
func (RepeaterStatus) TableName() string {
	return "repeater_status"
}

// RepeaterActivity is one immutable ingested event. MsgID is not unique: a
// received/retransmitted pair for the same relayed message shares it.
type RepeaterActivity struct {
	ID             uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	Device         string         `json:"device" gorm:"size:20;index:idx_activity_device;index:idx_activity_device_msgid;Column:device"`
	MsgID          int            `json:"msg_id" gorm:"index:idx_activity_device_msgid;Column:msg_id"`
	Message        string         `json:"message" gorm:"type:text;Column:message"`
	Action         ActivityAction `json:"action" gorm:"size:16;Column:action"`
	Voltage        *float64       `json:"voltage" gorm:"Column:voltage"`
	SignalStrength *int           `json:"signal_strength" gorm:"Column:signal_strength"`
	TxPower        *int           `json:"tx_power" gorm:"Column:tx_power"`
	RxTotal        int            `json:"rx_total" gorm:"Column:rx_total"`
	TxTotal        int            `json:"tx_total" gorm:"Column:tx_total"`
	Failed         int            `json:"failed" gorm:"Column:failed"`
	Timestamp      time.Time      `json:"timestamp" gorm:"index:idx_activity_timestamp;Column:timestamp"`
}

// TableName overrides the default table name
func (RepeaterActivity) TableName() string {
	return "repeater_activity"
}
