package models

// ActivityStats is the cumulative counters block devices report with every
// event. All three fields are required.
type ActivityStats struct {
	RxTotal *int `json:"rx_total"`
	TxTotal *int `json:"tx_total"`
	Failed  *int `json:"failed"`
}

// ActivityPayload is the fixed ingestion schema. Optional telemetry fields
// are pointers so that absent and zero are distinguishable; anything outside
// this shape is rejected rather than stored loosely.
type ActivityPayload struct {
	Device         string         `json:"device"`
	MsgID          *int           `json:"msg_id"`
	Message        string         `json:"message"`
	Action         string         `json:"action"`
	Voltage        *float64       `json:"voltage"`
	SignalStrength *int           `json:"signal_strength"`
	TxPower        *int           `json:"tx_power"`
	Stats          *ActivityStats `json:"stats"`
}
