// Package model defines the normalized event record that every collector
// emits and every downstream component consumes, plus the document
// projection used by the vector index.
package model

import (
	"encoding/json"
	"time"
)

// EventType identifies the variant carried in UnifiedEvent.Details.
// The set is closed: the writer rejects anything else at its boundary.
type EventType string

const (
	EventProcess       EventType = "process"
	EventServiceEvent  EventType = "service_event"
	EventNetworkFlow   EventType = "network_flow"
	EventHardwareSpike EventType = "hardware_spike"
	EventMalwareAlert  EventType = "malware_alert"
)

// EventTypes returns the closed set of valid event types.
func EventTypes() []EventType {
	return []EventType{
		EventProcess,
		EventServiceEvent,
		EventNetworkFlow,
		EventHardwareSpike,
		EventMalwareAlert,
	}
}

// Valid reports whether t is a member of the closed event-type set.
func (t EventType) Valid() bool {
	switch t {
	case EventProcess, EventServiceEvent, EventNetworkFlow,
		EventHardwareSpike, EventMalwareAlert:
		return true
	}
	return false
}

// UnifiedEvent is the sole record flowing through the pipeline.
// Details holds the variant payload as a plain structured map so the
// pipeline stays schema-stable; Metadata carries flat provenance
// strings (os, collector, optional kernel/arch).
type UnifiedEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Details   map[string]any    `json:"details"`
	Metadata  map[string]string `json:"metadata"`
}

// NewEvent stamps the current UTC time and projects the typed payload
// into the generic details map. The payload is any of the variant
// structs in this package; projection goes through JSON so map keys
// match the wire schema exactly.
func NewEvent(t EventType, payload any, metadata map[string]string) UnifiedEvent {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return UnifiedEvent{
		Timestamp: time.Now().UTC(),
		Type:      t,
		Details:   ToMap(payload),
		Metadata:  metadata,
	}
}

// ToMap converts a variant struct into its generic map form via a JSON
// round-trip. Numeric values come back as float64/json-compatible types,
// which is what the SQL and vector boundaries store anyway.
func ToMap(payload any) map[string]any {
	if m, ok := payload.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
