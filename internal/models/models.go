package models

import (
	"encoding/json"
	"math"
	"time"
)

// NeverReported is the history timestamp used before any report was made.
var NeverReported = time.Date(1, time.January, 1, 0, 0, 0, 0, time.Local)

// TelemetrySample is one row of the telemetry log. Raw samples are written once
// per poll; aggregate samples summarise a set of raw samples.
type TelemetrySample struct {
	When             time.Time      `json:"when"`
	CPULoad          float64        `json:"cpu_load"`
	CPUTemp          float64        `json:"cpu_temp"`
	DiskUsagePercent float64        `json:"disk_usage_percent"`
	Internet         Internet       `json:"internet"`
	Machines         []MachineProbe `json:"machines,omitempty"`
}

// IsAggregate reports whether the sample carries the percentage form of Internet.
func (s TelemetrySample) IsAggregate() bool {
	return s.Internet.Kind() == InternetUptime
}

// IsRaw reports whether the sample is a per-poll row.
func (s TelemetrySample) IsRaw() bool {
	return !s.IsAggregate()
}

type sampleJSON struct {
	When             time.Time      `json:"when"`
	CPULoad          *float64       `json:"cpu_load"`
	CPUTemp          *float64       `json:"cpu_temp"`
	DiskUsagePercent *float64       `json:"disk_usage_percent"`
	Internet         Internet       `json:"internet"`
	Machines         []MachineProbe `json:"machines,omitempty"`
}

// MarshalJSON renders unset readings as null.
func (s TelemetrySample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		When:             s.When,
		CPULoad:          reading(s.CPULoad),
		CPUTemp:          reading(s.CPUTemp),
		DiskUsagePercent: reading(s.DiskUsagePercent),
		Internet:         s.Internet,
		Machines:         s.Machines,
	})
}

// UnmarshalJSON restores null readings as unset.
func (s *TelemetrySample) UnmarshalJSON(data []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = TelemetrySample{
		When:             raw.When,
		CPULoad:          unreading(raw.CPULoad),
		CPUTemp:          unreading(raw.CPUTemp),
		DiskUsagePercent: unreading(raw.DiskUsagePercent),
		Internet:         raw.Internet,
		Machines:         raw.Machines,
	}
	return nil
}

func reading(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func unreading(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// Unset marks a numeric reading that could not be measured.
func Unset() float64 {
	return math.NaN()
}

// IsUnset reports whether v is the unset marker.
func IsUnset(v float64) bool {
	return math.IsNaN(v)
}

// LogHistory tracks when reports were last produced.
type LogHistory struct {
	LastEmailSent     time.Time `json:"last_email_sent"`
	LastMQTTPublished time.Time `json:"last_mqtt_published"`
}

// DefaultHistory returns a history for a log that has never reported.
func DefaultHistory() LogHistory {
	return LogHistory{LastEmailSent: NeverReported, LastMQTTPublished: NeverReported}
}

// LogSnapshot is the classified content of a telemetry log.
type LogSnapshot struct {
	History    LogHistory        `json:"history"`
	Samples    []TelemetrySample `json:"samples"`
	Aggregates []TelemetrySample `json:"aggregates"`
}

// Latest returns the most recent raw sample if there is one.
func (s LogSnapshot) Latest() (TelemetrySample, bool) {
	if len(s.Samples) == 0 {
		return TelemetrySample{}, false
	}
	return s.Samples[len(s.Samples)-1], true
}
