package models

import (
	"encoding/json"
	"math"
)

// InternetKind discriminates the two representations of connectivity.
type InternetKind int

const (
	// InternetUnknown means connectivity was not recorded.
	InternetUnknown InternetKind = iota
	// InternetOnline is the boolean form carried by raw samples.
	InternetOnline
	// InternetUptime is the percentage form carried by aggregate samples.
	InternetUptime
)

// Internet is either a boolean (raw samples) or a percentage of time online
// (aggregate samples). The zero value is InternetUnknown.
type Internet struct {
	kind    InternetKind
	online  bool
	percent float64
}

// Online returns the boolean form.
func Online(v bool) Internet {
	return Internet{kind: InternetOnline, online: v}
}

// Uptime returns the percentage form.
func Uptime(percent float64) Internet {
	return Internet{kind: InternetUptime, percent: percent}
}

// Kind returns which representation is held.
func (i Internet) Kind() InternetKind { return i.kind }

// Bool returns the boolean value. Percentages report true when above zero.
func (i Internet) Bool() bool {
	switch i.kind {
	case InternetOnline:
		return i.online
	case InternetUptime:
		return i.percent > 0
	}
	return false
}

// Percent returns the percentage value. Booleans map to 100 or 0.
func (i Internet) Percent() float64 {
	switch i.kind {
	case InternetUptime:
		return i.percent
	case InternetOnline:
		if i.online {
			return 100
		}
	}
	return 0
}

// Fraction returns the online share in the range 0..1.
func (i Internet) Fraction() float64 {
	return i.Percent() / 100
}

// MarshalJSON renders booleans as JSON booleans, percentages as numbers and
// unknown as null.
func (i Internet) MarshalJSON() ([]byte, error) {
	switch i.kind {
	case InternetOnline:
		return json.Marshal(i.online)
	case InternetUptime:
		return json.Marshal(math.Round(i.percent*100) / 100)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts the forms produced by MarshalJSON.
func (i *Internet) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*i = Online(v)
	case float64:
		*i = Uptime(v)
	default:
		*i = Internet{}
	}
	return nil
}
