package metrics

import (
	"math"
	"sort"
	"time"

	"watchtorian/internal/models"
)

// MachineUptime summarises probe results of one machine.
type MachineUptime struct {
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Port          int       `json:"port"`
	UptimePercent float64   `json:"uptime_percent"`
	TotalChecks   int       `json:"total_checks"`
	Passing       int       `json:"passing"`
	Failing       int       `json:"failing"`
	LastResult    bool      `json:"last_result"`
	LastChecked   time.Time `json:"last_checked"`
}

// ComputeMachineUptime aggregates probe statistics per machine from raw samples.
func ComputeMachineUptime(samples []models.TelemetrySample) []MachineUptime {
	type acc struct {
		address  string
		port     int
		passing  int
		failing  int
		last     bool
		lastTime time.Time
	}
	state := make(map[string]*acc)
	for _, sample := range samples {
		for _, probe := range sample.Machines {
			machine := state[probe.Name]
			if machine == nil {
				machine = &acc{}
				state[probe.Name] = machine
			}
			if probe.Result {
				machine.passing++
			} else {
				machine.failing++
			}
			if !sample.When.Before(machine.lastTime) {
				machine.address = probe.Address
				machine.port = probe.Port
				machine.last = probe.Result
				machine.lastTime = sample.When
			}
		}
	}
	if len(state) == 0 {
		return nil
	}

	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]MachineUptime, 0, len(names))
	for _, name := range names {
		data := state[name]
		total := data.passing + data.failing
		results = append(results, MachineUptime{
			Name:          name,
			Address:       data.address,
			Port:          data.port,
			UptimePercent: round2(float64(data.passing) / float64(total) * 100),
			TotalChecks:   total,
			Passing:       data.passing,
			Failing:       data.failing,
			LastResult:    data.last,
			LastChecked:   data.lastTime,
		})
	}
	return results
}

// ComputeInternetUptime returns the share of samples that were online, as a
// percentage. Aggregate rows contribute their own percentage.
func ComputeInternetUptime(samples []models.TelemetrySample) float64 {
	if len(samples) == 0 {
		return 0
	}
	online := 0.0
	for _, s := range samples {
		online += s.Internet.Fraction()
	}
	return round2(online / float64(len(samples)) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
