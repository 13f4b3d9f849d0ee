package metrics

import (
	"errors"
	"time"

	"watchtorian/internal/models"
)

// ErrEmptyInput is returned when there is nothing to aggregate.
var ErrEmptyInput = errors.New("aggregate: no samples")

// Reduce folds samples into one aggregate sample stamped with the current time.
func Reduce(samples []models.TelemetrySample) (models.TelemetrySample, error) {
	return ReduceAt(samples, time.Now())
}

// ReduceAt folds samples into one aggregate sample stamped with at. CPU load,
// CPU temperature and disk usage are averaged, skipping unset readings.
// Internet becomes the percentage of samples that were online.
func ReduceAt(samples []models.TelemetrySample, at time.Time) (models.TelemetrySample, error) {
	if len(samples) == 0 {
		return models.TelemetrySample{}, ErrEmptyInput
	}

	var load, temp, disk mean
	online := 0.0
	for _, s := range samples {
		load.add(s.CPULoad)
		temp.add(s.CPUTemp)
		disk.add(s.DiskUsagePercent)
		online += s.Internet.Fraction()
	}

	return models.TelemetrySample{
		When:             at.Truncate(time.Minute),
		CPULoad:          load.value(),
		CPUTemp:          temp.value(),
		DiskUsagePercent: disk.value(),
		Internet:         models.Uptime(online / float64(len(samples)) * 100),
	}, nil
}

type mean struct {
	sum   float64
	count int
}

func (m *mean) add(v float64) {
	if models.IsUnset(v) {
		return
	}
	m.sum += v
	m.count++
}

func (m *mean) value() float64 {
	if m.count == 0 {
		return models.Unset()
	}
	return m.sum / float64(m.count)
}
