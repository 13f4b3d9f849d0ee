package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"watchtorian/internal/config"
	"watchtorian/internal/datalog"
	"watchtorian/internal/metrics"
	"watchtorian/internal/models"
	"watchtorian/internal/notify"
)

// SampleSource produces one raw sample from the current host state.
type SampleSource interface {
	Collect(ctx context.Context) (models.TelemetrySample, error)
}

// Options wires the collaborators of a Monitor.
type Options struct {
	Config   config.Config
	Log      *datalog.Log
	Source   SampleSource
	Prober   *Prober
	Notifier notify.Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// Monitor runs poll cycles: sample, append, and report when due.
type Monitor struct {
	cfg      config.Config
	interval time.Duration
	log      *datalog.Log
	source   SampleSource
	prober   *Prober
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Result describes what a poll cycle did.
type Result struct {
	Sample    models.TelemetrySample
	Warnings  []string
	Published bool
	Reported  bool
	Rotated   bool
}

// New creates a monitor from opts.
func New(opts Options) *Monitor {
	interval := time.Duration(opts.Config.IntervalMinutes) * time.Minute
	if interval < time.Minute {
		interval = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	prober := opts.Prober
	if prober == nil {
		prober = NewProber(nil)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		cfg:      opts.Config,
		interval: interval,
		log:      opts.Log,
		source:   opts.Source,
		prober:   prober,
		notifier: notifier,
		logger:   logger,
		now:      now,
	}
}

// Run polls once immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if _, err := m.RunOnce(ctx); err != nil {
		m.logger.Error("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.RunOnce(ctx); err != nil {
				m.logger.Error("poll failed", "error", err)
			}
		}
	}
}

// RunOnce executes a single poll cycle.
func (m *Monitor) RunOnce(ctx context.Context) (Result, error) {
	if err := m.log.Create(false, models.DefaultHistory(), nil, nil); err != nil {
		return Result{}, fmt.Errorf("initialise telemetry log: %w", err)
	}

	sample, err := m.collect(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := m.log.Append(sample); err != nil {
		return Result{}, fmt.Errorf("append sample: %w", err)
	}
	m.logger.Info("recorded sample", "path", m.log.Path(), "cpu_load", sample.CPULoad, "cpu_temp", sample.CPUTemp, "disk", sample.DiskUsagePercent, "internet", sample.Internet.Bool())

	result := Result{Sample: sample, Warnings: m.thresholdWarnings(sample)}
	for _, w := range result.Warnings {
		m.logger.Warn("threshold exceeded", "detail", w)
	}

	header, err := m.log.ReadAll(true)
	if err != nil {
		return result, fmt.Errorf("read report history: %w", err)
	}
	now := m.now()

	mqtt := m.cfg.Reports.MQTT
	if mqtt.Enabled && now.Sub(header.History.LastMQTTPublished) > mqtt.Interval() {
		if err := m.notifier.Publish(ctx, m.readings(sample)); err != nil {
			m.logger.Error("publish failed", "error", err)
		} else {
			result.Published = true
		}
	}

	email := m.cfg.Reports.Email
	due := email.Enabled && now.Sub(header.History.LastEmailSent) > email.Interval()
	if len(result.Warnings) == 0 && !due {
		return result, nil
	}

	report, rotated, err := m.buildReport(header.History.LastEmailSent, sample, result.Warnings, now)
	if err != nil {
		return result, err
	}
	result.Rotated = rotated
	if err := m.notifier.SendReport(ctx, report); err != nil {
		m.logger.Error("report failed", "error", err)
		return result, nil
	}
	result.Reported = true
	return result, nil
}

func (m *Monitor) collect(ctx context.Context) (models.TelemetrySample, error) {
	sample, err := m.source.Collect(ctx)
	if err != nil {
		return models.TelemetrySample{}, fmt.Errorf("collect sample: %w", err)
	}
	sample.When = m.now()
	sample.Internet = models.Online(m.prober.CheckInternet(ctx, m.cfg.Connectivity.Target, m.cfg.Connectivity.Timeout()))
	sample.Machines = m.prober.ProbeMachines(ctx, m.cfg.Machines)
	return sample, nil
}

// buildReport aggregates the raw rows, rotates the log and assembles the
// report from the rows captured before rotation.
func (m *Monitor) buildReport(lastReport time.Time, current models.TelemetrySample, warnings []string, now time.Time) (notify.Report, bool, error) {
	snapshot, err := m.log.ReadAll(false)
	if err != nil {
		return notify.Report{}, false, fmt.Errorf("read telemetry log: %w", err)
	}

	rotated := false
	aggregate, err := metrics.ReduceAt(snapshot.Samples, now)
	switch {
	case errors.Is(err, metrics.ErrEmptyInput):
		m.logger.Info("no samples to aggregate, skipping rotation")
	case err != nil:
		return notify.Report{}, false, err
	default:
		if snapshot, err = m.log.Rotate(aggregate); err != nil {
			return notify.Report{}, false, fmt.Errorf("rotate telemetry log: %w", err)
		}
		rotated = true
	}

	after, err := m.log.ReadAll(false)
	if err != nil {
		return notify.Report{}, rotated, fmt.Errorf("read rotated log: %w", err)
	}

	return notify.Report{
		AppName:     m.cfg.AppName,
		GeneratedAt: now,
		LastReport:  lastReport,
		Warnings:    warnings,
		Current:     current,
		Period:      snapshot.Samples,
		Aggregates:  after.Aggregates,
		Machines:    metrics.ComputeMachineUptime(snapshot.Samples),
		Internet:    metrics.ComputeInternetUptime(snapshot.Samples),
	}, rotated, nil
}

func (m *Monitor) thresholdWarnings(s models.TelemetrySample) []string {
	t := m.cfg.Thresholds
	var warnings []string
	check := func(name string, value, limit float64) {
		if limit > 0 && !models.IsUnset(value) && value >= limit {
			warnings = append(warnings, fmt.Sprintf("%s %.2f reached threshold %.2f", name, value, limit))
		}
	}
	check("cpu load", s.CPULoad, t.CPULoadPercent)
	check("cpu temp", s.CPUTemp, t.CPUTemp)
	check("disk usage", s.DiskUsagePercent, t.DiskUsedPercent)
	return warnings
}

func (m *Monitor) readings(s models.TelemetrySample) map[string]string {
	topics := m.cfg.MQTT.Topics
	out := make(map[string]string, 5)
	set := func(topic, value string) {
		if topic != "" {
			out[topic] = value
		}
	}
	number := func(topic string, v float64) {
		if !models.IsUnset(v) {
			set(topic, strconv.FormatFloat(v, 'f', 2, 64))
		}
	}
	set(topics.Alive, "on")
	number(topics.CPUTemp, s.CPUTemp)
	number(topics.CPULoad, s.CPULoad)
	set(topics.Internet, strconv.FormatBool(s.Internet.Bool()))
	number(topics.DiskUsagePercent, s.DiskUsagePercent)
	return out
}
