// Package notify defines how the poll driver hands out reports and published
// readings. Delivery over email or an MQTT broker plugs in behind Notifier.
package notify

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"watchtorian/internal/metrics"
	"watchtorian/internal/models"
)

// Notifier receives the outputs of a poll cycle.
type Notifier interface {
	// Publish hands out the latest readings keyed by topic.
	Publish(ctx context.Context, readings map[string]string) error
	// SendReport delivers a periodic or threshold-triggered report.
	SendReport(ctx context.Context, report Report) error
}

// Report summarises the period since the previous report.
type Report struct {
	AppName     string                   `json:"app_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	LastReport  time.Time                `json:"last_report"`
	Warnings    []string                 `json:"warnings,omitempty"`
	Current     models.TelemetrySample   `json:"current"`
	Period      []models.TelemetrySample `json:"period"`
	Aggregates  []models.TelemetrySample `json:"aggregates"`
	Machines    []metrics.MachineUptime  `json:"machines,omitempty"`
	Internet    float64                  `json:"internet_uptime_percent"`
}

// LogNotifier writes every notification to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a Notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogNotifier{logger: logger}
}

// Publish logs each reading in topic order.
func (n *LogNotifier) Publish(_ context.Context, readings map[string]string) error {
	topics := make([]string, 0, len(readings))
	for topic := range readings {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		n.logger.Info("publish", "topic", topic, "value", readings[topic])
	}
	return nil
}

// SendReport logs a one-line summary of the report.
func (n *LogNotifier) SendReport(_ context.Context, report Report) error {
	n.logger.Info("report",
		"app", report.AppName,
		"since", report.LastReport,
		"samples", len(report.Period),
		"aggregates", len(report.Aggregates),
		"internet_uptime_percent", report.Internet,
		"warnings", report.Warnings,
	)
	for _, m := range report.Machines {
		n.logger.Info("report machine", "name", m.Name, "uptime_percent", m.UptimePercent, "last_result", m.LastResult)
	}
	return nil
}
