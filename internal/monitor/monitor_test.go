package monitor

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"watchtorian/internal/config"
	"watchtorian/internal/datalog"
	"watchtorian/internal/models"
	"watchtorian/internal/notify"
)

type fixedSource struct {
	sample models.TelemetrySample
	err    error
}

func (f *fixedSource) Collect(context.Context) (models.TelemetrySample, error) {
	return f.sample, f.err
}

type recordingNotifier struct {
	published []map[string]string
	reports   []notify.Report
}

func (r *recordingNotifier) Publish(_ context.Context, readings map[string]string) error {
	r.published = append(r.published, readings)
	return nil
}

func (r *recordingNotifier) SendReport(_ context.Context, report notify.Report) error {
	r.reports = append(r.reports, report)
	return nil
}

// fakeDial accepts every address except those whose host starts with "down".
func fakeDial(_ context.Context, _, address string) (net.Conn, error) {
	if strings.HasPrefix(address, "down") {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	server.Close()
	return client, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type harness struct {
	monitor  *Monitor
	log      *datalog.Log
	source   *fixedSource
	notifier *recordingNotifier
	clock    *clock
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Machines = []config.Machine{
		{Name: "router", Address: "192.168.1.1", Port: 80, Method: "TCP/ping", TimeoutSeconds: 1},
		{Name: "camera", Address: "down.local", Port: 554, Method: "TCP/ping", TimeoutSeconds: 1},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	c := &clock{t: time.Date(2024, time.June, 1, 12, 0, 0, 0, time.Local)}
	log := datalog.New(datalog.Options{
		Path: filepath.Join(t.TempDir(), "polldata.dat"),
		Now:  c.now,
	})
	source := &fixedSource{sample: models.TelemetrySample{CPULoad: 10, CPUTemp: 40, DiskUsagePercent: 50}}
	notifier := &recordingNotifier{}
	m := New(Options{
		Config:   cfg,
		Log:      log,
		Source:   source,
		Prober:   NewProber(fakeDial),
		Notifier: notifier,
		Now:      c.now,
	})
	return &harness{monitor: m, log: log, source: source, notifier: notifier, clock: c}
}

func TestRunOnceFirstPollReportsAndRotates(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.monitor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !result.Reported || !result.Rotated {
		t.Fatalf("result = %+v, want reported and rotated on first poll", result)
	}
	if result.Published {
		t.Errorf("published with mqtt disabled")
	}

	sample := result.Sample
	if !sample.Internet.Bool() {
		t.Errorf("internet = false, want true")
	}
	if len(sample.Machines) != 2 || !sample.Machines[0].Result || sample.Machines[1].Result {
		t.Errorf("machines = %+v, want router up and camera down", sample.Machines)
	}

	if len(h.notifier.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(h.notifier.reports))
	}
	report := h.notifier.reports[0]
	if !report.LastReport.Equal(models.NeverReported) {
		t.Errorf("LastReport = %v, want never", report.LastReport)
	}
	if len(report.Period) != 1 || len(report.Aggregates) != 1 {
		t.Errorf("report period/aggregates = %d/%d, want 1/1", len(report.Period), len(report.Aggregates))
	}
	if report.Internet != 100 {
		t.Errorf("report internet = %v, want 100", report.Internet)
	}
	if len(report.Machines) != 2 || report.Machines[0].Name != "camera" || report.Machines[0].UptimePercent != 0 {
		t.Errorf("report machines = %+v", report.Machines)
	}

	snapshot, err := h.log.ReadAll(false)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(snapshot.Samples) != 0 || len(snapshot.Aggregates) != 1 {
		t.Errorf("log = %d samples, %d aggregates; want 0, 1", len(snapshot.Samples), len(snapshot.Aggregates))
	}
	if !snapshot.History.LastEmailSent.Equal(h.clock.t) {
		t.Errorf("LastEmailSent = %v, want %v", snapshot.History.LastEmailSent, h.clock.t)
	}
}

func TestRunOnceAppendsUntilReportIsDue(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if _, err := h.monitor.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	for i := 1; i <= 3; i++ {
		h.clock.t = h.clock.t.Add(5 * time.Minute)
		result, err := h.monitor.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce %d: %v", i, err)
		}
		if result.Reported || result.Rotated {
			t.Fatalf("poll %d reported before the interval elapsed", i)
		}
	}

	snapshot, err := h.log.ReadAll(false)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(snapshot.Samples) != 3 {
		t.Errorf("Samples = %d, want 3", len(snapshot.Samples))
	}

	h.clock.t = h.clock.t.Add(24 * time.Hour)
	result, err := h.monitor.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !result.Reported {
		t.Fatalf("report not sent after the email interval")
	}
	report := h.notifier.reports[len(h.notifier.reports)-1]
	if len(report.Period) != 4 || len(report.Aggregates) != 2 {
		t.Errorf("report period/aggregates = %d/%d, want 4/2", len(report.Period), len(report.Aggregates))
	}
}

func TestRunOnceThresholdForcesReport(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Reports.Email.Enabled = false
		cfg.Thresholds.CPUTemp = 70
	})
	ctx := context.Background()

	if result, err := h.monitor.RunOnce(ctx); err != nil || result.Reported {
		t.Fatalf("RunOnce = %+v, %v; want no report below thresholds", result, err)
	}

	h.source.sample.CPUTemp = 81.5
	result, err := h.monitor.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !result.Reported || len(result.Warnings) != 1 {
		t.Fatalf("result = %+v, want a threshold report", result)
	}
	if !strings.Contains(result.Warnings[0], "cpu temp") {
		t.Errorf("warning = %q", result.Warnings[0])
	}
	if got := h.notifier.reports[0].Warnings; len(got) != 1 {
		t.Errorf("report warnings = %v", got)
	}
}

func TestRunOncePublishesWhenDue(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Reports.Email.Enabled = false
		cfg.Reports.MQTT = config.Schedule{Enabled: true, IntervalMinutes: 60}
	})
	h.source.sample.CPUTemp = models.Unset()

	result, err := h.monitor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !result.Published || len(h.notifier.published) != 1 {
		t.Fatalf("result = %+v, want one publish", result)
	}
	got := h.notifier.published[0]
	want := map[string]string{
		"watchtorian/alive":              "on",
		"watchtorian/cpu_load":           "10.00",
		"watchtorian/internet":           "true",
		"watchtorian/disk_usage_percent": "50.00",
	}
	if len(got) != len(want) {
		t.Fatalf("published = %v, want %v", got, want)
	}
	for topic, value := range want {
		if got[topic] != value {
			t.Errorf("published[%s] = %q, want %q", topic, got[topic], value)
		}
	}
}

func TestRunOnceStopsOnCorruptLog(t *testing.T) {
	h := newHarness(t, nil)
	if err := os.WriteFile(h.log.Path(), []byte("# history lost\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := h.monitor.RunOnce(context.Background())
	if !errors.Is(err, datalog.ErrCorruptLog) {
		t.Fatalf("RunOnce error = %v, want ErrCorruptLog", err)
	}
	if len(h.notifier.reports) != 0 || len(h.notifier.published) != 0 {
		t.Errorf("notifier used despite corrupt log")
	}
}

func TestRunOnceCollectError(t *testing.T) {
	h := newHarness(t, nil)
	h.source.err = errors.New("sensors offline")
	if _, err := h.monitor.RunOnce(context.Background()); err == nil {
		t.Fatalf("RunOnce succeeded, want collect error")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.monitor.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
