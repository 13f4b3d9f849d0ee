package notify

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLogNotifierPublishOrdersTopics(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	err := n.Publish(context.Background(), map[string]string{
		"home/pi/cpu_temp": "44.80",
		"home/pi/alive":    "on",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	out := buf.String()
	alive := strings.Index(out, "topic=home/pi/alive")
	temp := strings.Index(out, "topic=home/pi/cpu_temp")
	if alive < 0 || temp < 0 || alive > temp {
		t.Errorf("unexpected publish log:\n%s", out)
	}
}

func TestLogNotifierSendReport(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := n.SendReport(context.Background(), Report{AppName: "pi", Internet: 75}); err != nil {
		t.Fatalf("SendReport: %v", err)
	}
	if !strings.Contains(buf.String(), "internet_uptime_percent=75") {
		t.Errorf("report log missing uptime:\n%s", buf.String())
	}
}
