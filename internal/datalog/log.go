package datalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"watchtorian/internal/codec"
	"watchtorian/internal/models"
)

const (
	filePerm    = 0o644
	maxLineSize = 1 << 20
)

// Options configures a Log.
type Options struct {
	// Path is the telemetry log file.
	Path string
	// Logger receives warnings about dropped rows. Nil discards them.
	Logger *slog.Logger
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// ArchiveDir, when set, receives a compressed copy of the raw rows
	// discarded by every rotation.
	ArchiveDir string
}

// Log owns one telemetry log file. Each method opens, uses and closes the file
// within the call and holds an advisory flock on a sidecar file meanwhile.
// flock locks belong to the open file, so concurrent calls within one process
// exclude each other as well.
type Log struct {
	path       string
	lockPath   string
	archiveDir string
	logger     *slog.Logger
	now        func() time.Time
}

// New returns a Log for opts.Path. The file is not touched until the first call.
func New(opts Options) *Log {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Log{
		path:       opts.Path,
		lockPath:   opts.Path + ".lock",
		archiveDir: opts.ArchiveDir,
		logger:     logger,
		now:        now,
	}
}

// Path returns the log file path.
func (l *Log) Path() string { return l.path }

// Exists reports whether the log file is present.
func (l *Log) Exists() (bool, error) {
	_, err := os.Stat(l.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat telemetry log: %w", err)
}

// Create writes a fresh log holding history, aggregates and raw samples. An
// existing file is left untouched unless overwrite is set.
func (l *Log) Create(overwrite bool, history models.LogHistory, aggregates, samples []models.TelemetrySample) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("ensure data directory: %w", err)
	}
	lock, err := acquireLock(l.lockPath, true)
	if err != nil {
		return err
	}
	defer lock.release()

	return l.create(overwrite, history, aggregates, samples)
}

func (l *Log) create(overwrite bool, history models.LogHistory, aggregates, samples []models.TelemetrySample) error {
	exists, err := l.Exists()
	if err != nil {
		return err
	}
	if exists && !overwrite {
		return nil
	}
	if exists {
		l.logger.Info("overwriting telemetry log", "path", l.path)
	}

	data, err := render(history, aggregates, samples)
	if err != nil {
		return err
	}
	return writeFileAtomic(l.path, data, filePerm)
}

// Append adds one raw sample at the end of the log without touching earlier
// content. The log must already exist.
func (l *Log) Append(sample models.TelemetrySample) error {
	line, err := codec.EncodeSample(sample)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}

	lock, err := acquireLock(l.lockPath, true)
	if err != nil {
		return err
	}
	defer lock.release()

	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return fmt.Errorf("open telemetry log: %w", err)
	}
	if _, err := file.WriteString(line + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("append sample: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close telemetry log: %w", err)
	}
	return nil
}

// ReadAll scans the log and classifies every line. With headerOnly it stops
// at the history line and returns no rows. Malformed data rows are logged and
// dropped; a missing or malformed history line fails with *CorruptLogError.
func (l *Log) ReadAll(headerOnly bool) (models.LogSnapshot, error) {
	lock, err := acquireLock(l.lockPath, false)
	if err != nil {
		return models.LogSnapshot{}, err
	}
	defer lock.release()

	return l.readAll(headerOnly)
}

func (l *Log) readAll(headerOnly bool) (models.LogSnapshot, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return models.LogSnapshot{}, fmt.Errorf("open telemetry log: %w", err)
	}
	defer file.Close()

	var (
		snapshot   models.LogSnapshot
		hasHistory bool
		lineNo     int
	)
	reader := newLineReader(file, maxLineSize)
	for {
		raw, oversized, err := reader.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.LogSnapshot{}, fmt.Errorf("read telemetry log: %w", err)
		}
		lineNo++
		if oversized {
			l.logger.Warn("dropping oversized line", "path", l.path, "line", lineNo, "limit", maxLineSize)
			continue
		}
		line := ClassifyLine(raw)
		switch line.Kind {
		case LineComment:
		case LineHistory:
			history, err := parseHistory(line.Payload)
			if err != nil {
				return models.LogSnapshot{}, &CorruptLogError{Path: l.path, Reason: fmt.Sprintf("malformed history on line %d", lineNo), Err: err}
			}
			snapshot.History = history
			hasHistory = true
			if headerOnly {
				return snapshot, nil
			}
		case LineAggregate:
			if headerOnly {
				continue
			}
			if sample, ok := l.decodeRow(line, lineNo); ok {
				snapshot.Aggregates = append(snapshot.Aggregates, sample)
			}
		case LineSample:
			if headerOnly {
				continue
			}
			if sample, ok := l.decodeRow(line, lineNo); ok {
				snapshot.Samples = append(snapshot.Samples, sample)
			}
		default:
			l.logger.Debug("ignoring unknown log line", "path", l.path, "line", lineNo)
		}
	}
	if !hasHistory {
		return models.LogSnapshot{}, &CorruptLogError{Path: l.path, Reason: "report history line not found"}
	}
	return snapshot, nil
}

func (l *Log) decodeRow(line Line, lineNo int) (models.TelemetrySample, bool) {
	decoded, err := codec.DecodeSample(line.Payload)
	if err != nil {
		l.logger.Warn("dropping malformed row", "path", l.path, "line", lineNo, "kind", line.Kind.String(), "error", err)
		return models.TelemetrySample{}, false
	}
	for _, rejected := range decoded.Rejected {
		l.logger.Warn("dropping malformed machine record", "path", l.path, "line", lineNo, "record", rejected.Input, "error", rejected.Err)
	}
	return decoded.Sample, true
}

// Rotate folds the log into its aggregate section: newAggregate is appended to
// the stored aggregates, every raw sample is discarded and both history
// timestamps are set to now. The snapshot read before the rewrite is returned
// so callers can still use the discarded rows. newAggregate must carry the
// percentage form of Internet; anything else fails with ErrNotAggregate.
func (l *Log) Rotate(newAggregate models.TelemetrySample) (models.LogSnapshot, error) {
	if !newAggregate.IsAggregate() {
		return models.LogSnapshot{}, ErrNotAggregate
	}
	lock, err := acquireLock(l.lockPath, true)
	if err != nil {
		return models.LogSnapshot{}, err
	}
	defer lock.release()

	before, err := l.readAll(false)
	if err != nil {
		return models.LogSnapshot{}, err
	}

	now := l.now().Truncate(time.Minute)
	if l.archiveDir != "" && len(before.Samples) > 0 {
		archivePath, err := l.archive(before.Samples, now)
		if err != nil {
			return models.LogSnapshot{}, err
		}
		l.logger.Info("archived raw samples", "path", archivePath, "samples", len(before.Samples))
	}

	aggregates := make([]models.TelemetrySample, 0, len(before.Aggregates)+1)
	aggregates = append(aggregates, before.Aggregates...)
	aggregates = append(aggregates, newAggregate)
	history := models.LogHistory{LastEmailSent: now, LastMQTTPublished: now}
	if err := l.create(true, history, aggregates, nil); err != nil {
		return models.LogSnapshot{}, err
	}
	l.logger.Info("rotated telemetry log", "path", l.path, "discarded", len(before.Samples), "aggregates", len(aggregates))
	return before, nil
}

func parseHistory(payload string) (models.LogHistory, error) {
	parts := strings.Split(payload, codec.FieldSeparator)
	if len(parts) != 2 {
		return models.LogHistory{}, &codec.FormatError{Input: payload, Reason: fmt.Sprintf("expected 2 history fields, got %d", len(parts))}
	}
	email, err := codec.ParseTime(parts[0])
	if err != nil {
		return models.LogHistory{}, err
	}
	mqtt, err := codec.ParseTime(parts[1])
	if err != nil {
		return models.LogHistory{}, err
	}
	return models.LogHistory{LastEmailSent: email, LastMQTTPublished: mqtt}, nil
}

func render(history models.LogHistory, aggregates, samples []models.TelemetrySample) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# watchtorian telemetry log\n")
	buf.WriteString("# format {report_history:last_email_sent;last_mqtt_published}\n")
	fmt.Fprintf(&buf, "%s%s%s%s\n", historyPrefix, codec.FormatTime(history.LastEmailSent), codec.FieldSeparator, codec.FormatTime(history.LastMQTTPublished))
	buf.WriteString("#\n")
	buf.WriteString("# aggregate format {aggregate:datetime;cpu_load;cpu_temp;disk_percent;internet_percent;}\n")
	for _, a := range aggregates {
		line, err := codec.EncodeSample(a)
		if err != nil {
			return nil, fmt.Errorf("encode aggregate: %w", err)
		}
		buf.WriteString(aggregatePrefix + line + "\n")
	}
	buf.WriteString("#\n")
	buf.WriteString("# data format {datetime;cpu_load;cpu_temp;disk_percent;internet;machines}\n")
	for _, s := range samples {
		line, err := codec.EncodeSample(s)
		if err != nil {
			return nil, fmt.Errorf("encode sample: %w", err)
		}
		buf.WriteString(line + "\n")
	}
	return buf.Bytes(), nil
}
