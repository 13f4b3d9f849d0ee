package collector

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"

	"watchtorian/internal/models"
)

const defaultCPUWindow = time.Second

// preferredSensors are tried in order before falling back to any sensor.
var preferredSensors = []string{
	"cpu_thermal",
	"coretemp_package_id_0",
	"k10temp_tctl",
	"cpu-thermal",
	"soc_thermal",
}

// HostCollector samples CPU load, CPU temperature and disk usage of the local
// machine. Connectivity and machine probes are filled in by the caller.
type HostCollector struct {
	diskPath  string
	cpuWindow time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewHostCollector returns a collector measuring disk usage at diskPath.
func NewHostCollector(diskPath string, logger *slog.Logger) *HostCollector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &HostCollector{
		diskPath:  diskPath,
		cpuWindow: defaultCPUWindow,
		logger:    logger,
		now:       time.Now,
	}
}

// Collect produces one raw sample. Readings that cannot be taken are left
// unset rather than failing the sample.
func (c *HostCollector) Collect(ctx context.Context) (models.TelemetrySample, error) {
	sample := models.TelemetrySample{
		When:             c.now(),
		CPULoad:          models.Unset(),
		CPUTemp:          models.Unset(),
		DiskUsagePercent: models.Unset(),
	}

	if pct, err := cpu.PercentWithContext(ctx, c.cpuWindow, false); err != nil {
		c.logger.Warn("cpu load unavailable", "error", err)
	} else if len(pct) > 0 {
		sample.CPULoad = pct[0]
	}

	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		c.logger.Debug("cpu temperature unavailable", "error", err)
	} else if v, ok := pickTemperature(temps); ok {
		sample.CPUTemp = v
	}

	if usage, err := disk.UsageWithContext(ctx, c.diskPath); err != nil {
		c.logger.Warn("disk usage unavailable", "path", c.diskPath, "error", err)
	} else {
		sample.DiskUsagePercent = usage.UsedPercent
	}

	if err := ctx.Err(); err != nil {
		return models.TelemetrySample{}, err
	}
	return sample, nil
}

func pickTemperature(temps []host.TemperatureStat) (float64, bool) {
	for _, key := range preferredSensors {
		for _, t := range temps {
			if strings.EqualFold(t.SensorKey, key) && t.Temperature > 0 {
				return t.Temperature, true
			}
		}
	}
	for _, t := range temps {
		if t.Temperature > 0 {
			return t.Temperature, true
		}
	}
	return 0, false
}
